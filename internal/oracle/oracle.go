package oracle

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/pkg/apperrors"
)

// PriceSource answers the USD price of one whole unit of a payment token,
// scaled to 1e18. Implementations must be safe for concurrent use.
type PriceSource interface {
	UnitPriceUSD(ctx context.Context, token common.Address) (*big.Int, error)
}

// Converter turns a USD-denominated target price into a token amount using
// integer fixed-point arithmetic only. No fallback pricing: a failed or
// non-positive quote is fatal.
type Converter struct {
	source PriceSource
}

func NewConverter(source PriceSource) *Converter {
	return &Converter{source: source}
}

// TokenAmount computes usdPrice × 1e18 / unitPriceUSD.
// Both inputs are 1e18 fixed-point; the result is in token base units
// (18-decimal convention).
func (c *Converter) TokenAmount(ctx context.Context, usdPrice *big.Int, token common.Address) (*big.Int, error) {
	if usdPrice == nil || usdPrice.Sign() < 0 {
		return nil, apperrors.NewInvalidRequest("usd price must be non-negative")
	}

	unitPrice, err := c.source.UnitPriceUSD(ctx, token)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrOracleUnavailable, "unit price lookup failed", err)
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return nil, apperrors.Newf(apperrors.ErrOracleUnavailable, "no positive unit price for token %s", token.Hex())
	}

	amount := new(big.Int).Mul(usdPrice, model.USDScale)
	return amount.Div(amount, unitPrice), nil
}
