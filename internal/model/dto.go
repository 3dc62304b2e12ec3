package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// USDScale is the fixed-point base for USD prices and oracle unit prices.
var USDScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// SettleRequest is the wire form of a buyLazyMint call.
type SettleRequest struct {
	Order     OrderDTO `json:"order" binding:"required"`
	Signature string   `json:"signature" binding:"required"`
	// SuppliedValue is the native value attached to the call, in wei.
	// Ignored for ERC-20 settlement.
	SuppliedValue string `json:"supplied_value"`
}

type OrderDTO struct {
	Maker  string           `json:"maker" binding:"required"`
	Sale   SaleDTO          `json:"sale" binding:"required"`
	Option PaymentOptionDTO `json:"option" binding:"required"`
}

type SaleDTO struct {
	Taker    string     `json:"taker" binding:"required"`
	Item     ItemDTO    `json:"item" binding:"required"`
	Payments PaymentDTO `json:"payments" binding:"required"`
	Nonce    string     `json:"nonce" binding:"required"`
	Deadline int64      `json:"deadline" binding:"required"`
}

type ItemDTO struct {
	TokenAddress string `json:"token_address" binding:"required"`
	Deadline     int64  `json:"deadline"`
	TokenInfo    string `json:"token_info" binding:"required"`
	Message      string `json:"message"`
	Signature    string `json:"signature"`
}

type PaymentDTO struct {
	// USDPrice is a human decimal, e.g. "100.00".
	USDPrice string   `json:"usd_price" binding:"required"`
	Payments []string `json:"payments"`
}

type PaymentOptionDTO struct {
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

// ToOrder validates and converts the wire form into the engine's order type.
func (d *OrderDTO) ToOrder() (*Order, error) {
	maker, err := parseAddress(d.Maker, "maker")
	if err != nil {
		return nil, err
	}
	taker, err := parseAddress(d.Sale.Taker, "sale.taker")
	if err != nil {
		return nil, err
	}
	tokenAddr, err := parseAddress(d.Sale.Item.TokenAddress, "item.token_address")
	if err != nil {
		return nil, err
	}

	usdPrice, err := ParseUSD(d.Sale.Payments.USDPrice)
	if err != nil {
		return nil, err
	}

	nonce, ok := new(big.Int).SetString(d.Sale.Nonce, 10)
	if !ok {
		return nil, fmt.Errorf("invalid nonce %q", d.Sale.Nonce)
	}

	payees := make([]common.Address, 0, len(d.Sale.Payments.Payments))
	for _, p := range d.Sale.Payments.Payments {
		addr, err := parseAddress(p, "payments entry")
		if err != nil {
			return nil, err
		}
		payees = append(payees, addr)
	}

	tokenInfo, err := parseBytes(d.Sale.Item.TokenInfo, "item.token_info")
	if err != nil {
		return nil, err
	}
	message, err := parseBytes(d.Sale.Item.Message, "item.message")
	if err != nil {
		return nil, err
	}
	itemSig, err := parseBytes(d.Sale.Item.Signature, "item.signature")
	if err != nil {
		return nil, err
	}
	optionSig, err := parseBytes(d.Option.Signature, "option.signature")
	if err != nil {
		return nil, err
	}

	optionToken := NativeToken
	if d.Option.Token != "" {
		optionToken, err = parseAddress(d.Option.Token, "option.token")
		if err != nil {
			return nil, err
		}
	}
	optionAmount := big.NewInt(0)
	if d.Option.Amount != "" {
		optionAmount, ok = new(big.Int).SetString(d.Option.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid option amount %q", d.Option.Amount)
		}
	}

	return &Order{
		Maker: maker,
		Sale: Sale{
			Taker: taker,
			Item: Item{
				TokenAddress: tokenAddr,
				Deadline:     big.NewInt(d.Sale.Item.Deadline),
				TokenInfo:    tokenInfo,
				Message:      message,
				Signature:    itemSig,
			},
			Payments: Payment{
				USDPrice: usdPrice,
				Payments: payees,
			},
			Nonce:    nonce,
			Deadline: big.NewInt(d.Sale.Deadline),
		},
		Option: PaymentOption{
			Token:     optionToken,
			Amount:    optionAmount,
			Deadline:  big.NewInt(d.Option.Deadline),
			Signature: optionSig,
		},
	}, nil
}

// ParseUSD converts a human decimal USD string into the 1e18 fixed-point
// representation used everywhere downstream.
func ParseUSD(s string) (*big.Int, error) {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid usd price %q: %w", s, err)
	}
	if dec.IsNegative() {
		return nil, fmt.Errorf("usd price must not be negative")
	}
	scaled := dec.Mul(decimal.NewFromBigInt(USDScale, 0))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("usd price %q exceeds 18 decimal places", s)
	}
	return scaled.BigInt(), nil
}

// ParseWei parses a base-unit integer string, defaulting empty to zero.
func ParseWei(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}

func parseAddress(s, field string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseBytes(s, field string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s hex: %w", field, err)
	}
	return b, nil
}
