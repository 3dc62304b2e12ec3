package settle

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintgate/mintgate/internal/ledger"
	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/pkg/apperrors"
)

// FeeDenominator fixes fee rates in basis points: 10000 = 100%.
const FeeDenominator = 10000

// Fee computes floor(amount × rateBps / 10000).
func Fee(amount *big.Int, rateBps int64) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(rateBps))
	return fee.Div(fee, big.NewInt(FeeDenominator))
}

// Plan is the staged fund movement for one settlement, ready to hand to
// the ledger together with the mint call.
type Plan struct {
	Medium    string // "erc20" or "native"
	Amount    *big.Int
	Fee       *big.Int
	Payout    *big.Int
	Refund    *big.Int
	Permit    *ledger.PermitRequest
	Transfers []ledger.Transfer
}

// Settler builds settlement plans. It moves funds between three parties:
// the paying maker, the taker and the fee collector (custody).
type Settler struct {
	ledger  ledger.Ledger
	custody common.Address
	now     func() time.Time
}

func NewSettler(l ledger.Ledger, custody common.Address) *Settler {
	return &Settler{ledger: l, custody: custody, now: time.Now}
}

// SetClock overrides the permit deadline clock (tests).
func (s *Settler) SetClock(now func() time.Time) {
	s.now = now
}

// BuildPlan stages the fee, the two transfers and, where needed, the
// allowance bridge or refund. No funds move here; the ledger commits the
// plan atomically later.
func (s *Settler) BuildPlan(ctx context.Context, order *model.Order, amount *big.Int, feeBps int64, collector common.Address, supplied *big.Int) (*Plan, error) {
	fee := Fee(amount, feeBps)
	payout := new(big.Int).Add(amount, fee)

	plan := &Plan{
		Amount: amount,
		Fee:    fee,
		Payout: payout,
		Refund: big.NewInt(0),
	}

	if order.IsNative() {
		plan.Medium = "native"
		if supplied == nil || supplied.Cmp(payout) < 0 {
			return nil, apperrors.Newf(apperrors.ErrInsufficientFunds,
				"supplied native value below payout %s", payout.String())
		}
		// Pushes are paid out of the engine's escrowed supplied value.
		plan.Transfers = append(plan.Transfers,
			ledger.Transfer{From: s.custody, To: order.Sale.Taker, Amount: amount},
			ledger.Transfer{From: s.custody, To: collector, Amount: fee},
		)
		refund := new(big.Int).Sub(supplied, payout)
		if refund.Sign() > 0 {
			// Excess goes back to the party that supplied it: the maker.
			plan.Refund = refund
			plan.Transfers = append(plan.Transfers,
				ledger.Transfer{From: s.custody, To: order.Maker, Amount: refund, Refund: true})
		}
		return plan, nil
	}

	plan.Medium = "erc20"
	// Value attached to a token-paid order would be escrowed with nothing
	// staged to return it; refuse it outright.
	if supplied != nil && supplied.Sign() > 0 {
		return nil, apperrors.New(apperrors.ErrInvalidRequest,
			"native value attached to a token-paid order", nil)
	}
	token := order.Option.Token
	allowance, err := s.ledger.Allowance(ctx, token, order.Maker, s.custody)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrTransferFailed, "allowance lookup failed", err)
	}
	if allowance.Cmp(payout) < 0 {
		permit, err := s.buildPermit(order, payout)
		if err != nil {
			return nil, err
		}
		plan.Permit = permit
	}

	plan.Transfers = append(plan.Transfers,
		ledger.Transfer{Token: token, From: order.Maker, To: order.Sale.Taker, Amount: amount},
		ledger.Transfer{Token: token, From: order.Maker, To: collector, Amount: fee},
	)
	return plan, nil
}

// buildPermit stages the gasless allowance bridge from the credential in
// option.signature. The credential covers option.amount, which must be at
// least the full payout.
func (s *Settler) buildPermit(order *model.Order, payout *big.Int) (*ledger.PermitRequest, error) {
	opt := order.Option
	if len(opt.Signature) == 0 {
		return nil, apperrors.New(apperrors.ErrAuthorizationFailed,
			"allowance below payout and no permit credential supplied", nil)
	}
	if opt.Amount == nil || opt.Amount.Cmp(payout) < 0 {
		return nil, apperrors.Newf(apperrors.ErrAuthorizationFailed,
			"permit credential covers less than payout %s", payout.String())
	}
	if opt.Deadline == nil || opt.Deadline.Cmp(big.NewInt(s.now().Unix())) < 0 {
		return nil, apperrors.New(apperrors.ErrAuthorizationFailed, "permit credential expired", nil)
	}
	return &ledger.PermitRequest{
		Token:     opt.Token,
		Owner:     order.Maker,
		Spender:   s.custody,
		Value:     opt.Amount,
		Deadline:  opt.Deadline,
		Signature: opt.Signature,
	}, nil
}
