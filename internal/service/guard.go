package service

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/pkg/apperrors"
	"github.com/mintgate/mintgate/internal/pkg/metrics"
	"github.com/mintgate/mintgate/internal/registry"
)

// NonceStore tracks consumed maker nonces for replay protection.
type NonceStore interface {
	Used(ctx context.Context, maker common.Address, nonce *big.Int) (bool, error)
	MarkUsed(ctx context.Context, maker common.Address, nonce *big.Int) error
}

// EligibilityGuard runs every pre-settlement gate. Each gate fails fast
// with its own error type before any funds move.
type EligibilityGuard struct {
	view   registry.View
	nonces NonceStore
	now    func() time.Time
}

func NewEligibilityGuard(view registry.View, nonces NonceStore) *EligibilityGuard {
	return &EligibilityGuard{view: view, nonces: nonces, now: time.Now}
}

// SetClock overrides the deadline clock (tests).
func (g *EligibilityGuard) SetClock(now func() time.Time) {
	g.now = now
}

func (g *EligibilityGuard) Check(ctx context.Context, order *model.Order) error {
	// 1. Global kill switch
	if g.view.Paused() {
		metrics.GuardRejects.WithLabelValues("paused").Inc()
		return apperrors.New(apperrors.ErrPaused, "settlement is paused", nil)
	}

	// 2. Ban registry
	if g.view.IsBanned(order.Maker) {
		metrics.GuardRejects.WithLabelValues("banned").Inc()
		return apperrors.Newf(apperrors.ErrBannedAccount, "maker %s is banned", order.Maker.Hex())
	}

	// 3. Allowlists
	if !g.view.IsSupportedCollection(order.Sale.Item.TokenAddress) {
		metrics.GuardRejects.WithLabelValues("collection").Inc()
		return apperrors.Newf(apperrors.ErrUnsupportedAsset,
			"collection %s is not supported", order.Sale.Item.TokenAddress.Hex())
	}
	if !g.view.IsSupportedPayment(order.Option.Token) {
		metrics.GuardRejects.WithLabelValues("payment_token").Inc()
		return apperrors.Newf(apperrors.ErrUnsupportedAsset,
			"payment token %s is not supported", order.Option.Token.Hex())
	}

	// 4. Deadlines on sale, item and payment option
	now := big.NewInt(g.now().Unix())
	for _, deadline := range []struct {
		name  string
		value *big.Int
	}{
		{"sale", order.Sale.Deadline},
		{"item", order.Sale.Item.Deadline},
		{"option", order.Option.Deadline},
	} {
		if deadline.value != nil && deadline.value.Sign() > 0 && deadline.value.Cmp(now) < 0 {
			metrics.GuardRejects.WithLabelValues("deadline").Inc()
			return apperrors.Newf(apperrors.ErrOrderExpired, "%s deadline passed", deadline.name)
		}
	}

	// 5. Nonce replay
	used, err := g.nonces.Used(ctx, order.Maker, order.Sale.Nonce)
	if err != nil {
		return apperrors.New(apperrors.ErrInternal, "nonce lookup failed", err)
	}
	if used {
		metrics.GuardRejects.WithLabelValues("nonce").Inc()
		return apperrors.Newf(apperrors.ErrNonceUsed,
			"nonce %s already consumed for maker %s", order.Sale.Nonce.String(), order.Maker.Hex())
	}

	return nil
}
