package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/pkg/apperrors"
	"github.com/mintgate/mintgate/internal/registry"
)

var (
	guardMaker      = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	guardTaker      = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	guardCollection = common.HexToAddress("0x00000000000000000000000000000000000000CC")
	guardToken      = common.HexToAddress("0x00000000000000000000000000000000000000EE")
	guardCollector  = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func eligibleOrder() *model.Order {
	return &model.Order{
		Maker: guardMaker,
		Sale: model.Sale{
			Taker: guardTaker,
			Item: model.Item{
				TokenAddress: guardCollection,
				Deadline:     big.NewInt(2000),
			},
			Nonce:    big.NewInt(1),
			Deadline: big.NewInt(2000),
		},
		Option: model.PaymentOption{
			Token:    guardToken,
			Deadline: big.NewInt(2000),
		},
	}
}

func newGuard() (*EligibilityGuard, *registry.Registry, *MemNonceStore) {
	reg := registry.New(250, guardCollector)
	reg.SetCollection(guardCollection, true)
	reg.SetPaymentToken(guardToken, true)

	nonces := NewMemNonceStore()
	g := NewEligibilityGuard(reg, nonces)
	g.SetClock(func() time.Time { return time.Unix(1000, 0) })
	return g, reg, nonces
}

func TestGuard_EligibleOrderPasses(t *testing.T) {
	g, _, _ := newGuard()
	assert.NoError(t, g.Check(context.Background(), eligibleOrder()))
}

func TestGuard_Paused(t *testing.T) {
	g, reg, _ := newGuard()
	reg.SetPaused(true)
	err := g.Check(context.Background(), eligibleOrder())
	assert.Equal(t, apperrors.ErrPaused, apperrors.TypeOf(err))
}

func TestGuard_BannedMaker(t *testing.T) {
	g, reg, _ := newGuard()
	reg.SetBanned(guardMaker, true)
	err := g.Check(context.Background(), eligibleOrder())
	assert.Equal(t, apperrors.ErrBannedAccount, apperrors.TypeOf(err))

	reg.SetBanned(guardMaker, false)
	assert.NoError(t, g.Check(context.Background(), eligibleOrder()))
}

func TestGuard_UnsupportedCollection(t *testing.T) {
	g, reg, _ := newGuard()
	reg.SetCollection(guardCollection, false)
	err := g.Check(context.Background(), eligibleOrder())
	assert.Equal(t, apperrors.ErrUnsupportedAsset, apperrors.TypeOf(err))
}

func TestGuard_UnsupportedPaymentToken(t *testing.T) {
	g, reg, _ := newGuard()
	reg.SetPaymentToken(guardToken, false)
	err := g.Check(context.Background(), eligibleOrder())
	assert.Equal(t, apperrors.ErrUnsupportedAsset, apperrors.TypeOf(err))
}

func TestGuard_Deadlines(t *testing.T) {
	mutations := map[string]func(o *model.Order){
		"sale":   func(o *model.Order) { o.Sale.Deadline = big.NewInt(999) },
		"item":   func(o *model.Order) { o.Sale.Item.Deadline = big.NewInt(999) },
		"option": func(o *model.Order) { o.Option.Deadline = big.NewInt(999) },
	}
	for name, mutate := range mutations {
		g, _, _ := newGuard()
		order := eligibleOrder()
		mutate(order)
		err := g.Check(context.Background(), order)
		assert.Equal(t, apperrors.ErrOrderExpired, apperrors.TypeOf(err), "%s deadline", name)
	}
}

func TestGuard_ZeroDeadlineMeansNoExpiry(t *testing.T) {
	g, _, _ := newGuard()
	order := eligibleOrder()
	order.Sale.Deadline = big.NewInt(0)
	order.Sale.Item.Deadline = nil
	order.Option.Deadline = big.NewInt(0)
	assert.NoError(t, g.Check(context.Background(), order))
}

func TestGuard_FarFutureDeadlinePasses(t *testing.T) {
	g, _, _ := newGuard()
	order := eligibleOrder()
	// Deadlines past int64 range are far future, not expired.
	far := new(big.Int).Lsh(big.NewInt(1), 70)
	order.Sale.Deadline = far
	order.Sale.Item.Deadline = far
	order.Option.Deadline = far
	assert.NoError(t, g.Check(context.Background(), order))
}

func TestGuard_ConsumedNonce(t *testing.T) {
	g, _, nonces := newGuard()
	order := eligibleOrder()

	assert.NoError(t, g.Check(context.Background(), order))
	assert.NoError(t, nonces.MarkUsed(context.Background(), order.Maker, order.Sale.Nonce))

	err := g.Check(context.Background(), order)
	assert.Equal(t, apperrors.ErrNonceUsed, apperrors.TypeOf(err))

	// Another nonce from the same maker still passes.
	order.Sale.Nonce = big.NewInt(2)
	assert.NoError(t, g.Check(context.Background(), order))
}

func TestGuard_GateOrdering(t *testing.T) {
	// Pause outranks every later gate: even a banned maker with a used
	// nonce sees PAUSED first.
	g, reg, nonces := newGuard()
	order := eligibleOrder()

	reg.SetPaused(true)
	reg.SetBanned(guardMaker, true)
	assert.NoError(t, nonces.MarkUsed(context.Background(), order.Maker, order.Sale.Nonce))

	err := g.Check(context.Background(), order)
	assert.Equal(t, apperrors.ErrPaused, apperrors.TypeOf(err))

	reg.SetPaused(false)
	err = g.Check(context.Background(), order)
	assert.Equal(t, apperrors.ErrBannedAccount, apperrors.TypeOf(err))

	reg.SetBanned(guardMaker, false)
	err = g.Check(context.Background(), order)
	assert.Equal(t, apperrors.ErrNonceUsed, apperrors.TypeOf(err))
}

func TestMemNonceStore_CaseInsensitiveKeys(t *testing.T) {
	nonces := NewMemNonceStore()
	maker := common.HexToAddress("0xAbCd000000000000000000000000000000000000")

	assert.NoError(t, nonces.MarkUsed(context.Background(), maker, big.NewInt(5)))
	used, err := nonces.Used(context.Background(), maker, big.NewInt(5))
	assert.NoError(t, err)
	assert.True(t, used)

	used, err = nonces.Used(context.Background(), maker, big.NewInt(6))
	assert.NoError(t, err)
	assert.False(t, used)
}
