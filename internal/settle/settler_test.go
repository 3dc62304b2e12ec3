package settle

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/mintgate/mintgate/internal/ledger"
	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/pkg/apperrors"
)

var (
	custodyAddr   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	collectorAddr = common.HexToAddress("0x0000000000000000000000000000000000000002")
	makerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	takerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	tokenAddr     = common.HexToAddress("0x00000000000000000000000000000000000000EE")
)

func usd(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), model.USDScale)
}

func nativeOrder() *model.Order {
	return &model.Order{
		Maker: makerAddr,
		Sale: model.Sale{
			Taker: takerAddr,
			Item:  model.Item{TokenAddress: common.HexToAddress("0xCC")},
		},
		Option: model.PaymentOption{Token: model.NativeToken},
	}
}

func erc20Order() *model.Order {
	o := nativeOrder()
	o.Option.Token = tokenAddr
	return o
}

func newTestLedger() *ledger.MemLedger {
	l := ledger.NewMemLedger(1, custodyAddr)
	l.CreateToken(tokenAddr, "USD Coin", "2")
	return l
}

func TestFee_Floors(t *testing.T) {
	cases := []struct {
		amount  int64
		rateBps int64
		want    int64
	}{
		{10000, 250, 250},
		{10000, 0, 0},
		{1, 250, 0},      // floor(0.025)
		{39, 250, 0},     // floor(0.975)
		{40, 250, 1},     // exactly 1
		{10000, 10000, 10000},
		{999, 333, 33},   // floor(33.2667)
	}
	for _, tc := range cases {
		got := Fee(big.NewInt(tc.amount), tc.rateBps)
		assert.Equal(t, tc.want, got.Int64(), "fee(%d, %d)", tc.amount, tc.rateBps)
	}
}

func TestFee_SpecimenNumbers(t *testing.T) {
	// amount 50 tokens at 250 bps: fee 1.25, payout 51.25
	amount := usd(50)
	fee := Fee(amount, 250)
	assert.Equal(t, "1250000000000000000", fee.String())
	assert.Equal(t, "51250000000000000000", new(big.Int).Add(amount, fee).String())
}

func TestBuildPlan_NativeWithRefund(t *testing.T) {
	s := NewSettler(newTestLedger(), custodyAddr)

	amount := usd(50)
	supplied := usd(60)
	plan, err := s.BuildPlan(context.Background(), nativeOrder(), amount, 250, collectorAddr, supplied)
	assert.NoError(t, err)

	assert.Equal(t, "native", plan.Medium)
	assert.Equal(t, "1250000000000000000", plan.Fee.String())
	assert.Equal(t, "51250000000000000000", plan.Payout.String())
	assert.Equal(t, "8750000000000000000", plan.Refund.String())
	assert.Nil(t, plan.Permit)

	assert.Len(t, plan.Transfers, 3)
	assert.Equal(t, takerAddr, plan.Transfers[0].To)
	assert.Equal(t, amount, plan.Transfers[0].Amount)
	assert.Equal(t, collectorAddr, plan.Transfers[1].To)
	assert.Equal(t, makerAddr, plan.Transfers[2].To)
	assert.True(t, plan.Transfers[2].Refund)
	for _, tr := range plan.Transfers {
		assert.True(t, tr.Native())
		assert.Equal(t, custodyAddr, tr.From)
	}
}

func TestBuildPlan_NativeExactPayoutNoRefund(t *testing.T) {
	s := NewSettler(newTestLedger(), custodyAddr)

	amount := usd(50)
	payout := new(big.Int).Add(amount, Fee(amount, 250))
	plan, err := s.BuildPlan(context.Background(), nativeOrder(), amount, 250, collectorAddr, payout)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), plan.Refund.Int64())
	assert.Len(t, plan.Transfers, 2)
}

func TestBuildPlan_NativeInsufficientSupplied(t *testing.T) {
	s := NewSettler(newTestLedger(), custodyAddr)

	amount := usd(50)
	_, err := s.BuildPlan(context.Background(), nativeOrder(), amount, 250, collectorAddr, usd(51))
	assert.Equal(t, apperrors.ErrInsufficientFunds, apperrors.TypeOf(err))

	_, err = s.BuildPlan(context.Background(), nativeOrder(), amount, 250, collectorAddr, nil)
	assert.Equal(t, apperrors.ErrInsufficientFunds, apperrors.TypeOf(err))
}

func TestBuildPlan_ERC20WithSufficientAllowance(t *testing.T) {
	l := newTestLedger()
	l.SetAllowance(tokenAddr, makerAddr, custodyAddr, usd(100))
	s := NewSettler(l, custodyAddr)

	amount := usd(50)
	plan, err := s.BuildPlan(context.Background(), erc20Order(), amount, 250, collectorAddr, nil)
	assert.NoError(t, err)

	assert.Equal(t, "erc20", plan.Medium)
	assert.Nil(t, plan.Permit, "no permit needed when allowance covers payout")
	assert.Len(t, plan.Transfers, 2)
	assert.Equal(t, makerAddr, plan.Transfers[0].From)
	assert.Equal(t, takerAddr, plan.Transfers[0].To)
	assert.Equal(t, tokenAddr, plan.Transfers[0].Token)
	assert.Equal(t, collectorAddr, plan.Transfers[1].To)
}

func TestBuildPlan_ERC20ShortAllowanceStagesPermit(t *testing.T) {
	l := newTestLedger()
	s := NewSettler(l, custodyAddr)
	s.SetClock(func() time.Time { return time.Unix(1000, 0) })

	order := erc20Order()
	order.Option.Amount = usd(100)
	order.Option.Deadline = big.NewInt(2000)
	order.Option.Signature = []byte{0x01} // staged, not yet verified

	plan, err := s.BuildPlan(context.Background(), order, usd(50), 250, collectorAddr, nil)
	assert.NoError(t, err)
	assert.NotNil(t, plan.Permit)
	assert.Equal(t, makerAddr, plan.Permit.Owner)
	assert.Equal(t, custodyAddr, plan.Permit.Spender)
	assert.Equal(t, usd(100), plan.Permit.Value)
}

func TestBuildPlan_ERC20PermitRejections(t *testing.T) {
	l := newTestLedger()
	s := NewSettler(l, custodyAddr)
	s.SetClock(func() time.Time { return time.Unix(1000, 0) })

	// No credential at all.
	order := erc20Order()
	_, err := s.BuildPlan(context.Background(), order, usd(50), 250, collectorAddr, nil)
	assert.Equal(t, apperrors.ErrAuthorizationFailed, apperrors.TypeOf(err))

	// Credential covers less than payout.
	order = erc20Order()
	order.Option.Amount = usd(51) // payout is 51.25
	order.Option.Deadline = big.NewInt(2000)
	order.Option.Signature = []byte{0x01}
	_, err = s.BuildPlan(context.Background(), order, usd(50), 250, collectorAddr, nil)
	assert.Equal(t, apperrors.ErrAuthorizationFailed, apperrors.TypeOf(err))

	// Expired credential.
	order = erc20Order()
	order.Option.Amount = usd(100)
	order.Option.Deadline = big.NewInt(999)
	order.Option.Signature = []byte{0x01}
	_, err = s.BuildPlan(context.Background(), order, usd(50), 250, collectorAddr, nil)
	assert.Equal(t, apperrors.ErrAuthorizationFailed, apperrors.TypeOf(err))
}

func TestBuildPlan_ERC20RejectsAttachedNativeValue(t *testing.T) {
	l := newTestLedger()
	l.SetAllowance(tokenAddr, makerAddr, custodyAddr, usd(100))
	s := NewSettler(l, custodyAddr)

	// Escrowing value alongside a token payment would leave it with custody
	// and off the transfer log, so the plan refuses to stage it.
	_, err := s.BuildPlan(context.Background(), erc20Order(), usd(50), 250, collectorAddr, usd(5))
	assert.Equal(t, apperrors.ErrInvalidRequest, apperrors.TypeOf(err))

	// Zero or absent value is fine.
	_, err = s.BuildPlan(context.Background(), erc20Order(), usd(50), 250, collectorAddr, big.NewInt(0))
	assert.NoError(t, err)
	_, err = s.BuildPlan(context.Background(), erc20Order(), usd(50), 250, collectorAddr, nil)
	assert.NoError(t, err)
}

func TestBuildPlan_PermitFarFutureDeadline(t *testing.T) {
	l := newTestLedger()
	s := NewSettler(l, custodyAddr)
	s.SetClock(func() time.Time { return time.Unix(1000, 0) })

	order := erc20Order()
	order.Option.Amount = usd(100)
	order.Option.Deadline = new(big.Int).Lsh(big.NewInt(1), 70) // beyond int64
	order.Option.Signature = []byte{0x01}

	plan, err := s.BuildPlan(context.Background(), order, usd(50), 250, collectorAddr, nil)
	assert.NoError(t, err)
	assert.NotNil(t, plan.Permit)
}

func TestBuildPlan_ERC20UnknownTokenFailsAllowanceLookup(t *testing.T) {
	l := ledger.NewMemLedger(1, custodyAddr) // token never created
	s := NewSettler(l, custodyAddr)

	_, err := s.BuildPlan(context.Background(), erc20Order(), usd(50), 250, collectorAddr, nil)
	assert.Equal(t, apperrors.ErrTransferFailed, apperrors.TypeOf(err))
}

func TestBuildPlan_ZeroFeeRate(t *testing.T) {
	l := newTestLedger()
	l.SetAllowance(tokenAddr, makerAddr, custodyAddr, usd(100))
	s := NewSettler(l, custodyAddr)

	plan, err := s.BuildPlan(context.Background(), erc20Order(), usd(50), 0, collectorAddr, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), plan.Fee.Int64())
	assert.Equal(t, plan.Amount, plan.Payout)
}
