package registry

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_Defaults(t *testing.T) {
	collector := common.HexToAddress("0x0000000000000000000000000000000000000002")
	r := New(250, collector)

	assert.False(t, r.Paused())
	assert.Equal(t, int64(250), r.FeeRateBps())
	assert.Equal(t, collector, r.FeeCollector())
	assert.False(t, r.IsBanned(common.Address{}))
	assert.False(t, r.IsSupportedCollection(common.Address{}))
	assert.False(t, r.IsSupportedPayment(common.Address{}))
}

func TestRegistry_SetFeeRateBps(t *testing.T) {
	r := New(250, common.Address{})

	assert.NoError(t, r.SetFeeRateBps(0))
	assert.Equal(t, int64(0), r.FeeRateBps())

	assert.NoError(t, r.SetFeeRateBps(10000))
	assert.Equal(t, int64(10000), r.FeeRateBps())

	assert.Error(t, r.SetFeeRateBps(-1))
	assert.Error(t, r.SetFeeRateBps(10001))
	assert.Equal(t, int64(10000), r.FeeRateBps(), "rejected rates leave the previous value")
}

func TestRegistry_Flags(t *testing.T) {
	r := New(250, common.Address{})
	addr := common.HexToAddress("0x00000000000000000000000000000000000000BB")

	r.SetBanned(addr, true)
	assert.True(t, r.IsBanned(addr))
	r.SetBanned(addr, false)
	assert.False(t, r.IsBanned(addr))

	r.SetCollection(addr, true)
	assert.True(t, r.IsSupportedCollection(addr))
	r.SetCollection(addr, false)
	assert.False(t, r.IsSupportedCollection(addr))

	r.SetPaymentToken(addr, true)
	assert.True(t, r.IsSupportedPayment(addr))
	r.SetPaymentToken(addr, false)
	assert.False(t, r.IsSupportedPayment(addr))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New(250, common.Address{})
	addr := common.HexToAddress("0x00000000000000000000000000000000000000BB")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(banned bool) {
			defer wg.Done()
			r.SetBanned(addr, banned)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = r.IsBanned(addr)
			_ = r.Paused()
			_ = r.FeeRateBps()
		}()
	}
	wg.Wait()
}
