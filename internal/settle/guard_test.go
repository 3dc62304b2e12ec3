package settle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mintgate/mintgate/internal/pkg/apperrors"
)

func TestEntryGuard_NestedEntryFails(t *testing.T) {
	var g EntryGuard

	ctx, release, err := g.Enter(context.Background())
	assert.NoError(t, err)

	// A call made from inside the settlement carries the marked context.
	_, _, err = g.Enter(ctx)
	assert.Equal(t, apperrors.ErrReentrancy, apperrors.TypeOf(err))

	release()

	_, release2, err := g.Enter(context.Background())
	assert.NoError(t, err)
	release2()
}

func TestEntryGuard_ReleaseOnErrorPathReopens(t *testing.T) {
	var g EntryGuard

	for i := 0; i < 3; i++ {
		_, release, err := g.Enter(context.Background())
		assert.NoError(t, err)
		release()
	}
}

func TestEntryGuard_IndependentEntrantsSerialize(t *testing.T) {
	var g EntryGuard
	const n = 32

	var (
		wg       sync.WaitGroup
		inFlight atomic.Int32
		admitted atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := g.Enter(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, int32(1), inFlight.Add(1), "entrants must not overlap")
			admitted.Add(1)
			inFlight.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(n), admitted.Load(), "every independent entrant is eventually admitted")
}
