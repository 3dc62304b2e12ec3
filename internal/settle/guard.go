package settle

import (
	"context"
	"sync"

	"github.com/mintgate/mintgate/internal/pkg/apperrors"
)

type entryMarker struct{}

// EntryGuard protects the settlement entry point. Independent invocations
// queue on the mutex and run one at a time; a nested call made from inside
// a running settlement (a mint target calling back in) carries the entry
// marker on its context and fails fast instead of deadlocking on the lock
// it already holds.
type EntryGuard struct {
	mu sync.Mutex
}

// Enter acquires the settlement lock. The returned context carries the
// entry marker and must flow through the ledger so that callbacks made
// during execution are recognized as reentrant. The release func must be
// called exactly once, error paths included.
func (g *EntryGuard) Enter(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(entryMarker{}) != nil {
		return nil, nil, apperrors.New(apperrors.ErrReentrancy, "settlement already in progress", nil)
	}
	g.mu.Lock()
	return context.WithValue(ctx, entryMarker{}, struct{}{}), func() { g.mu.Unlock() }, nil
}
