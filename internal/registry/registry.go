package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// View is the read-only capability handed to the settlement engine. The
// engine never mutates registry state; only the admin surface does.
type View interface {
	Paused() bool
	IsBanned(account common.Address) bool
	IsSupportedCollection(token common.Address) bool
	IsSupportedPayment(token common.Address) bool
	FeeRateBps() int64
	FeeCollector() common.Address
}

// Registry holds the process-wide allow/ban state, the fee rate and the
// pause flag. Reads take the shared lock; all writes go through the admin
// mutators below.
type Registry struct {
	mu          sync.RWMutex
	paused      bool
	feeBps      int64
	collector   common.Address
	bans        map[common.Address]struct{}
	collections map[common.Address]struct{}
	payments    map[common.Address]struct{}
}

func New(feeBps int64, collector common.Address) *Registry {
	return &Registry{
		feeBps:      feeBps,
		collector:   collector,
		bans:        make(map[common.Address]struct{}),
		collections: make(map[common.Address]struct{}),
		payments:    make(map[common.Address]struct{}),
	}
}

func (r *Registry) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

func (r *Registry) IsBanned(account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bans[account]
	return ok
}

func (r *Registry) IsSupportedCollection(token common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.collections[token]
	return ok
}

func (r *Registry) IsSupportedPayment(token common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.payments[token]
	return ok
}

func (r *Registry) FeeRateBps() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeBps
}

func (r *Registry) FeeCollector() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collector
}

// Admin mutators. Owner-only enforcement happens at the HTTP layer.

func (r *Registry) SetPaused(paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = paused
}

func (r *Registry) SetFeeRateBps(bps int64) error {
	if bps < 0 || bps > 10000 {
		return fmt.Errorf("fee rate %d out of range [0, 10000]", bps)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeBps = bps
	return nil
}

func (r *Registry) SetBanned(account common.Address, banned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if banned {
		r.bans[account] = struct{}{}
	} else {
		delete(r.bans, account)
	}
}

func (r *Registry) SetCollection(token common.Address, supported bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if supported {
		r.collections[token] = struct{}{}
	} else {
		delete(r.collections, token)
	}
}

func (r *Registry) SetPaymentToken(token common.Address, supported bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if supported {
		r.payments[token] = struct{}{}
	} else {
		delete(r.payments, token)
	}
}
