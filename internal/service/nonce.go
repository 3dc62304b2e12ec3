package service

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemNonceStore is the in-process fallback when redis is not configured.
type MemNonceStore struct {
	mu   sync.RWMutex
	used map[string]struct{}
}

func NewMemNonceStore() *MemNonceStore {
	return &MemNonceStore{used: make(map[string]struct{})}
}

func (s *MemNonceStore) Used(_ context.Context, maker common.Address, nonce *big.Int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.used[nonceKey(maker, nonce)]
	return ok, nil
}

func (s *MemNonceStore) MarkUsed(_ context.Context, maker common.Address, nonce *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used[nonceKey(maker, nonce)] = struct{}{}
	return nil
}

func nonceKey(maker common.Address, nonce *big.Int) string {
	n := "0"
	if nonce != nil {
		n = nonce.String()
	}
	return strings.ToLower(maker.Hex()) + ":" + n
}
