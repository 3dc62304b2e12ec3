package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/pkg/metrics"
)

// StaticSource serves fixed unit prices from configuration. Intended for
// development and for payment tokens without an on-chain feed.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[common.Address]*big.Int
}

// NewStaticSource parses human decimal prices ("2.00") keyed by token
// address into 1e18 fixed-point.
func NewStaticSource(prices map[string]string) (*StaticSource, error) {
	s := &StaticSource{prices: make(map[common.Address]*big.Int)}
	for addr, price := range prices {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid token address %q in static prices", addr)
		}
		dec, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("invalid static price %q for %s: %w", price, addr, err)
		}
		scaled := dec.Mul(decimal.NewFromBigInt(model.USDScale, 0))
		if !scaled.IsInteger() || scaled.Sign() <= 0 {
			return nil, fmt.Errorf("static price %q for %s must be positive with at most 18 decimals", price, addr)
		}
		s.prices[common.HexToAddress(addr)] = scaled.BigInt()
	}
	return s, nil
}

func (s *StaticSource) SetPrice(token common.Address, unitPrice *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[token] = new(big.Int).Set(unitPrice)
}

func (s *StaticSource) UnitPriceUSD(_ context.Context, token common.Address) (*big.Int, error) {
	s.mu.RLock()
	price, ok := s.prices[token]
	s.mu.RUnlock()
	if !ok {
		metrics.OracleRequests.WithLabelValues("static", "miss").Inc()
		return nil, fmt.Errorf("no price configured for token %s", token.Hex())
	}
	metrics.OracleRequests.WithLabelValues("static", "ok").Inc()
	return new(big.Int).Set(price), nil
}
