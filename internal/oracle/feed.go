package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mintgate/mintgate/internal/pkg/metrics"
)

const feedABI = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"latestRoundData","outputs":[{"name":"roundId","type":"uint80"},{"name":"answer","type":"int256"},{"name":"startedAt","type":"uint256"},{"name":"updatedAt","type":"uint256"},{"name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}
]`

// FeedSource reads USD unit prices from on-chain aggregator feeds, one feed
// contract per payment token. Quotes older than the staleness window are
// rejected rather than served.
type FeedSource struct {
	rpcURL     string
	feeds      map[common.Address]common.Address
	parsedABI  abi.ABI
	cacheTTL   time.Duration
	staleAfter time.Duration
	timeout    time.Duration
	retries    int

	mu     sync.Mutex
	client *ethclient.Client
	cache  map[common.Address]feedEntry
}

type feedEntry struct {
	price   *big.Int
	expires time.Time
}

func NewFeedSource(rpcURL string, feeds map[string]string, cacheTTL, staleAfter, timeout time.Duration, retries int) (*FeedSource, error) {
	parsed, err := abi.JSON(strings.NewReader(feedABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed abi: %w", err)
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}

	mapped := make(map[common.Address]common.Address, len(feeds))
	for token, feed := range feeds {
		if !common.IsHexAddress(token) || !common.IsHexAddress(feed) {
			return nil, fmt.Errorf("invalid feed mapping %s -> %s", token, feed)
		}
		mapped[common.HexToAddress(token)] = common.HexToAddress(feed)
	}

	return &FeedSource{
		rpcURL:     strings.TrimSpace(rpcURL),
		feeds:      mapped,
		parsedABI:  parsed,
		cacheTTL:   cacheTTL,
		staleAfter: staleAfter,
		timeout:    timeout,
		retries:    retries,
		cache:      make(map[common.Address]feedEntry),
	}, nil
}

func (f *FeedSource) UnitPriceUSD(ctx context.Context, token common.Address) (*big.Int, error) {
	feed, ok := f.feeds[token]
	if !ok {
		metrics.OracleRequests.WithLabelValues("feed", "miss").Inc()
		return nil, fmt.Errorf("no feed configured for token %s", token.Hex())
	}
	if price, ok := f.cacheGet(token); ok {
		metrics.OracleRequests.WithLabelValues("feed", "cached").Inc()
		return price, nil
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		price, err := f.query(attemptCtx, feed)
		cancel()
		if err == nil {
			f.cacheSet(token, price)
			metrics.OracleRequests.WithLabelValues("feed", "ok").Inc()
			return price, nil
		}
		lastErr = err
		if !shouldRetry(ctx, attempt, f.retries) {
			break
		}
	}
	metrics.OracleRequests.WithLabelValues("feed", "error").Inc()
	return nil, lastErr
}

func (f *FeedSource) query(ctx context.Context, feed common.Address) (*big.Int, error) {
	client, err := f.getClient(ctx)
	if err != nil {
		return nil, err
	}

	roundData, err := f.parsedABI.Pack("latestRoundData")
	if err != nil {
		return nil, fmt.Errorf("failed to pack call data: %w", err)
	}
	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: roundData}, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc call failed: %w", err)
	}
	values, err := f.parsedABI.Unpack("latestRoundData", output)
	if err != nil || len(values) != 5 {
		return nil, fmt.Errorf("malformed round data from feed %s", feed.Hex())
	}
	answer, ok := values[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return nil, fmt.Errorf("non-positive answer from feed %s", feed.Hex())
	}
	updatedAt, ok := values[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("malformed updatedAt from feed %s", feed.Hex())
	}
	age := time.Since(time.Unix(updatedAt.Int64(), 0))
	if age > f.staleAfter {
		return nil, fmt.Errorf("feed %s stale: last update %s ago", feed.Hex(), age.Truncate(time.Second))
	}

	decimalsData, err := f.parsedABI.Pack("decimals")
	if err != nil {
		return nil, fmt.Errorf("failed to pack call data: %w", err)
	}
	output, err = client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: decimalsData}, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc call failed: %w", err)
	}
	decValues, err := f.parsedABI.Unpack("decimals", output)
	if err != nil || len(decValues) != 1 {
		return nil, fmt.Errorf("malformed decimals from feed %s", feed.Hex())
	}
	feedDecimals, ok := decValues[0].(uint8)
	if !ok || feedDecimals > 18 {
		return nil, fmt.Errorf("unsupported feed decimals from %s", feed.Hex())
	}

	// Rescale to the 1e18 fixed-point base.
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-feedDecimals)), nil)
	return new(big.Int).Mul(answer, scale), nil
}

func (f *FeedSource) getClient(ctx context.Context) (*ethclient.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	if f.rpcURL == "" {
		return nil, fmt.Errorf("rpc url not configured")
	}
	client, err := ethclient.DialContext(ctx, f.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rpc: %w", err)
	}
	f.client = client
	return f.client, nil
}

func (f *FeedSource) cacheGet(token common.Address) (*big.Int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.cache[token]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		delete(f.cache, token)
		return nil, false
	}
	return new(big.Int).Set(entry.price), true
}

func (f *FeedSource) cacheSet(token common.Address, price *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[token] = feedEntry{
		price:   new(big.Int).Set(price),
		expires: time.Now().Add(f.cacheTTL),
	}
}

func shouldRetry(ctx context.Context, attempt, max int) bool {
	if attempt >= max {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	default:
	}
	time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
	return true
}
