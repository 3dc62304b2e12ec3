package repository

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/mintgate/mintgate/internal/config"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// Implement service.NonceStore backed by redis. Consumed nonces are
// permanent; there is no expiry.
func (r *RedisClient) Used(ctx context.Context, maker common.Address, nonce *big.Int) (bool, error) {
	n, err := r.Client.Exists(ctx, redisNonceKey(maker, nonce)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisClient) MarkUsed(ctx context.Context, maker common.Address, nonce *big.Int) error {
	return r.Client.Set(ctx, redisNonceKey(maker, nonce), "1", 0).Err()
}

func redisNonceKey(maker common.Address, nonce *big.Int) string {
	n := "0"
	if nonce != nil {
		n = nonce.String()
	}
	return "nonce:" + strings.ToLower(maker.Hex()) + ":" + n
}
