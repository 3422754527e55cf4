package cache

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory opens the delivery claim store named by
// idempotency.backend.
type IdempotencyStoreFactory struct {
	redis    config.RedisConfig
	backend  string
	logger   *zap.Logger
	fallback bool
}

type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// per-process claims. On by default: the reference key on journal entries
// still stops a double posting, only the claim layer gets weaker.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.fallback = allow
	}
}

func NewIdempotencyStoreFactory(redisCfg config.RedisConfig, idemCfg config.IdempotencyConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redis:    redisCfg,
		backend:  idemCfg.Backend,
		logger:   zap.NewNop(),
		fallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if f.backend != "redis" {
		f.logger.Info("Delivery claims kept in memory")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, f.redis)
	switch {
	case err == nil:
		f.logger.Info("Delivery claims kept in Redis", zap.String("addr", f.redis.Addr()))
		return store, nil
	case !f.fallback:
		return nil, fmt.Errorf("redis required for delivery claims but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, delivery claims fall back to memory; "+
		"duplicates across instances are left to the entry reference check",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
