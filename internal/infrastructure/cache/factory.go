package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/domain/order"
)

// LockFactory picks the action lock implementation for the deployment
type LockFactory struct {
	redisConfig           RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LockFactoryOption configures a LockFactory
type LockFactoryOption func(*LockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockFactoryOption {
	return func(f *LockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to an
// in-process lock. Defaults to true.
func WithInMemoryFallback(allow bool) LockFactoryOption {
	return func(f *LockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockFactory creates a new factory
func NewLockFactory(cfg RedisConfig, opts ...LockFactoryOption) *LockFactory {
	f := &LockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateLock returns a Redis lock, or an in-memory one when Redis is
// unreachable and fallback is allowed.
func (f *LockFactory) CreateLock() (order.ActionLock, error) {
	client, err := NewRedisClient(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis action lock",
			zap.String("host", f.redisConfig.Host),
			zap.Int("port", f.redisConfig.Port),
		)
		return NewRedisActionLock(client, ""), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for action locks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory action lock. "+
		"Concurrent instances will not exclude each other.",
		zap.Error(err),
	)
	return NewInMemoryActionLock(), nil
}
