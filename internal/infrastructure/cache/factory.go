package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/directdebit/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ProcessingLock is the lock contract shared by the Redis and in-memory locks
type ProcessingLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// LockFactory creates processing locks based on configuration
type LockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LockFactoryOption is a functional option for configuring the factory
type LockFactoryOption func(*LockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockFactoryOption {
	return func(f *LockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory lock when Redis is unavailable
func WithInMemoryFallback(allow bool) LockFactoryOption {
	return func(f *LockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockFactory creates a new factory
func NewLockFactory(cfg config.RedisConfig, opts ...LockFactoryOption) *LockFactory {
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

// CreateRedisLock creates a Redis-based lock
func (f *LockFactory) CreateRedisLock() (*RedisProcessingLock, error) {
	lock, err := NewRedisProcessingLock(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis processing lock: %w", err)
	}
	return lock, nil
}

// CreateLock returns the Redis lock when Redis is enabled and reachable.
// Otherwise it falls back to an in-memory lock if fallback is allowed.
// An in-memory lock only guards jobs within this process.
func (f *LockFactory) CreateLock() (ProcessingLock, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory processing lock")
		return NewInMemoryProcessingLock(), nil
	}

	lock, err := f.CreateRedisLock()
	if err == nil {
		f.logger.Info("Using Redis processing lock", zap.String("addr", f.redisConfig.Addr()))
		return lock, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for processing lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory processing lock. "+
		"Jobs of different instances may process the same order.",
		zap.Error(err),
	)
	return NewInMemoryProcessingLock(), nil
}
