package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/opencrm/backend/internal/domain/platform"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// NewRedisClient connects to Redis and verifies the connection.
// The caller owns the client and closes it on shutdown.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Stores bundles the Redis-backed or in-memory stores of one process
type Stores struct {
	Client      *redis.Client
	Idempotency shared.IdempotencyStore
	Settings    platform.SettingsCache
	// Tiered is set when settings use the L1/L2 cache and must subscribe to invalidations
	Tiered *TieredSettingsCache
}

// Close releases the stores and the Redis client
func (s *Stores) Close() error {
	if s.Tiered != nil {
		_ = s.Tiered.Close()
	}
	if s.Idempotency != nil {
		_ = s.Idempotency.Close()
	}
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

// NewStores builds the idempotency store and settings cache.
// Without Redis, or when Redis is unreachable, both fall back to in-memory
// implementations that do not share state across instances.
func NewStores(cfg config.RedisConfig, settingsTTL time.Duration, logger *zap.Logger) *Stores {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settingsTTL <= 0 {
		settingsTTL = platform.DefaultSettingsTTL
	}

	inMemory := func() *Stores {
		return &Stores{
			Idempotency: NewInMemoryIdempotencyStore(),
			Settings:    NewInMemorySettingsCache(settingsTTL, WithInMemoryLogger(logger)),
		}
	}

	if !cfg.Enabled {
		logger.Info("redis disabled, using in-memory idempotency store and settings cache")
		return inMemory()
	}

	client, err := NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Events may be processed twice and settings may be stale across instances.",
			zap.Error(err),
		)
		return inMemory()
	}

	l1 := NewInMemorySettingsCache(time.Minute, WithInMemoryLogger(logger))
	l2 := NewRedisSettingsCache(client, settingsTTL, logger)
	tiered := NewTieredSettingsCache(l1, l2, NewSettingsInvalidator(client, logger), logger)

	logger.Info("using Redis idempotency store and tiered settings cache")
	return &Stores{
		Client:      client,
		Idempotency: NewRedisIdempotencyStore(client, ""),
		Settings:    tiered,
		Tiered:      tiered,
	}
}
