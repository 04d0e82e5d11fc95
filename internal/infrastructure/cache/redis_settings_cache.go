package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/platform"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSettingsCache stores merged tenant settings as one JSON value per tenant
type RedisSettingsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSettingsCache creates the cache on a shared client
func NewRedisSettingsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSettingsCache {
	if ttl <= 0 {
		ttl = platform.DefaultSettingsTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSettingsCache{client: client, ttl: ttl, logger: logger.Named("settings_cache")}
}

func settingsKey(tenantID uuid.UUID) string {
	return "crm:settings:" + tenantID.String()
}

// Get loads the tenant entry. A corrupt entry is deleted and reported as a miss.
func (c *RedisSettingsCache) Get(ctx context.Context, tenantID uuid.UUID) ([]platform.Setting, bool, error) {
	key := settingsKey(tenantID)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get settings from cache: %w", err)
	}

	var entries []settingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("dropping corrupt settings entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key)
		return nil, false, nil
	}
	return fromEntries(tenantID, entries), true, nil
}

// Set stores the tenant entry
func (c *RedisSettingsCache) Set(ctx context.Context, tenantID uuid.UUID, settings []platform.Setting, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(toEntries(settings))
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := c.client.Set(ctx, settingsKey(tenantID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set settings in cache: %w", err)
	}
	return nil
}

// Invalidate deletes the tenant entry
func (c *RedisSettingsCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if err := c.client.Del(ctx, settingsKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("invalidate settings cache: %w", err)
	}
	return nil
}

var _ platform.SettingsCache = (*RedisSettingsCache)(nil)
