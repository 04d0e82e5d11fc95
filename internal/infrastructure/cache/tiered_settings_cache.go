package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/platform"
	"go.uber.org/zap"
)

// settingsTier is one level of the tiered cache
type settingsTier interface {
	platform.SettingsCache
}

// invalidationBus fans tenant invalidations out to other instances
type invalidationBus interface {
	Publish(ctx context.Context, tenantID uuid.UUID) error
	Subscribe(ctx context.Context, onTenant func(uuid.UUID)) error
	Close() error
}

// TieredSettingsCache reads L1 (process memory) then L2 (Redis).
// Invalidations clear both tiers here and L1 on every other instance.
type TieredSettingsCache struct {
	l1          settingsTier
	l2          settingsTier
	invalidator invalidationBus
	logger      *zap.Logger

	l1Hits   int64
	l2Hits   int64
	l2Misses int64
}

// NewTieredSettingsCache combines the tiers. invalidator may be nil for a single instance.
func NewTieredSettingsCache(l1, l2 settingsTier, invalidator invalidationBus, logger *zap.Logger) *TieredSettingsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredSettingsCache{
		l1:          l1,
		l2:          l2,
		invalidator: invalidator,
		logger:      logger.Named("settings_cache"),
	}
}

// StartInvalidationSubscription blocks while listening for other instances' changes
func (c *TieredSettingsCache) StartInvalidationSubscription(ctx context.Context) error {
	if c.invalidator == nil {
		return nil
	}
	return c.invalidator.Subscribe(ctx, func(tenantID uuid.UUID) {
		if err := c.l1.Invalidate(context.Background(), tenantID); err != nil {
			c.logger.Warn("failed to drop L1 settings", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
	})
}

// Get reads L1, then L2. An L2 hit repopulates L1.
func (c *TieredSettingsCache) Get(ctx context.Context, tenantID uuid.UUID) ([]platform.Setting, bool, error) {
	if settings, ok, err := c.l1.Get(ctx, tenantID); err == nil && ok {
		atomic.AddInt64(&c.l1Hits, 1)
		return settings, true, nil
	}

	settings, ok, err := c.l2.Get(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		atomic.AddInt64(&c.l2Misses, 1)
		return nil, false, nil
	}
	atomic.AddInt64(&c.l2Hits, 1)
	if err := c.l1.Set(ctx, tenantID, settings, 0); err != nil {
		c.logger.Warn("failed to populate L1 settings", zap.Error(err))
	}
	return settings, true, nil
}

// Set writes both tiers
func (c *TieredSettingsCache) Set(ctx context.Context, tenantID uuid.UUID, settings []platform.Setting, ttl time.Duration) error {
	if err := c.l2.Set(ctx, tenantID, settings, ttl); err != nil {
		return err
	}
	if err := c.l1.Set(ctx, tenantID, settings, 0); err != nil {
		c.logger.Warn("failed to populate L1 settings", zap.Error(err))
	}
	return nil
}

// Invalidate clears both tiers and tells the other instances
func (c *TieredSettingsCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if err := c.l1.Invalidate(ctx, tenantID); err != nil {
		c.logger.Warn("failed to drop L1 settings", zap.Error(err))
	}
	if err := c.l2.Invalidate(ctx, tenantID); err != nil {
		return err
	}
	if c.invalidator != nil {
		if err := c.invalidator.Publish(ctx, tenantID); err != nil {
			c.logger.Warn("failed to broadcast settings invalidation", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
	}
	return nil
}

// Stats returns L1 hits, L2 hits and L2 misses
func (c *TieredSettingsCache) Stats() (l1Hits, l2Hits, l2Misses int64) {
	return atomic.LoadInt64(&c.l1Hits), atomic.LoadInt64(&c.l2Hits), atomic.LoadInt64(&c.l2Misses)
}

// Close stops the invalidation subscription and the L1 cleanup
func (c *TieredSettingsCache) Close() error {
	if c.invalidator != nil {
		_ = c.invalidator.Close()
	}
	if closer, ok := c.l1.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	return nil
}

var _ platform.SettingsCache = (*TieredSettingsCache)(nil)
