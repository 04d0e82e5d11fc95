package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/platform"
	"go.uber.org/zap"
)

const defaultCleanupInterval = 30 * time.Second

type settingsEntry struct {
	entries   []settingEntry
	expiresAt time.Time
}

// InMemorySettingsCache keeps merged tenant settings in process memory.
// It serves as the whole cache without Redis and as L1 in front of Redis.
type InMemorySettingsCache struct {
	tenants sync.Map // uuid.UUID -> *settingsEntry
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

// InMemorySettingsCacheOption configures the cache
type InMemorySettingsCacheOption func(*InMemorySettingsCache)

// WithInMemoryLogger sets the logger for the cache
func WithInMemoryLogger(logger *zap.Logger) InMemorySettingsCacheOption {
	return func(c *InMemorySettingsCache) {
		c.logger = logger.Named("settings_cache")
	}
}

// NewInMemorySettingsCache creates the cache and starts its cleanup goroutine
func NewInMemorySettingsCache(ttl time.Duration, opts ...InMemorySettingsCacheOption) *InMemorySettingsCache {
	if ttl <= 0 {
		ttl = platform.DefaultSettingsTTL
	}
	c := &InMemorySettingsCache{
		ttl:    ttl,
		logger: zap.NewNop(),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.cleanupExpired()
	return c
}

// Get returns a copy of the cached settings
func (c *InMemorySettingsCache) Get(_ context.Context, tenantID uuid.UUID) ([]platform.Setting, bool, error) {
	if value, ok := c.tenants.Load(tenantID); ok {
		entry := value.(*settingsEntry)
		if c.now().Before(entry.expiresAt) {
			atomic.AddInt64(&c.hits, 1)
			return fromEntries(tenantID, entry.entries), true, nil
		}
		c.tenants.Delete(tenantID)
	}
	atomic.AddInt64(&c.misses, 1)
	return nil, false, nil
}

// Set stores a copy of the settings
func (c *InMemorySettingsCache) Set(_ context.Context, tenantID uuid.UUID, settings []platform.Setting, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.tenants.Store(tenantID, &settingsEntry{
		entries:   toEntries(settings),
		expiresAt: c.now().Add(ttl),
	})
	return nil
}

// Invalidate drops the tenant entry
func (c *InMemorySettingsCache) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	c.tenants.Delete(tenantID)
	c.logger.Debug("invalidated L1 settings", zap.String("tenant_id", tenantID.String()))
	return nil
}

// Stats returns hit and miss counters
func (c *InMemorySettingsCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close stops the cleanup goroutine
func (c *InMemorySettingsCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

func (c *InMemorySettingsCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.logger.Error("panic in settings cache cleanup", zap.Any("panic", r))
					}
				}()
				c.evictExpired()
			}()
		}
	}
}

func (c *InMemorySettingsCache) evictExpired() int {
	now := c.now()
	removed := 0
	c.tenants.Range(func(key, value any) bool {
		if !now.Before(value.(*settingsEntry).expiresAt) {
			c.tenants.Delete(key)
			removed++
		}
		return true
	})
	if removed > 0 {
		c.logger.Debug("evicted expired settings", zap.Int("tenants", removed))
	}
	return removed
}

var _ platform.SettingsCache = (*InMemorySettingsCache)(nil)
