package platform

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSettingsTTL is used when a cache is given a zero TTL
const DefaultSettingsTTL = 10 * time.Minute

// SettingsCache holds the merged settings of a tenant.
// Values are stored unmasked; masking happens when responses are built.
type SettingsCache interface {
	// Get returns the cached settings. ok is false on a cache miss.
	Get(ctx context.Context, tenantID uuid.UUID) (settings []Setting, ok bool, err error)

	// Set stores the merged settings for ttl, or DefaultSettingsTTL when ttl is 0
	Set(ctx context.Context, tenantID uuid.UUID, settings []Setting, ttl time.Duration) error

	// Invalidate drops the tenant entry
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}
