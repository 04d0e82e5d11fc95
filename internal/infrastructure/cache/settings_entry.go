package cache

import (
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/platform"
)

// settingEntry is the cached form of a setting
type settingEntry struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Category    string    `json:"category"`
	DataType    string    `json:"data_type"`
	Description string    `json:"description,omitempty"`
	IsSecret    bool      `json:"is_secret"`
	IsSystem    bool      `json:"is_system"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toEntries(settings []platform.Setting) []settingEntry {
	entries := make([]settingEntry, len(settings))
	for i, s := range settings {
		entries[i] = settingEntry{
			ID:          s.ID,
			Key:         s.Key,
			Value:       s.Value,
			Category:    string(s.Category),
			DataType:    string(s.DataType),
			Description: s.Description,
			IsSecret:    s.IsSecret,
			IsSystem:    s.IsSystem,
			Version:     s.Version,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		}
	}
	return entries
}

// fromEntries rebuilds detached settings so callers never share cache memory
func fromEntries(tenantID uuid.UUID, entries []settingEntry) []platform.Setting {
	settings := make([]platform.Setting, len(entries))
	for i, e := range entries {
		s := platform.Setting{
			Key:         e.Key,
			Value:       e.Value,
			Category:    platform.SettingCategory(e.Category),
			DataType:    platform.DataType(e.DataType),
			Description: e.Description,
			IsSecret:    e.IsSecret,
			IsSystem:    e.IsSystem,
		}
		s.ID = e.ID
		s.TenantID = tenantID
		s.Version = e.Version
		s.CreatedAt = e.CreatedAt
		s.UpdatedAt = e.UpdatedAt
		settings[i] = s
	}
	return settings
}
