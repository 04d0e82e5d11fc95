package platform

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/platform"
	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SettingService reads and writes tenant settings.
// Reads merge the built-in catalog with stored overrides and go through the cache.
type SettingService struct {
	publisher
	settingRepo platform.SettingRepository
	cache       platform.SettingsCache
	txManager   shared.TransactionManager
	logger      *zap.Logger
}

// NewSettingService creates a new SettingService. cache may be nil.
func NewSettingService(
	settingRepo platform.SettingRepository,
	cache platform.SettingsCache,
	txManager shared.TransactionManager,
	logger *zap.Logger,
) *SettingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingService{
		settingRepo: settingRepo,
		cache:       cache,
		txManager:   txManager,
		logger:      logger.Named("settings"),
	}
}

// List returns the merged settings, optionally for one category
func (s *SettingService) List(ctx context.Context, tenantID uuid.UUID, filter SettingListFilter) ([]SettingResponse, error) {
	settings, err := s.merged(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if filter.Category != "" {
		kept := settings[:0:0]
		for _, setting := range settings {
			if string(setting.Category) == filter.Category {
				kept = append(kept, setting)
			}
		}
		settings = kept
	}
	return ToSettingResponses(settings), nil
}

// Get returns one setting by key
func (s *SettingService) Get(ctx context.Context, tenantID uuid.UUID, key string) (*SettingResponse, error) {
	setting, err := s.lookup(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	response := ToSettingResponse(setting)
	return &response, nil
}

// Value returns the unmasked value of a setting for internal callers
func (s *SettingService) Value(ctx context.Context, tenantID uuid.UUID, key string) (string, error) {
	setting, err := s.lookup(ctx, tenantID, key)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Bool reads a boolean setting
func (s *SettingService) Bool(ctx context.Context, tenantID uuid.UUID, key string) (bool, error) {
	value, err := s.Value(ctx, tenantID, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(strings.TrimSpace(value))
}

// Create adds a custom setting. Catalog keys are updated, not created.
func (s *SettingService) Create(ctx context.Context, tenantID uuid.UUID, req CreateSettingRequest) (*SettingResponse, error) {
	if _, ok := platform.LookupDefinition(req.Key); ok {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Setting '"+req.Key+"' is built in; update it instead")
	}
	_, err := s.settingRepo.FindByKey(ctx, tenantID, req.Key)
	if err == nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Setting '"+req.Key+"' already exists")
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	setting, err := platform.NewSetting(tenantID, req.Key, req.Value, platform.SettingCategory(req.Category), platform.DataType(req.DataType))
	if err != nil {
		return nil, err
	}
	setting.Description = strings.TrimSpace(req.Description)
	setting.IsSecret = req.IsSecret

	if err := s.settingRepo.Save(ctx, setting); err != nil {
		return nil, err
	}
	s.invalidate(ctx, tenantID)
	s.publish(ctx, setting)

	response := ToSettingResponse(setting)
	return &response, nil
}

// Update sets the value of a catalog or custom setting.
// Sending the secret mask back leaves a secret untouched.
func (s *SettingService) Update(ctx context.Context, tenantID uuid.UUID, key string, req UpdateSettingRequest) (*SettingResponse, error) {
	setting, err := s.write(ctx, tenantID, key, req.Value)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, tenantID)
	s.publish(ctx, setting)

	response := ToSettingResponse(setting)
	return &response, nil
}

// BulkUpdate writes several settings in one transaction. Nothing is stored
// when any entry fails.
func (s *SettingService) BulkUpdate(ctx context.Context, tenantID uuid.UUID, req BulkUpdateSettingsRequest) ([]SettingResponse, error) {
	seen := make(map[string]struct{}, len(req.Settings))
	for _, entry := range req.Settings {
		if _, dup := seen[entry.Key]; dup {
			return nil, shared.NewDomainError("DUPLICATE_KEY", "Setting '"+entry.Key+"' appears more than once")
		}
		seen[entry.Key] = struct{}{}
	}

	written := make([]*platform.Setting, 0, len(req.Settings))
	err := s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		for _, entry := range req.Settings {
			setting, err := s.write(txCtx, tenantID, entry.Key, entry.Value)
			if err != nil {
				return err
			}
			written = append(written, setting)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, tenantID)

	responses := make([]SettingResponse, len(written))
	for i, setting := range written {
		s.publish(ctx, setting)
		responses[i] = ToSettingResponse(setting)
	}
	return responses, nil
}

// Reset drops the override of a catalog setting and returns its default
func (s *SettingService) Reset(ctx context.Context, tenantID uuid.UUID, key string) (*SettingResponse, error) {
	def, ok := platform.LookupDefinition(key)
	if !ok {
		return nil, shared.NewDomainError("NOT_SYSTEM_SETTING", "Only built-in settings can be reset")
	}
	stored, err := s.settingRepo.FindByKey(ctx, tenantID, key)
	switch {
	case err == nil:
		if err := s.settingRepo.DeleteByKey(ctx, tenantID, key); err != nil {
			return nil, err
		}
		s.invalidate(ctx, tenantID)
		s.publishEvents(ctx, platform.NewSettingDeletedEvent(stored))
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	setting := platform.DefaultSetting(tenantID, def)
	response := ToSettingResponse(&setting)
	return &response, nil
}

// Delete removes a custom setting. Catalog settings can only be reset.
func (s *SettingService) Delete(ctx context.Context, tenantID uuid.UUID, key string) error {
	if def, ok := platform.LookupDefinition(key); ok {
		setting := platform.DefaultSetting(tenantID, def)
		return setting.CanDelete()
	}
	setting, err := s.settingRepo.FindByKey(ctx, tenantID, key)
	if err != nil {
		return err
	}
	if err := setting.CanDelete(); err != nil {
		return err
	}
	if err := s.settingRepo.DeleteByKey(ctx, tenantID, key); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	s.publishEvents(ctx, platform.NewSettingDeletedEvent(setting))
	return nil
}

// write validates and stores one value. A catalog setting without a stored
// override gets a new row.
func (s *SettingService) write(ctx context.Context, tenantID uuid.UUID, key, value string) (*platform.Setting, error) {
	def, isCatalog := platform.LookupDefinition(key)

	setting, err := s.settingRepo.FindByKey(ctx, tenantID, key)
	if errors.Is(err, shared.ErrNotFound) {
		if !isCatalog {
			return nil, shared.NewNotFoundError("Setting '" + key + "'")
		}
		if def.IsSecret && value == platform.SecretMask {
			setting := platform.DefaultSetting(tenantID, def)
			return &setting, nil
		}
		setting, err := platform.NewSettingFromDefinition(tenantID, def, value)
		if err != nil {
			return nil, err
		}
		if err := s.settingRepo.Save(ctx, setting); err != nil {
			return nil, err
		}
		return setting, nil
	}
	if err != nil {
		return nil, err
	}

	if isCatalog {
		setting.IsSecret = def.IsSecret
		setting.IsSystem = true
	}
	if setting.IsSecret && value == platform.SecretMask {
		return setting, nil
	}
	if err := setting.SetValue(value); err != nil {
		return nil, err
	}
	if unchanged(setting) {
		return setting, nil
	}
	if err := s.settingRepo.SaveWithLock(ctx, setting); err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *SettingService) lookup(ctx context.Context, tenantID uuid.UUID, key string) (*platform.Setting, error) {
	settings, err := s.merged(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range settings {
		if settings[i].Key == key {
			return &settings[i], nil
		}
	}
	return nil, shared.NewNotFoundError("Setting '" + key + "'")
}

// merged reads through the cache. Cache failures fall back to the database.
func (s *SettingService) merged(ctx context.Context, tenantID uuid.UUID) ([]platform.Setting, error) {
	if s.cache != nil {
		settings, ok, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			s.logger.Warn("settings cache read failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		} else if ok {
			return settings, nil
		}
	}

	overrides, err := s.settingRepo.FindAllForTenant(ctx, tenantID, "")
	if err != nil {
		return nil, err
	}
	settings := platform.Merge(tenantID, overrides)

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, settings, 0); err != nil {
			s.logger.Warn("settings cache write failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
	}
	return settings, nil
}

func (s *SettingService) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("settings cache invalidation failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
	}
}
