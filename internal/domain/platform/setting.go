package platform

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// SecretMask replaces secret values in responses
const SecretMask = "********"

// SettingCategory groups settings in the UI
type SettingCategory string

const (
	CategoryGeneral       SettingCategory = "general"
	CategoryEmail         SettingCategory = "email"
	CategorySecurity      SettingCategory = "security"
	CategoryNotifications SettingCategory = "notifications"
	CategoryIntegrations  SettingCategory = "integrations"
	CategoryCampaigns     SettingCategory = "campaigns"
	CategoryWorkflows     SettingCategory = "workflows"
)

// IsValid reports whether the category is known
func (c SettingCategory) IsValid() bool {
	switch c {
	case CategoryGeneral, CategoryEmail, CategorySecurity, CategoryNotifications,
		CategoryIntegrations, CategoryCampaigns, CategoryWorkflows:
		return true
	}
	return false
}

// DataType is the type a setting value must parse as
type DataType string

const (
	DataTypeString DataType = "string"
	DataTypeInt    DataType = "int"
	DataTypeBool   DataType = "bool"
	DataTypeFloat  DataType = "float"
	DataTypeJSON   DataType = "json"
)

// IsValid reports whether the data type is known
func (t DataType) IsValid() bool {
	switch t {
	case DataTypeString, DataTypeInt, DataTypeBool, DataTypeFloat, DataTypeJSON:
		return true
	}
	return false
}

// Check verifies that value parses as the data type
func (t DataType) Check(value string) error {
	var err error
	switch t {
	case DataTypeString:
	case DataTypeInt:
		_, err = strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	case DataTypeBool:
		_, err = strconv.ParseBool(strings.TrimSpace(value))
	case DataTypeFloat:
		_, err = strconv.ParseFloat(strings.TrimSpace(value), 64)
	case DataTypeJSON:
		if !json.Valid([]byte(value)) {
			err = strconv.ErrSyntax
		}
	default:
		return shared.NewDomainError("INVALID_DATA_TYPE", "Unknown data type '"+string(t)+"'")
	}
	if err != nil {
		return shared.NewDomainError("INVALID_VALUE", "Value is not a valid "+string(t))
	}
	return nil
}

var settingKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// ValidateSettingKey checks the dot-namespaced key format
func ValidateSettingKey(key string) error {
	if len(key) > 150 || !settingKeyPattern.MatchString(key) {
		return shared.NewDomainError("INVALID_KEY", "Setting key must be dot-namespaced lower-case, e.g. 'email.from_address'")
	}
	return nil
}

// Setting is a tenant configuration value
type Setting struct {
	shared.TenantAggregateRoot
	Key         string
	Value       string
	Category    SettingCategory
	DataType    DataType
	Description string
	IsSecret    bool
	IsSystem    bool
}

// NewSetting creates a tenant setting
func NewSetting(tenantID uuid.UUID, key, value string, category SettingCategory, dataType DataType) (*Setting, error) {
	key = strings.TrimSpace(key)
	if err := ValidateSettingKey(key); err != nil {
		return nil, err
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Unknown setting category '"+string(category)+"'")
	}
	if dataType == "" {
		dataType = DataTypeString
	}
	if !dataType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DATA_TYPE", "Unknown data type '"+string(dataType)+"'")
	}
	if err := dataType.Check(value); err != nil {
		return nil, err
	}

	s := &Setting{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Key:                 key,
		Value:               value,
		Category:            category,
		DataType:            dataType,
	}
	s.AddDomainEvent(newSettingEvent(EventTypeSettingChanged, s, nil))
	return s, nil
}

// NewSettingFromDefinition creates a tenant override of a catalog setting
func NewSettingFromDefinition(tenantID uuid.UUID, def Definition, value string) (*Setting, error) {
	s, err := NewSetting(tenantID, def.Key, value, def.Category, def.DataType)
	if err != nil {
		return nil, err
	}
	s.Description = def.Description
	s.IsSecret = def.IsSecret
	s.IsSystem = true
	return s, nil
}

// SetValue validates and stores a new value
func (s *Setting) SetValue(value string) error {
	if err := s.DataType.Check(value); err != nil {
		return err
	}
	if value == s.Value {
		return nil
	}
	old := s.Value
	if s.IsSecret {
		old = SecretMask
	}
	s.Value = value
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	s.AddDomainEvent(newSettingEvent(EventTypeSettingChanged, s, shared.Changes{"value": old}))
	return nil
}

// DisplayValue returns the value, masked for secrets
func (s *Setting) DisplayValue() string {
	if s.IsSecret && s.Value != "" {
		return SecretMask
	}
	return s.Value
}

// CanDelete refuses to delete catalog settings
func (s *Setting) CanDelete() error {
	if s.IsSystem {
		return shared.NewDomainError("SYSTEM_SETTING", "System settings cannot be deleted; reset them instead")
	}
	return nil
}
