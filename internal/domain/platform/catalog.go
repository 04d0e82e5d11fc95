package platform

import (
	"sort"

	"github.com/google/uuid"
)

// Definition describes a built-in setting and its default
type Definition struct {
	Key          string
	DefaultValue string
	Category     SettingCategory
	DataType     DataType
	Description  string
	IsSecret     bool
}

var catalog = []Definition{
	{"general.company_name", "", CategoryGeneral, DataTypeString, "Company name shown on quotes and emails", false},
	{"general.timezone", "UTC", CategoryGeneral, DataTypeString, "Default timezone for dates", false},
	{"general.default_currency", "USD", CategoryGeneral, DataTypeString, "Currency for new opportunities and quotes", false},
	{"general.date_format", "2006-01-02", CategoryGeneral, DataTypeString, "Display date format", false},
	{"email.from_address", "", CategoryEmail, DataTypeString, "Sender address for outgoing email", false},
	{"email.from_name", "", CategoryEmail, DataTypeString, "Sender name for outgoing email", false},
	{"email.smtp_host", "", CategoryEmail, DataTypeString, "SMTP server host", false},
	{"email.smtp_port", "587", CategoryEmail, DataTypeInt, "SMTP server port", false},
	{"email.smtp_password", "", CategoryEmail, DataTypeString, "SMTP password", true},
	{"security.session_timeout_minutes", "60", CategorySecurity, DataTypeInt, "Idle session timeout", false},
	{"security.ip_allowlist", "[]", CategorySecurity, DataTypeJSON, "CIDR ranges allowed to call the API", false},
	{"notifications.task_reminders", "true", CategoryNotifications, DataTypeBool, "Send reminders for tasks that are due", false},
	{"notifications.overdue_digest", "true", CategoryNotifications, DataTypeBool, "Send a daily digest of overdue tasks", false},
	{"integrations.webhook_secret", "", CategoryIntegrations, DataTypeString, "Shared secret sent with workflow webhooks", true},
	{"integrations.kafka_enabled", "false", CategoryIntegrations, DataTypeBool, "Forward domain events to Kafka", false},
	{"campaigns.tracking_enabled", "true", CategoryCampaigns, DataTypeBool, "Record opens and clicks for campaigns", false},
	{"campaigns.max_recipients", "10000", CategoryCampaigns, DataTypeInt, "Maximum audience size per campaign", false},
	{"campaigns.default_conversion_value", "0", CategoryCampaigns, DataTypeFloat, "Value used when a conversion reports none", false},
	{"workflows.enabled", "true", CategoryWorkflows, DataTypeBool, "Run workflows on entity events", false},
	{"workflows.webhook_timeout_seconds", "5", CategoryWorkflows, DataTypeInt, "Timeout for webhook actions", false},
	{"quotes.default_validity_days", "30", CategoryGeneral, DataTypeInt, "Days a new quote stays valid", false},
}

var catalogIndex = func() map[string]Definition {
	m := make(map[string]Definition, len(catalog))
	for _, d := range catalog {
		m[d.Key] = d
	}
	return m
}()

// Catalog returns the built-in setting definitions sorted by key
func Catalog() []Definition {
	out := append([]Definition(nil), catalog...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// LookupDefinition finds a built-in setting by key
func LookupDefinition(key string) (Definition, bool) {
	d, ok := catalogIndex[key]
	return d, ok
}

// DefaultSetting returns the unsaved default of a catalog entry for a tenant
func DefaultSetting(tenantID uuid.UUID, def Definition) Setting {
	s := Setting{
		Key:         def.Key,
		Value:       def.DefaultValue,
		Category:    def.Category,
		DataType:    def.DataType,
		Description: def.Description,
		IsSecret:    def.IsSecret,
		IsSystem:    true,
	}
	s.TenantID = tenantID
	return s
}

// Merge overlays tenant overrides on the catalog defaults.
// The result is sorted by key and includes custom tenant settings.
func Merge(tenantID uuid.UUID, overrides []Setting) []Setting {
	byKey := make(map[string]Setting, len(catalog)+len(overrides))
	for _, def := range catalog {
		byKey[def.Key] = DefaultSetting(tenantID, def)
	}
	for _, o := range overrides {
		if def, ok := catalogIndex[o.Key]; ok {
			o.IsSystem = true
			o.IsSecret = def.IsSecret
			if o.Description == "" {
				o.Description = def.Description
			}
		}
		byKey[o.Key] = o
	}

	out := make([]Setting, 0, len(byKey))
	for _, s := range byKey {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
