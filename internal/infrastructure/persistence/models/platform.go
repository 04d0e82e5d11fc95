package models

import (
	"time"

	"github.com/opencrm/backend/internal/domain/platform"
)

// DeploymentModel is the persistence model for the Deployment aggregate.
type DeploymentModel struct {
	TenantAggregateModel
	Name              string                    `gorm:"type:varchar(200);not null"`
	Provider          platform.Provider         `gorm:"type:varchar(20);not null"`
	Region            string                    `gorm:"type:varchar(50)"`
	Environment       platform.Environment      `gorm:"type:varchar(20);not null;index"`
	Status            platform.DeploymentStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	AppVersion        string                    `gorm:"column:app_version;type:varchar(50)"`
	ArtifactKey       string                    `gorm:"type:varchar(500)"`
	EndpointURL       string                    `gorm:"type:varchar(500)"`
	InstanceType      string                    `gorm:"type:varchar(50)"`
	InstanceCount     int                       `gorm:"not null;default:1"`
	ConfigJSON        string                    `gorm:"column:config;type:jsonb;default:'{}'"`
	HealthStatus      platform.HealthStatus     `gorm:"type:varchar(20);not null;default:'unknown'"`
	LastHealthCheckAt *time.Time
	LastDeployedAt    *time.Time
	ErrorMessage      string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (DeploymentModel) TableName() string {
	return "deployments"
}

// ToDomain converts the persistence model to a domain Deployment.
func (m *DeploymentModel) ToDomain() *platform.Deployment {
	d := &platform.Deployment{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		Provider:            m.Provider,
		Region:              m.Region,
		Environment:         m.Environment,
		Status:              m.Status,
		AppVersion:          m.AppVersion,
		ArtifactKey:         m.ArtifactKey,
		EndpointURL:         m.EndpointURL,
		InstanceType:        m.InstanceType,
		InstanceCount:       m.InstanceCount,
		Config:              map[string]any{},
		HealthStatus:        m.HealthStatus,
		LastHealthCheckAt:   m.LastHealthCheckAt,
		LastDeployedAt:      m.LastDeployedAt,
		ErrorMessage:        m.ErrorMessage,
	}
	decodeJSON(m.ConfigJSON, "config", m.ID, &d.Config)
	return d
}

// FromDomain populates the persistence model from a domain Deployment.
func (m *DeploymentModel) FromDomain(d *platform.Deployment) {
	m.FromDomainTenantAggregateRoot(d.TenantAggregateRoot)
	m.Name = d.Name
	m.Provider = d.Provider
	m.Region = d.Region
	m.Environment = d.Environment
	m.Status = d.Status
	m.AppVersion = d.AppVersion
	m.ArtifactKey = d.ArtifactKey
	m.EndpointURL = d.EndpointURL
	m.InstanceType = d.InstanceType
	m.InstanceCount = d.InstanceCount
	cfg := d.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	m.ConfigJSON = encodeJSON(cfg, "{}")
	m.HealthStatus = d.HealthStatus
	m.LastHealthCheckAt = d.LastHealthCheckAt
	m.LastDeployedAt = d.LastDeployedAt
	m.ErrorMessage = d.ErrorMessage
}

// DeploymentModelFromDomain creates a new persistence model from a domain Deployment.
func DeploymentModelFromDomain(d *platform.Deployment) *DeploymentModel {
	m := &DeploymentModel{}
	m.FromDomain(d)
	return m
}

// SystemSettingModel is the persistence model for a tenant setting override.
// Keys are unique per tenant among live rows.
type SystemSettingModel struct {
	TenantAggregateModel
	Key         string                   `gorm:"column:setting_key;type:varchar(100);not null;index:idx_setting_key"`
	Value       string                   `gorm:"type:text"`
	Category    platform.SettingCategory `gorm:"type:varchar(30);not null;index"`
	DataType    platform.DataType        `gorm:"type:varchar(10);not null;default:'string'"`
	Description string                   `gorm:"type:text"`
	IsSecret    bool                     `gorm:"not null;default:false"`
	IsSystem    bool                     `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (SystemSettingModel) TableName() string {
	return "system_settings"
}

// ToDomain converts the persistence model to a domain Setting.
func (m *SystemSettingModel) ToDomain() *platform.Setting {
	return &platform.Setting{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Key:                 m.Key,
		Value:               m.Value,
		Category:            m.Category,
		DataType:            m.DataType,
		Description:         m.Description,
		IsSecret:            m.IsSecret,
		IsSystem:            m.IsSystem,
	}
}

// FromDomain populates the persistence model from a domain Setting.
func (m *SystemSettingModel) FromDomain(s *platform.Setting) {
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.Key = s.Key
	m.Value = s.Value
	m.Category = s.Category
	m.DataType = s.DataType
	m.Description = s.Description
	m.IsSecret = s.IsSecret
	m.IsSystem = s.IsSystem
}

// SystemSettingModelFromDomain creates a new persistence model from a domain Setting.
func SystemSettingModelFromDomain(s *platform.Setting) *SystemSettingModel {
	m := &SystemSettingModel{}
	m.FromDomain(s)
	return m
}
