package platform

import (
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/platform"
)

// CreateDeploymentRequest represents a request to register a deployment
type CreateDeploymentRequest struct {
	Name          string         `json:"name" binding:"required,min=1,max=200"`
	Provider      string         `json:"provider" binding:"required,oneof=aws azure gcp digitalocean on_premise"`
	Region        string         `json:"region" binding:"omitempty,max=50"`
	Environment   string         `json:"environment" binding:"omitempty,oneof=development staging production"`
	InstanceType  string         `json:"instance_type" binding:"omitempty,max=50"`
	InstanceCount *int           `json:"instance_count" binding:"omitempty,min=1"`
	EndpointURL   string         `json:"endpoint_url" binding:"omitempty,url,max=500"`
	Config        map[string]any `json:"config"`
	CreatedBy     *uuid.UUID     `json:"-"`
}

func (r CreateDeploymentRequest) patch() platform.DeploymentPatch {
	p := platform.DeploymentPatch{
		InstanceCount: r.InstanceCount,
		Config:        r.Config,
	}
	if r.InstanceType != "" {
		p.InstanceType = &r.InstanceType
	}
	if r.EndpointURL != "" {
		p.EndpointURL = &r.EndpointURL
	}
	return p
}

// UpdateDeploymentRequest represents a request to update a deployment
type UpdateDeploymentRequest struct {
	Name          *string        `json:"name" binding:"omitempty,min=1,max=200"`
	Region        *string        `json:"region" binding:"omitempty,max=50"`
	InstanceType  *string        `json:"instance_type" binding:"omitempty,max=50"`
	InstanceCount *int           `json:"instance_count" binding:"omitempty,min=1"`
	EndpointURL   *string        `json:"endpoint_url" binding:"omitempty,max=500"`
	Config        map[string]any `json:"config"`
}

func (r UpdateDeploymentRequest) patch() platform.DeploymentPatch {
	return platform.DeploymentPatch{
		Name:          r.Name,
		Region:        r.Region,
		InstanceType:  r.InstanceType,
		InstanceCount: r.InstanceCount,
		EndpointURL:   r.EndpointURL,
		Config:        r.Config,
	}
}

// DeployRequest starts provisioning a version
type DeployRequest struct {
	Version     string `json:"version" binding:"required,max=50"`
	ArtifactKey string `json:"artifact_key" binding:"required,max=500"`
}

// MarkRunningRequest reports a finished provisioning
type MarkRunningRequest struct {
	EndpointURL string `json:"endpoint_url" binding:"omitempty,url,max=500"`
}

// MarkFailedRequest reports a provisioning or runtime failure
type MarkFailedRequest struct {
	Message string `json:"message" binding:"required,max=2000"`
}

// DeploymentListFilter represents filter options for deployment list
type DeploymentListFilter struct {
	common.ListQuery
	Provider    string `form:"provider" binding:"omitempty,oneof=aws azure gcp digitalocean on_premise"`
	Environment string `form:"environment" binding:"omitempty,oneof=development staging production"`
	Status      string `form:"status" binding:"omitempty,oneof=pending provisioning running stopped failed terminated"`
}

// DeploymentResponse represents a deployment in API responses
type DeploymentResponse struct {
	ID                uuid.UUID      `json:"id"`
	TenantID          uuid.UUID      `json:"tenant_id"`
	Name              string         `json:"name"`
	Provider          string         `json:"provider"`
	Region            string         `json:"region,omitempty"`
	Environment       string         `json:"environment"`
	Status            string         `json:"status"`
	AppVersion        string         `json:"app_version,omitempty"`
	ArtifactKey       string         `json:"artifact_key,omitempty"`
	EndpointURL       string         `json:"endpoint_url,omitempty"`
	InstanceType      string         `json:"instance_type,omitempty"`
	InstanceCount     int            `json:"instance_count"`
	Config            map[string]any `json:"config"`
	HealthStatus      string         `json:"health_status"`
	LastHealthCheckAt *time.Time     `json:"last_health_check_at,omitempty"`
	LastDeployedAt    *time.Time     `json:"last_deployed_at,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	CreatedBy         *uuid.UUID     `json:"created_by,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Version           int            `json:"version"`
}

// ToDeploymentResponse converts a domain Deployment to DeploymentResponse
func ToDeploymentResponse(d *platform.Deployment) DeploymentResponse {
	config := d.Config
	if config == nil {
		config = map[string]any{}
	}
	return DeploymentResponse{
		ID:                d.ID,
		TenantID:          d.TenantID,
		Name:              d.Name,
		Provider:          string(d.Provider),
		Region:            d.Region,
		Environment:       string(d.Environment),
		Status:            string(d.Status),
		AppVersion:        d.AppVersion,
		ArtifactKey:       d.ArtifactKey,
		EndpointURL:       d.EndpointURL,
		InstanceType:      d.InstanceType,
		InstanceCount:     d.InstanceCount,
		Config:            config,
		HealthStatus:      string(d.HealthStatus),
		LastHealthCheckAt: d.LastHealthCheckAt,
		LastDeployedAt:    d.LastDeployedAt,
		ErrorMessage:      d.ErrorMessage,
		CreatedBy:         d.CreatedBy,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		Version:           d.Version,
	}
}

// ToDeploymentResponses converts a slice of deployments
func ToDeploymentResponses(deployments []platform.Deployment) []DeploymentResponse {
	responses := make([]DeploymentResponse, len(deployments))
	for i := range deployments {
		responses[i] = ToDeploymentResponse(&deployments[i])
	}
	return responses
}

// HealthCheckResponse is the outcome of probing a deployment endpoint
type HealthCheckResponse struct {
	Deployment DeploymentResponse `json:"deployment"`
	Healthy    bool               `json:"healthy"`
	StatusCode int                `json:"status_code,omitempty"`
	LatencyMs  int64              `json:"latency_ms"`
	Error      string             `json:"error,omitempty"`
}

// CreateSettingRequest adds a custom tenant setting
type CreateSettingRequest struct {
	Key         string `json:"key" binding:"required,max=150"`
	Value       string `json:"value" binding:"max=10000"`
	Category    string `json:"category" binding:"required,oneof=general email security notifications integrations campaigns workflows"`
	DataType    string `json:"data_type" binding:"omitempty,oneof=string int bool float json"`
	Description string `json:"description" binding:"max=500"`
	IsSecret    bool   `json:"is_secret"`
}

// UpdateSettingRequest sets the value of one setting
type UpdateSettingRequest struct {
	Value string `json:"value" binding:"max=10000"`
}

// SettingValue is one entry of a bulk update
type SettingValue struct {
	Key   string `json:"key" binding:"required,max=150"`
	Value string `json:"value" binding:"max=10000"`
}

// BulkUpdateSettingsRequest sets several settings in one transaction
type BulkUpdateSettingsRequest struct {
	Settings []SettingValue `json:"settings" binding:"required,min=1,max=100,dive"`
}

// SettingListFilter narrows the settings list
type SettingListFilter struct {
	Category string `form:"category" binding:"omitempty,oneof=general email security notifications integrations campaigns workflows"`
}

// SettingResponse represents a setting in API responses. Secrets are masked.
type SettingResponse struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Key         string     `json:"key"`
	Value       string     `json:"value"`
	Category    string     `json:"category"`
	DataType    string     `json:"data_type"`
	Description string     `json:"description,omitempty"`
	IsSecret    bool       `json:"is_secret"`
	IsSystem    bool       `json:"is_system"`
	IsDefault   bool       `json:"is_default"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ToSettingResponse converts a setting. Catalog defaults have no row and
// are reported without id or timestamp.
func ToSettingResponse(s *platform.Setting) SettingResponse {
	resp := SettingResponse{
		Key:         s.Key,
		Value:       s.DisplayValue(),
		Category:    string(s.Category),
		DataType:    string(s.DataType),
		Description: s.Description,
		IsSecret:    s.IsSecret,
		IsSystem:    s.IsSystem,
		IsDefault:   s.ID == uuid.Nil,
	}
	if !resp.IsDefault {
		id := s.ID
		updated := s.UpdatedAt
		resp.ID = &id
		resp.UpdatedAt = &updated
	}
	return resp
}

// ToSettingResponses converts a slice of settings
func ToSettingResponses(settings []platform.Setting) []SettingResponse {
	responses := make([]SettingResponse, len(settings))
	for i := range settings {
		responses[i] = ToSettingResponse(&settings[i])
	}
	return responses
}
