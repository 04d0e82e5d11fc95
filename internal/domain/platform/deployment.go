package platform

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// Provider is the cloud a deployment runs on
type Provider string

const (
	ProviderAWS          Provider = "aws"
	ProviderAzure        Provider = "azure"
	ProviderGCP          Provider = "gcp"
	ProviderDigitalOcean Provider = "digitalocean"
	ProviderOnPremise    Provider = "on_premise"
)

// IsValid reports whether the provider is supported
func (p Provider) IsValid() bool {
	switch p {
	case ProviderAWS, ProviderAzure, ProviderGCP, ProviderDigitalOcean, ProviderOnPremise:
		return true
	}
	return false
}

// Environment is the deployment stage
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentStaging     Environment = "staging"
	EnvironmentProduction  Environment = "production"
)

// IsValid reports whether the environment is supported
func (e Environment) IsValid() bool {
	return e == EnvironmentDevelopment || e == EnvironmentStaging || e == EnvironmentProduction
}

// DeploymentStatus is the provisioning state of a deployment
type DeploymentStatus string

const (
	DeploymentPending      DeploymentStatus = "pending"
	DeploymentProvisioning DeploymentStatus = "provisioning"
	DeploymentRunning      DeploymentStatus = "running"
	DeploymentStopped      DeploymentStatus = "stopped"
	DeploymentFailed       DeploymentStatus = "failed"
	DeploymentTerminated   DeploymentStatus = "terminated"
)

// HealthStatus is the result of the last health check
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Deployment is a tenant's cloud deployment of the CRM
type Deployment struct {
	shared.TenantAggregateRoot
	Name              string
	Provider          Provider
	Region            string
	Environment       Environment
	Status            DeploymentStatus
	AppVersion        string
	ArtifactKey       string
	EndpointURL       string
	InstanceType      string
	InstanceCount     int
	Config            map[string]any
	HealthStatus      HealthStatus
	LastHealthCheckAt *time.Time
	LastDeployedAt    *time.Time
	ErrorMessage      string
}

// DeploymentPatch carries the optional fields of a deployment update
type DeploymentPatch struct {
	Name          *string
	Region        *string
	InstanceType  *string
	InstanceCount *int
	EndpointURL   *string
	Config        map[string]any
}

// NewDeployment creates a pending deployment
func NewDeployment(tenantID uuid.UUID, name string, provider Provider, region string, env Environment) (*Deployment, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Deployment name must be 1-200 characters")
	}
	if !provider.IsValid() {
		return nil, shared.NewDomainError("INVALID_PROVIDER", "Unsupported provider '"+string(provider)+"'")
	}
	if env == "" {
		env = EnvironmentDevelopment
	}
	if !env.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENVIRONMENT", "Environment must be development, staging or production")
	}

	d := &Deployment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Provider:            provider,
		Region:              strings.TrimSpace(region),
		Environment:         env,
		Status:              DeploymentPending,
		InstanceCount:       1,
		Config:              map[string]any{},
		HealthStatus:        HealthUnknown,
	}

	d.AddDomainEvent(newDeploymentEvent(EventTypeDeploymentCreated, d, nil))

	return d, nil
}

// Apply sets the patched fields without bumping the version
func (d *Deployment) Apply(p DeploymentPatch) error {
	_, err := d.apply(p)
	return err
}

// Update applies a patch and bumps the version
func (d *Deployment) Update(p DeploymentPatch) error {
	if err := d.ensureMutable(); err != nil {
		return err
	}
	changes, err := d.apply(p)
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}
	d.touch(EventTypeDeploymentUpdated, changes)
	return nil
}

func (d *Deployment) apply(p DeploymentPatch) (shared.Changes, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" || len(name) > 200 {
			return nil, shared.NewDomainError("INVALID_NAME", "Deployment name must be 1-200 characters")
		}
	}
	if p.InstanceCount != nil && *p.InstanceCount < 1 {
		return nil, shared.NewDomainError("INVALID_INSTANCE_COUNT", "Instance count must be at least 1")
	}
	if p.EndpointURL != nil && *p.EndpointURL != "" {
		if err := validateEndpoint(*p.EndpointURL); err != nil {
			return nil, err
		}
	}

	changes := shared.Changes{}
	set := func(field string, dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		changes.Track(field, *dst, v)
		*dst = v
	}
	set("name", &d.Name, p.Name)
	set("region", &d.Region, p.Region)
	set("instance_type", &d.InstanceType, p.InstanceType)
	set("endpoint_url", &d.EndpointURL, p.EndpointURL)
	if p.InstanceCount != nil {
		changes.Track("instance_count", d.InstanceCount, *p.InstanceCount)
		d.InstanceCount = *p.InstanceCount
	}
	if p.Config != nil {
		changes.Track("config", "", "*")
		d.Config = p.Config
	}
	return changes, nil
}

// Deploy starts provisioning a new version from an artifact
func (d *Deployment) Deploy(version, artifactKey string) error {
	if err := d.ensureMutable(); err != nil {
		return err
	}
	switch d.Status {
	case DeploymentPending, DeploymentStopped, DeploymentFailed, DeploymentRunning:
	default:
		return shared.NewInvalidStateError("Cannot deploy while " + string(d.Status))
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return shared.NewDomainError("INVALID_VERSION", "Version is required")
	}
	artifactKey = strings.TrimSpace(artifactKey)
	if artifactKey == "" {
		return shared.NewDomainError("INVALID_ARTIFACT", "Artifact key is required")
	}

	now := time.Now()
	d.AppVersion = version
	d.ArtifactKey = artifactKey
	d.LastDeployedAt = &now
	d.ErrorMessage = ""
	d.transition(DeploymentProvisioning)
	return nil
}

// MarkRunning records a successful provisioning
func (d *Deployment) MarkRunning(endpoint string) error {
	if d.Status != DeploymentProvisioning {
		return shared.NewInvalidStateError("Only provisioning deployments can be marked running")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint != "" {
		if err := validateEndpoint(endpoint); err != nil {
			return err
		}
		d.EndpointURL = endpoint
	}
	d.HealthStatus = HealthUnknown
	d.transition(DeploymentRunning)
	return nil
}

// MarkFailed records a provisioning or runtime failure
func (d *Deployment) MarkFailed(message string) error {
	if d.Status != DeploymentProvisioning && d.Status != DeploymentRunning {
		return shared.NewInvalidStateError("Only provisioning or running deployments can fail")
	}
	d.ErrorMessage = strings.TrimSpace(message)
	d.transition(DeploymentFailed)
	return nil
}

// Stop halts a running deployment
func (d *Deployment) Stop() error {
	if d.Status != DeploymentRunning {
		return shared.NewInvalidStateError("Only running deployments can be stopped")
	}
	d.HealthStatus = HealthUnknown
	d.transition(DeploymentStopped)
	return nil
}

// Start reprovisions a stopped deployment
func (d *Deployment) Start() error {
	if d.Status != DeploymentStopped {
		return shared.NewInvalidStateError("Only stopped deployments can be started")
	}
	d.transition(DeploymentProvisioning)
	return nil
}

// Terminate permanently retires the deployment
func (d *Deployment) Terminate() error {
	if d.Status == DeploymentTerminated {
		return shared.NewInvalidStateError("Deployment is already terminated")
	}
	d.HealthStatus = HealthUnknown
	d.transition(DeploymentTerminated)
	return nil
}

// RecordHealth stores a health check result
func (d *Deployment) RecordHealth(healthy bool, at time.Time) error {
	if d.Status == DeploymentTerminated {
		return shared.NewInvalidStateError("Terminated deployments are read-only")
	}
	if d.EndpointURL == "" {
		return shared.NewDomainError("NO_ENDPOINT", "Deployment has no endpoint to check")
	}
	old := d.HealthStatus
	d.HealthStatus = HealthUnhealthy
	if healthy {
		d.HealthStatus = HealthHealthy
	}
	d.LastHealthCheckAt = &at
	d.touch(EventTypeDeploymentUpdated, shared.Changes{"health_status": string(old)})
	return nil
}

// CanDelete enforces that production deployments are terminated first
func (d *Deployment) CanDelete() error {
	if d.Environment == EnvironmentProduction && d.Status != DeploymentTerminated {
		return shared.NewInvalidStateError("Production deployments must be terminated before deletion")
	}
	return nil
}

// MarkDeleted records the deletion event
func (d *Deployment) MarkDeleted() error {
	if err := d.CanDelete(); err != nil {
		return err
	}
	d.AddDomainEvent(newDeploymentEvent(EventTypeDeploymentDeleted, d, nil))
	return nil
}

func (d *Deployment) ensureMutable() error {
	if d.Status == DeploymentTerminated {
		return shared.NewInvalidStateError("Terminated deployments are read-only")
	}
	return nil
}

func (d *Deployment) transition(next DeploymentStatus) {
	old := d.Status
	d.Status = next
	d.touch(EventTypeDeploymentStatusChanged, shared.Changes{"status": string(old)})
}

func (d *Deployment) touch(eventType string, changes shared.Changes) {
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	d.AddDomainEvent(newDeploymentEvent(eventType, d, changes))
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return shared.NewDomainError("INVALID_ENDPOINT", "Endpoint must be an absolute http or https URL")
	}
	return nil
}
