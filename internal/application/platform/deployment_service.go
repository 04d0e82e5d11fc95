package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/platform"
	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ArtifactStore tells whether a release artifact has been uploaded
type ArtifactStore interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// CheckResult is the outcome of one health check
type CheckResult struct {
	Healthy    bool
	StatusCode int
	Latency    time.Duration
	Err        error
}

// HealthChecker checks a deployment endpoint
type HealthChecker interface {
	Check(ctx context.Context, endpoint string) CheckResult
}

// DeploymentService manages tenant cloud deployments
type DeploymentService struct {
	publisher
	deploymentRepo platform.DeploymentRepository
	artifacts      ArtifactStore
	checker        HealthChecker
	logger         *zap.Logger
	now            func() time.Time
}

// NewDeploymentService creates a new DeploymentService.
// A nil artifact store skips the artifact check on deploy.
func NewDeploymentService(
	deploymentRepo platform.DeploymentRepository,
	artifacts ArtifactStore,
	checker HealthChecker,
	logger *zap.Logger,
) *DeploymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeploymentService{
		deploymentRepo: deploymentRepo,
		artifacts:      artifacts,
		checker:        checker,
		logger:         logger.Named("deployments"),
		now:            time.Now,
	}
}

// Create registers a pending deployment
func (s *DeploymentService) Create(ctx context.Context, tenantID uuid.UUID, req CreateDeploymentRequest) (*DeploymentResponse, error) {
	deployment, err := platform.NewDeployment(tenantID, req.Name, platform.Provider(req.Provider), req.Region, platform.Environment(req.Environment))
	if err != nil {
		return nil, err
	}
	if err := deployment.Apply(req.patch()); err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		deployment.SetCreatedBy(*req.CreatedBy)
	}

	if err := s.deploymentRepo.Save(ctx, deployment); err != nil {
		return nil, err
	}
	s.publish(ctx, deployment)

	response := ToDeploymentResponse(deployment)
	return &response, nil
}

// GetByID retrieves a deployment by ID
func (s *DeploymentService) GetByID(ctx context.Context, tenantID, deploymentID uuid.UUID) (*DeploymentResponse, error) {
	deployment, err := s.deploymentRepo.FindByIDForTenant(ctx, tenantID, deploymentID)
	if err != nil {
		return nil, err
	}
	response := ToDeploymentResponse(deployment)
	return &response, nil
}

// List retrieves deployments with filtering and pagination
func (s *DeploymentService) List(ctx context.Context, tenantID uuid.UUID, filter DeploymentListFilter) ([]DeploymentResponse, int64, error) {
	domainFilter := filter.Filter("created_at")
	common.PutString(domainFilter, "provider", filter.Provider)
	common.PutString(domainFilter, "environment", filter.Environment)
	common.PutString(domainFilter, "status", filter.Status)

	deployments, err := s.deploymentRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.deploymentRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToDeploymentResponses(deployments), total, nil
}

// Update edits a deployment that is not terminated
func (s *DeploymentService) Update(ctx context.Context, tenantID, deploymentID uuid.UUID, req UpdateDeploymentRequest) (*DeploymentResponse, error) {
	return s.transition(ctx, tenantID, deploymentID, func(d *platform.Deployment) error {
		return d.Update(req.patch())
	})
}

// Delete soft-deletes a deployment. Production deployments must be terminated first.
func (s *DeploymentService) Delete(ctx context.Context, tenantID, deploymentID uuid.UUID) error {
	deployment, err := s.deploymentRepo.FindByIDForTenant(ctx, tenantID, deploymentID)
	if err != nil {
		return err
	}
	if err := deployment.MarkDeleted(); err != nil {
		return err
	}
	if err := s.deploymentRepo.DeleteForTenant(ctx, tenantID, deploymentID); err != nil {
		return err
	}
	s.publish(ctx, deployment)
	return nil
}

// Deploy starts provisioning a version after checking that its artifact exists
func (s *DeploymentService) Deploy(ctx context.Context, tenantID, deploymentID uuid.UUID, req DeployRequest) (*DeploymentResponse, error) {
	deployment, err := s.deploymentRepo.FindByIDForTenant(ctx, tenantID, deploymentID)
	if err != nil {
		return nil, err
	}
	if s.artifacts != nil && req.ArtifactKey != "" {
		found, err := s.artifacts.Exists(ctx, req.ArtifactKey)
		if err != nil {
			return nil, fmt.Errorf("check artifact %q: %w", req.ArtifactKey, err)
		}
		if !found {
			return nil, shared.NewDomainError("ARTIFACT_NOT_FOUND", "Artifact '"+req.ArtifactKey+"' does not exist")
		}
	}
	if err := deployment.Deploy(req.Version, req.ArtifactKey); err != nil {
		return nil, err
	}

	s.logger.Info("deployment provisioning",
		zap.String("deployment_id", deployment.ID.String()),
		zap.String("version", deployment.AppVersion),
		zap.String("environment", string(deployment.Environment)),
	)
	return s.save(ctx, deployment)
}

// MarkRunning records that provisioning finished
func (s *DeploymentService) MarkRunning(ctx context.Context, tenantID, deploymentID uuid.UUID, req MarkRunningRequest) (*DeploymentResponse, error) {
	return s.transition(ctx, tenantID, deploymentID, func(d *platform.Deployment) error {
		return d.MarkRunning(req.EndpointURL)
	})
}

// MarkFailed records a provisioning or runtime failure
func (s *DeploymentService) MarkFailed(ctx context.Context, tenantID, deploymentID uuid.UUID, req MarkFailedRequest) (*DeploymentResponse, error) {
	return s.transition(ctx, tenantID, deploymentID, func(d *platform.Deployment) error {
		return d.MarkFailed(req.Message)
	})
}

// Stop halts a running deployment
func (s *DeploymentService) Stop(ctx context.Context, tenantID, deploymentID uuid.UUID) (*DeploymentResponse, error) {
	return s.transition(ctx, tenantID, deploymentID, (*platform.Deployment).Stop)
}

// Start reprovisions a stopped deployment
func (s *DeploymentService) Start(ctx context.Context, tenantID, deploymentID uuid.UUID) (*DeploymentResponse, error) {
	return s.transition(ctx, tenantID, deploymentID, (*platform.Deployment).Start)
}

// Terminate retires a deployment for good
func (s *DeploymentService) Terminate(ctx context.Context, tenantID, deploymentID uuid.UUID) (*DeploymentResponse, error) {
	return s.transition(ctx, tenantID, deploymentID, (*platform.Deployment).Terminate)
}

// HealthCheck checks the endpoint and stores the result.
// A 2xx answer is healthy; any other status or a transport error is unhealthy.
func (s *DeploymentService) HealthCheck(ctx context.Context, tenantID, deploymentID uuid.UUID) (*HealthCheckResponse, error) {
	deployment, err := s.deploymentRepo.FindByIDForTenant(ctx, tenantID, deploymentID)
	if err != nil {
		return nil, err
	}
	if deployment.Status == platform.DeploymentTerminated {
		return nil, shared.NewInvalidStateError("Terminated deployments are read-only")
	}
	if deployment.EndpointURL == "" {
		return nil, shared.NewDomainError("NO_ENDPOINT", "Deployment has no endpoint to check")
	}

	result := s.checker.Check(ctx, deployment.EndpointURL)
	if err := deployment.RecordHealth(result.Healthy, s.now()); err != nil {
		return nil, err
	}
	if err := s.deploymentRepo.SaveWithLock(ctx, deployment); err != nil {
		return nil, err
	}
	s.publish(ctx, deployment)

	resp := &HealthCheckResponse{
		Deployment: ToDeploymentResponse(deployment),
		Healthy:    result.Healthy,
		StatusCode: result.StatusCode,
		LatencyMs:  result.Latency.Milliseconds(),
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
		s.logger.Warn("deployment health check failed",
			zap.String("deployment_id", deployment.ID.String()),
			zap.String("endpoint", deployment.EndpointURL),
			zap.Error(result.Err),
		)
	}
	return resp, nil
}

func (s *DeploymentService) transition(ctx context.Context, tenantID, deploymentID uuid.UUID, fn func(*platform.Deployment) error) (*DeploymentResponse, error) {
	deployment, err := s.deploymentRepo.FindByIDForTenant(ctx, tenantID, deploymentID)
	if err != nil {
		return nil, err
	}
	if err := fn(deployment); err != nil {
		return nil, err
	}
	return s.save(ctx, deployment)
}

func (s *DeploymentService) save(ctx context.Context, deployment *platform.Deployment) (*DeploymentResponse, error) {
	if !unchanged(deployment) {
		if err := s.deploymentRepo.SaveWithLock(ctx, deployment); err != nil {
			return nil, err
		}
		s.publish(ctx, deployment)
	}
	response := ToDeploymentResponse(deployment)
	return &response, nil
}
