package automation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// WorkflowRepository defines the interface for workflow persistence.
// Rules are stored with their workflow.
type WorkflowRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Workflow, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Workflow, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// FindActiveFor finds active workflows for an entity type and trigger, ordered by priority
	FindActiveFor(ctx context.Context, tenantID uuid.UUID, entityType EntityType, trigger Trigger) ([]Workflow, error)

	// FindActiveScheduled finds active scheduled workflows of every tenant
	FindActiveScheduled(ctx context.Context) ([]Workflow, error)

	Save(ctx context.Context, workflow *Workflow) error
	SaveWithLock(ctx context.Context, workflow *Workflow) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error

	// RecordRun bumps run_count and last_run_at without touching the version
	RecordRun(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error
}

// ExecutionRepository defines the interface for execution history
type ExecutionRepository interface {
	Save(ctx context.Context, execution *Execution) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Execution, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Execution, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
}
