package crm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/crm"
	"go.uber.org/zap"
)

// TaskService handles task-related business operations
type TaskService struct {
	publisher
	taskRepo     crm.TaskRepository
	customerRepo crm.CustomerRepository
	now          func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo crm.TaskRepository, customerRepo crm.CustomerRepository) *TaskService {
	return &TaskService{
		taskRepo:     taskRepo,
		customerRepo: customerRepo,
		now:          time.Now,
	}
}

// Create creates a pending task
func (s *TaskService) Create(ctx context.Context, tenantID uuid.UUID, req CreateTaskRequest) (*TaskResponse, error) {
	if req.CustomerID != nil {
		if _, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, *req.CustomerID); err != nil {
			return nil, err
		}
	}

	task, err := crm.NewTask(tenantID, req.Title)
	if err != nil {
		return nil, err
	}
	patch := crm.TaskPatch{
		Description:   optional(req.Description),
		DueDate:       req.DueDate,
		AssignedTo:    req.AssignedTo,
		CustomerID:    req.CustomerID,
		ContactID:     req.ContactID,
		OpportunityID: req.OpportunityID,
	}
	if req.Priority != "" {
		priority := crm.TaskPriority(req.Priority)
		patch.Priority = &priority
	}
	if err := task.Apply(patch); err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		task.SetCreatedBy(*req.CreatedBy)
	}
	task.IsOverdue = task.OverdueAt(s.now())

	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	s.publish(ctx, task)

	response := ToTaskResponse(task, s.now())
	return &response, nil
}

// GetByID retrieves a task by ID
func (s *TaskService) GetByID(ctx context.Context, tenantID, taskID uuid.UUID) (*TaskResponse, error) {
	task, err := s.taskRepo.FindByIDForTenant(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}

	response := ToTaskResponse(task, s.now())
	return &response, nil
}

// List retrieves a list of tasks with filtering and pagination
func (s *TaskService) List(ctx context.Context, tenantID uuid.UUID, filter TaskListFilter) ([]TaskResponse, int64, error) {
	domainFilter := filter.Filter("created_at")
	common.PutString(domainFilter, "status", filter.Status)
	common.PutString(domainFilter, "priority", filter.Priority)
	common.PutString(domainFilter, "assigned_to", filter.AssignedTo)
	common.PutString(domainFilter, "customer_id", filter.CustomerID)
	common.PutString(domainFilter, "opportunity_id", filter.OpportunityID)
	common.PutBool(domainFilter, "is_overdue", filter.IsOverdue)

	tasks, err := s.taskRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.taskRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToTaskResponses(tasks, s.now()), total, nil
}

// Update updates a task
func (s *TaskService) Update(ctx context.Context, tenantID, taskID uuid.UUID, req UpdateTaskRequest) (*TaskResponse, error) {
	return s.mutate(ctx, tenantID, taskID, func(t *crm.Task) error {
		patch := crm.TaskPatch{
			Title:         req.Title,
			Description:   req.Description,
			DueDate:       req.DueDate,
			ClearDueDate:  req.ClearDueDate,
			AssignedTo:    req.AssignedTo,
			CustomerID:    req.CustomerID,
			ContactID:     req.ContactID,
			OpportunityID: req.OpportunityID,
		}
		if req.Priority != nil {
			priority := crm.TaskPriority(*req.Priority)
			patch.Priority = &priority
		}
		if err := t.Update(patch); err != nil {
			return err
		}
		t.IsOverdue = t.OverdueAt(s.now())
		return nil
	})
}

// Start moves a pending task to in progress
func (s *TaskService) Start(ctx context.Context, tenantID, taskID uuid.UUID) (*TaskResponse, error) {
	return s.mutate(ctx, tenantID, taskID, (*crm.Task).Start)
}

// Complete completes an open task
func (s *TaskService) Complete(ctx context.Context, tenantID, taskID uuid.UUID) (*TaskResponse, error) {
	return s.mutate(ctx, tenantID, taskID, (*crm.Task).Complete)
}

// Cancel cancels an open task
func (s *TaskService) Cancel(ctx context.Context, tenantID, taskID uuid.UUID) (*TaskResponse, error) {
	return s.mutate(ctx, tenantID, taskID, (*crm.Task).Cancel)
}

// Reopen moves a closed task back to pending
func (s *TaskService) Reopen(ctx context.Context, tenantID, taskID uuid.UUID) (*TaskResponse, error) {
	return s.mutate(ctx, tenantID, taskID, (*crm.Task).Reopen)
}

// Delete soft-deletes a task
func (s *TaskService) Delete(ctx context.Context, tenantID, taskID uuid.UUID) error {
	task, err := s.taskRepo.FindByIDForTenant(ctx, tenantID, taskID)
	if err != nil {
		return err
	}

	task.MarkDeleted()
	if err := s.taskRepo.DeleteForTenant(ctx, tenantID, taskID); err != nil {
		return err
	}
	s.publish(ctx, task)
	return nil
}

// MarkOverdue flags every open task whose due date passed before now.
// A task that fails to save is logged and skipped until the next sweep.
func (s *TaskService) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	logger := zap.L().Named("application.crm")
	marked := 0
	skipped := make(map[uuid.UUID]struct{})

	for {
		tasks, err := s.taskRepo.FindNewlyOverdue(ctx, now, sweepBatchSize)
		if err != nil {
			return marked, err
		}

		progressed := false
		for i := range tasks {
			task := &tasks[i]
			if _, seen := skipped[task.ID]; seen {
				continue
			}
			if task.MarkOverdue(now) {
				if err := s.taskRepo.SaveWithLock(ctx, task); err != nil {
					logger.Warn("failed to flag overdue task",
						zap.String("tenant_id", task.TenantID.String()),
						zap.String("task_id", task.ID.String()),
						zap.Error(err),
					)
				} else {
					s.publish(ctx, task)
					marked++
					progressed = true
					continue
				}
			}
			skipped[task.ID] = struct{}{}
		}

		if len(tasks) < sweepBatchSize || !progressed {
			return marked, nil
		}
	}
}

func (s *TaskService) mutate(ctx context.Context, tenantID, taskID uuid.UUID, fn func(*crm.Task) error) (*TaskResponse, error) {
	task, err := s.taskRepo.FindByIDForTenant(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	if err := fn(task); err != nil {
		return nil, err
	}
	if !unchanged(task) {
		if err := s.taskRepo.SaveWithLock(ctx, task); err != nil {
			return nil, err
		}
		s.publish(ctx, task)
	}

	response := ToTaskResponse(task, s.now())
	return &response, nil
}
