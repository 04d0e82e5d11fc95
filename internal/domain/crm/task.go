package crm

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// TaskStatus represents the progress of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsOpen returns true while the task still needs work
func (s TaskStatus) IsOpen() bool {
	return s == TaskStatusPending || s == TaskStatusInProgress
}

// IsValid reports whether the status is known
func (s TaskStatus) IsValid() bool {
	return s.IsOpen() || s == TaskStatusCompleted || s == TaskStatusCancelled
}

// TaskPriority ranks tasks
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// IsValid reports whether the priority is known
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// Task is a follow-up item, optionally linked to a customer, contact or opportunity
type Task struct {
	shared.TenantAggregateRoot
	Title         string
	Description   string
	Status        TaskStatus
	Priority      TaskPriority
	DueDate       *time.Time
	AssignedTo    *uuid.UUID
	CustomerID    *uuid.UUID
	ContactID     *uuid.UUID
	OpportunityID *uuid.UUID
	CompletedAt   *time.Time
	IsOverdue     bool
}

// TaskPatch carries the optional fields of a task update
type TaskPatch struct {
	Title         *string
	Description   *string
	Priority      *TaskPriority
	DueDate       *time.Time
	ClearDueDate  bool
	AssignedTo    *uuid.UUID
	CustomerID    *uuid.UUID
	ContactID     *uuid.UUID
	OpportunityID *uuid.UUID
}

// NewTask creates a pending task with medium priority
func NewTask(tenantID uuid.UUID, title string) (*Task, error) {
	if err := validateRequired("title", "Title", title, 200); err != nil {
		return nil, err
	}

	task := &Task{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Title:               strings.TrimSpace(title),
		Status:              TaskStatusPending,
		Priority:            TaskPriorityMedium,
	}

	task.AddDomainEvent(newEntityEvent(EventTypeTaskCreated, AggregateTypeTask, &task.TenantAggregateRoot, nil))

	return task, nil
}

// Apply sets the patched fields without bumping the version
func (t *Task) Apply(p TaskPatch) error {
	_, err := t.apply(p)
	return err
}

// Update applies a patch and bumps the version
func (t *Task) Update(p TaskPatch) error {
	changes, err := t.apply(p)
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(newEntityEvent(EventTypeTaskUpdated, AggregateTypeTask, &t.TenantAggregateRoot, changes))

	return nil
}

func (t *Task) apply(p TaskPatch) (shared.Changes, error) {
	if p.Title != nil {
		if err := validateRequired("title", "Title", *p.Title, 200); err != nil {
			return nil, err
		}
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return nil, shared.NewDomainError("INVALID_PRIORITY", "Priority must be one of low, medium, high, urgent")
	}

	changes := shared.Changes{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		changes.Track("title", t.Title, title)
		t.Title = title
	}
	if p.Description != nil {
		changes.Track("description", t.Description, *p.Description)
		t.Description = *p.Description
	}
	if p.Priority != nil {
		changes.Track("priority", string(t.Priority), string(*p.Priority))
		t.Priority = *p.Priority
	}
	if p.ClearDueDate {
		changes.Track("due_date", formatTime(t.DueDate), "")
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		changes.Track("due_date", formatTime(t.DueDate), formatTime(&due))
		t.DueDate = &due
	}
	link := func(field string, dst **uuid.UUID, src *uuid.UUID) {
		if src == nil {
			return
		}
		id := *src
		changes.Track(field, formatID(*dst), id.String())
		*dst = &id
	}
	link("assigned_to", &t.AssignedTo, p.AssignedTo)
	link("customer_id", &t.CustomerID, p.CustomerID)
	link("contact_id", &t.ContactID, p.ContactID)
	link("opportunity_id", &t.OpportunityID, p.OpportunityID)

	t.IsOverdue = t.computeOverdue(time.Now())

	return changes, nil
}

// Start moves a pending task to in progress
func (t *Task) Start() error {
	if t.Status != TaskStatusPending {
		return shared.NewInvalidStateError("Only pending tasks can be started")
	}
	t.transition(TaskStatusInProgress)
	return nil
}

// Complete finishes an open task
func (t *Task) Complete() error {
	if !t.Status.IsOpen() {
		return shared.NewInvalidStateError("Only pending or in-progress tasks can be completed")
	}
	now := time.Now()
	t.CompletedAt = &now
	t.IsOverdue = false
	t.transition(TaskStatusCompleted)
	return nil
}

// Cancel abandons an open task
func (t *Task) Cancel() error {
	if !t.Status.IsOpen() {
		return shared.NewInvalidStateError("Only pending or in-progress tasks can be cancelled")
	}
	t.IsOverdue = false
	t.transition(TaskStatusCancelled)
	return nil
}

// Reopen moves a completed or cancelled task back to pending
func (t *Task) Reopen() error {
	if t.Status.IsOpen() {
		return shared.NewInvalidStateError("Only completed or cancelled tasks can be reopened")
	}
	t.CompletedAt = nil
	t.transition(TaskStatusPending)
	t.IsOverdue = t.computeOverdue(time.Now())
	return nil
}

// SetStatus runs the transition that leads to status
func (t *Task) SetStatus(status TaskStatus) error {
	switch status {
	case TaskStatusInProgress:
		return t.Start()
	case TaskStatusCompleted:
		return t.Complete()
	case TaskStatusCancelled:
		return t.Cancel()
	case TaskStatusPending:
		return t.Reopen()
	default:
		return shared.NewDomainError("INVALID_STATUS", "Unknown task status")
	}
}

// MarkOverdue flags an open task whose due date has passed.
// It returns false when nothing changed.
func (t *Task) MarkOverdue(now time.Time) bool {
	if t.IsOverdue || !t.computeOverdue(now) {
		return false
	}
	t.IsOverdue = true
	t.UpdatedAt = now
	t.IncrementVersion()

	t.AddDomainEvent(newEntityEvent(EventTypeTaskUpdated, AggregateTypeTask, &t.TenantAggregateRoot, shared.Changes{"is_overdue": false}))
	return true
}

// OverdueAt reports whether the task is overdue at the given time
func (t *Task) OverdueAt(now time.Time) bool {
	return t.computeOverdue(now)
}

func (t *Task) computeOverdue(now time.Time) bool {
	return t.Status.IsOpen() && t.DueDate != nil && t.DueDate.Before(now)
}

func (t *Task) transition(next TaskStatus) {
	old := t.Status
	t.Status = next
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(newEntityEvent(EventTypeTaskStatusChanged, AggregateTypeTask, &t.TenantAggregateRoot, shared.Changes{"status": string(old)}))
}

// MarkDeleted records the deletion event
func (t *Task) MarkDeleted() {
	t.AddDomainEvent(newEntityEvent(EventTypeTaskDeleted, AggregateTypeTask, &t.TenantAggregateRoot, nil))
}
