package automation

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the outcome of a workflow run
type ExecutionStatus string

const (
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionNoMatch   ExecutionStatus = "no_match"
)

// ActionResult records one action run
type ActionResult struct {
	RuleID  uuid.UUID  `json:"rule_id"`
	Type    ActionType `json:"type"`
	Success bool       `json:"success"`
	Skipped bool       `json:"skipped,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Execution is the record of one workflow run against one entity
type Execution struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	WorkflowID      uuid.UUID
	EntityType      EntityType
	EntityID        *uuid.UUID
	Trigger         Trigger
	Status          ExecutionStatus
	MatchedRules    []uuid.UUID
	ActionsExecuted int
	Results         []ActionResult
	Error           string
	Snapshot        Snapshot
	DryRun          bool
	StartedAt       time.Time
	FinishedAt      time.Time
	DurationMs      int64
}

// NewExecution starts an execution record for a workflow
func NewExecution(w *Workflow, entityID *uuid.UUID, trigger Trigger, snapshot Snapshot, dryRun bool) *Execution {
	return &Execution{
		ID:           uuid.New(),
		TenantID:     w.TenantID,
		WorkflowID:   w.ID,
		EntityType:   w.EntityType,
		EntityID:     entityID,
		Trigger:      trigger,
		MatchedRules: []uuid.UUID{},
		Results:      []ActionResult{},
		Snapshot:     snapshot,
		DryRun:       dryRun,
		StartedAt:    time.Now(),
	}
}

// AddResult appends an action result and counts successful runs
func (e *Execution) AddResult(r ActionResult) {
	e.Results = append(e.Results, r)
	if r.Success && !r.Skipped {
		e.ActionsExecuted++
	}
}

// Finish derives the status and duration. Any failed action fails the run.
func (e *Execution) Finish(err error) {
	e.FinishedAt = time.Now()
	e.DurationMs = e.FinishedAt.Sub(e.StartedAt).Milliseconds()

	switch {
	case err != nil:
		e.Status = ExecutionFailed
		e.Error = err.Error()
	case len(e.MatchedRules) == 0:
		e.Status = ExecutionNoMatch
	default:
		e.Status = ExecutionSucceeded
		for _, r := range e.Results {
			if !r.Success {
				e.Status = ExecutionFailed
				if e.Error == "" {
					e.Error = r.Error
				}
			}
		}
	}
}
