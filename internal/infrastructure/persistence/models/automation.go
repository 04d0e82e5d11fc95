package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/automation"
)

// WorkflowModel is the persistence model for the Workflow aggregate.
// Rules are embedded as a JSON array.
type WorkflowModel struct {
	TenantAggregateModel
	Name        string                `gorm:"type:varchar(200);not null"`
	Description string                `gorm:"type:text"`
	EntityType  automation.EntityType `gorm:"type:varchar(30);not null;index:idx_workflow_dispatch,priority:2"`
	Trigger     automation.Trigger    `gorm:"column:trigger_type;type:varchar(30);not null;index:idx_workflow_dispatch,priority:3"`
	Schedule    string                `gorm:"type:varchar(100)"`
	IsActive    bool                  `gorm:"not null;default:false;index:idx_workflow_dispatch,priority:1"`
	Priority    int                   `gorm:"not null;default:0"`
	RulesJSON   string                `gorm:"column:rules;type:jsonb;default:'[]'"`
	LastRunAt   *time.Time
	RunCount    int `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (WorkflowModel) TableName() string {
	return "workflows"
}

// ToDomain converts the persistence model to a domain Workflow.
func (m *WorkflowModel) ToDomain() *automation.Workflow {
	w := &automation.Workflow{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		Description:         m.Description,
		EntityType:          m.EntityType,
		Trigger:             m.Trigger,
		Schedule:            m.Schedule,
		IsActive:            m.IsActive,
		Priority:            m.Priority,
		Rules:               []automation.Rule{},
		LastRunAt:           m.LastRunAt,
		RunCount:            m.RunCount,
	}
	decodeJSON(m.RulesJSON, "rules", m.ID, &w.Rules)
	return w
}

// FromDomain populates the persistence model from a domain Workflow.
func (m *WorkflowModel) FromDomain(w *automation.Workflow) {
	m.FromDomainTenantAggregateRoot(w.TenantAggregateRoot)
	m.Name = w.Name
	m.Description = w.Description
	m.EntityType = w.EntityType
	m.Trigger = w.Trigger
	m.Schedule = w.Schedule
	m.IsActive = w.IsActive
	m.Priority = w.Priority
	rules := w.Rules
	if rules == nil {
		rules = []automation.Rule{}
	}
	m.RulesJSON = encodeJSON(rules, "[]")
	m.LastRunAt = w.LastRunAt
	m.RunCount = w.RunCount
}

// WorkflowModelFromDomain creates a new persistence model from a domain Workflow.
func WorkflowModelFromDomain(w *automation.Workflow) *WorkflowModel {
	m := &WorkflowModel{}
	m.FromDomain(w)
	return m
}

// WorkflowExecutionModel is the persistence model for a workflow execution record.
type WorkflowExecutionModel struct {
	ID               uuid.UUID                  `gorm:"type:uuid;primary_key"`
	TenantID         uuid.UUID                  `gorm:"type:uuid;not null;index"`
	WorkflowID       uuid.UUID                  `gorm:"type:uuid;not null;index"`
	EntityType       automation.EntityType      `gorm:"type:varchar(30);not null"`
	EntityID         *uuid.UUID                 `gorm:"type:uuid;index"`
	Trigger          automation.Trigger         `gorm:"column:trigger_type;type:varchar(30);not null"`
	Status           automation.ExecutionStatus `gorm:"type:varchar(20);not null;index"`
	MatchedRulesJSON string                     `gorm:"column:matched_rules;type:jsonb;default:'[]'"`
	ActionsExecuted  int                        `gorm:"not null;default:0"`
	ResultsJSON      string                     `gorm:"column:results;type:jsonb;default:'[]'"`
	Error            string                     `gorm:"type:text"`
	SnapshotJSON     string                     `gorm:"column:snapshot;type:jsonb;default:'{}'"`
	DryRun           bool                       `gorm:"not null;default:false"`
	StartedAt        time.Time                  `gorm:"not null;index"`
	FinishedAt       time.Time                  `gorm:"not null"`
	DurationMs       int64                      `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (WorkflowExecutionModel) TableName() string {
	return "workflow_executions"
}

// ToDomain converts the persistence model to a domain Execution.
func (m *WorkflowExecutionModel) ToDomain() *automation.Execution {
	e := &automation.Execution{
		ID:              m.ID,
		TenantID:        m.TenantID,
		WorkflowID:      m.WorkflowID,
		EntityType:      m.EntityType,
		EntityID:        m.EntityID,
		Trigger:         m.Trigger,
		Status:          m.Status,
		MatchedRules:    []uuid.UUID{},
		ActionsExecuted: m.ActionsExecuted,
		Results:         []automation.ActionResult{},
		Error:           m.Error,
		Snapshot:        automation.Snapshot{},
		DryRun:          m.DryRun,
		StartedAt:       m.StartedAt,
		FinishedAt:      m.FinishedAt,
		DurationMs:      m.DurationMs,
	}
	decodeJSON(m.MatchedRulesJSON, "matched_rules", m.ID, &e.MatchedRules)
	decodeJSON(m.ResultsJSON, "results", m.ID, &e.Results)
	decodeJSON(m.SnapshotJSON, "snapshot", m.ID, &e.Snapshot)
	return e
}

// WorkflowExecutionModelFromDomain creates a new persistence model from a domain Execution.
func WorkflowExecutionModelFromDomain(e *automation.Execution) *WorkflowExecutionModel {
	matched := e.MatchedRules
	if matched == nil {
		matched = []uuid.UUID{}
	}
	results := e.Results
	if results == nil {
		results = []automation.ActionResult{}
	}
	return &WorkflowExecutionModel{
		ID:               e.ID,
		TenantID:         e.TenantID,
		WorkflowID:       e.WorkflowID,
		EntityType:       e.EntityType,
		EntityID:         e.EntityID,
		Trigger:          e.Trigger,
		Status:           e.Status,
		MatchedRulesJSON: encodeJSON(matched, "[]"),
		ActionsExecuted:  e.ActionsExecuted,
		ResultsJSON:      encodeJSON(results, "[]"),
		Error:            e.Error,
		SnapshotJSON:     encodeJSON(e.Snapshot, "{}"),
		DryRun:           e.DryRun,
		StartedAt:        e.StartedAt,
		FinishedAt:       e.FinishedAt,
		DurationMs:       e.DurationMs,
	}
}
