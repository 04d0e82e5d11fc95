package automation

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/robfig/cron/v3"
)

// EntityType names the records workflows can watch
type EntityType string

const (
	EntityCustomer    EntityType = "customer"
	EntityContact     EntityType = "contact"
	EntityOpportunity EntityType = "opportunity"
	EntityQuote       EntityType = "quote"
	EntityTask        EntityType = "task"
	EntityActivity    EntityType = "activity"
	EntityCampaign    EntityType = "campaign"
)

// IsValid reports whether the entity type is supported
func (e EntityType) IsValid() bool {
	switch e {
	case EntityCustomer, EntityContact, EntityOpportunity, EntityQuote, EntityTask, EntityActivity, EntityCampaign:
		return true
	}
	return false
}

// Trigger is the event that starts a workflow
type Trigger string

const (
	TriggerCreated       Trigger = "created"
	TriggerUpdated       Trigger = "updated"
	TriggerStatusChanged Trigger = "status_changed"
	TriggerDeleted       Trigger = "deleted"
	TriggerScheduled     Trigger = "scheduled"
	TriggerManual        Trigger = "manual"
)

// IsValid reports whether the trigger is supported
func (t Trigger) IsValid() bool {
	switch t {
	case TriggerCreated, TriggerUpdated, TriggerStatusChanged, TriggerDeleted, TriggerScheduled, TriggerManual:
		return true
	}
	return false
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a 5-field cron expression or descriptor such as @hourly
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := scheduleParser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, shared.NewDomainError("INVALID_SCHEDULE", "Invalid cron expression: "+err.Error())
	}
	return schedule, nil
}

// Workflow is the aggregate root for an automation
type Workflow struct {
	shared.TenantAggregateRoot
	Name        string
	Description string
	EntityType  EntityType
	Trigger     Trigger
	Schedule    string
	IsActive    bool
	Priority    int
	Rules       []Rule
	LastRunAt   *time.Time
	RunCount    int
}

// WorkflowPatch carries the optional fields of a workflow update
type WorkflowPatch struct {
	Name        *string
	Description *string
	EntityType  *EntityType
	Trigger     *Trigger
	Schedule    *string
	Priority    *int
}

// NewWorkflow creates an inactive workflow
func NewWorkflow(tenantID uuid.UUID, name string, entityType EntityType, trigger Trigger, schedule string) (*Workflow, error) {
	w := &Workflow{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		EntityType:          entityType,
		Trigger:             trigger,
		Schedule:            strings.TrimSpace(schedule),
		Rules:               []Rule{},
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	w.AddDomainEvent(newWorkflowEvent(EventTypeWorkflowCreated, w, nil))

	return w, nil
}

func (w *Workflow) validate() error {
	if w.Name == "" {
		return shared.NewDomainError("INVALID_NAME", "Workflow name cannot be empty")
	}
	if len(w.Name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Workflow name is too long")
	}
	if !w.EntityType.IsValid() {
		return shared.NewDomainError("INVALID_ENTITY_TYPE", "Unsupported entity type '"+string(w.EntityType)+"'")
	}
	if !w.Trigger.IsValid() {
		return shared.NewDomainError("INVALID_TRIGGER", "Unsupported trigger '"+string(w.Trigger)+"'")
	}
	if w.Trigger == TriggerScheduled {
		if w.Schedule == "" {
			return shared.NewDomainError("INVALID_SCHEDULE", "Scheduled workflows require a cron expression")
		}
		if _, err := ParseSchedule(w.Schedule); err != nil {
			return err
		}
	} else if w.Schedule != "" {
		return shared.NewDomainError("INVALID_SCHEDULE", "Only scheduled workflows can have a cron expression")
	}
	return nil
}

// Update applies a patch and bumps the version
func (w *Workflow) Update(p WorkflowPatch) error {
	before := *w
	changes := shared.Changes{}

	if p.Name != nil {
		changes.Track("name", w.Name, strings.TrimSpace(*p.Name))
		w.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		changes.Track("description", w.Description, *p.Description)
		w.Description = *p.Description
	}
	if p.EntityType != nil {
		changes.Track("entity_type", string(w.EntityType), string(*p.EntityType))
		w.EntityType = *p.EntityType
	}
	if p.Trigger != nil {
		changes.Track("trigger", string(w.Trigger), string(*p.Trigger))
		w.Trigger = *p.Trigger
		if *p.Trigger != TriggerScheduled && p.Schedule == nil {
			w.Schedule = ""
		}
	}
	if p.Schedule != nil {
		changes.Track("schedule", w.Schedule, strings.TrimSpace(*p.Schedule))
		w.Schedule = strings.TrimSpace(*p.Schedule)
	}
	if p.Priority != nil {
		changes.Track("priority", w.Priority, *p.Priority)
		w.Priority = *p.Priority
	}

	if err := w.validate(); err != nil {
		restore(w, before)
		return err
	}
	if changes.Empty() {
		return nil
	}
	w.touch(EventTypeWorkflowUpdated, changes)
	return nil
}

func restore(w *Workflow, before Workflow) {
	w.Name = before.Name
	w.Description = before.Description
	w.EntityType = before.EntityType
	w.Trigger = before.Trigger
	w.Schedule = before.Schedule
	w.Priority = before.Priority
}

// Activate enables the workflow; it must have at least one rule
func (w *Workflow) Activate() error {
	if w.IsActive {
		return shared.NewInvalidStateError("Workflow is already active")
	}
	if len(w.Rules) == 0 {
		return shared.NewDomainError("NO_RULES", "Workflow needs at least one rule before activation")
	}
	w.IsActive = true
	w.touch(EventTypeWorkflowStatusChanged, shared.Changes{"is_active": false})
	return nil
}

// Deactivate disables the workflow
func (w *Workflow) Deactivate() error {
	if !w.IsActive {
		return shared.NewInvalidStateError("Workflow is already inactive")
	}
	w.IsActive = false
	w.touch(EventTypeWorkflowStatusChanged, shared.Changes{"is_active": true})
	return nil
}

// AddRule appends a validated rule
func (w *Workflow) AddRule(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if len(w.Rules) >= 50 {
		return shared.NewDomainError("TOO_MANY_RULES", "A workflow can have at most 50 rules")
	}
	w.Rules = append(w.Rules, rule)
	w.sortRules()
	w.touch(EventTypeWorkflowUpdated, shared.Changes{"rules": len(w.Rules) - 1})
	return nil
}

// ReplaceRule swaps the rule with the same ID
func (w *Workflow) ReplaceRule(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	for i := range w.Rules {
		if w.Rules[i].ID == rule.ID {
			w.Rules[i] = rule
			w.sortRules()
			w.touch(EventTypeWorkflowUpdated, shared.Changes{"rules": len(w.Rules)})
			return nil
		}
	}
	return shared.NewNotFoundError("Workflow rule")
}

// RemoveRule deletes a rule; an active workflow keeps at least one
func (w *Workflow) RemoveRule(ruleID uuid.UUID) error {
	for i := range w.Rules {
		if w.Rules[i].ID != ruleID {
			continue
		}
		if w.IsActive && len(w.Rules) == 1 {
			return shared.NewInvalidStateError("Cannot remove the last rule of an active workflow")
		}
		w.Rules = append(w.Rules[:i], w.Rules[i+1:]...)
		w.touch(EventTypeWorkflowUpdated, shared.Changes{"rules": len(w.Rules) + 1})
		return nil
	}
	return shared.NewNotFoundError("Workflow rule")
}

// FindRule returns the rule with the given ID
func (w *Workflow) FindRule(ruleID uuid.UUID) (Rule, bool) {
	for _, r := range w.Rules {
		if r.ID == ruleID {
			return r, true
		}
	}
	return Rule{}, false
}

// OrderedRules returns the rules sorted by order
func (w *Workflow) OrderedRules() []Rule {
	rules := append([]Rule(nil), w.Rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Order < rules[j].Order })
	return rules
}

// Handles reports whether the workflow reacts to the trigger on the entity type
func (w *Workflow) Handles(entityType EntityType, trigger Trigger) bool {
	return w.IsActive && w.EntityType == entityType && w.Trigger == trigger
}

func (w *Workflow) sortRules() {
	sort.SliceStable(w.Rules, func(i, j int) bool { return w.Rules[i].Order < w.Rules[j].Order })
}

func (w *Workflow) touch(eventType string, changes shared.Changes) {
	w.UpdatedAt = time.Now()
	w.IncrementVersion()
	w.AddDomainEvent(newWorkflowEvent(eventType, w, changes))
}

// MarkDeleted records the deletion event
func (w *Workflow) MarkDeleted() {
	w.AddDomainEvent(newWorkflowEvent(EventTypeWorkflowDeleted, w, nil))
}
