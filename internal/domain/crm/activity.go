package crm

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// ActivityType classifies an interaction with a customer
type ActivityType string

const (
	ActivityTypeCall    ActivityType = "call"
	ActivityTypeEmail   ActivityType = "email"
	ActivityTypeMeeting ActivityType = "meeting"
	ActivityTypeNote    ActivityType = "note"
	ActivityTypeTask    ActivityType = "task"
	ActivityTypeDemo    ActivityType = "demo"
	ActivityTypeOther   ActivityType = "other"
)

// IsValid reports whether the type is known
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityTypeCall, ActivityTypeEmail, ActivityTypeMeeting, ActivityTypeNote,
		ActivityTypeTask, ActivityTypeDemo, ActivityTypeOther:
		return true
	}
	return false
}

// ActivityOutcome records how an activity went
type ActivityOutcome string

const (
	OutcomeNone             ActivityOutcome = ""
	OutcomeSuccessful       ActivityOutcome = "successful"
	OutcomeUnsuccessful     ActivityOutcome = "unsuccessful"
	OutcomeNoAnswer         ActivityOutcome = "no_answer"
	OutcomeFollowUpRequired ActivityOutcome = "follow_up_required"
)

// IsValid reports whether the outcome is known
func (o ActivityOutcome) IsValid() bool {
	switch o {
	case OutcomeNone, OutcomeSuccessful, OutcomeUnsuccessful, OutcomeNoAnswer, OutcomeFollowUpRequired:
		return true
	}
	return false
}

// Activity is a logged touchpoint such as a call or meeting
type Activity struct {
	shared.TenantAggregateRoot
	Type            ActivityType
	Subject         string
	Description     string
	CustomerID      *uuid.UUID
	ContactID       *uuid.UUID
	OpportunityID   *uuid.UUID
	OccurredAt      time.Time
	DurationMinutes int
	Outcome         ActivityOutcome
	PerformedBy     *uuid.UUID
}

// ActivityPatch carries the optional fields of an activity update
type ActivityPatch struct {
	Type            *ActivityType
	Subject         *string
	Description     *string
	CustomerID      *uuid.UUID
	ContactID       *uuid.UUID
	OpportunityID   *uuid.UUID
	OccurredAt      *time.Time
	DurationMinutes *int
	Outcome         *ActivityOutcome
	PerformedBy     *uuid.UUID
}

// NewActivity logs an activity that occurred now
func NewActivity(tenantID uuid.UUID, activityType ActivityType, subject string) (*Activity, error) {
	if !activityType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TYPE", "Unknown activity type")
	}
	if err := validateRequired("subject", "Subject", subject, 200); err != nil {
		return nil, err
	}

	activity := &Activity{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Type:                activityType,
		Subject:             strings.TrimSpace(subject),
		OccurredAt:          time.Now(),
	}

	activity.AddDomainEvent(newEntityEvent(EventTypeActivityCreated, AggregateTypeActivity, &activity.TenantAggregateRoot, nil))

	return activity, nil
}

// Apply sets the patched fields without bumping the version
func (a *Activity) Apply(p ActivityPatch) error {
	_, err := a.apply(p)
	return err
}

// Update applies a patch and bumps the version
func (a *Activity) Update(p ActivityPatch) error {
	changes, err := a.apply(p)
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(newEntityEvent(EventTypeActivityUpdated, AggregateTypeActivity, &a.TenantAggregateRoot, changes))

	return nil
}

func (a *Activity) apply(p ActivityPatch) (shared.Changes, error) {
	if p.Type != nil && !p.Type.IsValid() {
		return nil, shared.NewDomainError("INVALID_TYPE", "Unknown activity type")
	}
	if p.Subject != nil {
		if err := validateRequired("subject", "Subject", *p.Subject, 200); err != nil {
			return nil, err
		}
	}
	if p.DurationMinutes != nil && *p.DurationMinutes < 0 {
		return nil, shared.NewDomainError("INVALID_DURATION", "Duration cannot be negative")
	}
	if p.Outcome != nil && !p.Outcome.IsValid() {
		return nil, shared.NewDomainError("INVALID_OUTCOME", "Unknown activity outcome")
	}

	changes := shared.Changes{}
	if p.Type != nil {
		changes.Track("type", string(a.Type), string(*p.Type))
		a.Type = *p.Type
	}
	if p.Subject != nil {
		subject := strings.TrimSpace(*p.Subject)
		changes.Track("subject", a.Subject, subject)
		a.Subject = subject
	}
	if p.Description != nil {
		changes.Track("description", a.Description, *p.Description)
		a.Description = *p.Description
	}
	link := func(field string, dst **uuid.UUID, src *uuid.UUID) {
		if src == nil {
			return
		}
		id := *src
		changes.Track(field, formatID(*dst), id.String())
		*dst = &id
	}
	link("customer_id", &a.CustomerID, p.CustomerID)
	link("contact_id", &a.ContactID, p.ContactID)
	link("opportunity_id", &a.OpportunityID, p.OpportunityID)
	link("performed_by", &a.PerformedBy, p.PerformedBy)
	if p.OccurredAt != nil {
		at := *p.OccurredAt
		changes.Track("occurred_at", formatTime(&a.OccurredAt), formatTime(&at))
		a.OccurredAt = at
	}
	if p.DurationMinutes != nil {
		changes.Track("duration_minutes", a.DurationMinutes, *p.DurationMinutes)
		a.DurationMinutes = *p.DurationMinutes
	}
	if p.Outcome != nil {
		changes.Track("outcome", string(a.Outcome), string(*p.Outcome))
		a.Outcome = *p.Outcome
	}

	return changes, nil
}

// MarkDeleted records the deletion event
func (a *Activity) MarkDeleted() {
	a.AddDomainEvent(newEntityEvent(EventTypeActivityDeleted, AggregateTypeActivity, &a.TenantAggregateRoot, nil))
}
