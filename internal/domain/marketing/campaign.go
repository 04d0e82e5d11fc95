package marketing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CampaignType is the channel a campaign runs on
type CampaignType string

const (
	CampaignTypeEmail         CampaignType = "email"
	CampaignTypeSMS           CampaignType = "sms"
	CampaignTypeSocial        CampaignType = "social"
	CampaignTypeEvent         CampaignType = "event"
	CampaignTypeWebinar       CampaignType = "webinar"
	CampaignTypeAdvertisement CampaignType = "advertisement"
)

// IsValid reports whether the type is known
func (t CampaignType) IsValid() bool {
	switch t {
	case CampaignTypeEmail, CampaignTypeSMS, CampaignTypeSocial, CampaignTypeEvent,
		CampaignTypeWebinar, CampaignTypeAdvertisement:
		return true
	}
	return false
}

// CampaignStatus represents the campaign lifecycle
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// IsValid reports whether the status is known
func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusRunning,
		CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	}
	return false
}

// IsEditable returns true for statuses that accept detail changes
func (s CampaignStatus) IsEditable() bool {
	return s == CampaignStatusDraft || s == CampaignStatusScheduled || s == CampaignStatusPaused
}

// AcceptsTracking returns true for statuses that record interactions
func (s CampaignStatus) AcceptsTracking() bool {
	return s == CampaignStatusRunning || s == CampaignStatusPaused || s == CampaignStatusCompleted
}

// TargetCriteria selects the customers a campaign is sent to
type TargetCriteria struct {
	Statuses    []string    `json:"statuses,omitempty"`
	Types       []string    `json:"types,omitempty"`
	Industries  []string    `json:"industries,omitempty"`
	Countries   []string    `json:"countries,omitempty"`
	CustomerIDs []uuid.UUID `json:"customer_ids,omitempty"`
}

// Validate checks the named statuses and types
func (c TargetCriteria) Validate() error {
	for _, s := range c.Statuses {
		if !crm.CustomerStatus(s).IsValid() {
			return shared.NewDomainError("INVALID_TARGET_CRITERIA", "Unknown customer status '"+s+"'")
		}
	}
	for _, t := range c.Types {
		if t != string(crm.CustomerTypeIndividual) && t != string(crm.CustomerTypeOrganization) {
			return shared.NewDomainError("INVALID_TARGET_CRITERIA", "Unknown customer type '"+t+"'")
		}
	}
	return nil
}

// Segment converts the criteria into a customer segment for the given channel
func (c TargetCriteria) Segment(campaignType CampaignType) crm.CustomerSegment {
	segment := crm.CustomerSegment{
		Industries:   c.Industries,
		Countries:    c.Countries,
		CustomerIDs:  c.CustomerIDs,
		RequireEmail: campaignType == CampaignTypeEmail,
	}
	for _, s := range c.Statuses {
		segment.Statuses = append(segment.Statuses, crm.CustomerStatus(s))
	}
	for _, t := range c.Types {
		segment.Types = append(segment.Types, crm.CustomerType(t))
	}
	return segment
}

// Campaign is the aggregate root for a marketing campaign
type Campaign struct {
	shared.TenantAggregateRoot
	Name            string
	Description     string
	Type            CampaignType
	Status          CampaignStatus
	StartDate       *time.Time
	EndDate         *time.Time
	Budget          decimal.Decimal
	ActualCost      decimal.Decimal
	ExpectedRevenue decimal.Decimal
	TargetCriteria  TargetCriteria
	SentCount       int
	OpenCount       int
	ClickCount      int
	ConversionCount int
	ConversionValue decimal.Decimal
	LaunchedAt      *time.Time
	CompletedAt     *time.Time
}

// CampaignPatch carries the optional fields of a campaign update
type CampaignPatch struct {
	Name            *string
	Description     *string
	Type            *CampaignType
	StartDate       *time.Time
	EndDate         *time.Time
	Budget          *decimal.Decimal
	ActualCost      *decimal.Decimal
	ExpectedRevenue *decimal.Decimal
	TargetCriteria  *TargetCriteria
}

// NewCampaign creates a draft campaign
func NewCampaign(tenantID uuid.UUID, name string, campaignType CampaignType) (*Campaign, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Campaign name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Campaign name is too long")
	}
	if !campaignType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TYPE", "Unknown campaign type")
	}

	campaign := &Campaign{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Type:                campaignType,
		Status:              CampaignStatusDraft,
		Budget:              decimal.Zero,
		ActualCost:          decimal.Zero,
		ExpectedRevenue:     decimal.Zero,
		ConversionValue:     decimal.Zero,
	}

	campaign.AddDomainEvent(newCampaignEvent(EventTypeCampaignCreated, campaign, nil))

	return campaign, nil
}

// Apply sets the patched fields without bumping the version
func (c *Campaign) Apply(p CampaignPatch) error {
	_, err := c.apply(p)
	return err
}

// Update applies a patch to an editable campaign and bumps the version
func (c *Campaign) Update(p CampaignPatch) error {
	if !c.Status.IsEditable() {
		return shared.NewInvalidStateError("Campaign cannot be edited while " + string(c.Status))
	}
	changes, err := c.apply(p)
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(newCampaignEvent(EventTypeCampaignUpdated, c, changes))

	return nil
}

func (c *Campaign) apply(p CampaignPatch) (shared.Changes, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" || len(name) > 200 {
			return nil, shared.NewDomainError("INVALID_NAME", "Campaign name must be 1-200 characters")
		}
	}
	if p.Type != nil && !p.Type.IsValid() {
		return nil, shared.NewDomainError("INVALID_TYPE", "Unknown campaign type")
	}
	for field, value := range map[string]*decimal.Decimal{"budget": p.Budget, "actual_cost": p.ActualCost, "expected_revenue": p.ExpectedRevenue} {
		if value != nil && value.IsNegative() {
			return nil, shared.NewDomainError("INVALID_"+strings.ToUpper(field), strings.ReplaceAll(field, "_", " ")+" cannot be negative")
		}
	}
	if p.TargetCriteria != nil {
		if err := p.TargetCriteria.Validate(); err != nil {
			return nil, err
		}
	}
	start, end := c.StartDate, c.EndDate
	if p.StartDate != nil {
		start = p.StartDate
	}
	if p.EndDate != nil {
		end = p.EndDate
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, shared.NewDomainError("INVALID_DATE_RANGE", "End date must not be before start date")
	}

	changes := shared.Changes{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		changes.Track("name", c.Name, name)
		c.Name = name
	}
	if p.Description != nil {
		changes.Track("description", c.Description, *p.Description)
		c.Description = *p.Description
	}
	if p.Type != nil {
		changes.Track("type", string(c.Type), string(*p.Type))
		c.Type = *p.Type
	}
	if p.StartDate != nil {
		v := *p.StartDate
		changes.Track("start_date", formatTime(c.StartDate), formatTime(&v))
		c.StartDate = &v
	}
	if p.EndDate != nil {
		v := *p.EndDate
		changes.Track("end_date", formatTime(c.EndDate), formatTime(&v))
		c.EndDate = &v
	}
	money := func(field string, dst *decimal.Decimal, src *decimal.Decimal) {
		if src == nil {
			return
		}
		changes.Track(field, dst.String(), src.String())
		*dst = *src
	}
	money("budget", &c.Budget, p.Budget)
	money("actual_cost", &c.ActualCost, p.ActualCost)
	money("expected_revenue", &c.ExpectedRevenue, p.ExpectedRevenue)
	if p.TargetCriteria != nil {
		changes.Track("target_criteria", "", "*")
		c.TargetCriteria = *p.TargetCriteria
	}

	return changes, nil
}

// Schedule queues a draft campaign for a future start date
func (c *Campaign) Schedule(now time.Time) error {
	if c.Status != CampaignStatusDraft {
		return shared.NewInvalidStateError("Only draft campaigns can be scheduled")
	}
	if c.StartDate == nil || !c.StartDate.After(now) {
		return shared.NewDomainError("INVALID_START_DATE", "A future start date is required to schedule a campaign")
	}
	c.transition(CampaignStatusScheduled)
	return nil
}

// CanExecute reports whether the campaign may be launched
func (c *Campaign) CanExecute() error {
	if c.Status != CampaignStatusDraft && c.Status != CampaignStatusScheduled {
		return shared.NewInvalidStateError("Only draft or scheduled campaigns can be executed")
	}
	return nil
}

// Execute launches the campaign to the given number of recipients
func (c *Campaign) Execute(recipients int) error {
	if err := c.CanExecute(); err != nil {
		return err
	}
	if recipients == 0 {
		return ErrEmptyAudience
	}

	now := time.Now()
	c.LaunchedAt = &now
	if c.StartDate == nil {
		c.StartDate = &now
	}
	c.SentCount = recipients
	c.transition(CampaignStatusRunning)

	c.AddDomainEvent(&CampaignExecutedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCampaignExecuted, AggregateTypeCampaign, c.ID, c.TenantID),
		CampaignID:      c.ID,
		Name:            c.Name,
		Type:            c.Type,
		RecipientCount:  recipients,
	})
	return nil
}

// Pause suspends a running campaign
func (c *Campaign) Pause() error {
	if c.Status != CampaignStatusRunning {
		return shared.NewInvalidStateError("Only running campaigns can be paused")
	}
	c.transition(CampaignStatusPaused)
	return nil
}

// Resume restarts a paused campaign
func (c *Campaign) Resume() error {
	if c.Status != CampaignStatusPaused {
		return shared.NewInvalidStateError("Only paused campaigns can be resumed")
	}
	c.transition(CampaignStatusRunning)
	return nil
}

// Complete finishes a running or paused campaign
func (c *Campaign) Complete() error {
	if c.Status != CampaignStatusRunning && c.Status != CampaignStatusPaused {
		return shared.NewInvalidStateError("Only running or paused campaigns can be completed")
	}
	now := time.Now()
	c.CompletedAt = &now
	c.transition(CampaignStatusCompleted)
	return nil
}

// Cancel stops a campaign that has not finished
func (c *Campaign) Cancel() error {
	if c.Status == CampaignStatusCompleted || c.Status == CampaignStatusCancelled {
		return shared.NewInvalidStateError("Campaign is already " + string(c.Status))
	}
	c.transition(CampaignStatusCancelled)
	return nil
}

// IsDueToStart reports whether a scheduled campaign has reached its start date
func (c *Campaign) IsDueToStart(now time.Time) bool {
	return c.Status == CampaignStatusScheduled && c.StartDate != nil && !c.StartDate.After(now)
}

// IsDueToComplete reports whether an active campaign has passed its end date
func (c *Campaign) IsDueToComplete(now time.Time) bool {
	return (c.Status == CampaignStatusRunning || c.Status == CampaignStatusPaused) &&
		c.EndDate != nil && c.EndDate.Before(now)
}

// CheckTracking ensures the campaign accepts interactions
func (c *Campaign) CheckTracking() error {
	if !c.Status.AcceptsTracking() {
		return shared.NewInvalidStateError("Campaign does not accept tracking while " + string(c.Status))
	}
	return nil
}

// ApplyCounters adds tracked counter deltas to the in-memory campaign
func (c *Campaign) ApplyCounters(d CounterDelta) {
	c.OpenCount += d.Opens
	c.ClickCount += d.Clicks
	c.ConversionCount += d.Conversions
	c.ConversionValue = c.ConversionValue.Add(d.Value)
}

func (c *Campaign) transition(next CampaignStatus) {
	old := c.Status
	c.Status = next
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(newCampaignEvent(EventTypeCampaignStatusChanged, c, shared.Changes{"status": string(old)}))
}

// MarkDeleted records the deletion event
func (c *Campaign) MarkDeleted() error {
	if c.Status == CampaignStatusRunning {
		return shared.NewInvalidStateError("Running campaigns cannot be deleted")
	}
	c.AddDomainEvent(newCampaignEvent(EventTypeCampaignDeleted, c, nil))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
