package crm

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OpportunityStage represents the sales pipeline stage
type OpportunityStage string

const (
	StageProspecting   OpportunityStage = "prospecting"
	StageQualification OpportunityStage = "qualification"
	StageProposal      OpportunityStage = "proposal"
	StageNegotiation   OpportunityStage = "negotiation"
	StageClosedWon     OpportunityStage = "closed_won"
	StageClosedLost    OpportunityStage = "closed_lost"
)

// DefaultCurrency is used when an opportunity or quote has no currency
const DefaultCurrency = "USD"

var stageProbabilities = map[OpportunityStage]int{
	StageProspecting:   10,
	StageQualification: 20,
	StageProposal:      50,
	StageNegotiation:   75,
	StageClosedWon:     100,
	StageClosedLost:    0,
}

// AllStages returns the pipeline stages in order
func AllStages() []OpportunityStage {
	return []OpportunityStage{
		StageProspecting,
		StageQualification,
		StageProposal,
		StageNegotiation,
		StageClosedWon,
		StageClosedLost,
	}
}

// IsValid reports whether the stage is known
func (s OpportunityStage) IsValid() bool {
	_, ok := stageProbabilities[s]
	return ok
}

// IsClosed returns true for won and lost stages
func (s OpportunityStage) IsClosed() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// DefaultProbability returns the win probability associated with the stage
func (s OpportunityStage) DefaultProbability() int {
	return stageProbabilities[s]
}

// Opportunity is a potential deal with a customer
type Opportunity struct {
	shared.TenantAggregateRoot
	CustomerID        uuid.UUID
	ContactID         *uuid.UUID
	Name              string
	Description       string
	Stage             OpportunityStage
	Amount            decimal.Decimal
	Currency          string
	Probability       int
	ExpectedCloseDate *time.Time
	ActualCloseDate   *time.Time
	OwnerID           *uuid.UUID
	LossReason        string
}

// OpportunityPatch carries the optional fields of an opportunity update
type OpportunityPatch struct {
	Name              *string
	Description       *string
	ContactID         *uuid.UUID
	ClearContact      bool
	Amount            *decimal.Decimal
	Currency          *string
	Probability       *int
	ExpectedCloseDate *time.Time
	OwnerID           *uuid.UUID
	ClearOwner        bool
}

// NewOpportunity creates a new opportunity in the prospecting stage
func NewOpportunity(tenantID, customerID uuid.UUID, name string, amount decimal.Decimal) (*Opportunity, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Opportunity must belong to a customer")
	}
	if err := validateRequired("name", "Opportunity name", name, 200); err != nil {
		return nil, err
	}
	if err := validateNonNegative("amount", "Amount", amount); err != nil {
		return nil, err
	}

	opp := &Opportunity{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          customerID,
		Name:                strings.TrimSpace(name),
		Stage:               StageProspecting,
		Amount:              amount,
		Currency:            DefaultCurrency,
		Probability:         StageProspecting.DefaultProbability(),
	}

	opp.AddDomainEvent(newEntityEvent(EventTypeOpportunityCreated, AggregateTypeOpportunity, &opp.TenantAggregateRoot, nil))

	return opp, nil
}

// Apply sets the patched fields without bumping the version
func (o *Opportunity) Apply(p OpportunityPatch) error {
	_, err := o.apply(p)
	return err
}

// Update applies a patch and bumps the version
func (o *Opportunity) Update(p OpportunityPatch) error {
	changes, err := o.apply(p)
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	o.UpdatedAt = time.Now()
	o.IncrementVersion()

	o.AddDomainEvent(newEntityEvent(EventTypeOpportunityUpdated, AggregateTypeOpportunity, &o.TenantAggregateRoot, changes))

	return nil
}

func (o *Opportunity) apply(p OpportunityPatch) (shared.Changes, error) {
	if o.Stage.IsClosed() && (p.Amount != nil || p.Probability != nil || p.Currency != nil) {
		return nil, shared.NewInvalidStateError("Cannot change amount or probability of a closed opportunity")
	}
	if p.Name != nil {
		if err := validateRequired("name", "Opportunity name", *p.Name, 200); err != nil {
			return nil, err
		}
	}
	if p.Amount != nil {
		if err := validateNonNegative("amount", "Amount", *p.Amount); err != nil {
			return nil, err
		}
	}
	if p.Currency != nil {
		if err := validateCurrency(*p.Currency); err != nil {
			return nil, err
		}
	}
	if p.Probability != nil {
		if err := validateProbability(*p.Probability); err != nil {
			return nil, err
		}
	}

	changes := shared.Changes{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		changes.Track("name", o.Name, name)
		o.Name = name
	}
	if p.Description != nil {
		changes.Track("description", o.Description, *p.Description)
		o.Description = *p.Description
	}
	if p.ClearContact {
		changes.Track("contact_id", formatID(o.ContactID), "")
		o.ContactID = nil
	} else if p.ContactID != nil {
		id := *p.ContactID
		changes.Track("contact_id", formatID(o.ContactID), id.String())
		o.ContactID = &id
	}
	if p.Amount != nil {
		changes.Track("amount", o.Amount.String(), p.Amount.String())
		o.Amount = *p.Amount
	}
	if p.Currency != nil {
		changes.Track("currency", o.Currency, *p.Currency)
		o.Currency = *p.Currency
	}
	if p.Probability != nil {
		changes.Track("probability", o.Probability, *p.Probability)
		o.Probability = *p.Probability
	}
	if p.ExpectedCloseDate != nil {
		date := *p.ExpectedCloseDate
		changes.Track("expected_close_date", formatTime(o.ExpectedCloseDate), formatTime(&date))
		o.ExpectedCloseDate = &date
	}
	if p.ClearOwner {
		changes.Track("owner_id", formatID(o.OwnerID), "")
		o.OwnerID = nil
	} else if p.OwnerID != nil {
		id := *p.OwnerID
		changes.Track("owner_id", formatID(o.OwnerID), id.String())
		o.OwnerID = &id
	}

	return changes, nil
}

// MoveToStage changes the pipeline stage of an open opportunity.
// A nil probability applies the stage default.
func (o *Opportunity) MoveToStage(stage OpportunityStage, probability *int) error {
	if !stage.IsValid() {
		return shared.NewDomainError("INVALID_STAGE", "Unknown opportunity stage")
	}
	if o.Stage.IsClosed() {
		return shared.NewInvalidStateError("Cannot change stage of a closed opportunity")
	}
	if stage.IsClosed() {
		return shared.NewInvalidStateError("Use win or lose to close an opportunity")
	}
	if stage == o.Stage && probability == nil {
		return shared.NewInvalidStateError("Opportunity is already in stage " + string(stage))
	}

	p := stage.DefaultProbability()
	if probability != nil {
		if err := validateProbability(*probability); err != nil {
			return err
		}
		p = *probability
	}

	o.changeStage(stage, p)
	return nil
}

// Win closes the opportunity as won
func (o *Opportunity) Win() error {
	if o.Stage.IsClosed() {
		return shared.NewInvalidStateError("Opportunity is already closed")
	}

	now := time.Now()
	o.ActualCloseDate = &now
	o.LossReason = ""
	o.changeStage(StageClosedWon, 100)
	return nil
}

// Lose closes the opportunity as lost with a reason
func (o *Opportunity) Lose(reason string) error {
	if o.Stage.IsClosed() {
		return shared.NewInvalidStateError("Opportunity is already closed")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError("INVALID_LOSS_REASON", "Loss reason is required")
	}

	now := time.Now()
	o.ActualCloseDate = &now
	o.LossReason = reason
	o.changeStage(StageClosedLost, 0)
	return nil
}

// Reopen moves a lost opportunity back to prospecting
func (o *Opportunity) Reopen() error {
	if o.Stage != StageClosedLost {
		return shared.NewInvalidStateError("Only lost opportunities can be reopened")
	}

	o.ActualCloseDate = nil
	o.LossReason = ""
	o.changeStage(StageProspecting, StageProspecting.DefaultProbability())
	return nil
}

func (o *Opportunity) changeStage(stage OpportunityStage, probability int) {
	old := o.Stage
	o.Stage = stage
	o.Probability = probability
	o.UpdatedAt = time.Now()
	o.IncrementVersion()

	o.AddDomainEvent(&OpportunityStageChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOpportunityStatusChanged, AggregateTypeOpportunity, o.ID, o.TenantID),
		OpportunityID:   o.ID,
		CustomerID:      o.CustomerID,
		OldStage:        old,
		NewStage:        stage,
		Amount:          o.Amount.String(),
	})
}

// WeightedAmount returns amount x probability / 100
func (o *Opportunity) WeightedAmount() decimal.Decimal {
	return WeightedAmount(o.Amount, o.Probability)
}

// MarkDeleted records the deletion event
func (o *Opportunity) MarkDeleted() {
	o.AddDomainEvent(newEntityEvent(EventTypeOpportunityDeleted, AggregateTypeOpportunity, &o.TenantAggregateRoot, nil))
}

// WeightedAmount weights an amount by a percentage probability, rounded to 2 places
func WeightedAmount(amount decimal.Decimal, probability int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(probability))).Div(decimal.NewFromInt(100)).Round(2)
}

// StageSummary aggregates the opportunities of one stage
type StageSummary struct {
	Stage          OpportunityStage
	Count          int64
	TotalAmount    decimal.Decimal
	WeightedAmount decimal.Decimal
}

// Pipeline is the per-stage breakdown of a tenant's opportunities
type Pipeline struct {
	Stages         []StageSummary
	OpenCount      int64
	OpenAmount     decimal.Decimal
	WeightedAmount decimal.Decimal
	WonAmount      decimal.Decimal
	LostAmount     decimal.Decimal
}

// BuildPipeline folds opportunities into a summary covering every stage
func BuildPipeline(opps []Opportunity) Pipeline {
	byStage := make(map[OpportunityStage]*StageSummary)
	for _, stage := range AllStages() {
		byStage[stage] = &StageSummary{Stage: stage, TotalAmount: decimal.Zero, WeightedAmount: decimal.Zero}
	}

	for i := range opps {
		s, ok := byStage[opps[i].Stage]
		if !ok {
			continue
		}
		s.Count++
		s.TotalAmount = s.TotalAmount.Add(opps[i].Amount)
		s.WeightedAmount = s.WeightedAmount.Add(opps[i].WeightedAmount())
	}

	p := Pipeline{
		OpenAmount:     decimal.Zero,
		WeightedAmount: decimal.Zero,
		WonAmount:      decimal.Zero,
		LostAmount:     decimal.Zero,
	}
	for _, stage := range AllStages() {
		s := *byStage[stage]
		p.Stages = append(p.Stages, s)
		switch stage {
		case StageClosedWon:
			p.WonAmount = s.TotalAmount
		case StageClosedLost:
			p.LostAmount = s.TotalAmount
		default:
			p.OpenCount += s.Count
			p.OpenAmount = p.OpenAmount.Add(s.TotalAmount)
			p.WeightedAmount = p.WeightedAmount.Add(s.WeightedAmount)
		}
	}
	return p
}

func validateProbability(p int) error {
	if p < 0 || p > 100 {
		return shared.NewDomainError("INVALID_PROBABILITY", "Probability must be between 0 and 100")
	}
	return nil
}
