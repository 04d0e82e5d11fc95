package crm

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
)

// OpportunityService handles opportunity-related business operations
type OpportunityService struct {
	publisher
	opportunityRepo crm.OpportunityRepository
	customerRepo    crm.CustomerRepository
	contactRepo     crm.ContactRepository
	businessMetrics *telemetry.BusinessMetrics
}

// NewOpportunityService creates a new OpportunityService
func NewOpportunityService(
	opportunityRepo crm.OpportunityRepository,
	customerRepo crm.CustomerRepository,
	contactRepo crm.ContactRepository,
) *OpportunityService {
	return &OpportunityService{
		opportunityRepo: opportunityRepo,
		customerRepo:    customerRepo,
		contactRepo:     contactRepo,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *OpportunityService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create creates an opportunity in the prospecting stage
func (s *OpportunityService) Create(ctx context.Context, tenantID uuid.UUID, req CreateOpportunityRequest) (*OpportunityResponse, error) {
	if _, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, req.CustomerID); err != nil {
		return nil, err
	}
	if err := s.checkContact(ctx, tenantID, req.CustomerID, req.ContactID); err != nil {
		return nil, err
	}

	opp, err := crm.NewOpportunity(tenantID, req.CustomerID, req.Name, req.Amount)
	if err != nil {
		return nil, err
	}
	if err := opp.Apply(crm.OpportunityPatch{
		Description:       optional(req.Description),
		ContactID:         req.ContactID,
		Currency:          optional(req.Currency),
		Probability:       req.Probability,
		ExpectedCloseDate: req.ExpectedCloseDate,
		OwnerID:           req.OwnerID,
	}); err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		opp.SetCreatedBy(*req.CreatedBy)
	}

	if err := s.opportunityRepo.Save(ctx, opp); err != nil {
		return nil, err
	}
	s.publish(ctx, opp)

	response := ToOpportunityResponse(opp)
	return &response, nil
}

// GetByID retrieves an opportunity by ID
func (s *OpportunityService) GetByID(ctx context.Context, tenantID, oppID uuid.UUID) (*OpportunityResponse, error) {
	opp, err := s.opportunityRepo.FindByIDForTenant(ctx, tenantID, oppID)
	if err != nil {
		return nil, err
	}

	response := ToOpportunityResponse(opp)
	return &response, nil
}

// List retrieves a list of opportunities with filtering and pagination
func (s *OpportunityService) List(ctx context.Context, tenantID uuid.UUID, filter OpportunityListFilter) ([]OpportunityResponse, int64, error) {
	domainFilter := filter.Filter("created_at")
	common.PutString(domainFilter, "customer_id", filter.CustomerID)
	common.PutString(domainFilter, "contact_id", filter.ContactID)
	common.PutString(domainFilter, "stage", filter.Stage)
	common.PutString(domainFilter, "owner_id", filter.OwnerID)
	common.PutBool(domainFilter, "is_open", filter.IsOpen)

	opps, err := s.opportunityRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.opportunityRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToOpportunityResponses(opps), total, nil
}

// Pipeline summarises every stage of the tenant's opportunities
func (s *OpportunityService) Pipeline(ctx context.Context, tenantID uuid.UUID, filter PipelineFilter) (*PipelineResponse, error) {
	domainFilter := shared.DefaultFilter()
	common.PutString(domainFilter, "owner_id", filter.OwnerID)
	common.PutString(domainFilter, "customer_id", filter.CustomerID)

	opps, err := s.opportunityRepo.FindForPipeline(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}

	response := ToPipelineResponse(crm.BuildPipeline(opps))
	return &response, nil
}

// Update updates an opportunity
func (s *OpportunityService) Update(ctx context.Context, tenantID, oppID uuid.UUID, req UpdateOpportunityRequest) (*OpportunityResponse, error) {
	return s.mutate(ctx, tenantID, oppID, func(o *crm.Opportunity) error {
		if !req.ClearContact {
			if err := s.checkContact(ctx, tenantID, o.CustomerID, req.ContactID); err != nil {
				return err
			}
		}
		return o.Update(crm.OpportunityPatch{
			Name:              req.Name,
			Description:       req.Description,
			ContactID:         req.ContactID,
			ClearContact:      req.ClearContact,
			Amount:            req.Amount,
			Currency:          req.Currency,
			Probability:       req.Probability,
			ExpectedCloseDate: req.ExpectedCloseDate,
			OwnerID:           req.OwnerID,
			ClearOwner:        req.ClearOwner,
		})
	})
}

// MoveStage moves an opportunity through the pipeline.
// The closed stages route to Win and Lose so their rules apply.
func (s *OpportunityService) MoveStage(ctx context.Context, tenantID, oppID uuid.UUID, req MoveStageRequest) (*OpportunityResponse, error) {
	switch crm.OpportunityStage(req.Stage) {
	case crm.StageClosedWon:
		return s.Win(ctx, tenantID, oppID)
	case crm.StageClosedLost:
		return s.Lose(ctx, tenantID, oppID, LoseOpportunityRequest{Reason: req.Reason})
	}
	return s.mutate(ctx, tenantID, oppID, func(o *crm.Opportunity) error {
		return o.MoveToStage(crm.OpportunityStage(req.Stage), req.Probability)
	})
}

// Win closes an opportunity as won
func (s *OpportunityService) Win(ctx context.Context, tenantID, oppID uuid.UUID) (*OpportunityResponse, error) {
	response, err := s.mutate(ctx, tenantID, oppID, (*crm.Opportunity).Win)
	if err == nil {
		s.recordClosed(ctx, tenantID, true, response.Amount)
	}
	return response, err
}

// Lose closes an opportunity as lost
func (s *OpportunityService) Lose(ctx context.Context, tenantID, oppID uuid.UUID, req LoseOpportunityRequest) (*OpportunityResponse, error) {
	response, err := s.mutate(ctx, tenantID, oppID, func(o *crm.Opportunity) error {
		return o.Lose(req.Reason)
	})
	if err == nil {
		s.recordClosed(ctx, tenantID, false, response.Amount)
	}
	return response, err
}

// Reopen moves a lost opportunity back to prospecting
func (s *OpportunityService) Reopen(ctx context.Context, tenantID, oppID uuid.UUID) (*OpportunityResponse, error) {
	return s.mutate(ctx, tenantID, oppID, (*crm.Opportunity).Reopen)
}

// Delete soft-deletes an opportunity
func (s *OpportunityService) Delete(ctx context.Context, tenantID, oppID uuid.UUID) error {
	opp, err := s.opportunityRepo.FindByIDForTenant(ctx, tenantID, oppID)
	if err != nil {
		return err
	}

	opp.MarkDeleted()
	if err := s.opportunityRepo.DeleteForTenant(ctx, tenantID, oppID); err != nil {
		return err
	}
	s.publish(ctx, opp)
	return nil
}

func (s *OpportunityService) mutate(ctx context.Context, tenantID, oppID uuid.UUID, fn func(*crm.Opportunity) error) (*OpportunityResponse, error) {
	opp, err := s.opportunityRepo.FindByIDForTenant(ctx, tenantID, oppID)
	if err != nil {
		return nil, err
	}
	if err := fn(opp); err != nil {
		return nil, err
	}
	if !unchanged(opp) {
		if err := s.opportunityRepo.SaveWithLock(ctx, opp); err != nil {
			return nil, err
		}
		s.publish(ctx, opp)
	}

	response := ToOpportunityResponse(opp)
	return &response, nil
}

// checkContact verifies that a referenced contact belongs to the customer
func (s *OpportunityService) checkContact(ctx context.Context, tenantID, customerID uuid.UUID, contactID *uuid.UUID) error {
	if contactID == nil {
		return nil
	}
	contact, err := s.contactRepo.FindByIDForTenant(ctx, tenantID, *contactID)
	if err != nil {
		return err
	}
	if contact.CustomerID != customerID {
		return shared.NewDomainError("INVALID_CONTACT", "Contact does not belong to the opportunity's customer")
	}
	return nil
}

func (s *OpportunityService) recordClosed(ctx context.Context, tenantID uuid.UUID, won bool, amount decimal.Decimal) {
	if s.businessMetrics != nil {
		s.businessMetrics.RecordOpportunityClosed(ctx, tenantID, won, amount)
	}
}
