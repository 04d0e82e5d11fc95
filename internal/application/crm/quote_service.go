package crm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// sweepBatchSize bounds how many rows a background sweep loads per query
const sweepBatchSize = 200

// QuoteService handles quote-related business operations
type QuoteService struct {
	publisher
	quoteRepo       crm.QuoteRepository
	customerRepo    crm.CustomerRepository
	opportunityRepo crm.OpportunityRepository
	businessMetrics *telemetry.BusinessMetrics
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(
	quoteRepo crm.QuoteRepository,
	customerRepo crm.CustomerRepository,
	opportunityRepo crm.OpportunityRepository,
) *QuoteService {
	return &QuoteService{
		quoteRepo:       quoteRepo,
		customerRepo:    customerRepo,
		opportunityRepo: opportunityRepo,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *QuoteService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create creates a draft quote with its items and derived totals
func (s *QuoteService) Create(ctx context.Context, tenantID uuid.UUID, req CreateQuoteRequest) (*QuoteResponse, error) {
	if _, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, req.CustomerID); err != nil {
		return nil, err
	}
	if err := s.checkOpportunity(ctx, tenantID, req.CustomerID, req.OpportunityID); err != nil {
		return nil, err
	}

	items, err := buildQuoteItems(req.Items)
	if err != nil {
		return nil, err
	}

	quote, err := crm.NewQuote(tenantID, req.CustomerID, req.Title)
	if err != nil {
		return nil, err
	}
	if err := quote.Apply(crm.QuotePatch{
		OpportunityID: req.OpportunityID,
		ValidUntil:    req.ValidUntil,
		Currency:      optional(req.Currency),
		TaxRate:       req.TaxRate,
		Terms:         optional(req.Terms),
		Notes:         optional(req.Notes),
		Items:         items,
	}); err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		quote.SetCreatedBy(*req.CreatedBy)
	}

	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		return nil, err
	}
	s.publish(ctx, quote)

	response := ToQuoteResponse(quote)
	return &response, nil
}

// GetByID retrieves a quote with its items
func (s *QuoteService) GetByID(ctx context.Context, tenantID, quoteID uuid.UUID) (*QuoteResponse, error) {
	quote, err := s.quoteRepo.FindByIDForTenant(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}

	response := ToQuoteResponse(quote)
	return &response, nil
}

// List retrieves a list of quotes with filtering and pagination
func (s *QuoteService) List(ctx context.Context, tenantID uuid.UUID, filter QuoteListFilter) ([]QuoteResponse, int64, error) {
	domainFilter := filter.Filter("created_at")
	common.PutString(domainFilter, "customer_id", filter.CustomerID)
	common.PutString(domainFilter, "opportunity_id", filter.OpportunityID)
	common.PutString(domainFilter, "status", filter.Status)

	quotes, err := s.quoteRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.quoteRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToQuoteResponses(quotes), total, nil
}

// Update edits a draft quote; a non-nil item list replaces every line
func (s *QuoteService) Update(ctx context.Context, tenantID, quoteID uuid.UUID, req UpdateQuoteRequest) (*QuoteResponse, error) {
	items, err := buildQuoteItems(req.Items)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, tenantID, quoteID, func(q *crm.Quote) error {
		if !req.ClearOpportunity {
			if err := s.checkOpportunity(ctx, tenantID, q.CustomerID, req.OpportunityID); err != nil {
				return err
			}
		}
		return q.Update(crm.QuotePatch{
			Title:            req.Title,
			OpportunityID:    req.OpportunityID,
			ClearOpportunity: req.ClearOpportunity,
			ValidUntil:       req.ValidUntil,
			Currency:         req.Currency,
			TaxRate:          req.TaxRate,
			Terms:            req.Terms,
			Notes:            req.Notes,
			Items:            items,
		})
	})
}

// Send moves a draft quote to sent
func (s *QuoteService) Send(ctx context.Context, tenantID, quoteID uuid.UUID) (*QuoteResponse, error) {
	return s.transition(ctx, tenantID, quoteID, (*crm.Quote).Send)
}

// Accept accepts a sent quote. A linked opportunity is won by QuoteAcceptedHandler.
func (s *QuoteService) Accept(ctx context.Context, tenantID, quoteID uuid.UUID) (*QuoteResponse, error) {
	return s.transition(ctx, tenantID, quoteID, (*crm.Quote).Accept)
}

// Reject rejects a sent quote
func (s *QuoteService) Reject(ctx context.Context, tenantID, quoteID uuid.UUID, req RejectQuoteRequest) (*QuoteResponse, error) {
	return s.transition(ctx, tenantID, quoteID, func(q *crm.Quote) error {
		return q.Reject(req.Reason)
	})
}

// Expire expires a draft or sent quote
func (s *QuoteService) Expire(ctx context.Context, tenantID, quoteID uuid.UUID) (*QuoteResponse, error) {
	return s.transition(ctx, tenantID, quoteID, (*crm.Quote).Expire)
}

// Delete soft-deletes a quote
func (s *QuoteService) Delete(ctx context.Context, tenantID, quoteID uuid.UUID) error {
	quote, err := s.quoteRepo.FindByIDForTenant(ctx, tenantID, quoteID)
	if err != nil {
		return err
	}

	quote.MarkDeleted()
	if err := s.quoteRepo.DeleteForTenant(ctx, tenantID, quoteID); err != nil {
		return err
	}
	s.publish(ctx, quote)
	return nil
}

// ExpireOverdue expires every draft or sent quote whose validity ended before now.
// A quote that fails to save is logged and skipped; it is retried by the next sweep.
func (s *QuoteService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	logger := zap.L().Named("application.crm")
	expired := 0
	skipped := make(map[uuid.UUID]struct{})

	for {
		quotes, err := s.quoteRepo.FindExpirable(ctx, now, sweepBatchSize)
		if err != nil {
			return expired, err
		}

		progressed := false
		for i := range quotes {
			quote := &quotes[i]
			if _, seen := skipped[quote.ID]; seen {
				continue
			}
			if err := quote.Expire(); err == nil {
				err = s.quoteRepo.SaveWithLock(ctx, quote)
				if err == nil {
					s.publish(ctx, quote)
					s.recordTransition(ctx, quote)
					expired++
					progressed = true
					continue
				}
				logger.Warn("failed to expire quote",
					zap.String("tenant_id", quote.TenantID.String()),
					zap.String("quote_id", quote.ID.String()),
					zap.Error(err),
				)
			}
			skipped[quote.ID] = struct{}{}
		}

		if len(quotes) < sweepBatchSize || !progressed {
			return expired, nil
		}
	}
}

func (s *QuoteService) transition(ctx context.Context, tenantID, quoteID uuid.UUID, fn func(*crm.Quote) error) (*QuoteResponse, error) {
	response, err := s.mutate(ctx, tenantID, quoteID, fn)
	if err != nil {
		return nil, err
	}
	if s.businessMetrics != nil {
		s.businessMetrics.RecordQuoteTransition(ctx, tenantID, response.Status, response.Total)
	}
	return response, nil
}

func (s *QuoteService) mutate(ctx context.Context, tenantID, quoteID uuid.UUID, fn func(*crm.Quote) error) (*QuoteResponse, error) {
	quote, err := s.quoteRepo.FindByIDForTenant(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	if err := fn(quote); err != nil {
		return nil, err
	}
	if !unchanged(quote) {
		if err := s.quoteRepo.SaveWithLock(ctx, quote); err != nil {
			return nil, err
		}
		s.publish(ctx, quote)
	}

	response := ToQuoteResponse(quote)
	return &response, nil
}

func (s *QuoteService) recordTransition(ctx context.Context, quote *crm.Quote) {
	if s.businessMetrics != nil {
		s.businessMetrics.RecordQuoteTransition(ctx, quote.TenantID, string(quote.Status), quote.Total)
	}
}

// checkOpportunity verifies that a referenced opportunity belongs to the customer
func (s *QuoteService) checkOpportunity(ctx context.Context, tenantID, customerID uuid.UUID, oppID *uuid.UUID) error {
	if oppID == nil {
		return nil
	}
	opp, err := s.opportunityRepo.FindByIDForTenant(ctx, tenantID, *oppID)
	if err != nil {
		return err
	}
	if opp.CustomerID != customerID {
		return shared.NewDomainError("INVALID_OPPORTUNITY", "Opportunity does not belong to the quote's customer")
	}
	return nil
}
