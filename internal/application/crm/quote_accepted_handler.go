package crm

import (
	"context"
	"fmt"

	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// QuoteAcceptedHandler wins the opportunity linked to an accepted quote
type QuoteAcceptedHandler struct {
	publisher
	opportunityRepo crm.OpportunityRepository
	logger          *zap.Logger
}

// NewQuoteAcceptedHandler creates a new QuoteAcceptedHandler
func NewQuoteAcceptedHandler(opportunityRepo crm.OpportunityRepository, logger *zap.Logger) *QuoteAcceptedHandler {
	return &QuoteAcceptedHandler{
		opportunityRepo: opportunityRepo,
		logger:          logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *QuoteAcceptedHandler) EventTypes() []string {
	return []string{crm.EventTypeQuoteStatusChanged}
}

// Handle processes a QuoteStatusChangedEvent
func (h *QuoteAcceptedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*crm.QuoteStatusChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			crm.EventTypeQuoteStatusChanged, event.EventType())
	}
	if !changed.IsAcceptance() || changed.OpportunityID == nil {
		return nil
	}

	opp, err := h.opportunityRepo.FindByIDForTenant(ctx, event.TenantID(), *changed.OpportunityID)
	if err != nil {
		return fmt.Errorf("load opportunity for quote %s: %w", changed.QuoteNumber, err)
	}
	if opp.Stage.IsClosed() {
		h.logger.Info("opportunity already closed, quote acceptance ignored",
			zap.String("tenant_id", event.TenantID().String()),
			zap.String("opportunity_id", opp.ID.String()),
			zap.String("stage", string(opp.Stage)),
			zap.String("quote_number", changed.QuoteNumber),
		)
		return nil
	}

	if err := opp.Win(); err != nil {
		return err
	}
	if err := h.opportunityRepo.SaveWithLock(ctx, opp); err != nil {
		return fmt.Errorf("win opportunity %s: %w", opp.ID, err)
	}
	h.publish(ctx, opp)

	h.logger.Info("opportunity won by accepted quote",
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("opportunity_id", opp.ID.String()),
		zap.String("quote_number", changed.QuoteNumber),
	)
	return nil
}

// Ensure QuoteAcceptedHandler implements shared.EventHandler
var _ shared.EventHandler = (*QuoteAcceptedHandler)(nil)
