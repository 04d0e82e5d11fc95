package marketing

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
)

// TrackingService records opens, clicks and conversions against campaign recipients
type TrackingService struct {
	publisher
	campaignRepo    marketing.CampaignRepository
	recipientRepo   marketing.RecipientRepository
	interactionRepo marketing.InteractionRepository
	txManager       shared.TransactionManager
	businessMetrics *telemetry.BusinessMetrics
	now             func() time.Time
}

// NewTrackingService creates a new TrackingService
func NewTrackingService(
	campaignRepo marketing.CampaignRepository,
	recipientRepo marketing.RecipientRepository,
	interactionRepo marketing.InteractionRepository,
	txManager shared.TransactionManager,
) *TrackingService {
	return &TrackingService{
		campaignRepo:    campaignRepo,
		recipientRepo:   recipientRepo,
		interactionRepo: interactionRepo,
		txManager:       txManager,
		now:             time.Now,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *TrackingService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Track records an authenticated interaction for a recipient of the campaign
func (s *TrackingService) Track(ctx context.Context, tenantID, campaignID uuid.UUID, req TrackInteractionRequest) (*TrackResult, error) {
	recipient, err := s.recipientRepo.FindByIDForTenant(ctx, tenantID, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient.CampaignID != campaignID {
		return nil, shared.NewDomainError("INVALID_RECIPIENT", "Recipient does not belong to this campaign")
	}

	value := decimal.Zero
	if req.Value != nil {
		value = *req.Value
	}
	return s.record(ctx, recipient, marketing.InteractionType(req.Type), req.URL, value, req.UserAgent, req.IPAddress)
}

// TrackOpen records an open from a public tracking pixel.
// The tenant is resolved from the recipient.
func (s *TrackingService) TrackOpen(ctx context.Context, recipientID uuid.UUID, userAgent, ipAddress string) error {
	recipient, err := s.recipientRepo.FindByID(ctx, recipientID)
	if err != nil {
		return err
	}
	_, err = s.record(ctx, recipient, marketing.InteractionOpen, "", decimal.Zero, userAgent, ipAddress)
	return err
}

// TrackClick records a click from a public redirect link. The validated
// target is returned only once the recipient resolves; a failure to record
// the click after that is returned alongside the target.
func (s *TrackingService) TrackClick(ctx context.Context, recipientID uuid.UUID, target, userAgent, ipAddress string) (string, error) {
	if err := marketing.ValidateRedirectURL(target); err != nil {
		return "", err
	}
	recipient, err := s.recipientRepo.FindByID(ctx, recipientID)
	if err != nil {
		return "", err
	}
	if _, err := s.record(ctx, recipient, marketing.InteractionClick, target, decimal.Zero, userAgent, ipAddress); err != nil {
		return target, err
	}
	return target, nil
}

// record stores the interaction, the recipient timestamps and the counter
// increments in one transaction
func (s *TrackingService) record(ctx context.Context, recipient *marketing.Recipient, interactionType marketing.InteractionType, rawURL string, value decimal.Decimal, userAgent, ipAddress string) (*TrackResult, error) {
	campaign, err := s.campaignRepo.FindByIDForTenant(ctx, recipient.TenantID, recipient.CampaignID)
	if err != nil {
		return nil, err
	}
	if err := campaign.CheckTracking(); err != nil {
		return nil, err
	}

	now := s.now()
	interaction, err := marketing.NewInteraction(recipient, interactionType, rawURL, value, now)
	if err != nil {
		return nil, err
	}
	interaction.UserAgent = truncate(userAgent, 500)
	interaction.IPAddress = truncate(ipAddress, 45)

	var delta marketing.CounterDelta
	err = s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		// first-of-kind is decided on the locked row so concurrent hits count once
		locked, err := s.recipientRepo.FindByIDForUpdate(txCtx, recipient.TenantID, recipient.ID)
		if err != nil {
			return err
		}
		delta = locked.Record(interactionType, interaction.Value, now)

		if err := s.interactionRepo.Save(txCtx, interaction); err != nil {
			return err
		}
		if delta.Opens+delta.Clicks+delta.Conversions > 0 {
			if err := s.recipientRepo.Save(txCtx, locked); err != nil {
				return err
			}
		}
		if delta.IsZero() {
			return nil
		}
		return s.campaignRepo.IncrementCounters(txCtx, campaign.TenantID, campaign.ID, delta)
	})
	if err != nil {
		return nil, err
	}

	event := marketing.NewInteractionRecordedEvent(interaction, delta)
	s.publishEvents(ctx, event)
	if s.businessMetrics != nil {
		s.businessMetrics.RecordCampaignInteraction(ctx, campaign.TenantID, string(interactionType), event.FirstOfKind)
	}

	return &TrackResult{
		Interaction: ToInteractionResponse(interaction),
		FirstOfKind: event.FirstOfKind,
	}, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
