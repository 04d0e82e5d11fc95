package marketing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// sweepBatchSize bounds how many campaigns the lifecycle sweep loads per query
const sweepBatchSize = 100

// CampaignService handles campaign management, execution and analytics
type CampaignService struct {
	publisher
	campaignRepo    marketing.CampaignRepository
	recipientRepo   marketing.RecipientRepository
	interactionRepo marketing.InteractionRepository
	customerRepo    crm.CustomerRepository
	txManager       shared.TransactionManager
	now             func() time.Time
}

// NewCampaignService creates a new CampaignService
func NewCampaignService(
	campaignRepo marketing.CampaignRepository,
	recipientRepo marketing.RecipientRepository,
	interactionRepo marketing.InteractionRepository,
	customerRepo crm.CustomerRepository,
	txManager shared.TransactionManager,
) *CampaignService {
	return &CampaignService{
		campaignRepo:    campaignRepo,
		recipientRepo:   recipientRepo,
		interactionRepo: interactionRepo,
		customerRepo:    customerRepo,
		txManager:       txManager,
		now:             time.Now,
	}
}

// Create creates a draft campaign
func (s *CampaignService) Create(ctx context.Context, tenantID uuid.UUID, req CreateCampaignRequest) (*CampaignResponse, error) {
	campaign, err := marketing.NewCampaign(tenantID, req.Name, marketing.CampaignType(req.Type))
	if err != nil {
		return nil, err
	}
	if err := campaign.Apply(req.patch()); err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		campaign.SetCreatedBy(*req.CreatedBy)
	}

	if err := s.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, err
	}
	s.publish(ctx, campaign)

	response := ToCampaignResponse(campaign)
	return &response, nil
}

// GetByID retrieves a campaign by ID
func (s *CampaignService) GetByID(ctx context.Context, tenantID, campaignID uuid.UUID) (*CampaignResponse, error) {
	campaign, err := s.campaignRepo.FindByIDForTenant(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}
	response := ToCampaignResponse(campaign)
	return &response, nil
}

// List retrieves campaigns with filtering and pagination
func (s *CampaignService) List(ctx context.Context, tenantID uuid.UUID, filter CampaignListFilter) ([]CampaignResponse, int64, error) {
	domainFilter := filter.Filter("created_at")
	common.PutString(domainFilter, "status", filter.Status)
	common.PutString(domainFilter, "type", filter.Type)

	campaigns, err := s.campaignRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.campaignRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToCampaignResponses(campaigns), total, nil
}

// Update edits a draft, scheduled or paused campaign
func (s *CampaignService) Update(ctx context.Context, tenantID, campaignID uuid.UUID, req UpdateCampaignRequest) (*CampaignResponse, error) {
	campaign, err := s.campaignRepo.FindByIDForTenant(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}
	if err := campaign.Update(req.patch()); err != nil {
		return nil, err
	}
	return s.save(ctx, campaign)
}

// Delete soft-deletes a campaign that is not running
func (s *CampaignService) Delete(ctx context.Context, tenantID, campaignID uuid.UUID) error {
	campaign, err := s.campaignRepo.FindByIDForTenant(ctx, tenantID, campaignID)
	if err != nil {
		return err
	}
	if err := campaign.MarkDeleted(); err != nil {
		return err
	}
	if err := s.campaignRepo.DeleteForTenant(ctx, tenantID, campaignID); err != nil {
		return err
	}
	s.publish(ctx, campaign)
	return nil
}

// Schedule queues a draft campaign for its future start date
func (s *CampaignService) Schedule(ctx context.Context, tenantID, campaignID uuid.UUID) (*CampaignResponse, error) {
	now := s.now()
	return s.transition(ctx, tenantID, campaignID, func(c *marketing.Campaign) error { return c.Schedule(now) })
}

// Pause suspends a running campaign
func (s *CampaignService) Pause(ctx context.Context, tenantID, campaignID uuid.UUID) (*CampaignResponse, error) {
	return s.transition(ctx, tenantID, campaignID, (*marketing.Campaign).Pause)
}

// Resume restarts a paused campaign
func (s *CampaignService) Resume(ctx context.Context, tenantID, campaignID uuid.UUID) (*CampaignResponse, error) {
	return s.transition(ctx, tenantID, campaignID, (*marketing.Campaign).Resume)
}

// Complete finishes a running or paused campaign
func (s *CampaignService) Complete(ctx context.Context, tenantID, campaignID uuid.UUID) (*CampaignResponse, error) {
	return s.transition(ctx, tenantID, campaignID, (*marketing.Campaign).Complete)
}

// Cancel stops a campaign that has not finished
func (s *CampaignService) Cancel(ctx context.Context, tenantID, campaignID uuid.UUID) (*CampaignResponse, error) {
	return s.transition(ctx, tenantID, campaignID, (*marketing.Campaign).Cancel)
}

func (s *CampaignService) transition(ctx context.Context, tenantID, campaignID uuid.UUID, fn func(*marketing.Campaign) error) (*CampaignResponse, error) {
	campaign, err := s.campaignRepo.FindByIDForTenant(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}
	if err := fn(campaign); err != nil {
		return nil, err
	}
	return s.save(ctx, campaign)
}

func (s *CampaignService) save(ctx context.Context, campaign *marketing.Campaign) (*CampaignResponse, error) {
	if !unchanged(campaign) {
		if err := s.campaignRepo.SaveWithLock(ctx, campaign); err != nil {
			return nil, err
		}
		s.publish(ctx, campaign)
	}
	response := ToCampaignResponse(campaign)
	return &response, nil
}

// Execute launches a draft or scheduled campaign. The audience is resolved
// from the target criteria and the recipients and counters are stored in
// one transaction.
func (s *CampaignService) Execute(ctx context.Context, tenantID, campaignID uuid.UUID) (*ExecuteCampaignResponse, error) {
	campaign, err := s.campaignRepo.FindByIDForTenant(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}
	count, err := s.launch(ctx, campaign)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, campaign)

	return &ExecuteCampaignResponse{
		Campaign:       ToCampaignResponse(campaign),
		RecipientCount: count,
	}, nil
}

func (s *CampaignService) launch(ctx context.Context, campaign *marketing.Campaign) (int, error) {
	if err := campaign.CanExecute(); err != nil {
		return 0, err
	}

	var recipients []*marketing.Recipient
	err := s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		customers, err := s.customerRepo.FindSegment(txCtx, campaign.TenantID, campaign.TargetCriteria.Segment(campaign.Type))
		if err != nil {
			return err
		}
		if err := campaign.Execute(len(customers)); err != nil {
			return err
		}

		sentAt := *campaign.LaunchedAt
		recipients = make([]*marketing.Recipient, len(customers))
		for i := range customers {
			recipients[i] = marketing.NewRecipient(campaign.TenantID, campaign.ID, customers[i].ID, customers[i].Email, sentAt)
		}
		if err := s.recipientRepo.SaveBatch(txCtx, recipients); err != nil {
			return err
		}
		return s.campaignRepo.SaveWithLock(txCtx, campaign)
	})
	if err != nil {
		return 0, err
	}
	return len(recipients), nil
}

// Recipients lists the recipients of a campaign
func (s *CampaignService) Recipients(ctx context.Context, tenantID, campaignID uuid.UUID, filter RecipientListFilter) ([]RecipientResponse, int64, error) {
	if _, err := s.campaignRepo.FindByIDForTenant(ctx, tenantID, campaignID); err != nil {
		return nil, 0, err
	}

	domainFilter := filter.Filter("sent_at")
	common.PutString(domainFilter, "status", filter.Status)

	recipients, err := s.recipientRepo.FindByCampaign(ctx, tenantID, campaignID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.recipientRepo.CountByCampaign(ctx, tenantID, campaignID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]RecipientResponse, len(recipients))
	for i := range recipients {
		responses[i] = ToRecipientResponse(&recipients[i])
	}
	return responses, total, nil
}

// Interactions lists the tracked interactions of a campaign
func (s *CampaignService) Interactions(ctx context.Context, tenantID, campaignID uuid.UUID, filter InteractionListFilter) ([]InteractionResponse, int64, error) {
	if _, err := s.campaignRepo.FindByIDForTenant(ctx, tenantID, campaignID); err != nil {
		return nil, 0, err
	}

	domainFilter := filter.Filter("occurred_at")
	common.PutString(domainFilter, "type", filter.Type)
	common.PutString(domainFilter, "recipient_id", filter.RecipientID)

	interactions, err := s.interactionRepo.FindByCampaign(ctx, tenantID, campaignID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.interactionRepo.CountByCampaign(ctx, tenantID, campaignID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]InteractionResponse, len(interactions))
	for i := range interactions {
		responses[i] = ToInteractionResponse(&interactions[i])
	}
	return responses, total, nil
}

// Analytics computes the performance figures of a campaign
func (s *CampaignService) Analytics(ctx context.Context, tenantID, campaignID uuid.UUID) (*AnalyticsResponse, error) {
	campaign, err := s.campaignRepo.FindByIDForTenant(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}
	response := ToAnalyticsResponse(campaign.ID, marketing.ComputeAnalytics(campaign))
	return &response, nil
}

// LifecycleResult counts what one lifecycle sweep changed
type LifecycleResult struct {
	Started   int
	Completed int
}

// RunLifecycle launches scheduled campaigns whose start date has passed and
// completes active campaigns whose end date has passed. Failures are logged
// per campaign and the row is retried on the next run.
func (s *CampaignService) RunLifecycle(ctx context.Context, now time.Time) (LifecycleResult, error) {
	logger := zap.L().Named("application.marketing")
	var result LifecycleResult

	due, err := s.campaignRepo.FindDueToStart(ctx, now, sweepBatchSize)
	if err != nil {
		return result, err
	}
	for i := range due {
		campaign := &due[i]
		if _, err := s.launch(ctx, campaign); err != nil {
			level := logger.Warn
			if errors.Is(err, marketing.ErrEmptyAudience) {
				level = logger.Info
			}
			level("scheduled campaign not started",
				zap.String("tenant_id", campaign.TenantID.String()),
				zap.String("campaign_id", campaign.ID.String()),
				zap.Error(err),
			)
			campaign.ClearDomainEvents()
			continue
		}
		s.publish(ctx, campaign)
		result.Started++
	}

	ending, err := s.campaignRepo.FindDueToComplete(ctx, now, sweepBatchSize)
	if err != nil {
		return result, err
	}
	for i := range ending {
		campaign := &ending[i]
		err := campaign.Complete()
		if err == nil {
			err = s.campaignRepo.SaveWithLock(ctx, campaign)
		}
		if err != nil {
			logger.Warn("campaign not completed",
				zap.String("tenant_id", campaign.TenantID.String()),
				zap.String("campaign_id", campaign.ID.String()),
				zap.Error(err),
			)
			campaign.ClearDomainEvents()
			continue
		}
		s.publish(ctx, campaign)
		result.Completed++
	}

	return result, nil
}
