package marketing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestCampaign(t *testing.T, tenantID uuid.UUID, campaignType marketing.CampaignType) *marketing.Campaign {
	t.Helper()
	campaign, err := marketing.NewCampaign(tenantID, "Spring launch", campaignType)
	require.NoError(t, err)
	return loaded(campaign)
}

func newRunningCampaign(t *testing.T, tenantID uuid.UUID, sent int) *marketing.Campaign {
	t.Helper()
	campaign := newTestCampaign(t, tenantID, marketing.CampaignTypeEmail)
	require.NoError(t, campaign.Execute(sent))
	return loaded(campaign)
}

func newTestCustomer(t *testing.T, tenantID uuid.UUID, email string) crm.Customer {
	t.Helper()
	customer, err := crm.NewCustomer(tenantID, "Customer "+email, crm.CustomerTypeOrganization)
	require.NoError(t, err)
	customer.Email = email
	return *loaded(customer)
}

type campaignServiceFixture struct {
	campaigns    *MockCampaignRepository
	recipients   *MockRecipientRepository
	interactions *MockInteractionRepository
	customers    *MockCustomerRepository
	tx           *fakeTxManager
	events       *recordingPublisher
	service      *CampaignService
}

func newCampaignServiceFixture(now time.Time) *campaignServiceFixture {
	f := &campaignServiceFixture{
		campaigns:    new(MockCampaignRepository),
		recipients:   new(MockRecipientRepository),
		interactions: new(MockInteractionRepository),
		customers:    new(MockCustomerRepository),
		tx:           &fakeTxManager{},
		events:       &recordingPublisher{},
	}
	f.service = NewCampaignService(f.campaigns, f.recipients, f.interactions, f.customers, f.tx)
	f.service.now = func() time.Time { return now }
	f.service.SetEventPublisher(f.events)
	return f
}

func TestCampaignService_Create(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	creator := uuid.New()
	budget := decimal.NewFromInt(5000)

	f.campaigns.On("Save", ctx, mock.AnythingOfType("*marketing.Campaign")).Return(nil)

	result, err := f.service.Create(ctx, tenantID, CreateCampaignRequest{
		Name:   "Spring launch",
		Type:   "email",
		Budget: &budget,
		TargetCriteria: &TargetCriteriaInput{
			Statuses:   []string{"active"},
			Industries: []string{"retail"},
		},
		CreatedBy: &creator,
	})

	require.NoError(t, err)
	assert.Equal(t, "draft", result.Status)
	assert.True(t, budget.Equal(result.Budget))
	assert.Equal(t, []string{"active"}, result.TargetCriteria.Statuses)
	assert.Equal(t, []string{"retail"}, result.TargetCriteria.Industries)
	require.NotNil(t, result.CreatedBy)
	assert.Equal(t, creator, *result.CreatedBy)
	assert.Equal(t, []string{marketing.EventTypeCampaignCreated}, f.events.types())
}

func TestCampaignService_Create_InvalidDateRange(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	start := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(-24 * time.Hour)

	_, err := f.service.Create(context.Background(), uuid.New(), CreateCampaignRequest{
		Name:      "Backwards",
		Type:      "sms",
		StartDate: &start,
		EndDate:   &end,
	})

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "INVALID_DATE_RANGE", domainErr.Code)
	f.campaigns.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCampaignService_List_Filters(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()

	matches := mock.MatchedBy(func(filter shared.Filter) bool {
		return filter.Filters["status"] == "running" && filter.Filters["type"] == "webinar" && filter.Take == 20
	})
	f.campaigns.On("FindAllForTenant", ctx, tenantID, matches).Return([]marketing.Campaign{*newRunningCampaign(t, tenantID, 1)}, nil)
	f.campaigns.On("CountForTenant", ctx, tenantID, matches).Return(int64(1), nil)

	result, total, err := f.service.List(ctx, tenantID, CampaignListFilter{Status: "running", Type: "webinar"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, result, 1)
}

func TestCampaignService_Update_RunningCampaignIsLocked(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaign := newRunningCampaign(t, tenantID, 3)
	name := "Renamed"

	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)

	_, err := f.service.Update(ctx, tenantID, campaign.ID, UpdateCampaignRequest{Name: &name})

	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	f.campaigns.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestCampaignService_Schedule(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		start   *time.Time
		wantErr string
	}{
		{name: "future start date", start: ptr(now.Add(48 * time.Hour))},
		{name: "missing start date", wantErr: "INVALID_START_DATE"},
		{name: "past start date", start: ptr(now.Add(-time.Hour)), wantErr: "INVALID_START_DATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCampaignServiceFixture(now)
			ctx := context.Background()
			tenantID := uuid.New()
			campaign := newTestCampaign(t, tenantID, marketing.CampaignTypeEmail)
			campaign.StartDate = tt.start

			f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)
			f.campaigns.On("SaveWithLock", ctx, campaign).Return(nil).Maybe()

			result, err := f.service.Schedule(ctx, tenantID, campaign.ID)

			if tt.wantErr != "" {
				var domainErr *shared.DomainError
				require.True(t, errors.As(err, &domainErr))
				assert.Equal(t, tt.wantErr, domainErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "scheduled", result.Status)
			assert.Equal(t, []string{marketing.EventTypeCampaignStatusChanged}, f.events.types())
		})
	}
}

func TestCampaignService_Transitions(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaign := newRunningCampaign(t, tenantID, 5)

	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)
	f.campaigns.On("SaveWithLock", ctx, campaign).Return(nil)

	paused, err := f.service.Pause(ctx, tenantID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "paused", paused.Status)

	_, err = f.service.Pause(ctx, tenantID, campaign.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	resumed, err := f.service.Resume(ctx, tenantID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "running", resumed.Status)

	completed, err := f.service.Complete(ctx, tenantID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	_, err = f.service.Cancel(ctx, tenantID, campaign.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	f.campaigns.AssertNumberOfCalls(t, "SaveWithLock", 3)
}

func TestCampaignService_Execute(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaign := newTestCampaign(t, tenantID, marketing.CampaignTypeEmail)
	campaign.TargetCriteria = marketing.TargetCriteria{Statuses: []string{"active"}, Countries: []string{"DE"}}

	customers := []crm.Customer{
		newTestCustomer(t, tenantID, "a@example.com"),
		newTestCustomer(t, tenantID, "b@example.com"),
	}

	segment := mock.MatchedBy(func(s crm.CustomerSegment) bool {
		return s.RequireEmail &&
			assert.ObjectsAreEqual([]crm.CustomerStatus{crm.CustomerStatusActive}, s.Statuses) &&
			assert.ObjectsAreEqual([]string{"DE"}, s.Countries)
	})
	var saved []*marketing.Recipient

	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)
	f.customers.On("FindSegment", ctx, tenantID, segment).Return(customers, nil)
	f.recipients.On("SaveBatch", ctx, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).([]*marketing.Recipient)
	}).Return(nil)
	f.campaigns.On("SaveWithLock", ctx, campaign).Return(nil)

	result, err := f.service.Execute(ctx, tenantID, campaign.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, result.RecipientCount)
	assert.Equal(t, "running", result.Campaign.Status)
	assert.Equal(t, 2, result.Campaign.SentCount)
	assert.NotNil(t, result.Campaign.LaunchedAt)
	require.Len(t, saved, 2)
	assert.Equal(t, customers[0].ID, saved[0].CustomerID)
	assert.Equal(t, "b@example.com", saved[1].Email)
	assert.Equal(t, marketing.RecipientStatusSent, saved[0].Status)
	assert.Equal(t, 1, f.tx.calls)
	assert.Equal(t, []string{marketing.EventTypeCampaignStatusChanged, marketing.EventTypeCampaignExecuted}, f.events.types())
}

func TestCampaignService_Execute_EmptyAudience(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaign := newTestCampaign(t, tenantID, marketing.CampaignTypeSMS)

	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)
	f.customers.On("FindSegment", ctx, tenantID, mock.Anything).Return([]crm.Customer{}, nil)

	_, err := f.service.Execute(ctx, tenantID, campaign.ID)

	assert.True(t, errors.Is(err, marketing.ErrEmptyAudience))
	assert.Equal(t, marketing.CampaignStatusDraft, campaign.Status)
	f.recipients.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)
	assert.Empty(t, f.events.events)
}

func TestCampaignService_Execute_AlreadyRunning(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaign := newRunningCampaign(t, tenantID, 4)

	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)

	_, err := f.service.Execute(ctx, tenantID, campaign.ID)

	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	f.customers.AssertNotCalled(t, "FindSegment", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.tx.calls)
}

func TestCampaignService_Execute_BatchFailureRollsBack(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaign := newTestCampaign(t, tenantID, marketing.CampaignTypeEmail)

	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)
	f.customers.On("FindSegment", ctx, tenantID, mock.Anything).
		Return([]crm.Customer{newTestCustomer(t, tenantID, "a@example.com")}, nil)
	f.recipients.On("SaveBatch", ctx, mock.Anything).Return(errors.New("disk full"))

	_, err := f.service.Execute(ctx, tenantID, campaign.ID)

	assert.EqualError(t, err, "disk full")
	f.campaigns.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	assert.Empty(t, f.events.events)
}

func TestCampaignService_Delete(t *testing.T) {
	t.Run("draft campaign", func(t *testing.T) {
		f := newCampaignServiceFixture(time.Now())
		ctx := context.Background()
		tenantID := uuid.New()
		campaign := newTestCampaign(t, tenantID, marketing.CampaignTypeEvent)

		f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)
		f.campaigns.On("DeleteForTenant", ctx, tenantID, campaign.ID).Return(nil)

		require.NoError(t, f.service.Delete(ctx, tenantID, campaign.ID))
		assert.Equal(t, []string{marketing.EventTypeCampaignDeleted}, f.events.types())
	})

	t.Run("running campaign", func(t *testing.T) {
		f := newCampaignServiceFixture(time.Now())
		ctx := context.Background()
		tenantID := uuid.New()
		campaign := newRunningCampaign(t, tenantID, 1)

		f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)

		err := f.service.Delete(ctx, tenantID, campaign.ID)

		assert.True(t, errors.Is(err, shared.ErrInvalidState))
		f.campaigns.AssertNotCalled(t, "DeleteForTenant", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCampaignService_Analytics(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaign := newRunningCampaign(t, tenantID, 200)
	campaign.ApplyCounters(marketing.CounterDelta{Opens: 50, Clicks: 20, Conversions: 5, Value: decimal.NewFromInt(1500)})
	campaign.ActualCost = decimal.NewFromInt(500)
	campaign.Budget = decimal.NewFromInt(1000)

	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)

	result, err := f.service.Analytics(ctx, tenantID, campaign.ID)

	require.NoError(t, err)
	assert.Equal(t, campaign.ID, result.CampaignID)
	assert.True(t, decimal.NewFromInt(25).Equal(result.OpenRate))
	assert.True(t, decimal.NewFromInt(10).Equal(result.ClickRate))
	assert.True(t, decimal.NewFromFloat(2.5).Equal(result.ConversionRate))
	assert.True(t, decimal.NewFromInt(40).Equal(result.ClickToOpenRate))
	assert.True(t, decimal.NewFromInt(100).Equal(result.CostPerConversion))
	assert.True(t, decimal.NewFromInt(200).Equal(result.ROI))
	assert.True(t, decimal.NewFromInt(50).Equal(result.BudgetUtilisation))
}

func TestCampaignService_Analytics_ZeroDenominators(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaign := newTestCampaign(t, tenantID, marketing.CampaignTypeEmail)

	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)

	result, err := f.service.Analytics(ctx, tenantID, campaign.ID)

	require.NoError(t, err)
	for _, rate := range []decimal.Decimal{result.OpenRate, result.ClickRate, result.ConversionRate, result.ClickToOpenRate, result.CostPerConversion, result.ROI, result.BudgetUtilisation} {
		assert.True(t, rate.IsZero())
	}
}

func TestCampaignService_Recipients(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaign := newRunningCampaign(t, tenantID, 1)
	recipient := marketing.NewRecipient(tenantID, campaign.ID, uuid.New(), "a@example.com", time.Now())

	matches := mock.MatchedBy(func(filter shared.Filter) bool {
		return filter.Filters["status"] == "opened" && filter.OrderBy == "sent_at"
	})
	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaign.ID).Return(campaign, nil)
	f.recipients.On("FindByCampaign", ctx, tenantID, campaign.ID, matches).Return([]marketing.Recipient{*recipient}, nil)
	f.recipients.On("CountByCampaign", ctx, tenantID, campaign.ID, matches).Return(int64(1), nil)

	result, total, err := f.service.Recipients(ctx, tenantID, campaign.ID, RecipientListFilter{Status: "opened"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, result, 1)
	assert.Equal(t, recipient.ID, result[0].ID)
}

func TestCampaignService_Interactions_UnknownCampaign(t *testing.T) {
	f := newCampaignServiceFixture(time.Now())
	ctx := context.Background()
	tenantID := uuid.New()
	campaignID := uuid.New()

	f.campaigns.On("FindByIDForTenant", ctx, tenantID, campaignID).Return(nil, shared.ErrNotFound)

	_, _, err := f.service.Interactions(ctx, tenantID, campaignID, InteractionListFilter{})

	assert.True(t, errors.Is(err, shared.ErrNotFound))
	f.interactions.AssertNotCalled(t, "FindByCampaign", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCampaignService_RunLifecycle(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	f := newCampaignServiceFixture(now)
	ctx := context.Background()

	withAudience := newTestCampaign(t, uuid.New(), marketing.CampaignTypeEmail)
	withAudience.Status = marketing.CampaignStatusScheduled
	empty := newTestCampaign(t, uuid.New(), marketing.CampaignTypeEmail)
	empty.Status = marketing.CampaignStatusScheduled
	ending := newRunningCampaign(t, uuid.New(), 10)

	f.campaigns.On("FindDueToStart", ctx, now, sweepBatchSize).Return([]marketing.Campaign{*withAudience, *empty}, nil)
	f.campaigns.On("FindDueToComplete", ctx, now, sweepBatchSize).Return([]marketing.Campaign{*ending}, nil)
	f.customers.On("FindSegment", ctx, withAudience.TenantID, mock.Anything).
		Return([]crm.Customer{newTestCustomer(t, withAudience.TenantID, "a@example.com")}, nil)
	f.customers.On("FindSegment", ctx, empty.TenantID, mock.Anything).Return([]crm.Customer{}, nil)
	f.recipients.On("SaveBatch", ctx, mock.Anything).Return(nil)
	f.campaigns.On("SaveWithLock", ctx, mock.AnythingOfType("*marketing.Campaign")).Return(nil)

	result, err := f.service.RunLifecycle(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Started)
	assert.Equal(t, 1, result.Completed)
	f.recipients.AssertNumberOfCalls(t, "SaveBatch", 1)
	f.campaigns.AssertNumberOfCalls(t, "SaveWithLock", 2)
	assert.Equal(t, []string{
		marketing.EventTypeCampaignStatusChanged,
		marketing.EventTypeCampaignExecuted,
		marketing.EventTypeCampaignStatusChanged,
	}, f.events.types())
}

func ptr[T any](v T) *T {
	return &v
}
