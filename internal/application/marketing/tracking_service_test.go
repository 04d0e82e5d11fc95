package marketing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type trackingFixture struct {
	campaigns    *MockCampaignRepository
	recipients   *MockRecipientRepository
	interactions *MockInteractionRepository
	tx           *fakeTxManager
	events       *recordingPublisher
	service      *TrackingService
	now          time.Time
}

func newTrackingFixture() *trackingFixture {
	f := &trackingFixture{
		campaigns:    new(MockCampaignRepository),
		recipients:   new(MockRecipientRepository),
		interactions: new(MockInteractionRepository),
		tx:           &fakeTxManager{},
		events:       &recordingPublisher{},
		now:          time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC),
	}
	f.service = NewTrackingService(f.campaigns, f.recipients, f.interactions, f.tx)
	f.service.now = func() time.Time { return f.now }
	f.service.SetEventPublisher(f.events)
	return f
}

// seed registers a running campaign with one sent recipient
func (f *trackingFixture) seed(t *testing.T) (*marketing.Campaign, *marketing.Recipient) {
	t.Helper()
	campaign := newRunningCampaign(t, uuid.New(), 1)
	recipient := marketing.NewRecipient(campaign.TenantID, campaign.ID, uuid.New(), "a@example.com", f.now.Add(-time.Hour))
	f.campaigns.On("FindByIDForTenant", mock.Anything, campaign.TenantID, campaign.ID).Return(campaign, nil)
	f.recipients.On("FindByIDForUpdate", mock.Anything, campaign.TenantID, recipient.ID).Return(recipient, nil)
	return campaign, recipient
}

func deltaOf(opens, clicks, conversions int, value int64) interface{} {
	return mock.MatchedBy(func(d marketing.CounterDelta) bool {
		return d.Opens == opens && d.Clicks == clicks && d.Conversions == conversions &&
			d.Value.Equal(decimal.NewFromInt(value))
	})
}

func TestTrackingService_TrackOpen_FirstOpenCounts(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	campaign, recipient := f.seed(t)

	var stored *marketing.Interaction
	f.recipients.On("FindByID", ctx, recipient.ID).Return(recipient, nil)
	f.interactions.On("Save", ctx, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*marketing.Interaction)
	}).Return(nil)
	f.recipients.On("Save", ctx, recipient).Return(nil)
	f.campaigns.On("IncrementCounters", ctx, campaign.TenantID, campaign.ID, deltaOf(1, 0, 0, 0)).Return(nil)

	err := f.service.TrackOpen(ctx, recipient.ID, "Mozilla/5.0", "203.0.113.7")

	require.NoError(t, err)
	assert.Equal(t, marketing.RecipientStatusOpened, recipient.Status)
	require.NotNil(t, recipient.OpenedAt)
	assert.Equal(t, f.now, *recipient.OpenedAt)
	require.NotNil(t, stored)
	assert.Equal(t, "Mozilla/5.0", stored.UserAgent)
	assert.Equal(t, "203.0.113.7", stored.IPAddress)
	assert.Equal(t, 1, f.tx.calls)

	require.Len(t, f.events.events, 1)
	event := f.events.events[0].(*marketing.InteractionRecordedEvent)
	assert.True(t, event.FirstOfKind)
	assert.Equal(t, campaign.TenantID, event.TenantID())
}

func TestTrackingService_TrackOpen_RepeatDoesNotCount(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	_, recipient := f.seed(t)
	opened := f.now.Add(-time.Minute)
	recipient.OpenedAt = &opened
	recipient.Status = marketing.RecipientStatusOpened

	f.recipients.On("FindByID", ctx, recipient.ID).Return(recipient, nil)
	f.interactions.On("Save", ctx, mock.Anything).Return(nil)

	err := f.service.TrackOpen(ctx, recipient.ID, "", "")

	require.NoError(t, err)
	assert.Equal(t, opened, *recipient.OpenedAt)
	f.recipients.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.campaigns.AssertNotCalled(t, "IncrementCounters", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, f.events.events, 1)
	assert.False(t, f.events.events[0].(*marketing.InteractionRecordedEvent).FirstOfKind)
}

func TestTrackingService_TrackClick_ImpliesOpen(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	campaign, recipient := f.seed(t)

	f.recipients.On("FindByID", ctx, recipient.ID).Return(recipient, nil)
	f.interactions.On("Save", ctx, mock.MatchedBy(func(i *marketing.Interaction) bool {
		return i.Type == marketing.InteractionClick && i.URL == "https://example.com/offer"
	})).Return(nil)
	f.recipients.On("Save", ctx, recipient).Return(nil)
	f.campaigns.On("IncrementCounters", ctx, campaign.TenantID, campaign.ID, deltaOf(1, 1, 0, 0)).Return(nil)

	target, err := f.service.TrackClick(ctx, recipient.ID, "https://example.com/offer", "", "")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/offer", target)
	assert.Equal(t, marketing.RecipientStatusClicked, recipient.Status)
	assert.NotNil(t, recipient.OpenedAt)
	assert.NotNil(t, recipient.ClickedAt)
}

func TestTrackingService_TrackClick_RejectsUnsafeURL(t *testing.T) {
	for _, target := range []string{"javascript:alert(1)", "/relative", "ftp://example.com/file", ""} {
		t.Run(target, func(t *testing.T) {
			f := newTrackingFixture()

			_, err := f.service.TrackClick(context.Background(), uuid.New(), target, "", "")

			var domainErr *shared.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, "INVALID_URL", domainErr.Code)
			f.recipients.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		})
	}
}

func TestTrackingService_Track_ConversionImpliesClickAndOpen(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	campaign, recipient := f.seed(t)
	value := decimal.NewFromInt(250)

	f.recipients.On("FindByIDForTenant", ctx, campaign.TenantID, recipient.ID).Return(recipient, nil)
	f.interactions.On("Save", ctx, mock.Anything).Return(nil)
	f.recipients.On("Save", ctx, recipient).Return(nil)
	f.campaigns.On("IncrementCounters", ctx, campaign.TenantID, campaign.ID, deltaOf(1, 1, 1, 250)).Return(nil)

	result, err := f.service.Track(ctx, campaign.TenantID, campaign.ID, TrackInteractionRequest{
		RecipientID: recipient.ID,
		Type:        "conversion",
		Value:       &value,
	})

	require.NoError(t, err)
	assert.True(t, result.FirstOfKind)
	assert.Equal(t, "conversion", result.Interaction.Type)
	assert.True(t, value.Equal(result.Interaction.Value))
	assert.Equal(t, marketing.RecipientStatusConverted, recipient.Status)
}

func TestTrackingService_Track_RepeatConversionAddsValueOnly(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	campaign, recipient := f.seed(t)
	earlier := f.now.Add(-time.Hour)
	recipient.OpenedAt, recipient.ClickedAt, recipient.ConvertedAt = &earlier, &earlier, &earlier
	recipient.Status = marketing.RecipientStatusConverted
	value := decimal.NewFromInt(40)

	f.recipients.On("FindByIDForTenant", ctx, campaign.TenantID, recipient.ID).Return(recipient, nil)
	f.interactions.On("Save", ctx, mock.Anything).Return(nil)
	f.campaigns.On("IncrementCounters", ctx, campaign.TenantID, campaign.ID, deltaOf(0, 0, 0, 40)).Return(nil)

	result, err := f.service.Track(ctx, campaign.TenantID, campaign.ID, TrackInteractionRequest{
		RecipientID: recipient.ID,
		Type:        "conversion",
		Value:       &value,
	})

	require.NoError(t, err)
	assert.False(t, result.FirstOfKind)
	f.recipients.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.campaigns.AssertExpectations(t)
}

func TestTrackingService_Track_RecipientOfAnotherCampaign(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	tenantID := uuid.New()
	recipient := marketing.NewRecipient(tenantID, uuid.New(), uuid.New(), "", f.now)

	f.recipients.On("FindByIDForTenant", ctx, tenantID, recipient.ID).Return(recipient, nil)

	_, err := f.service.Track(ctx, tenantID, uuid.New(), TrackInteractionRequest{RecipientID: recipient.ID, Type: "open"})

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "INVALID_RECIPIENT", domainErr.Code)
}

func TestTrackingService_Track_DraftCampaignRejects(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	campaign := newTestCampaign(t, uuid.New(), marketing.CampaignTypeEmail)
	recipient := marketing.NewRecipient(campaign.TenantID, campaign.ID, uuid.New(), "", f.now)

	f.recipients.On("FindByIDForTenant", ctx, campaign.TenantID, recipient.ID).Return(recipient, nil)
	f.campaigns.On("FindByIDForTenant", ctx, campaign.TenantID, campaign.ID).Return(campaign, nil)

	_, err := f.service.Track(ctx, campaign.TenantID, campaign.ID, TrackInteractionRequest{RecipientID: recipient.ID, Type: "open"})

	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	assert.Nil(t, recipient.OpenedAt)
	f.interactions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestTrackingService_TrackOpen_TransactionFailure(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	_, recipient := f.seed(t)

	f.recipients.On("FindByID", ctx, recipient.ID).Return(recipient, nil)
	f.interactions.On("Save", ctx, mock.Anything).Return(errors.New("connection reset"))

	err := f.service.TrackOpen(ctx, recipient.ID, "", "")

	assert.EqualError(t, err, "connection reset")
	assert.Empty(t, f.events.events)
}

func TestTrackingService_TrackOpen_UnknownRecipient(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	id := uuid.New()

	f.recipients.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)

	err := f.service.TrackOpen(ctx, id, "", "")

	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestTrackingService_TrackOpen_DecidesOnLockedRow(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	campaign := newRunningCampaign(t, uuid.New(), 1)
	f.campaigns.On("FindByIDForTenant", ctx, campaign.TenantID, campaign.ID).Return(campaign, nil)

	// the pre-read copy predates an open committed by a concurrent request
	stale := marketing.NewRecipient(campaign.TenantID, campaign.ID, uuid.New(), "a@example.com", f.now.Add(-time.Hour))
	current := *stale
	opened := f.now.Add(-time.Second)
	current.OpenedAt = &opened
	current.Status = marketing.RecipientStatusOpened

	f.recipients.On("FindByID", ctx, stale.ID).Return(stale, nil)
	f.recipients.On("FindByIDForUpdate", ctx, campaign.TenantID, stale.ID).Return(&current, nil)
	f.interactions.On("Save", ctx, mock.Anything).Return(nil)

	err := f.service.TrackOpen(ctx, stale.ID, "", "")

	require.NoError(t, err)
	f.recipients.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.campaigns.AssertNotCalled(t, "IncrementCounters", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, f.events.events, 1)
	assert.False(t, f.events.events[0].(*marketing.InteractionRecordedEvent).FirstOfKind)
}

func TestTrackingService_TrackClick_UnknownRecipient(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	id := uuid.New()

	f.recipients.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)

	target, err := f.service.TrackClick(ctx, id, "https://example.com/offer", "", "")

	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.Empty(t, target)
}

func TestTrackingService_TrackClick_RecordFailureKeepsTarget(t *testing.T) {
	f := newTrackingFixture()
	ctx := context.Background()
	campaign := newTestCampaign(t, uuid.New(), marketing.CampaignTypeEmail)
	recipient := marketing.NewRecipient(campaign.TenantID, campaign.ID, uuid.New(), "", f.now)

	f.recipients.On("FindByID", ctx, recipient.ID).Return(recipient, nil)
	f.campaigns.On("FindByIDForTenant", ctx, campaign.TenantID, campaign.ID).Return(campaign, nil)

	target, err := f.service.TrackClick(ctx, recipient.ID, "https://example.com/offer", "", "")

	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	assert.Equal(t, "https://example.com/offer", target)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"short", "curl/8.0", 45, "curl/8.0"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii", "abcdef", 4, "abcd"},
		{"cut inside a two byte rune", "aé", 2, "a"},
		{"cut inside a four byte rune", "ab😀", 5, "ab"},
		{"cut after a rune", "é😀", 2, "é"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}

	long := truncate(strings.Repeat("ü", 300), 500)
	assert.Len(t, long, 500)
	assert.True(t, utf8.ValidString(long))
}
