package marketing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockCampaignRepository is a mock implementation of marketing.CampaignRepository
type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*marketing.Campaign, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketing.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]marketing.Campaign, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]marketing.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCampaignRepository) FindDueToStart(ctx context.Context, now time.Time, limit int) ([]marketing.Campaign, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]marketing.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) FindDueToComplete(ctx context.Context, now time.Time, limit int) ([]marketing.Campaign, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]marketing.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Save(ctx context.Context, campaign *marketing.Campaign) error {
	return m.Called(ctx, campaign).Error(0)
}

func (m *MockCampaignRepository) SaveWithLock(ctx context.Context, campaign *marketing.Campaign) error {
	return m.Called(ctx, campaign).Error(0)
}

func (m *MockCampaignRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockCampaignRepository) IncrementCounters(ctx context.Context, tenantID, id uuid.UUID, delta marketing.CounterDelta) error {
	return m.Called(ctx, tenantID, id, delta).Error(0)
}

// MockRecipientRepository is a mock implementation of marketing.RecipientRepository
type MockRecipientRepository struct {
	mock.Mock
}

func (m *MockRecipientRepository) FindByID(ctx context.Context, id uuid.UUID) (*marketing.Recipient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketing.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*marketing.Recipient, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketing.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*marketing.Recipient, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketing.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) FindByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) ([]marketing.Recipient, error) {
	args := m.Called(ctx, tenantID, campaignID, filter)
	return args.Get(0).([]marketing.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) CountByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, campaignID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecipientRepository) SaveBatch(ctx context.Context, recipients []*marketing.Recipient) error {
	return m.Called(ctx, recipients).Error(0)
}

func (m *MockRecipientRepository) Save(ctx context.Context, recipient *marketing.Recipient) error {
	return m.Called(ctx, recipient).Error(0)
}

// MockInteractionRepository is a mock implementation of marketing.InteractionRepository
type MockInteractionRepository struct {
	mock.Mock
}

func (m *MockInteractionRepository) Save(ctx context.Context, interaction *marketing.Interaction) error {
	return m.Called(ctx, interaction).Error(0)
}

func (m *MockInteractionRepository) FindByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) ([]marketing.Interaction, error) {
	args := m.Called(ctx, tenantID, campaignID, filter)
	return args.Get(0).([]marketing.Interaction), args.Error(1)
}

func (m *MockInteractionRepository) CountByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, campaignID, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockCustomerRepository is a mock implementation of crm.CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Customer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Customer, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Customer), args.Error(1)
}

func (m *MockCustomerRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCustomerRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[crm.CustomerStatus]int64, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[crm.CustomerStatus]int64), args.Error(1)
}

func (m *MockCustomerRepository) FindSegment(ctx context.Context, tenantID uuid.UUID, segment crm.CustomerSegment) ([]crm.Customer, error) {
	args := m.Called(ctx, tenantID, segment)
	return args.Get(0).([]crm.Customer), args.Error(1)
}

func (m *MockCustomerRepository) ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustomerRepository) Save(ctx context.Context, customer *crm.Customer) error {
	return m.Called(ctx, customer).Error(0)
}

func (m *MockCustomerRepository) SaveWithLock(ctx context.Context, customer *crm.Customer) error {
	return m.Called(ctx, customer).Error(0)
}

func (m *MockCustomerRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// fakeTxManager runs the function inline
type fakeTxManager struct {
	calls int
}

func (f *fakeTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// recordingPublisher captures every published event
type recordingPublisher struct {
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType()
	}
	return types
}

// loaded returns a copy of an aggregate as a repository would return it, without pending events
func loaded[T interface{ ClearDomainEvents() }](v T) T {
	v.ClearDomainEvents()
	return v
}
