package crm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories
// =============================================================================

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

// MockContactRepository is a mock implementation of crm.ContactRepository
type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Contact, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Contact), args.Error(1)
}

func (m *MockContactRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Contact, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Contact), args.Error(1)
}

func (m *MockContactRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockContactRepository) ClearPrimary(ctx context.Context, tenantID, customerID, keepID uuid.UUID) error {
	return m.Called(ctx, tenantID, customerID, keepID).Error(0)
}

func (m *MockContactRepository) Save(ctx context.Context, contact *crm.Contact) error {
	return m.Called(ctx, contact).Error(0)
}

func (m *MockContactRepository) SaveWithLock(ctx context.Context, contact *crm.Contact) error {
	return m.Called(ctx, contact).Error(0)
}

func (m *MockContactRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockOpportunityRepository is a mock implementation of crm.OpportunityRepository
type MockOpportunityRepository struct {
	mock.Mock
}

func (m *MockOpportunityRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Opportunity, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Opportunity), args.Error(1)
}

func (m *MockOpportunityRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Opportunity, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Opportunity), args.Error(1)
}

func (m *MockOpportunityRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOpportunityRepository) FindForPipeline(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Opportunity, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Opportunity), args.Error(1)
}

func (m *MockOpportunityRepository) Save(ctx context.Context, opp *crm.Opportunity) error {
	return m.Called(ctx, opp).Error(0)
}

func (m *MockOpportunityRepository) SaveWithLock(ctx context.Context, opp *crm.Opportunity) error {
	return m.Called(ctx, opp).Error(0)
}

func (m *MockOpportunityRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockQuoteRepository is a mock implementation of crm.QuoteRepository
type MockQuoteRepository struct {
	mock.Mock
}

func (m *MockQuoteRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Quote, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Quote), args.Error(1)
}

func (m *MockQuoteRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Quote, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Quote), args.Error(1)
}

func (m *MockQuoteRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuoteRepository) FindExpirable(ctx context.Context, now time.Time, limit int) ([]crm.Quote, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]crm.Quote), args.Error(1)
}

func (m *MockQuoteRepository) Save(ctx context.Context, quote *crm.Quote) error {
	return m.Called(ctx, quote).Error(0)
}

func (m *MockQuoteRepository) SaveWithLock(ctx context.Context, quote *crm.Quote) error {
	return m.Called(ctx, quote).Error(0)
}

func (m *MockQuoteRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockTaskRepository is a mock implementation of crm.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Task, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Task), args.Error(1)
}

func (m *MockTaskRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Task, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Task), args.Error(1)
}

func (m *MockTaskRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepository) FindNewlyOverdue(ctx context.Context, now time.Time, limit int) ([]crm.Task, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]crm.Task), args.Error(1)
}

func (m *MockTaskRepository) Save(ctx context.Context, task *crm.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockTaskRepository) SaveWithLock(ctx context.Context, task *crm.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockTaskRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockNoteRepository is a mock implementation of crm.NoteRepository
type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Note, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Note), args.Error(1)
}

func (m *MockNoteRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Note, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Note), args.Error(1)
}

func (m *MockNoteRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNoteRepository) Save(ctx context.Context, note *crm.Note) error {
	return m.Called(ctx, note).Error(0)
}

func (m *MockNoteRepository) SaveWithLock(ctx context.Context, note *crm.Note) error {
	return m.Called(ctx, note).Error(0)
}

func (m *MockNoteRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockActivityRepository is a mock implementation of crm.ActivityRepository
type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Activity, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Activity), args.Error(1)
}

func (m *MockActivityRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Activity, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Activity), args.Error(1)
}

func (m *MockActivityRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockActivityRepository) Save(ctx context.Context, activity *crm.Activity) error {
	return m.Called(ctx, activity).Error(0)
}

func (m *MockActivityRepository) SaveWithLock(ctx context.Context, activity *crm.Activity) error {
	return m.Called(ctx, activity).Error(0)
}

func (m *MockActivityRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// =============================================================================
// Test doubles for infrastructure ports
// =============================================================================

// fakeTxManager runs fn directly and records how often a transaction was opened
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
