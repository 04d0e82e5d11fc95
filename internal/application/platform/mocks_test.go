package platform

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/platform"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockDeploymentRepository is a mock implementation of platform.DeploymentRepository
type MockDeploymentRepository struct {
	mock.Mock
}

func (m *MockDeploymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*platform.Deployment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.Deployment), args.Error(1)
}

func (m *MockDeploymentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]platform.Deployment, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]platform.Deployment), args.Error(1)
}

func (m *MockDeploymentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeploymentRepository) Save(ctx context.Context, deployment *platform.Deployment) error {
	return m.Called(ctx, deployment).Error(0)
}

func (m *MockDeploymentRepository) SaveWithLock(ctx context.Context, deployment *platform.Deployment) error {
	return m.Called(ctx, deployment).Error(0)
}

func (m *MockDeploymentRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockSettingRepository is a mock implementation of platform.SettingRepository
type MockSettingRepository struct {
	mock.Mock
}

func (m *MockSettingRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, key string) (*platform.Setting, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.Setting), args.Error(1)
}

func (m *MockSettingRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, category platform.SettingCategory) ([]platform.Setting, error) {
	args := m.Called(ctx, tenantID, category)
	return args.Get(0).([]platform.Setting), args.Error(1)
}

func (m *MockSettingRepository) Save(ctx context.Context, setting *platform.Setting) error {
	return m.Called(ctx, setting).Error(0)
}

func (m *MockSettingRepository) SaveWithLock(ctx context.Context, setting *platform.Setting) error {
	return m.Called(ctx, setting).Error(0)
}

func (m *MockSettingRepository) DeleteByKey(ctx context.Context, tenantID uuid.UUID, key string) error {
	return m.Called(ctx, tenantID, key).Error(0)
}

// fakeCache is a map-backed settings cache that counts invalidations
type fakeCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID][]platform.Setting
	sets        int
	invalidated int
	failGet     bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[uuid.UUID][]platform.Setting)}
}

func (c *fakeCache) Get(_ context.Context, tenantID uuid.UUID) ([]platform.Setting, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("cache unavailable")
	}
	settings, ok := c.entries[tenantID]
	return settings, ok, nil
}

func (c *fakeCache) Set(_ context.Context, tenantID uuid.UUID, settings []platform.Setting, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[tenantID] = settings
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	delete(c.entries, tenantID)
	return nil
}

// fakeTxManager runs the function inline
type fakeTxManager struct {
	calls int
}

func (f *fakeTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// fakeArtifacts knows a fixed set of keys
type fakeArtifacts struct {
	keys map[string]bool
	err  error
}

func (f *fakeArtifacts) Exists(_ context.Context, key string) (bool, error) {
	return f.keys[key], f.err
}

// fakeChecker returns a canned result and records the endpoint
type fakeChecker struct {
	result   CheckResult
	endpoint string
}

func (f *fakeChecker) Check(_ context.Context, endpoint string) CheckResult {
	f.endpoint = endpoint
	return f.result
}

// recordingPublisher captures every published event
type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType()
	}
	return types
}

func loaded[T interface{ ClearDomainEvents() }](v T) T {
	v.ClearDomainEvents()
	return v
}
