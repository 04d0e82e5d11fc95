package automation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	crmapp "github.com/opencrm/backend/internal/application/crm"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockWorkflowRepository is a mock implementation of automation.WorkflowRepository
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*automation.Workflow, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]automation.Workflow, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]automation.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWorkflowRepository) FindActiveFor(ctx context.Context, tenantID uuid.UUID, entityType automation.EntityType, trigger automation.Trigger) ([]automation.Workflow, error) {
	args := m.Called(ctx, tenantID, entityType, trigger)
	return args.Get(0).([]automation.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) FindActiveScheduled(ctx context.Context) ([]automation.Workflow, error) {
	args := m.Called(ctx)
	return args.Get(0).([]automation.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *automation.Workflow) error {
	return m.Called(ctx, workflow).Error(0)
}

func (m *MockWorkflowRepository) SaveWithLock(ctx context.Context, workflow *automation.Workflow) error {
	return m.Called(ctx, workflow).Error(0)
}

func (m *MockWorkflowRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockWorkflowRepository) RecordRun(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, tenantID, id, at).Error(0)
}

// MockExecutionRepository is a mock implementation of automation.ExecutionRepository
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Save(ctx context.Context, execution *automation.Execution) error {
	return m.Called(ctx, execution).Error(0)
}

func (m *MockExecutionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*automation.Execution, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.Execution), args.Error(1)
}

func (m *MockExecutionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]automation.Execution, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]automation.Execution), args.Error(1)
}

func (m *MockExecutionRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Fakes
// =============================================================================

// fakeGateway serves fixed snapshots and records writes
type fakeGateway struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]automation.Snapshot
	pages     [][]automation.Snapshot
	updates   []string
	statuses  []string
	err       error
}

func newFakeGateway(snaps ...automation.Snapshot) *fakeGateway {
	g := &fakeGateway{snapshots: map[uuid.UUID]automation.Snapshot{}}
	for _, s := range snaps {
		g.snapshots[uuid.MustParse(s.ID())] = s
	}
	return g
}

func (g *fakeGateway) Snapshot(_ context.Context, _, id uuid.UUID) (automation.Snapshot, error) {
	snap, ok := g.snapshots[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return snap, nil
}

func (g *fakeGateway) List(_ context.Context, _ uuid.UUID, skip, take int) ([]automation.Snapshot, int64, error) {
	page := skip / take
	if page >= len(g.pages) {
		return nil, 0, nil
	}
	return g.pages[page], 0, nil
}

func (g *fakeGateway) UpdateField(_ context.Context, _, id uuid.UUID, field string, value any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.updates = append(g.updates, field)
	return nil
}

func (g *fakeGateway) SetStatus(_ context.Context, _, _ uuid.UUID, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.statuses = append(g.statuses, status)
	return nil
}

// recordingRunner records the actions the engine dispatches
type recordingRunner struct {
	mu      sync.Mutex
	actions []automation.ActionType
	depths  []int
	failOn  automation.ActionType
}

func (r *recordingRunner) Run(ctx context.Context, _ ActionContext, action automation.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action.Type)
	r.depths = append(r.depths, depthFrom(ctx))
	if action.Type == r.failOn {
		return shared.NewDomainError("ACTION_FAILED", "boom")
	}
	return nil
}

type fakeTasks struct {
	requests []crmapp.CreateTaskRequest
}

func (f *fakeTasks) Create(_ context.Context, _ uuid.UUID, req crmapp.CreateTaskRequest) (*crmapp.TaskResponse, error) {
	f.requests = append(f.requests, req)
	return &crmapp.TaskResponse{Title: req.Title}, nil
}

type fakeNotes struct {
	requests []crmapp.CreateNoteRequest
}

func (f *fakeNotes) Create(_ context.Context, _ uuid.UUID, req crmapp.CreateNoteRequest) (*crmapp.NoteResponse, error) {
	f.requests = append(f.requests, req)
	return &crmapp.NoteResponse{Content: req.Content}, nil
}

type fakeActivities struct {
	requests []crmapp.CreateActivityRequest
}

func (f *fakeActivities) Create(_ context.Context, _ uuid.UUID, req crmapp.CreateActivityRequest) (*crmapp.ActivityResponse, error) {
	f.requests = append(f.requests, req)
	return &crmapp.ActivityResponse{Subject: req.Subject}, nil
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

// loaded returns an aggregate as a repository would, without pending events
func loaded[T interface{ ClearDomainEvents() }](v T) T {
	v.ClearDomainEvents()
	return v
}
