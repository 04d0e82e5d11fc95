package telemetry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func TestNewBusinessMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, bm)
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBusinessMetrics: meter cannot be nil", err.Error())
}

func newTestBusinessMetrics(t *testing.T, provider telemetry.CRMMetricsProvider) *telemetry.BusinessMetrics {
	t.Helper()
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:       noop.NewMeterProvider().Meter("test"),
		Logger:      zap.NewNop(),
		CRMProvider: provider,
	})
	require.NoError(t, err)
	return bm
}

func TestBusinessMetrics_RecordCustomerCreated(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	// Should not panic, including an empty source
	bm.RecordCustomerCreated(ctx, tenantID, "referral")
	bm.RecordCustomerCreated(ctx, tenantID, "")
}

func TestBusinessMetrics_RecordOpportunityClosed(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	bm.RecordOpportunityClosed(ctx, tenantID, true, decimal.NewFromFloat(1999.99))
	bm.RecordOpportunityClosed(ctx, tenantID, false, decimal.NewFromInt(500))
}

func TestBusinessMetrics_RecordQuoteTransition(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	bm.RecordQuoteTransition(ctx, tenantID, "sent", decimal.NewFromInt(209))
	bm.RecordQuoteTransition(ctx, tenantID, "accepted", decimal.NewFromInt(209))
}

func TestBusinessMetrics_RecordCampaignInteraction(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	bm.RecordCampaignInteraction(ctx, tenantID, "open", true)
	bm.RecordCampaignInteraction(ctx, tenantID, "click", false)
}

func TestBusinessMetrics_RecordWorkflowExecution(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	bm.RecordWorkflowExecution(ctx, tenantID, "opportunity", "completed", 25*time.Millisecond)
	bm.RecordWorkflowExecution(ctx, tenantID, "customer", "failed", time.Second)
}

func TestBusinessMetrics_Gauges(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	bm.RecordOpenOpportunities(ctx, tenantID, "proposal", 4)
	bm.RecordOverdueTasks(ctx, tenantID, 2)
}

// Mock implementations for testing periodic collection

type mockTenantProvider struct {
	tenantIDs []uuid.UUID
	err       error
}

func (m *mockTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	return m.tenantIDs, m.err
}

type mockCRMProvider struct {
	mu        sync.Mutex
	byStage   map[string]int64
	overdue   int64
	err       error
	calls     int
	tenantIDs []uuid.UUID
}

func (m *mockCRMProvider) GetOpenOpportunitiesByStage(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.tenantIDs = append(m.tenantIDs, tenantID)
	if m.err != nil {
		return nil, m.err
	}
	return m.byStage, nil
}

func (m *mockCRMProvider) GetOverdueTaskCount(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.overdue, nil
}

func (m *mockCRMProvider) collected() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.tenantIDs...)
}

func TestBusinessMetrics_PeriodicCollection(t *testing.T) {
	tenantID := uuid.New()
	provider := &mockCRMProvider{
		byStage: map[string]int64{"prospecting": 3, "proposal": 1},
		overdue: 2,
	}
	bm := newTestBusinessMetrics(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tenantProvider := &mockTenantProvider{
		tenantIDs: []uuid.UUID{tenantID},
	}

	// Collection runs once immediately on start
	bm.StartPeriodicCollection(ctx, tenantProvider, time.Hour)

	assert.Eventually(t, func() bool {
		return len(provider.collected()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []uuid.UUID{tenantID}, provider.collected())

	bm.Stop()
}

func TestBusinessMetrics_PeriodicCollection_ProviderErrors(t *testing.T) {
	provider := &mockCRMProvider{err: errors.New("db down")}
	bm := newTestBusinessMetrics(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bm.StartPeriodicCollection(ctx, &mockTenantProvider{tenantIDs: []uuid.UUID{uuid.New(), uuid.New()}}, time.Hour)

	// Errors for one tenant do not stop collection for the next
	assert.Eventually(t, func() bool {
		return len(provider.collected()) == 2
	}, time.Second, 10*time.Millisecond)

	bm.Stop()
}

func TestBusinessMetrics_PeriodicCollection_NoProvider(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
		// No CRM provider
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tenantProvider := &mockTenantProvider{
		tenantIDs: []uuid.UUID{uuid.New()},
	}

	// Should not panic with no CRM provider
	bm.StartPeriodicCollection(ctx, tenantProvider, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	bm.Stop()
}

func TestBusinessMetrics_Stop_Idempotent(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	// Calling Stop multiple times should not panic
	bm.Stop()
	bm.Stop()
	bm.Stop()
}

func TestBusinessMetrics_StartPeriodicCollection_OnlyOnce(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tenantProvider := &mockTenantProvider{
		tenantIDs: []uuid.UUID{},
	}

	// Calling StartPeriodicCollection multiple times should only start once
	bm.StartPeriodicCollection(ctx, tenantProvider, time.Hour)
	bm.StartPeriodicCollection(ctx, tenantProvider, time.Minute)
	bm.StartPeriodicCollection(ctx, tenantProvider, time.Second)

	bm.Stop()
}

func TestOutcome_Values(t *testing.T) {
	assert.Equal(t, telemetry.Outcome("won"), telemetry.OutcomeWon)
	assert.Equal(t, telemetry.Outcome("lost"), telemetry.OutcomeLost)
}

func TestMetricsError_Error(t *testing.T) {
	err := &telemetry.MetricsError{
		Op:  "TestOperation",
		Err: "test error message",
	}

	assert.Equal(t, "TestOperation: test error message", err.Error())
}
