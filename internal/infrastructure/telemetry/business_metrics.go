// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the CRM.
// It tracks customer acquisition, deal outcomes, quote flow, campaign
// engagement and workflow executions.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	customerCreatedTotal     *Counter
	opportunityClosedTotal   *Counter
	opportunityWonAmount     *Counter
	quoteTransitionTotal     *Counter
	quoteAcceptedAmount      *Counter
	campaignInteractionTotal *Counter
	workflowExecutionTotal   *Counter

	// Histogram metrics
	workflowExecutionDuration *Histogram

	// Gauge metrics (point-in-time values)
	openOpportunityCount *Gauge
	overdueTaskCount     *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	crmProvider CRMMetricsProvider
}

// CRMMetricsProvider provides aggregate CRM state for periodic metrics
// collection without the telemetry layer depending on the crm domain.
type CRMMetricsProvider interface {
	// GetOpenOpportunitiesByStage returns the number of open opportunities per stage for a tenant
	GetOpenOpportunitiesByStage(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error)

	// GetOverdueTaskCount returns the number of unfinished tasks past their due date
	GetOverdueTaskCount(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	CRMProvider     CRMMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:       cfg.Meter,
		logger:      logger,
		stopChan:    make(chan struct{}),
		crmProvider: cfg.CRMProvider,
	}

	counters := []struct {
		target **Counter
		name   string
		desc   string
		unit   string
	}{
		{&bm.customerCreatedTotal, "crm_customer_created_total", "Total number of customers created", "{customers}"},
		{&bm.opportunityClosedTotal, "crm_opportunity_closed_total", "Total number of opportunities closed", "{opportunities}"},
		{&bm.opportunityWonAmount, "crm_opportunity_won_amount_total", "Total amount of won opportunities in cents", "{cents}"},
		{&bm.quoteTransitionTotal, "crm_quote_transition_total", "Total number of quote status transitions", "{transitions}"},
		{&bm.quoteAcceptedAmount, "crm_quote_accepted_amount_total", "Total amount of accepted quotes in cents", "{cents}"},
		{&bm.campaignInteractionTotal, "crm_campaign_interaction_total", "Total number of tracked campaign interactions", "{interactions}"},
		{&bm.workflowExecutionTotal, "crm_workflow_execution_total", "Total number of workflow executions", "{executions}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	bm.workflowExecutionDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "crm_workflow_execution_duration_seconds",
		Description: "Duration of workflow executions",
		Unit:        "s",
		Boundaries:  []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
	if err != nil {
		return nil, err
	}

	bm.openOpportunityCount, err = NewGauge(
		cfg.Meter,
		"crm_open_opportunity_count",
		"Current number of open opportunities per stage",
		"{opportunities}",
	)
	if err != nil {
		return nil, err
	}

	bm.overdueTaskCount, err = NewGauge(
		cfg.Meter,
		"crm_overdue_task_count",
		"Current number of overdue tasks",
		"{tasks}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Customer and Deal Metrics
// =============================================================================

// Outcome labels a closed opportunity.
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
)

// RecordCustomerCreated records a customer creation, labelled by lead source.
func (bm *BusinessMetrics) RecordCustomerCreated(ctx context.Context, tenantID uuid.UUID, source string) {
	if source == "" {
		source = "unknown"
	}
	bm.customerCreatedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrCustomerSource.String(source),
	)
}

// RecordOpportunityClosed records a won or lost opportunity.
// Won amounts are also accumulated in cents.
func (bm *BusinessMetrics) RecordOpportunityClosed(ctx context.Context, tenantID uuid.UUID, won bool, amount decimal.Decimal) {
	outcome := OutcomeLost
	if won {
		outcome = OutcomeWon
	}
	bm.opportunityClosedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(string(outcome)),
	)
	if won {
		bm.opportunityWonAmount.Add(ctx, toCents(amount),
			AttrTenantID.String(tenantID.String()),
		)
	}
}

// RecordQuoteTransition records a quote reaching the given status.
func (bm *BusinessMetrics) RecordQuoteTransition(ctx context.Context, tenantID uuid.UUID, status string, total decimal.Decimal) {
	bm.quoteTransitionTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrQuoteStatus.String(status),
	)
	if status == "accepted" {
		bm.quoteAcceptedAmount.Add(ctx, toCents(total),
			AttrTenantID.String(tenantID.String()),
		)
	}
}

// =============================================================================
// Marketing and Automation Metrics
// =============================================================================

// RecordCampaignInteraction records a tracked open, click or conversion.
// first is true when the interaction moved a unique counter.
func (bm *BusinessMetrics) RecordCampaignInteraction(ctx context.Context, tenantID uuid.UUID, interactionType string, first bool) {
	bm.campaignInteractionTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrInteractionType.String(interactionType),
		AttrFirstOfKind.Bool(first),
	)
}

// RecordWorkflowExecution records a finished workflow execution and its duration.
func (bm *BusinessMetrics) RecordWorkflowExecution(ctx context.Context, tenantID uuid.UUID, entityType, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		AttrTenantID.String(tenantID.String()),
		AttrEntityType.String(entityType),
		AttrWorkflowStatus.String(status),
	}
	bm.workflowExecutionTotal.Inc(ctx, attrs...)
	bm.workflowExecutionDuration.RecordDuration(ctx, duration, attrs...)
}

// =============================================================================
// Gauges
// =============================================================================

// RecordOpenOpportunities records the open opportunity count of one stage.
func (bm *BusinessMetrics) RecordOpenOpportunities(ctx context.Context, tenantID uuid.UUID, stage string, count int64) {
	bm.openOpportunityCount.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
		AttrStage.String(stage),
	)
}

// RecordOverdueTasks records the overdue task count of a tenant.
func (bm *BusinessMetrics) RecordOverdueTasks(ctx context.Context, tenantID uuid.UUID, count int64) {
	bm.overdueTaskCount.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectCRMMetrics(ctx, tenantProvider)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectCRMMetrics(ctx, tenantProvider)
		}
	}
}

func (bm *BusinessMetrics) collectCRMMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if bm.crmProvider == nil {
		bm.logger.Debug("No CRM provider configured, skipping gauge collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	now := time.Now()
	for _, tenantID := range tenantIDs {
		bm.collectTenantMetrics(ctx, tenantID, now)
	}
}

func (bm *BusinessMetrics) collectTenantMetrics(ctx context.Context, tenantID uuid.UUID, now time.Time) {
	byStage, err := bm.crmProvider.GetOpenOpportunitiesByStage(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get open opportunities for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		for stage, count := range byStage {
			bm.RecordOpenOpportunities(ctx, tenantID, stage, count)
		}
	}

	overdue, err := bm.crmProvider.GetOverdueTaskCount(ctx, tenantID, now)
	if err != nil {
		bm.logger.Warn("Failed to get overdue task count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordOverdueTasks(ctx, tenantID, overdue)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
