package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GORMConfig controls database instrumentation
type GORMConfig struct {
	TraceEnabled  bool
	LogFullSQL    bool
	DBSystem      string
	SlowThreshold time.Duration
}

const queryStartKey = "telemetry:query_start"

// queryPlugin records query durations and pool usage and flags slow queries
// on the active span
type queryPlugin struct {
	duration      *Histogram
	slowThreshold time.Duration
	logger        *zap.Logger
}

// InstrumentGORM registers otelgorm spans when tracing is on and the query
// metrics plugin when a meter is given
func InstrumentGORM(db *gorm.DB, cfg GORMConfig, meter metric.Meter, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = db.Dialector.Name()
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 200 * time.Millisecond
	}

	if cfg.TraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return fmt.Errorf("register otelgorm: %w", err)
		}
	}

	if meter == nil {
		return nil
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "crm_db_query_duration_seconds",
		Description: "Duration of database operations",
		Unit:        "s",
		Boundaries:  []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
	})
	if err != nil {
		return err
	}
	if err := db.Use(&queryPlugin{duration: duration, slowThreshold: cfg.SlowThreshold, logger: logger}); err != nil {
		return fmt.Errorf("register query metrics: %w", err)
	}
	if err := registerPoolGauges(db, meter); err != nil {
		return err
	}

	logger.Info("database instrumentation enabled",
		zap.Bool("tracing", cfg.TraceEnabled),
		zap.Duration("slow_threshold", cfg.SlowThreshold),
	)
	return nil
}

func (p *queryPlugin) Name() string { return "crm:query_metrics" }

func (p *queryPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(string) error
		after  func(string) error
	}{
		{"create", func(n string) error { return cb.Create().Before("gorm:create").Register(n, p.before) },
			func(n string) error { return cb.Create().After("gorm:create").Register(n, p.after("create")) }},
		{"query", func(n string) error { return cb.Query().Before("gorm:query").Register(n, p.before) },
			func(n string) error { return cb.Query().After("gorm:query").Register(n, p.after("select")) }},
		{"update", func(n string) error { return cb.Update().Before("gorm:update").Register(n, p.before) },
			func(n string) error { return cb.Update().After("gorm:update").Register(n, p.after("update")) }},
		{"delete", func(n string) error { return cb.Delete().Before("gorm:delete").Register(n, p.before) },
			func(n string) error { return cb.Delete().After("gorm:delete").Register(n, p.after("delete")) }},
		{"row", func(n string) error { return cb.Row().Before("gorm:row").Register(n, p.before) },
			func(n string) error { return cb.Row().After("gorm:row").Register(n, p.after("row")) }},
		{"raw", func(n string) error { return cb.Raw().Before("gorm:raw").Register(n, p.before) },
			func(n string) error { return cb.Raw().After("gorm:raw").Register(n, p.after("raw")) }},
	}
	for _, h := range hooks {
		if err := h.before("crm:metrics_before_" + h.op); err != nil {
			return err
		}
		if err := h.after("crm:metrics_after_" + h.op); err != nil {
			return err
		}
	}
	return nil
}

func (p *queryPlugin) before(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func (p *queryPlugin) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		p.duration.RecordDuration(ctx, elapsed,
			AttrDBOperation.String(operation),
			AttrDBTable.String(db.Statement.Table),
		)

		span := trace.SpanFromContext(ctx)
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) && span.IsRecording() {
			span.RecordError(db.Error)
		}
		if elapsed < p.slowThreshold {
			return
		}
		if span.IsRecording() {
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.String("db.table", db.Statement.Table),
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.slowThreshold.Milliseconds()),
			))
		}
		p.logger.Warn("slow query",
			zap.String("operation", operation),
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
		)
	}
}

// registerPoolGauges observes sql.DB pool statistics on every collection
func registerPoolGauges(db *gorm.DB, meter metric.Meter) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	open, err := meter.Int64ObservableGauge("crm_db_pool_open_connections",
		metric.WithDescription("Open connections in the pool"))
	if err != nil {
		return err
	}
	inUse, err := meter.Int64ObservableGauge("crm_db_pool_in_use_connections",
		metric.WithDescription("Connections currently in use"))
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("crm_db_pool_wait_total",
		metric.WithDescription("Connections waited for"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(open, int64(stats.OpenConnections))
		o.ObserveInt64(inUse, int64(stats.InUse))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, open, inUse, waits)
	return err
}
