package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/opencrm/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInstruments(t *testing.T) {
	meter, reader := manualMeter(t)
	ctx := context.Background()

	counter, err := telemetry.NewCounter(meter, "crm_test_total", "test counter", "{items}")
	require.NoError(t, err)
	counter.Inc(ctx, telemetry.AttrTenantID.String("t1"))
	counter.Add(ctx, 4, telemetry.AttrTenantID.String("t2"))

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "crm_test_seconds",
		Unit:       "s",
		Boundaries: []float64{0.1, 1},
	})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 250*time.Millisecond)

	gauge, err := telemetry.NewGauge(meter, "crm_test_gauge", "test gauge", "{items}")
	require.NoError(t, err)
	gauge.Record(ctx, 7)
	gauge.Record(ctx, 3)

	metrics := collect(t, reader)

	assert.Equal(t, int64(5), sumTotal(t, metrics["crm_test_total"]))

	h, ok := metrics["crm_test_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(1), h.DataPoints[0].Count)
	assert.Equal(t, []float64{0.1, 1}, h.DataPoints[0].Bounds)

	g, ok := metrics["crm_test_gauge"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(3), g.DataPoints[0].Value)
}
