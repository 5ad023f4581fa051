package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/citytransit/transitengine/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)

	// Noop provider should have nil TracerProvider and MeterProvider
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)

	err = provider.Shutdown(ctx)
	assert.NoError(t, err)
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	err := provider.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	cfg := telemetry.ConfigFromEnv("transitengine", "1.2.3", "staging")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 0.25, cfg.SampleRatio)
	assert.Equal(t, "transitengine", cfg.ServiceName)
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SAMPLE_RATIO", "")

	cfg := telemetry.ConfigFromEnv("svc", "dev", "development")

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestEngineMetrics_Record(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	m, err := telemetry.NewEngineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	m.RecordPlan(ctx, 120*time.Millisecond, 3, nil)
	m.RecordPlan(ctx, 10*time.Millisecond, 0, errors.New("invalid"))
	m.RecordDeviation(ctx, "late", "evaluated")
	m.RecordRebuild(ctx, 4, nil)
	m.RecordRebuild(ctx, 0, errors.New("db down"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	got := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			got[md.Name] = md.Data
		}
	}

	results, ok := got["transit.plan.results"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range results.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)

	rebuilds, ok := got["transit.snapshot.rebuilds"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, rebuilds.DataPoints, 2)

	version, ok := got["transit.snapshot.version"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, version.DataPoints, 1)
	assert.Equal(t, int64(4), version.DataPoints[0].Value)

	assert.Contains(t, got, "transit.plan.duration")
	assert.Contains(t, got, "transit.deviation.classifications")
}
