package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics holds the instruments recorded by the routing engine.
type EngineMetrics struct {
	planDuration    metric.Float64Histogram
	planResults     metric.Int64Counter
	deviations      metric.Int64Counter
	rebuilds        metric.Int64Counter
	snapshotVersion metric.Int64Gauge
}

// NewEngineMetrics creates the engine instruments on meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	planDuration, err := meter.Float64Histogram(
		"transit.plan.duration",
		metric.WithDescription("Duration of journey planning in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	planResults, err := meter.Int64Counter(
		"transit.plan.results",
		metric.WithDescription("Number of route options returned by the planner"),
		metric.WithUnit("{option}"),
	)
	if err != nil {
		return nil, err
	}

	deviations, err := meter.Int64Counter(
		"transit.deviation.classifications",
		metric.WithDescription("Deviation evaluations by status"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, err
	}

	rebuilds, err := meter.Int64Counter(
		"transit.snapshot.rebuilds",
		metric.WithDescription("Network snapshot rebuild attempts"),
		metric.WithUnit("{rebuild}"),
	)
	if err != nil {
		return nil, err
	}

	snapshotVersion, err := meter.Int64Gauge(
		"transit.snapshot.version",
		metric.WithDescription("Version of the network snapshot in effect"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		planDuration:    planDuration,
		planResults:     planResults,
		deviations:      deviations,
		rebuilds:        rebuilds,
		snapshotVersion: snapshotVersion,
	}, nil
}

// RecordPlan records one planning call.
func (m *EngineMetrics) RecordPlan(ctx context.Context, duration time.Duration, results int, err error) {
	attrs := metric.WithAttributes(attribute.Bool("error", err != nil))
	m.planDuration.Record(ctx, duration.Seconds(), attrs)
	m.planResults.Add(ctx, int64(results), attrs)
}

// RecordDeviation records one classification.
func (m *EngineMetrics) RecordDeviation(ctx context.Context, status, state string) {
	m.deviations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("deviation.status", status),
		attribute.String("deviation.state", state),
	))
}

// RecordRebuild records a rebuild attempt and, on success, the new version.
func (m *EngineMetrics) RecordRebuild(ctx context.Context, version int64, err error) {
	m.rebuilds.Add(ctx, 1, metric.WithAttributes(attribute.Bool("error", err != nil)))
	if err == nil {
		m.snapshotVersion.Record(ctx, version)
	}
}
