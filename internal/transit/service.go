// Package transit composes the network snapshot, planner, synthesizer and deviation
// detector behind one service used by the HTTP layer and the worker.
package transit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/planner"
	"github.com/citytransit/transitengine/internal/schedule"
	"github.com/citytransit/transitengine/internal/telemetry"
)

const tracerName = "github.com/citytransit/transitengine/internal/transit"

// ServiceConfig holds configuration for the transit service.
type ServiceConfig struct {
	// Snapshots supplies the network.
	Snapshots Snapshots

	// Planner plans journeys.
	Planner *planner.Planner

	// Detector evaluates schedule adherence.
	Detector *deviation.Detector

	// Location is the time zone of service dates (default: time.Local).
	Location *time.Location

	// Metrics records engine metrics. Optional.
	Metrics *telemetry.EngineMetrics

	// Tracer for spans (default: the global tracer).
	Tracer trace.Tracer

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service is the engine's single entry point.
type Service struct {
	snapshots Snapshots
	planner   *planner.Planner
	detector  *deviation.Detector
	loc       *time.Location
	metrics   *telemetry.EngineMetrics
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewService creates a new transit service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.Planner == nil {
		cfg.Planner = planner.New(planner.Config{Location: cfg.Location, Logger: cfg.Logger})
	}
	if cfg.Detector == nil {
		cfg.Detector = deviation.New(deviation.Config{Location: cfg.Location, Logger: cfg.Logger}, nil)
	}

	return &Service{
		snapshots: cfg.Snapshots,
		planner:   cfg.Planner,
		detector:  cfg.Detector,
		loc:       cfg.Location,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger,
	}
}

// Plan returns ranked route options for req.
func (s *Service) Plan(ctx context.Context, req planner.Request) ([]planner.RouteOption, error) {
	ctx, span := s.tracer.Start(ctx, "transit.Plan")
	defer span.End()

	start := time.Now()
	snap, err := s.snapshots.Current()
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.Int64("snapshot.version", snap.Version))

	options, err := s.planner.Plan(ctx, snap, req)
	if s.metrics != nil {
		s.metrics.RecordPlan(ctx, time.Since(start), len(options), err)
	}
	if err != nil {
		return nil, s.fail(span, err)
	}

	span.SetAttributes(attribute.Int("plan.results", len(options)))
	s.logger.Debug().
		Int("results", len(options)).
		Dur("duration", time.Since(start)).
		Msg("journey planned")

	return options, nil
}

// DetectDeviation evaluates one vehicle at asOf (now when zero).
func (s *Service) DetectDeviation(ctx context.Context, fleetNumber string, asOf time.Time) (*deviation.Result, error) {
	ctx, span := s.tracer.Start(ctx, "transit.DetectDeviation",
		trace.WithAttributes(attribute.String("vehicle.fleet_number", fleetNumber)))
	defer span.End()

	snap, err := s.snapshots.Current()
	if err != nil {
		return nil, s.fail(span, err)
	}

	res, err := s.detector.DetectDeviation(ctx, snap, fleetNumber, asOf)
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.record(ctx, res)
	span.SetAttributes(
		attribute.String("deviation.status", string(res.Status)),
		attribute.String("deviation.state", string(res.State)),
	)
	return res, nil
}

// DetectAll evaluates every vehicle at asOf (now when zero).
func (s *Service) DetectAll(ctx context.Context, asOf time.Time) ([]*deviation.Result, error) {
	ctx, span := s.tracer.Start(ctx, "transit.DetectAll")
	defer span.End()

	snap, err := s.snapshots.Current()
	if err != nil {
		return nil, s.fail(span, err)
	}

	results, err := s.detector.DetectAll(ctx, snap, asOf)
	if err != nil {
		return nil, s.fail(span, err)
	}
	for _, res := range results {
		s.record(ctx, res)
	}

	span.SetAttributes(attribute.Int("vehicles", len(results)))
	return results, nil
}

// SynthesizeSchedule builds the timetable of a route for the service date of date.
func (s *Service) SynthesizeSchedule(ctx context.Context, routeID string, dir network.Direction, date time.Time) (*schedule.Timetable, error) {
	_, span := s.tracer.Start(ctx, "transit.SynthesizeSchedule", trace.WithAttributes(
		attribute.String("route.id", routeID),
		attribute.String("route.direction", string(dir)),
	))
	defer span.End()

	snap, err := s.snapshots.Current()
	if err != nil {
		return nil, s.fail(span, err)
	}

	tt, err := schedule.New(snap, s.loc).Synthesize(routeID, dir, date)
	if err != nil {
		return nil, s.fail(span, err)
	}

	span.SetAttributes(attribute.Int("schedule.departures", len(tt.Departures)))
	return tt, nil
}

// RouteGeometry returns the drawn path of a directional route.
func (s *Service) RouteGeometry(routeID string, dir network.Direction) ([]geo.Point, error) {
	snap, err := s.snapshots.Current()
	if err != nil {
		return nil, err
	}
	return snap.RouteGeometry(routeID, dir)
}

// NearbyStops returns up to limit stops within radiusMeters of p, nearest first,
// each with the active routes serving it. A non-positive limit returns all.
func (s *Service) NearbyStops(ctx context.Context, p geo.Point, radiusMeters float64, limit int) ([]NearbyStop, error) {
	_, span := s.tracer.Start(ctx, "transit.NearbyStops")
	defer span.End()

	snap, err := s.snapshots.Current()
	if err != nil {
		return nil, s.fail(span, err)
	}

	hits := snap.StopsWithinRadius(p, radiusMeters)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]NearbyStop, 0, len(hits))
	for _, h := range hits {
		ns := NearbyStop{Stop: h.Stop, DistanceMeters: h.DistanceMeters}
		seen := make(map[string]bool)
		for _, ra := range snap.RoutesServingStop(h.Stop.ID) {
			if seen[ra.RouteID] {
				continue
			}
			seen[ra.RouteID] = true
			if r, ok := snap.Route(ra.RouteID); ok {
				ns.Routes = append(ns.Routes, r)
			}
		}
		out = append(out, ns)
	}
	return out, nil
}

// Rebuild reloads the network and publishes a new snapshot.
func (s *Service) Rebuild(ctx context.Context) (*network.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "transit.Rebuild")
	defer span.End()

	snap, err := s.snapshots.Rebuild(ctx)
	if s.metrics != nil {
		var version int64
		if snap != nil {
			version = snap.Version
		}
		s.metrics.RecordRebuild(ctx, version, err)
	}
	if err != nil {
		return nil, s.fail(span, err)
	}

	span.SetAttributes(attribute.Int64("snapshot.version", snap.Version))
	return snap, nil
}

// TransportTypeName returns the transport type name of r in the current snapshot,
// or "" when unknown.
func (s *Service) TransportTypeName(r *network.Route) string {
	snap, err := s.snapshots.Current()
	if err != nil || r == nil {
		return ""
	}
	return snap.TransportTypeName(r)
}

// Status reports the snapshot in effect.
func (s *Service) Status() Status {
	snap, err := s.snapshots.Current()
	if err != nil {
		return Status{}
	}
	return Status{
		Ready:    true,
		Version:  snap.Version,
		BuiltAt:  snap.BuiltAt,
		Stops:    snap.StopCount(),
		Routes:   len(snap.Routes()),
		Vehicles: len(snap.Vehicles()),
	}
}

// Location returns the service time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) record(ctx context.Context, res *deviation.Result) {
	if s.metrics != nil {
		s.metrics.RecordDeviation(ctx, string(res.Status), string(res.State))
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
