package deviation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/schedule"
	"github.com/citytransit/transitengine/pkg/polyline"
)

// Config contains configuration for the detector.
type Config struct {
	// OnTimeBandMin is the symmetric band around zero delay reported as on time.
	OnTimeBandMin float64

	// LateThresholdMin is the delay above which a vehicle is late.
	LateThresholdMin float64

	// StalenessWindow is the maximum age of a usable fix.
	StalenessWindow time.Duration

	// MaxOffRouteMeters is how far a fix may lie from the route geometry.
	MaxOffRouteMeters float64

	// TripMatching selects the trip a vehicle is compared against
	// (default: TripMatchLatest).
	TripMatching TripMatching

	// Location is the time zone of service dates.
	Location *time.Location

	// Now supplies asOf when a query has none.
	Now func() time.Time

	// Logger is used for fix source failures.
	Logger zerolog.Logger
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		OnTimeBandMin:     2,
		LateThresholdMin:  5,
		StalenessWindow:   10 * time.Minute,
		MaxOffRouteMeters: 500,
		TripMatching:      TripMatchLatest,
		Location:          time.Local,
		Now:               time.Now,
		Logger:            zerolog.Nop(),
	}
}

// Detector evaluates schedule adherence. It is safe for concurrent use.
type Detector struct {
	cfg   Config
	fixes FixSource
}

// New creates a detector reading fixes from fixes.
func New(cfg Config, fixes FixSource) *Detector {
	def := DefaultConfig()
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = def.StalenessWindow
	}
	if cfg.MaxOffRouteMeters <= 0 {
		cfg.MaxOffRouteMeters = def.MaxOffRouteMeters
	}
	if cfg.TripMatching == "" {
		cfg.TripMatching = def.TripMatching
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Detector{cfg: cfg, fixes: fixes}
}

// DetectDeviation evaluates the vehicle with the given fleet number at asOf (now
// when zero). Missing assignment, fix or timetable yield an unknown result rather
// than an error; only an unknown vehicle fails.
func (d *Detector) DetectDeviation(ctx context.Context, snap *network.Snapshot, fleetNumber string, asOf time.Time) (*Result, error) {
	if fleetNumber == "" {
		return nil, fmt.Errorf("%w: fleet number is required", ErrInvalidInput)
	}
	v, ok := snap.VehicleByFleetNumber(fleetNumber)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVehicleNotFound, fleetNumber)
	}
	if asOf.IsZero() {
		asOf = d.cfg.Now()
	}
	return d.evaluate(ctx, snap, v, asOf), nil
}

// DetectAll evaluates every vehicle in the snapshot, ordered by fleet number.
func (d *Detector) DetectAll(ctx context.Context, snap *network.Snapshot, asOf time.Time) ([]*Result, error) {
	if asOf.IsZero() {
		asOf = d.cfg.Now()
	}
	vehicles := snap.Vehicles()
	out := make([]*Result, 0, len(vehicles))
	for _, v := range vehicles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, d.evaluate(ctx, snap, v, asOf))
	}
	return out, nil
}

// Classify maps a signed delay in minutes to a status.
func (d *Detector) Classify(delayMin float64) Status {
	switch {
	case delayMin > d.cfg.LateThresholdMin:
		return StatusLate
	case delayMin < -d.cfg.OnTimeBandMin:
		return StatusEarly
	default:
		// Delays between the band and the late threshold still count as on time.
		return StatusOnTime
	}
}

func (d *Detector) evaluate(ctx context.Context, snap *network.Snapshot, v *network.Vehicle, asOf time.Time) *Result {
	res := &Result{
		FleetNumber: v.FleetNumber,
		VehicleID:   v.ID,
		Status:      StatusUnknown,
		EvaluatedAt: asOf,
	}

	route := d.resolveRoute(snap, v, res)
	if route == nil {
		res.State = StateNoAssignment
		return res
	}
	res.RouteID = route.ID

	fix, ok := d.recentFix(ctx, v.ID, asOf)
	if !ok {
		res.State = StateNoRecentFix
		return res
	}
	res.Fix = &fix

	tr, err := newTrack(snap, route)
	if err != nil {
		res.State = StateNoSchedule
		return res
	}

	proj, ok := polyline.Project(tr.line, fix.Point)
	if !ok {
		res.State = StateNoSchedule
		return res
	}
	offset := proj.OffsetMeters
	res.OffsetMeters = &offset
	if offset > d.cfg.MaxOffRouteMeters {
		res.State = StateOffRoute
		return res
	}

	positionElapsed, passed := tr.elapsedAt(proj.AlongMeters)
	res.LastPassedStop = tr.stopRef(snap, passed)

	synth := schedule.New(snap, d.cfg.Location)
	deps, err := synth.Departures(route.ID, route.Direction, asOf)
	if err != nil {
		res.State = StateNoSchedule
		return res
	}
	dep, ok := d.matchTrip(deps, asOf, positionElapsed, tr.total())
	if !ok {
		res.State = StateNoSchedule
		return res
	}

	scheduleElapsed := asOf.Sub(dep)
	delay := math.Round((positionElapsed-scheduleElapsed).Minutes()*100) / 100

	res.TripDeparture = &dep
	res.TripRef = route.ID + "@" + dep.Format("2006-01-02T15:04")
	res.ExpectedStop = tr.stopRef(snap, tr.ordinalAt(scheduleElapsed))
	res.DelayMinutes = &delay
	res.Status = d.Classify(delay)
	res.State = StateEvaluated
	return res
}

// resolveRoute prefers the current assignment and falls back to the route the
// vehicle is registered on.
func (d *Detector) resolveRoute(snap *network.Snapshot, v *network.Vehicle, res *Result) *network.Route {
	if a, ok := snap.CurrentAssignment(v.ID); ok {
		if r, ok := snap.Route(a.RouteID); ok {
			res.AssignmentRef = a.ID
			return r
		}
	}
	if v.RouteID != nil {
		if r, ok := snap.Route(*v.RouteID); ok {
			return r
		}
	}
	return nil
}

func (d *Detector) recentFix(ctx context.Context, vehicleID string, asOf time.Time) (network.GpsFix, bool) {
	if d.fixes == nil {
		return network.GpsFix{}, false
	}
	fix, ok, err := d.fixes.LatestFix(ctx, vehicleID)
	if err != nil {
		d.cfg.Logger.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("fix lookup failed")
		return network.GpsFix{}, false
	}
	if !ok || !geo.Valid(fix.Point) {
		return network.GpsFix{}, false
	}
	age := asOf.Sub(fix.RecordedAt)
	if age < 0 || age > d.cfg.StalenessWindow {
		return network.GpsFix{}, false
	}
	return fix, true
}

// matchTrip returns the departure the vehicle is compared against. TripMatchLatest
// uses the most recent departure at or before asOf. TripMatchNearestProgress picks,
// among trips that have departed and may still be running, the one whose scheduled
// progress is closest to the observed progress, falling back to the most recent.
func (d *Detector) matchTrip(deps []time.Time, asOf time.Time, positionElapsed, total time.Duration) (time.Time, bool) {
	running := total + time.Duration(d.cfg.LateThresholdMin*float64(time.Minute))

	var (
		best     time.Time
		bestDiff time.Duration = -1
		latest   time.Time
		found    bool
	)
	for _, dep := range deps {
		if dep.After(asOf) {
			break
		}
		latest, found = dep, true
		if d.cfg.TripMatching != TripMatchNearestProgress {
			continue
		}

		elapsed := asOf.Sub(dep)
		if elapsed > running {
			continue
		}
		diff := elapsed - positionElapsed
		if diff < 0 {
			diff = -diff
		}
		// Later departures win ties since deps are ascending.
		if bestDiff < 0 || diff <= bestDiff {
			best, bestDiff = dep, diff
		}
	}

	if bestDiff >= 0 {
		return best, true
	}
	return latest, found
}
