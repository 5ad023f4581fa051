package planner

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/schedule"
)

// minWalkMeters is the distance below which a walking leg is omitted.
const minWalkMeters = 1.0

// Config contains configuration for the planner.
type Config struct {
	// Defaults fill in options a request leaves unset.
	Defaults Options

	// MaxRadiusMeters is the hard upper bound on the search radius.
	MaxRadiusMeters float64

	// MaxResultsCap is the hard upper bound on returned options.
	MaxResultsCap int

	// Location is the time zone of service dates.
	Location *time.Location

	// Now supplies the reference time when a request has none.
	Now func() time.Time

	// Logger is used for per-candidate failures.
	Logger zerolog.Logger
}

// DefaultConfig returns the standard planner configuration.
func DefaultConfig() Config {
	return Config{
		Defaults: Options{
			RadiusMeters:       700,
			MaxResults:         10,
			MaxFirstLegMinutes: 45,
			WalkingSpeedKmh:    4.5,
		},
		MaxRadiusMeters: 3000,
		MaxResultsCap:   50,
		Location:        time.Local,
		Now:             time.Now,
		Logger:          zerolog.Nop(),
	}
}

// Planner finds direct and single-transfer itineraries. It holds no per-request
// state and is safe for concurrent use.
type Planner struct {
	cfg Config
}

// New creates a planner. Zero fields of cfg take DefaultConfig values.
func New(cfg Config) *Planner {
	def := DefaultConfig()
	if cfg.Defaults.RadiusMeters <= 0 {
		cfg.Defaults.RadiusMeters = def.Defaults.RadiusMeters
	}
	if cfg.Defaults.MaxResults <= 0 {
		cfg.Defaults.MaxResults = def.Defaults.MaxResults
	}
	if cfg.Defaults.MaxFirstLegMinutes <= 0 {
		cfg.Defaults.MaxFirstLegMinutes = def.Defaults.MaxFirstLegMinutes
	}
	if cfg.Defaults.WalkingSpeedKmh <= 0 {
		cfg.Defaults.WalkingSpeedKmh = def.Defaults.WalkingSpeedKmh
	}
	if cfg.MaxRadiusMeters <= 0 {
		cfg.MaxRadiusMeters = def.MaxRadiusMeters
	}
	if cfg.MaxResultsCap <= 0 {
		cfg.MaxResultsCap = def.MaxResultsCap
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Planner{cfg: cfg}
}

// Plan returns itineraries from req.From to req.To ranked by total time, then
// transfers, then distance. No nearby transit, no service and exhausted departures
// all yield an empty result rather than an error; only malformed input fails.
func (p *Planner) Plan(ctx context.Context, snap *network.Snapshot, req Request) ([]RouteOption, error) {
	opts, err := p.resolve(req)
	if err != nil {
		return nil, err
	}
	at := req.At
	if at.IsZero() {
		at = p.cfg.Now()
	}

	walkLimit := opts.RadiusMeters
	if opts.MaxWalkMeters > 0 && opts.MaxWalkMeters < walkLimit {
		walkLimit = opts.MaxWalkMeters
	}
	origins := snap.StopsWithinRadius(req.From, walkLimit)
	dests := snap.StopsWithinRadius(req.To, walkLimit)
	if len(origins) == 0 || len(dests) == 0 {
		return []RouteOption{}, nil
	}

	s := &search{
		p:     p,
		snap:  snap,
		synth: schedule.New(snap, p.cfg.Location),
		opts:  opts,
		at:    at,
		dests: make(map[string]network.StopHit, len(dests)),
		best:  make(map[string]RouteOption),
	}
	for _, d := range dests {
		s.dests[d.Stop.ID] = d
	}

	for _, o := range origins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.fromOrigin(o)
	}

	return s.results(), nil
}

func (p *Planner) resolve(req Request) (Options, error) {
	if !geo.Valid(req.From) {
		return Options{}, &InputError{Field: "from", Reason: "coordinate out of range"}
	}
	if !geo.Valid(req.To) {
		return Options{}, &InputError{Field: "to", Reason: "coordinate out of range"}
	}

	in, def := req.Options, p.cfg.Defaults
	switch {
	case in.RadiusMeters < 0 || math.IsNaN(in.RadiusMeters):
		return Options{}, &InputError{Field: "radiusMeters", Reason: "must be positive"}
	case in.MaxResults < 0:
		return Options{}, &InputError{Field: "maxResults", Reason: "must be positive"}
	case in.MaxWaitMin != nil && (*in.MaxWaitMin < 0 || math.IsNaN(*in.MaxWaitMin)):
		return Options{}, &InputError{Field: "maxWaitMin", Reason: "must not be negative"}
	case in.MaxFirstLegMinutes < 0:
		return Options{}, &InputError{Field: "maxFirstLegMinutes", Reason: "must be positive"}
	case in.MaxWalkMeters < 0:
		return Options{}, &InputError{Field: "maxWalkMeters", Reason: "must not be negative"}
	case in.WalkingSpeedKmh < 0:
		return Options{}, &InputError{Field: "walkingSpeedKmh", Reason: "must be positive"}
	}

	out := in
	if out.RadiusMeters == 0 {
		out.RadiusMeters = def.RadiusMeters
	}
	if out.MaxResults == 0 {
		out.MaxResults = def.MaxResults
	}
	if out.MaxWaitMin == nil {
		out.MaxWaitMin = def.MaxWaitMin
	}
	if out.MaxFirstLegMinutes == 0 {
		out.MaxFirstLegMinutes = def.MaxFirstLegMinutes
	}
	if out.MaxWalkMeters == 0 {
		out.MaxWalkMeters = def.MaxWalkMeters
	}
	if out.WalkingSpeedKmh == 0 {
		out.WalkingSpeedKmh = def.WalkingSpeedKmh
	}

	out.RadiusMeters = math.Min(out.RadiusMeters, p.cfg.MaxRadiusMeters)
	if out.MaxResults > p.cfg.MaxResultsCap {
		out.MaxResults = p.cfg.MaxResultsCap
	}
	return out, nil
}

// search is the working state of one Plan call.
type search struct {
	p     *Planner
	snap  *network.Snapshot
	synth *schedule.Synthesizer
	opts  Options
	at    time.Time
	dests map[string]network.StopHit
	best  map[string]RouteOption
}

// boarding is a first-leg departure from an origin stop.
type boarding struct {
	origin network.StopHit
	route  *network.Route
	stops  []network.RouteStop
	from   int
	walk   *Walk
	dep    schedule.Departure
	wait   time.Duration
}

func (s *search) fromOrigin(o network.StopHit) {
	walkTo := s.walk(o.DistanceMeters)
	ready := s.at.Add(walkTo.dur())

	for _, ra := range s.snap.RoutesServingStop(o.Stop.ID) {
		route, _ := s.snap.Route(ra.RouteID)
		stops, err := s.snap.StopsOnRoute(route.ID, route.Direction)
		if err != nil {
			s.skip(err, route.ID, o.Stop.ID)
			continue
		}

		dep, ok, err := s.synth.NextDepartureAtOrAfter(route.ID, route.Direction, ra.Ordinal, ready)
		if err != nil {
			s.skip(err, route.ID, o.Stop.ID)
			continue
		}
		if !ok {
			continue
		}
		wait := dep.AtStop.Sub(ready)
		if s.opts.MaxWaitMin != nil && wait.Minutes() > *s.opts.MaxWaitMin {
			continue
		}

		b := boarding{origin: o, route: route, stops: stops, from: ra.Ordinal, walk: walkTo, dep: dep, wait: wait}
		s.direct(b)
		s.transfers(b)
	}
}

func (s *search) direct(b boarding) {
	for j := b.from + 1; j < len(b.stops); j++ {
		dest, ok := s.dests[b.stops[j].StopID]
		if !ok {
			continue
		}
		seg, err := s.segment(b.route, b.from, j, b.dep.AtStop, b.wait)
		if err != nil {
			s.skip(err, b.route.ID, b.origin.Stop.ID)
			continue
		}
		s.offer(b.walk, []Segment{seg}, s.walk(dest.DistanceMeters))
	}
}

func (s *search) transfers(b boarding) {
	budget := time.Duration(s.opts.MaxFirstLegMinutes * float64(time.Minute))

	for k := b.from + 1; k < len(b.stops); k++ {
		first, err := s.segment(b.route, b.from, k, b.dep.AtStop, b.wait)
		if err != nil {
			s.skip(err, b.route.ID, b.origin.Stop.ID)
			return
		}
		if first.ride > budget {
			return
		}

		transferStop := b.stops[k].StopID
		for _, rb := range s.snap.RoutesServingStop(transferStop) {
			if rb.RouteID == b.route.ID {
				continue
			}
			s.secondLeg(b, first, rb)
		}
	}
}

func (s *search) secondLeg(b boarding, first Segment, rb network.RouteAt) {
	route, _ := s.snap.Route(rb.RouteID)
	stops, err := s.snap.StopsOnRoute(route.ID, route.Direction)
	if err != nil {
		s.skip(err, route.ID, first.To.ID)
		return
	}

	var (
		dep     schedule.Departure
		fetched bool
	)
	for m := rb.Ordinal + 1; m < len(stops); m++ {
		dest, ok := s.dests[stops[m].StopID]
		if !ok {
			continue
		}
		if !fetched {
			var found bool
			dep, found, err = s.synth.NextDepartureAtOrAfter(route.ID, route.Direction, rb.Ordinal, first.Arrival)
			if err != nil {
				s.skip(err, route.ID, first.To.ID)
				return
			}
			if !found {
				return
			}
			fetched = true
		}

		second, err := s.segment(route, rb.Ordinal, m, dep.AtStop, dep.AtStop.Sub(first.Arrival))
		if err != nil {
			s.skip(err, route.ID, first.To.ID)
			continue
		}
		s.offer(b.walk, []Segment{first, second}, s.walk(dest.DistanceMeters))
	}
}

func (s *search) segment(route *network.Route, from, to int, depart time.Time, wait time.Duration) (Segment, error) {
	ride, err := s.snap.SegmentTravelTime(route.ID, route.Direction, from, to)
	if err != nil {
		return Segment{}, err
	}
	km, err := s.snap.SegmentDistanceKm(route.ID, route.Direction, from, to)
	if err != nil {
		return Segment{}, err
	}
	stops, _ := s.snap.StopsOnRoute(route.ID, route.Direction)

	return Segment{
		RouteID:       route.ID,
		RouteNumber:   route.Number,
		TransportType: s.snap.TransportTypeName(route),
		Direction:     route.Direction,
		From:          s.stopRef(stops[from]),
		To:            s.stopRef(stops[to]),
		DistanceKm:    km,
		TravelMinutes: ride.Minutes(),
		WaitMinutes:   wait.Minutes(),
		Departure:     depart,
		Arrival:       depart.Add(ride),
		wait:          wait,
		ride:          ride,
	}, nil
}

func (s *search) stopRef(rs network.RouteStop) StopRef {
	ref := StopRef{ID: rs.StopID, Ordinal: rs.Ordinal}
	if st, ok := s.snap.Stop(rs.StopID); ok {
		ref.Name = st.Name
		ref.Point = st.Point
	}
	return ref
}

func (s *search) walk(meters float64) *Walk {
	if meters < minWalkMeters {
		return nil
	}
	d := time.Duration(meters / 1000 / s.opts.WalkingSpeedKmh * float64(time.Hour)).Round(time.Second)
	return &Walk{DistanceMeters: meters, Minutes: d.Minutes(), duration: d}
}

func (w *Walk) dur() time.Duration {
	if w == nil {
		return 0
	}
	return w.duration
}

func (w *Walk) km() float64 {
	if w == nil {
		return 0
	}
	return w.DistanceMeters / 1000
}

// offer assembles an option and keeps it if it beats the current best for the
// same route sequence.
func (s *search) offer(walkTo *Walk, segs []Segment, walkFrom *Walk) {
	total := walkTo.dur() + walkFrom.dur()
	km := walkTo.km() + walkFrom.km()
	ids := make([]string, len(segs))
	for i, seg := range segs {
		total += seg.wait + seg.ride
		km += seg.DistanceKm
		ids[i] = seg.RouteID
	}

	last := segs[len(segs)-1]
	opt := RouteOption{
		Segments:        segs,
		WalkToStop:      walkTo,
		WalkFromStop:    walkFrom,
		Transfers:       len(segs) - 1,
		TotalMinutes:    total.Minutes(),
		TotalDistanceKm: km,
		Departure:       segs[0].Departure,
		Arrival:         last.Arrival.Add(walkFrom.dur()),
		total:           total,
		key:             strings.Join(ids, ">"),
	}

	if cur, ok := s.best[opt.key]; !ok || less(opt, cur) {
		s.best[opt.key] = opt
	}
}

func (s *search) skip(err error, routeID, stopID string) {
	s.p.cfg.Logger.Warn().
		Err(err).
		Str("route_id", routeID).
		Str("stop_id", stopID).
		Msg("skipping planner candidate")
}

func (s *search) results() []RouteOption {
	out := make([]RouteOption, 0, len(s.best))
	for _, opt := range s.best {
		out = append(out, opt)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > s.opts.MaxResults {
		out = out[:s.opts.MaxResults]
	}
	return out
}

// less orders options by total time, transfers, distance, then departure and
// route sequence so equal inputs always rank the same way.
func less(a, b RouteOption) bool {
	if a.total != b.total {
		return a.total < b.total
	}
	if a.Transfers != b.Transfers {
		return a.Transfers < b.Transfers
	}
	if a.TotalDistanceKm != b.TotalDistanceKm {
		return a.TotalDistanceKm < b.TotalDistanceKm
	}
	if !a.Departure.Equal(b.Departure) {
		return a.Departure.Before(b.Departure)
	}
	if a.key != b.key {
		return a.key < b.key
	}
	return stopKey(a) < stopKey(b)
}

func stopKey(o RouteOption) string {
	parts := make([]string, 0, 2*len(o.Segments))
	for _, seg := range o.Segments {
		parts = append(parts, seg.From.ID, seg.To.ID)
	}
	return strings.Join(parts, ">")
}
