package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/deviation"
)

// FleetDetector evaluates every vehicle. *transit.Service implements it.
type FleetDetector interface {
	DetectAll(ctx context.Context, asOf time.Time) ([]*deviation.Result, error)
}

// DeviationMonitor periodically sweeps the fleet and logs vehicles running late
// or early.
type DeviationMonitor struct {
	config   MonitorConfig
	detector FleetDetector
	logger   zerolog.Logger

	mu   sync.RWMutex
	last *SweepResult
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	AsOf     time.Time
	Duration time.Duration
	Counts   map[deviation.Status]int
	Err      error
}

// NewDeviationMonitor creates a new deviation monitor.
func NewDeviationMonitor(cfg MonitorConfig, detector FleetDetector, logger zerolog.Logger) *DeviationMonitor {
	def := DefaultMonitorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &DeviationMonitor{config: cfg, detector: detector, logger: logger}
}

// Sweep evaluates the fleet once.
func (m *DeviationMonitor) Sweep(ctx context.Context) *SweepResult {
	start := time.Now()
	result := &SweepResult{
		AsOf:   m.config.Now(),
		Counts: make(map[deviation.Status]int),
	}

	sweepCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	results, err := m.detector.DetectAll(sweepCtx, result.AsOf)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err
		m.logger.Warn().Err(err).Msg("deviation sweep failed")
		m.store(result)
		return result
	}

	for _, res := range results {
		result.Counts[res.Status]++
		if res.Status != deviation.StatusLate && res.Status != deviation.StatusEarly {
			continue
		}
		event := m.logger.Warn().
			Str("fleet_number", res.FleetNumber).
			Str("vehicle_id", res.VehicleID).
			Str("route_id", res.RouteID).
			Str("status", string(res.Status)).
			Str("trip", res.TripRef)
		if res.DelayMinutes != nil {
			event = event.Float64("delay_minutes", *res.DelayMinutes)
		}
		if res.ExpectedStop != nil {
			event = event.Str("expected_stop", res.ExpectedStop.Name)
		}
		event.Msg("vehicle off schedule")
	}

	m.logger.Info().
		Int("vehicles", len(results)).
		Int("late", result.Counts[deviation.StatusLate]).
		Int("early", result.Counts[deviation.StatusEarly]).
		Int("on_time", result.Counts[deviation.StatusOnTime]).
		Int("unknown", result.Counts[deviation.StatusUnknown]).
		Dur("duration", result.Duration).
		Msg("deviation sweep completed")

	m.store(result)
	return result
}

// Run sweeps on every interval tick until ctx is done.
func (m *DeviationMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.config.Interval).Msg("starting deviation monitor")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Last returns the most recent sweep, or nil before the first one.
func (m *DeviationMonitor) Last() *SweepResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// MetricsSnapshot returns the last sweep as a map for health endpoints.
func (m *DeviationMonitor) MetricsSnapshot() map[string]interface{} {
	last := m.Last()
	if last == nil {
		return map[string]interface{}{"sweeps": 0}
	}
	out := map[string]interface{}{
		"last_as_of":    last.AsOf,
		"last_duration": last.Duration.String(),
		"late":          last.Counts[deviation.StatusLate],
		"early":         last.Counts[deviation.StatusEarly],
		"on_time":       last.Counts[deviation.StatusOnTime],
		"unknown":       last.Counts[deviation.StatusUnknown],
	}
	if last.Err != nil {
		out["last_error"] = last.Err.Error()
	}
	return out
}

func (m *DeviationMonitor) store(r *SweepResult) {
	m.mu.Lock()
	m.last = r
	m.mu.Unlock()
}
