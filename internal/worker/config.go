// Package worker runs the engine's background jobs: snapshot rebuilds triggered by
// Pub/Sub or a timer, and the periodic deviation monitor.
package worker

import "time"

// RebuildConfig holds configuration for snapshot rebuild jobs.
type RebuildConfig struct {
	// Interval between fallback rebuilds. Zero disables the loop.
	// Default: 15 minutes
	Interval time.Duration

	// Timeout bounds a single rebuild.
	// Default: 2 minutes
	Timeout time.Duration
}

// DefaultRebuildConfig returns the default rebuild configuration.
func DefaultRebuildConfig() RebuildConfig {
	return RebuildConfig{
		Interval: 15 * time.Minute,
		Timeout:  2 * time.Minute,
	}
}

// MonitorConfig holds configuration for the deviation monitor.
type MonitorConfig struct {
	// Interval between deviation sweeps.
	// Default: 1 minute
	Interval time.Duration

	// Timeout bounds a single sweep.
	// Default: 30 seconds
	Timeout time.Duration

	// Now supplies the evaluation instant (default: time.Now).
	Now func() time.Time
}

// DefaultMonitorConfig returns the default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		Now:      time.Now,
	}
}
