package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/transit"
)

// Rebuilder reloads the network. *transit.Service implements it.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*network.Snapshot, error)
	Status() transit.Status
}

// RebuildJob rebuilds the network snapshot and keeps run statistics.
type RebuildJob struct {
	config    RebuildConfig
	rebuilder Rebuilder
	logger    zerolog.Logger

	metrics *RebuildMetrics
}

// RebuildMetrics tracks rebuild job statistics.
type RebuildMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns  int64
	Successful int64
	Failed     int64

	// Last outcome
	LastRunAt     time.Time
	LastDuration  time.Duration
	LastVersion   int64
	LastError     string
	TotalDuration time.Duration
}

// RebuildJobConfig holds configuration for creating a RebuildJob.
type RebuildJobConfig struct {
	Config    RebuildConfig
	Rebuilder Rebuilder
	Logger    zerolog.Logger
}

// NewRebuildJob creates a new rebuild job.
func NewRebuildJob(cfg RebuildJobConfig) *RebuildJob {
	config := cfg.Config
	if config.Timeout <= 0 {
		config.Timeout = DefaultRebuildConfig().Timeout
	}

	return &RebuildJob{
		config:    config,
		rebuilder: cfg.Rebuilder,
		logger:    cfg.Logger,
		metrics:   &RebuildMetrics{},
	}
}

// RebuildResult contains the result of one rebuild.
type RebuildResult struct {
	StartTime time.Time
	Duration  time.Duration
	Reason    string
	Version   int64
	Err       error
}

// Run rebuilds the snapshot once. On failure the previous snapshot keeps serving.
func (j *RebuildJob) Run(ctx context.Context, reason string) *RebuildResult {
	result := &RebuildResult{StartTime: time.Now(), Reason: reason}

	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	snap, err := j.rebuilder.Rebuild(runCtx)
	result.Duration = time.Since(result.StartTime)
	if err != nil {
		result.Err = err
		j.logger.Error().
			Err(err).
			Str("reason", reason).
			Dur("duration", result.Duration).
			Msg("snapshot rebuild failed")
	} else {
		result.Version = snap.Version
		j.logger.Info().
			Str("reason", reason).
			Int64("version", snap.Version).
			Dur("duration", result.Duration).
			Msg("snapshot rebuilt")
	}

	j.updateMetrics(result)
	return result
}

// Ready reports whether a snapshot is in effect.
func (j *RebuildJob) Ready() bool {
	return j.rebuilder.Status().Ready
}

// Loop rebuilds on every interval tick until ctx is done. A non-positive interval
// returns immediately.
func (j *RebuildJob) Loop(ctx context.Context) {
	if j.config.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.config.Interval).Msg("starting snapshot rebuild loop")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx, "interval")
		}
	}
}

func (j *RebuildJob) updateMetrics(result *RebuildResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.LastRunAt = result.StartTime
	j.metrics.LastDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
	if result.Err != nil {
		j.metrics.Failed++
		j.metrics.LastError = result.Err.Error()
		return
	}
	j.metrics.Successful++
	j.metrics.LastVersion = result.Version
	j.metrics.LastError = ""
}

// GetMetrics returns a copy of the current metrics.
func (j *RebuildJob) GetMetrics() RebuildMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RebuildMetrics{
		TotalRuns:     j.metrics.TotalRuns,
		Successful:    j.metrics.Successful,
		Failed:        j.metrics.Failed,
		LastRunAt:     j.metrics.LastRunAt,
		LastDuration:  j.metrics.LastDuration,
		LastVersion:   j.metrics.LastVersion,
		LastError:     j.metrics.LastError,
		TotalDuration: j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for health endpoints.
func (j *RebuildJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":     m.TotalRuns,
		"successful":     m.Successful,
		"failed":         m.Failed,
		"last_run_at":    m.LastRunAt,
		"last_duration":  m.LastDuration.String(),
		"last_version":   m.LastVersion,
		"last_error":     m.LastError,
		"total_duration": m.TotalDuration.String(),
	}
}
