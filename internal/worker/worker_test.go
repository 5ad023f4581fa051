package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/transit"
	"github.com/citytransit/transitengine/internal/worker"
)

type fakeRebuilder struct {
	mu      sync.Mutex
	version int64
	err     error
	calls   int
	ready   bool
}

func (f *fakeRebuilder) Rebuild(context.Context) (*network.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.version++
	f.ready = true
	return &network.Snapshot{Version: f.version}, nil
}

func (f *fakeRebuilder) Status() transit.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return transit.Status{Ready: f.ready, Version: f.version}
}

func (f *fakeRebuilder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDetector struct {
	results []*deviation.Result
	err     error
	asOf    time.Time
}

func (f *fakeDetector) DetectAll(_ context.Context, asOf time.Time) ([]*deviation.Result, error) {
	f.asOf = asOf
	return f.results, f.err
}

func float(v float64) *float64 { return &v }

func newRebuildJob(r worker.Rebuilder, interval time.Duration) *worker.RebuildJob {
	return worker.NewRebuildJob(worker.RebuildJobConfig{
		Config:    worker.RebuildConfig{Interval: interval, Timeout: time.Second},
		Rebuilder: r,
		Logger:    zerolog.Nop(),
	})
}

func TestDefaultConfigs(t *testing.T) {
	rc := worker.DefaultRebuildConfig()
	assert.Equal(t, 15*time.Minute, rc.Interval)
	assert.Equal(t, 2*time.Minute, rc.Timeout)

	mc := worker.DefaultMonitorConfig()
	assert.Equal(t, time.Minute, mc.Interval)
	assert.Equal(t, 30*time.Second, mc.Timeout)
	assert.NotNil(t, mc.Now)
}

func TestRebuildJob_Run(t *testing.T) {
	r := &fakeRebuilder{}
	job := newRebuildJob(r, 0)

	result := job.Run(context.Background(), "test")
	require.NoError(t, result.Err)
	assert.Equal(t, int64(1), result.Version)
	assert.Equal(t, "test", result.Reason)
	assert.True(t, job.Ready())

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.TotalRuns)
	assert.Equal(t, int64(1), m.Successful)
	assert.Equal(t, int64(0), m.Failed)
	assert.Equal(t, int64(1), m.LastVersion)
	assert.Empty(t, m.LastError)
}

func TestRebuildJob_RunFailure(t *testing.T) {
	r := &fakeRebuilder{}
	job := newRebuildJob(r, 0)
	require.NoError(t, job.Run(context.Background(), "first").Err)

	r.err = errors.New("db down")
	result := job.Run(context.Background(), "second")
	require.Error(t, result.Err)

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(1), m.Failed)
	assert.Equal(t, int64(1), m.LastVersion)
	assert.Equal(t, "db down", m.LastError)

	snap := job.MetricsSnapshot()
	assert.Equal(t, int64(2), snap["total_runs"])
	assert.Equal(t, "db down", snap["last_error"])
}

func TestRebuildJob_LoopDisabled(t *testing.T) {
	r := &fakeRebuilder{}
	job := newRebuildJob(r, 0)

	done := make(chan struct{})
	go func() {
		job.Loop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not return with a zero interval")
	}
	assert.Equal(t, 0, r.Calls())
}

func TestRebuildJob_LoopTicks(t *testing.T) {
	r := &fakeRebuilder{}
	job := newRebuildJob(r, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Loop(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestDeviationMonitor_Sweep(t *testing.T) {
	asOf := time.Date(2024, 3, 4, 8, 20, 0, 0, time.UTC)
	det := &fakeDetector{results: []*deviation.Result{
		{FleetNumber: "1005", Status: deviation.StatusLate, DelayMinutes: float(4)},
		{FleetNumber: "1001", Status: deviation.StatusOnTime, DelayMinutes: float(0)},
		{FleetNumber: "1003", Status: deviation.StatusEarly, DelayMinutes: float(-3), ExpectedStop: &deviation.StopRef{Name: "B"}},
		{FleetNumber: "1002", Status: deviation.StatusUnknown},
		{FleetNumber: "1004", Status: deviation.StatusUnknown},
	}}
	mon := worker.NewDeviationMonitor(worker.MonitorConfig{
		Now: func() time.Time { return asOf },
	}, det, zerolog.Nop())

	assert.Nil(t, mon.Last())
	assert.Equal(t, 0, mon.MetricsSnapshot()["sweeps"])

	result := mon.Sweep(context.Background())
	require.NoError(t, result.Err)
	assert.Equal(t, asOf, det.asOf)
	assert.Equal(t, 1, result.Counts[deviation.StatusLate])
	assert.Equal(t, 1, result.Counts[deviation.StatusEarly])
	assert.Equal(t, 1, result.Counts[deviation.StatusOnTime])
	assert.Equal(t, 2, result.Counts[deviation.StatusUnknown])

	assert.Same(t, result, mon.Last())
	snap := mon.MetricsSnapshot()
	assert.Equal(t, 1, snap["late"])
	assert.Equal(t, 2, snap["unknown"])
}

func TestDeviationMonitor_SweepError(t *testing.T) {
	det := &fakeDetector{err: network.ErrNoSnapshot}
	mon := worker.NewDeviationMonitor(worker.MonitorConfig{}, det, zerolog.Nop())

	result := mon.Sweep(context.Background())
	assert.ErrorIs(t, result.Err, network.ErrNoSnapshot)
	assert.Equal(t, network.ErrNoSnapshot.Error(), mon.MetricsSnapshot()["last_error"])
}

func TestDispatcher_Handle(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		rebuildErr  error
		ready       bool
		wantJob     string
		wantErr     bool
		wantRebuild int
	}{
		{
			name:        "snapshot rebuild",
			payload:     `{"job_type":"snapshot_rebuild","reason":"feed update"}`,
			wantJob:     worker.JobSnapshotRebuild,
			wantRebuild: 1,
		},
		{
			name:        "snapshot rebuild fails",
			payload:     `{"job_type":"snapshot_rebuild"}`,
			rebuildErr:  errors.New("db down"),
			wantJob:     worker.JobSnapshotRebuild,
			wantErr:     true,
			wantRebuild: 1,
		},
		{
			name:    "health check with snapshot",
			payload: `{"job_type":"health_check"}`,
			ready:   true,
			wantJob: worker.JobHealthCheck,
		},
		{
			name:        "health check loads missing snapshot",
			payload:     `{"job_type":"health_check"}`,
			wantJob:     worker.JobHealthCheck,
			wantRebuild: 1,
		},
		{
			name:        "health check fails without snapshot",
			payload:     `{"job_type":"health_check"}`,
			rebuildErr:  errors.New("db down"),
			wantJob:     worker.JobHealthCheck,
			wantErr:     true,
			wantRebuild: 1,
		},
		{
			name:    "deviation sweep",
			payload: `{"job_type":"deviation_sweep"}`,
			wantJob: worker.JobDeviationSweep,
		},
		{
			name:    "unknown job is acknowledged",
			payload: `{"job_type":"provider_refresh"}`,
			wantJob: "provider_refresh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRebuilder{err: tt.rebuildErr, ready: tt.ready}
			mon := worker.NewDeviationMonitor(worker.MonitorConfig{}, &fakeDetector{}, zerolog.Nop())
			d := worker.NewDispatcher(newRebuildJob(r, 0), mon, zerolog.Nop())

			job, err := d.Handle(context.Background(), []byte(tt.payload))
			assert.Equal(t, tt.wantJob, job)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantRebuild, r.Calls())
		})
	}
}

func TestDispatcher_MalformedMessage(t *testing.T) {
	d := worker.NewDispatcher(newRebuildJob(&fakeRebuilder{}, 0), nil, zerolog.Nop())

	_, err := d.Handle(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, worker.ErrMalformedMessage)
}

func TestDispatcher_SweepWithoutMonitor(t *testing.T) {
	d := worker.NewDispatcher(newRebuildJob(&fakeRebuilder{}, 0), nil, zerolog.Nop())

	_, err := d.Handle(context.Background(), []byte(`{"job_type":"deviation_sweep"}`))
	assert.Error(t, err)
}

func TestHealthRouter(t *testing.T) {
	r := &fakeRebuilder{}
	job := newRebuildJob(r, 0)
	mon := worker.NewDeviationMonitor(worker.MonitorConfig{}, &fakeDetector{}, zerolog.Nop())
	h := worker.NewHealthRouter("1.2.3", job, mon)

	get := func() (*httptest.ResponseRecorder, worker.HealthResponse) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var body worker.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec, body
	}

	rec, body := get()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, models.HealthStatusFail, body.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	job.Run(context.Background(), "test")

	rec, body = get()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.HealthStatusOK, body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Contains(t, body.Jobs, "snapshot_rebuild")
	assert.Contains(t, body.Jobs, "deviation_monitor")
	assert.EqualValues(t, 1, body.Jobs["snapshot_rebuild"]["successful"])
}
