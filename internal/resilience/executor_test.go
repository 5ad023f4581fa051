package resilience_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/resilience"
)

func fastConfig(name string) resilience.ExecutorConfig {
	cfg := resilience.DefaultExecutorConfig(name)
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	return cfg
}

func TestExecutor_Success(t *testing.T) {
	e := resilience.NewExecutor(fastConfig("store"))

	var calls atomic.Int32
	err := e.Execute(context.Background(), func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	h := e.Health()
	assert.Equal(t, "store", h.Name)
	assert.True(t, h.IsHealthy())
	assert.NotNil(t, h.LastSuccessAt)
	assert.Nil(t, h.LastFailureAt)
}

func TestExecutor_RetriesTransientFailures(t *testing.T) {
	cfg := fastConfig("store-retry")
	cfg.MaxRetries = 5
	cb := resilience.DefaultCircuitBreakerConfig("store-retry")
	cb.ReadyToTrip = func(gobreaker.Counts) bool { return false }
	cfg.CircuitBreaker = &cb
	e := resilience.NewExecutor(cfg)

	var calls atomic.Int32
	err := e.Execute(context.Background(), func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load(), "should have retried until success")
}

func TestExecutor_PermanentErrorNotRetried(t *testing.T) {
	e := resilience.NewExecutor(fastConfig("store-permanent"))
	bad := errors.New("bad fixture")

	var calls atomic.Int32
	err := e.Execute(context.Background(), func(context.Context) error {
		calls.Add(1)
		return resilience.Permanent(bad)
	})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, int32(1), calls.Load())

	h := e.Health()
	assert.Equal(t, "bad fixture", h.LastError)
	assert.NotNil(t, h.LastFailureAt)
}

func TestExecutor_CircuitOpens(t *testing.T) {
	cfg := fastConfig("store-trip")
	cfg.MaxRetries = 0
	cb := resilience.DefaultCircuitBreakerConfig("store-trip")
	cb.Timeout = time.Minute
	cfg.CircuitBreaker = &cb
	e := resilience.NewExecutor(cfg)

	failing := func(context.Context) error { return errors.New("down") }
	for i := 0; i < 3; i++ {
		_ = e.Execute(context.Background(), failing)
	}
	assert.Equal(t, gobreaker.StateOpen, e.State())
	assert.True(t, e.Health().IsUnhealthy())

	var calls atomic.Int32
	err := e.Execute(context.Background(), func(context.Context) error {
		calls.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Zero(t, calls.Load())
}

func TestExecutor_AttemptTimeout(t *testing.T) {
	cfg := fastConfig("store-timeout")
	cfg.MaxRetries = 0
	cfg.Timeout = 20 * time.Millisecond
	e := resilience.NewExecutor(cfg)

	err := e.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultReadyToTrip(t *testing.T) {
	assert.False(t, resilience.DefaultReadyToTrip(gobreaker.Counts{ConsecutiveFailures: 2}))
	assert.True(t, resilience.DefaultReadyToTrip(gobreaker.Counts{ConsecutiveFailures: 3}))
}

func TestRegistry_AllHealthSorted(t *testing.T) {
	r := resilience.NewRegistry()
	r.Register(resilience.NewExecutor(fastConfig("postgres")))
	r.Register(resilience.NewExecutor(fastConfig("fixture")))

	health := r.AllHealth()
	require.Len(t, health, 2)
	assert.Equal(t, "fixture", health[0].Name)
	assert.Equal(t, "postgres", health[1].Name)
	assert.False(t, health[0].IsDegraded())
}
