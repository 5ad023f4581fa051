package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ExecutorConfig holds configuration for an Executor.
type ExecutorConfig struct {
	// Name identifies the guarded dependency.
	Name string

	// Timeout bounds a single attempt.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts after the first.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 200ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig
}

// DefaultExecutorConfig returns sensible defaults for an Executor.
func DefaultExecutorConfig(name string) ExecutorConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ExecutorConfig{
		Name:            name,
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// Executor runs operations through a circuit breaker with retries.
type Executor struct {
	cb     *gobreaker.CircuitBreaker[struct{}]
	config ExecutorConfig

	mu            sync.RWMutex
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewExecutor creates a new Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	return &Executor{
		cb:     newCircuitBreaker(cbConfig),
		config: cfg,
	}
}

// Name returns the name of the guarded dependency.
func (e *Executor) Name() string {
	return e.config.Name
}

// Execute runs op, retrying transient failures with exponential backoff.
// Errors wrapped with Permanent are not retried. Returns ErrCircuitOpen without
// calling op when the breaker is open.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.InitialInterval
	bo.MaxInterval = e.config.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by MaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, e.config.MaxRetries), ctx)

	operation := func() error {
		_, err := e.cb.Execute(func() (struct{}, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
			defer cancel()
			return struct{}{}, op(attemptCtx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		return err
	}

	err := backoff.Retry(operation, policy)
	e.record(err)
	return err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (e *Executor) record(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if err == nil {
		e.lastSuccessAt = &now
		return
	}
	e.lastFailureAt = &now
	e.lastError = err.Error()
}

// State returns the current state of the circuit breaker.
func (e *Executor) State() gobreaker.State {
	return e.cb.State()
}

// Health returns a point-in-time health report.
func (e *Executor) Health() Health {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Health{
		Name:          e.config.Name,
		CircuitState:  e.cb.State(),
		Counts:        e.cb.Counts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}
