// Package app assembles the engine's components from configuration. It is shared
// by the API server and the worker.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/config"
	"github.com/citytransit/transitengine/internal/database"
	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/planner"
	"github.com/citytransit/transitengine/internal/resilience"
	"github.com/citytransit/transitengine/internal/telemetry"
	"github.com/citytransit/transitengine/internal/tracking"
	"github.com/citytransit/transitengine/internal/transit"
)

// App holds the wired engine.
type App struct {
	Config   *config.Config
	Location *time.Location
	Service  *transit.Service
	Store    *network.Store
	Tracker  *tracking.Tracker
	Registry *resilience.Registry

	pool   *pgxpool.Pool
	nats   *tracking.NATSSubscriber
	logger zerolog.Logger
}

// Options tunes New.
type Options struct {
	// Metrics records engine metrics. Optional.
	Metrics *telemetry.EngineMetrics

	// ConsumePositions subscribes to live GPS fixes when NATS is configured.
	ConsumePositions bool
}

// New connects to configured backends and builds the transit service. The store
// starts empty; call Rebuild before serving.
func New(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	a := &App{
		Config:   cfg,
		Location: loc,
		Tracker:  tracking.NewTracker(),
		Registry: resilience.NewRegistry(),
		logger:   logger,
	}

	var repo network.Repository
	switch cfg.Network.Source {
	case config.SourceFixture:
		repo = network.NewFixtureRepository(cfg.Network.FixturePath)
		logger.Info().Str("path", cfg.Network.FixturePath).Msg("loading network from fixture")
	default:
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.pool = pool
		repo = network.NewPostgresRepository(pool)
		logger.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
	}

	executor := resilience.NewExecutor(resilience.DefaultExecutorConfig("network-repository"))
	a.Registry.Register(executor)

	a.Store = network.NewStore(network.StoreConfig{
		Repository: repo,
		Build:      cfg.BuildOptions(),
		Executor:   executor,
		Logger:     logger,
	})

	fixes := tracking.Chain{a.Tracker}
	if a.pool != nil {
		fixes = append(fixes, tracking.NewPostgresFixRepository(a.pool))
	}

	if opts.ConsumePositions && cfg.Tracking.Enabled() {
		sub, err := tracking.NewNATSSubscriber(tracking.NATSConfig{
			URL:     cfg.Tracking.NATSURL,
			Subject: cfg.Tracking.Subject,
			Tracker: a.Tracker,
			Logger:  logger,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := sub.Start(); err != nil {
			_ = sub.Close()
			a.Close()
			return nil, err
		}
		a.nats = sub
	}

	a.Service = transit.NewService(transit.ServiceConfig{
		Snapshots: a.Store,
		Planner:   planner.New(cfg.PlannerConfig(loc, logger)),
		Detector:  deviation.New(cfg.DeviationConfig(loc, logger), fixes),
		Location:  loc,
		Metrics:   opts.Metrics,
		Logger:    logger,
	})

	return a, nil
}

// Pinger returns the database for readiness checks, or nil without one.
func (a *App) Pinger() database.Pinger {
	if a.pool == nil {
		return nil
	}
	return a.pool
}

// PruneTracker drops in-memory fixes too old to be usable, every interval, until
// ctx is done.
func (a *App) PruneTracker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := a.Tracker.Prune(now.Add(-a.Config.Deviation.StalenessWindow)); n > 0 {
				a.logger.Debug().Int("vehicles", n).Msg("pruned stale fixes")
			}
		}
	}
}

// Close releases backend connections.
func (a *App) Close() {
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing nats subscriber")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
