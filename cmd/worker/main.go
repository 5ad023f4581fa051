// Package main provides the entrypoint for the transit engine background worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/citytransit/transitengine/internal/app"
	"github.com/citytransit/transitengine/internal/config"
	"github.com/citytransit/transitengine/internal/telemetry"
	"github.com/citytransit/transitengine/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "transit-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting transit worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version, cfg.Service.Environment))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	engineMetrics, err := telemetry.NewEngineMetrics(telemetry.Meter(serviceName))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine metrics")
	}

	engine, err := app.New(ctx, cfg, app.Options{
		Metrics:          engineMetrics,
		ConsumePositions: true,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine")
	}
	defer engine.Close()

	rebuildJob := worker.NewRebuildJob(worker.RebuildJobConfig{
		Config: worker.RebuildConfig{
			Interval: cfg.Network.RebuildInterval,
			Timeout:  worker.DefaultRebuildConfig().Timeout,
		},
		Rebuilder: engine.Service,
		Logger:    log,
	})
	rebuildJob.Run(ctx, "startup")

	monitor := worker.NewDeviationMonitor(worker.MonitorConfig{
		Interval: cfg.Deviation.MonitorInterval,
	}, engine.Service, log)

	dispatcher := worker.NewDispatcher(rebuildJob, monitor, log)

	// Health endpoint for the container platform.
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      worker.NewHealthRouter(Version, rebuildJob, monitor),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		rebuildJob.Loop(gctx)
		return nil
	})

	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})

	g.Go(func() error {
		engine.PruneTracker(gctx, cfg.Deviation.StalenessWindow)
		return nil
	})

	if cfg.PubSub.Enabled() {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Warn().Err(err).Msg("closing pubsub client")
			}
		}()

		g.Go(func() error {
			return handler.Start(gctx)
		})
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - rebuilds run on the interval only")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down worker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker stopped with error")
		return
	}

	log.Info().Msg("worker stopped")
}
