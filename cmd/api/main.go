// Package main provides the entrypoint for the transit engine API server.
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

	"github.com/citytransit/transitengine/internal/api"
	"github.com/citytransit/transitengine/internal/api/handler"
	"github.com/citytransit/transitengine/internal/api/middleware"
	"github.com/citytransit/transitengine/internal/app"
	"github.com/citytransit/transitengine/internal/auth"
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
	const serviceName = "transit-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting transit API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telCfg := telemetry.ConfigFromEnv(serviceName, Version, cfg.Service.Environment)
	tp, err := telemetry.Init(ctx, telCfg)
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

	if telCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
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

	// A failed first load leaves the API unready until a later rebuild succeeds.
	if _, err := engine.Service.Rebuild(ctx); err != nil {
		log.Error().Err(err).Msg("initial network load failed")
	}

	if cfg.Auth.SigningKey == "" {
		log.Warn().Msg("JWT_SIGNING_KEY not set - dispatcher endpoints will reject every token")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		ServiceName: serviceName,
		Logger:      log,
		Metrics:     metrics,
		Service:     engine.Service,
		Verifier: auth.NewVerifier(auth.VerifierConfig{
			SigningKey: cfg.Auth.SigningKey,
			Issuer:     cfg.Auth.Issuer,
		}),
		DispatcherRole: cfg.Auth.DispatcherRole,
		DB:             engine.Pinger(),
		Registry:       engine.Registry,
		PlanRateLimit:  middleware.PerMinute(cfg.HTTP.PlanRequestsPerMinute),
		Stops: handler.StopHandlerConfig{
			MaxRadiusMeters: cfg.Planner.MaxRadiusCapMeters,
		},
	})

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	rebuildJob := worker.NewRebuildJob(worker.RebuildJobConfig{
		Config: worker.RebuildConfig{
			Interval: cfg.Network.RebuildInterval,
			Timeout:  worker.DefaultRebuildConfig().Timeout,
		},
		Rebuilder: engine.Service,
		Logger:    log,
	})
	go rebuildJob.Loop(bgCtx)

	// Each process holds its own snapshot, so the API consumes rebuild notices too.
	if cfg.PubSub.Enabled() {
		pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Dispatcher:       worker.NewDispatcher(rebuildJob, nil, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := pubsubHandler.Close(); err != nil {
				log.Warn().Err(err).Msg("closing pubsub client")
			}
		}()

		go func() {
			if err := pubsubHandler.Start(bgCtx); err != nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}
	go engine.PruneTracker(bgCtx, cfg.Deviation.StalenessWindow)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopBackground()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
