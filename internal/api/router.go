// Package api provides the HTTP API of the transit engine.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/api/handler"
	"github.com/citytransit/transitengine/internal/api/middleware"
	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/auth"
	"github.com/citytransit/transitengine/internal/database"
	"github.com/citytransit/transitengine/internal/resilience"
	"github.com/citytransit/transitengine/internal/transit"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics

	Service  *transit.Service
	Verifier *auth.Verifier
	// DispatcherRole guards deviation, status and admin endpoints (default: "dispatcher").
	DispatcherRole string

	// DB is pinged by the readiness check. Optional.
	DB database.Pinger
	// Registry reports guarded upstream dependencies. Optional.
	Registry *resilience.Registry

	// PlanRateLimit applies per client IP to journey planning
	// (default: middleware.ExpensiveRateLimit).
	PlanRateLimit middleware.RateLimitConfig
	Stops         handler.StopHandlerConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if cfg.ServiceName == "" {
		cfg.ServiceName = "transit-api"
	}
	if cfg.DispatcherRole == "" {
		cfg.DispatcherRole = "dispatcher"
	}
	if cfg.PlanRateLimit.RequestLimit <= 0 {
		cfg.PlanRateLimit = middleware.ExpensiveRateLimit
	}
	if cfg.Verifier == nil {
		// No signing key: every dispatcher request is rejected.
		cfg.Verifier = auth.NewVerifier(auth.VerifierConfig{})
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)                // Generate/propagate request ID first
	r.Use(middleware.Tracing(cfg.ServiceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewNotFound(middleware.GetRequestID(r.Context()), "no such endpoint")
		problem.Instance = r.URL.Path
		problem.Write(w)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Service:   cfg.Service,
		DB:        cfg.DB,
		Registry:  cfg.Registry,
	})
	journeyHandler := handler.NewJourneyHandler(cfg.Service, cfg.Logger)
	stopHandler := handler.NewStopHandler(cfg.Service, cfg.Stops, cfg.Logger)
	scheduleHandler := handler.NewScheduleHandler(cfg.Service, cfg.Logger)
	deviationHandler := handler.NewDeviationHandler(cfg.Service, cfg.Logger)
	adminHandler := handler.NewAdminHandler(cfg.Service, cfg.Logger)

	dispatcherOnly := middleware.RequireRole(cfg.Verifier, cfg.DispatcherRole)
	dispatcherRateLimit := middleware.RateLimitBySubject(middleware.DispatcherRateLimit)
	planRateLimit := middleware.RateLimitByIP(cfg.PlanRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(dispatcherOnly).Get("/status", opsHandler.SystemStatus)
		})

		// Journey planning - expensive compute, strict rate limiting
		r.With(planRateLimit, middleware.RequireJSON).Post("/journeys:plan", journeyHandler.Plan)

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/stops:nearby", stopHandler.Nearby)
			r.Get("/routes/{routeId}/schedule", scheduleHandler.GetSchedule)
		})

		// Dispatcher endpoints
		r.Group(func(r chi.Router) {
			r.Use(dispatcherOnly)
			r.Use(dispatcherRateLimit)
			r.Get("/vehicles/deviations", deviationHandler.ListDeviations)
			r.Get("/vehicles/{fleetNumber}/deviation", deviationHandler.GetDeviation)
			r.Post("/admin/snapshot:rebuild", adminHandler.RebuildSnapshot)
		})
	})

	return r
}
