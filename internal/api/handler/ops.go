// Package handler provides HTTP handlers for the transit engine API.
package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/api/response"
	"github.com/citytransit/transitengine/internal/database"
	"github.com/citytransit/transitengine/internal/resilience"
	"github.com/citytransit/transitengine/internal/transit"
)

// OpsConfig holds the dependencies of the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Service reports snapshot readiness.
	Service *transit.Service

	// DB is pinged by the readiness check when set.
	DB database.Pinger

	// Registry lists guarded upstream dependencies. Optional.
	Registry *resilience.Registry
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The engine is ready once a snapshot
// is loaded and, when configured, the database answers.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	details := map[string]interface{}{}
	ready := true

	status := h.cfg.Service.Status()
	details["snapshotVersion"] = status.Version
	if !status.Ready {
		ready = false
		details["snapshot"] = "not loaded"
	}

	if h.cfg.DB != nil {
		if err := database.Check(r.Context(), h.cfg.DB); err != nil {
			ready = false
			details["database"] = err.Error()
		}
	}

	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	}
	code := http.StatusOK
	if !ready {
		health.Status = models.HealthStatusFail
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - snapshot, subsystem and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	snap := h.cfg.Service.Status()

	out := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(now),
		Snapshot: models.SnapshotStatus{
			Ready:    snap.Ready,
			Version:  snap.Version,
			Stops:    snap.Stops,
			Routes:   snap.Routes,
			Vehicles: snap.Vehicles,
		},
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}
	if snap.Ready {
		out.Snapshot.BuiltAt = models.NewTimestamp(&snap.BuiltAt)
		out.Subsystems = append(out.Subsystems, models.SubsystemStatus{Name: "network-snapshot", Status: models.HealthStatusOK})
	} else {
		out.Subsystems = append(out.Subsystems, models.SubsystemStatus{Name: "network-snapshot", Status: models.HealthStatusFail, Detail: strPtr("not loaded")})
	}

	if h.cfg.DB != nil {
		sub := models.SubsystemStatus{Name: "database", Status: models.HealthStatusOK}
		if err := database.Check(r.Context(), h.cfg.DB); err != nil {
			sub.Status = models.HealthStatusFail
			sub.Detail = strPtr(err.Error())
		}
		out.Subsystems = append(out.Subsystems, sub)
	}

	if h.cfg.Registry != nil {
		for _, hl := range h.cfg.Registry.AllHealth() {
			out.Providers = append(out.Providers, providerStatus(hl))
		}
	}

	out.Status = overall(out)
	response.JSON(w, r, http.StatusOK, out)
}

func providerStatus(hl resilience.Health) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:      hl.Name,
		Status:        models.HealthStatusOK,
		CircuitState:  hl.CircuitState.String(),
		LastSuccessAt: models.NewTimestamp(hl.LastSuccessAt),
		LastFailureAt: models.NewTimestamp(hl.LastFailureAt),
	}
	switch hl.CircuitState {
	case gobreaker.StateHalfOpen:
		ps.Status = models.HealthStatusDegraded
	case gobreaker.StateOpen:
		ps.Status = models.HealthStatusFail
	}
	if hl.LastError != "" {
		ps.Message = strPtr(hl.LastError)
	}
	return ps
}

// overall is FAIL when a subsystem fails, DEGRADED when only providers are impaired.
func overall(s models.SystemStatus) models.HealthStatus {
	for _, sub := range s.Subsystems {
		if sub.Status == models.HealthStatusFail {
			return models.HealthStatusFail
		}
	}
	for _, p := range s.Providers {
		if p.Status != models.HealthStatusOK {
			return models.HealthStatusDegraded
		}
	}
	return models.HealthStatusOK
}

func strPtr(s string) *string { return &s }
