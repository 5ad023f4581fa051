package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citytransit/transitengine/internal/api/middleware"
	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/api/response"
)

// HealthResponse is the body of the worker health endpoint.
type HealthResponse struct {
	Status  models.HealthStatus               `json:"status"`
	Version string                            `json:"version"`
	Jobs    map[string]map[string]interface{} `json:"jobs"`
}

// NewHealthRouter serves GET /health. The worker is healthy once a snapshot is in
// effect. monitor may be nil.
func NewHealthRouter(version string, rebuild *RebuildJob, monitor *DeviationMonitor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		resp := HealthResponse{
			Status:  models.HealthStatusOK,
			Version: version,
			Jobs: map[string]map[string]interface{}{
				"snapshot_rebuild": rebuild.MetricsSnapshot(),
			},
		}
		if monitor != nil {
			resp.Jobs["deviation_monitor"] = monitor.MetricsSnapshot()
		}

		status := http.StatusOK
		if !rebuild.Ready() {
			resp.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
		response.JSON(w, req, status, resp)
	})

	return r
}
