package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/api/middleware"
	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/api/response"
	"github.com/citytransit/transitengine/internal/transit"
)

// AdminHandler handles dispatcher maintenance operations.
type AdminHandler struct {
	service *transit.Service
	logger  zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *transit.Service, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

// RebuildSnapshot handles POST /v1/admin/snapshot:rebuild. A failed rebuild
// leaves the previous snapshot serving.
func (h *AdminHandler) RebuildSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Rebuild(r.Context())
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("requested_by", middleware.GetSubject(r.Context())).
			Msg("snapshot rebuild failed")
		response.ServiceUnavailable(w, r, "snapshot rebuild failed; the previous network stays in effect")
		return
	}

	h.logger.Info().
		Int64("version", snap.Version).
		Str("requested_by", middleware.GetSubject(r.Context())).
		Msg("snapshot rebuilt on request")

	response.JSON(w, r, http.StatusOK, models.RebuildResponse{
		Version: snap.Version,
		BuiltAt: models.Timestamp(snap.BuiltAt),
		Stops:   snap.StopCount(),
		Routes:  len(snap.Routes()),
	})
}
