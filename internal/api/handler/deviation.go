package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/api/response"
	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/transit"
)

// DeviationHandler serves schedule adherence to dispatchers.
type DeviationHandler struct {
	service *transit.Service
	logger  zerolog.Logger
}

// NewDeviationHandler creates a new DeviationHandler.
func NewDeviationHandler(service *transit.Service, logger zerolog.Logger) *DeviationHandler {
	return &DeviationHandler{service: service, logger: logger}
}

// GetDeviation handles GET /v1/vehicles/{fleetNumber}/deviation?asOf=.
func (h *DeviationHandler) GetDeviation(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	res, err := h.service.DetectDeviation(r.Context(), chi.URLParam(r, "fleetNumber"), asOf)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Live(w, r, toDeviation(res))
}

// ListDeviations handles GET /v1/vehicles/deviations?asOf=&status=.
func (h *DeviationHandler) ListDeviations(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	var filter deviation.Status
	if v := r.URL.Query().Get("status"); v != "" {
		filter = deviation.Status(v)
		switch filter {
		case deviation.StatusOnTime, deviation.StatusEarly, deviation.StatusLate, deviation.StatusUnknown:
		default:
			response.BadRequest(w, r, "invalid status filter", []models.FieldError{
				{Field: "status", Message: "must be one of: on_time early late unknown", Code: "INVALID"},
			})
			return
		}
	}

	results, err := h.service.DetectAll(r.Context(), asOf)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	board := models.DeviationBoard{
		AsOf:       models.Timestamp(asOf),
		Deviations: make([]models.Deviation, 0, len(results)),
		Counts:     make(map[string]int),
	}
	for _, res := range results {
		board.Counts[string(res.Status)]++
		if filter != "" && res.Status != filter {
			continue
		}
		board.Deviations = append(board.Deviations, toDeviation(res))
	}
	if len(results) > 0 {
		board.AsOf = models.Timestamp(results[0].EvaluatedAt)
	}
	response.Live(w, r, board)
}

// asOf parses the optional RFC3339 asOf parameter, defaulting to now.
func (h *DeviationHandler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("asOf")
	if v == "" {
		return time.Now().In(h.service.Location()), true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		response.BadRequest(w, r, "invalid asOf", []models.FieldError{
			{Field: "asOf", Message: "must be an RFC3339 timestamp", Code: "INVALID"},
		})
		return time.Time{}, false
	}
	return t.In(h.service.Location()), true
}
