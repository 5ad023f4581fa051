package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/api/response"
	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/transit"
)

// StopHandlerConfig holds configuration for the stop handler.
type StopHandlerConfig struct {
	// DefaultRadiusMeters applies when the radius parameter is absent (default: 500).
	DefaultRadiusMeters float64

	// MaxRadiusMeters caps the radius parameter (default: 3000).
	MaxRadiusMeters float64

	// DefaultLimit applies when the limit parameter is absent (default: 20).
	DefaultLimit int

	// MaxLimit caps the limit parameter (default: 100).
	MaxLimit int
}

// StopHandler handles stop lookups.
type StopHandler struct {
	service *transit.Service
	cfg     StopHandlerConfig
	logger  zerolog.Logger
}

// NewStopHandler creates a new StopHandler.
func NewStopHandler(service *transit.Service, cfg StopHandlerConfig, logger zerolog.Logger) *StopHandler {
	if cfg.DefaultRadiusMeters <= 0 {
		cfg.DefaultRadiusMeters = 500
	}
	if cfg.MaxRadiusMeters <= 0 {
		cfg.MaxRadiusMeters = 3000
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &StopHandler{service: service, cfg: cfg, logger: logger}
}

// Nearby handles GET /v1/stops:nearby?lat=&lon=&radius=&limit=.
func (h *StopHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fieldErrs []models.FieldError

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lat", Message: "must be a number", Code: "REQUIRED"})
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lon", Message: "must be a number", Code: "REQUIRED"})
	}

	radius := h.cfg.DefaultRadiusMeters
	if v := q.Get("radius"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 || radius > h.cfg.MaxRadiusMeters {
			fieldErrs = append(fieldErrs, models.FieldError{
				Field:   "radius",
				Message: "must be between 0 and " + strconv.FormatFloat(h.cfg.MaxRadiusMeters, 'f', -1, 64),
				Code:    "OUT_OF_RANGE",
			})
		}
	}

	limit := h.cfg.DefaultLimit
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > h.cfg.MaxLimit {
			fieldErrs = append(fieldErrs, models.FieldError{
				Field:   "limit",
				Message: "must be between 1 and " + strconv.Itoa(h.cfg.MaxLimit),
				Code:    "OUT_OF_RANGE",
			})
		}
	}

	p := geo.Point{Lat: lat, Lon: lon}
	if len(fieldErrs) == 0 && !geo.Valid(p) {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lat", Message: "coordinate out of range", Code: "OUT_OF_RANGE"})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid stop query", fieldErrs)
		return
	}

	stops, err := h.service.NearbyStops(r.Context(), p, radius, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := models.NearbyStopsResponse{Stops: make([]models.NearbyStop, 0, len(stops))}
	for _, s := range stops {
		ns := models.NearbyStop{
			ID:             s.Stop.ID,
			Name:           s.Stop.Name,
			Location:       models.NewPoint(s.Stop.Point),
			DistanceMeters: s.DistanceMeters,
			Routes:         make([]models.RouteSummary, 0, len(s.Routes)),
		}
		for _, route := range s.Routes {
			ns.Routes = append(ns.Routes, models.RouteSummary{
				ID:            route.ID,
				Number:        route.Number,
				TransportType: h.service.TransportTypeName(route),
				Direction:     string(route.Direction),
			})
		}
		out.Stops = append(out.Stops, ns)
	}
	out.Count = len(out.Stops)
	response.JSON(w, r, http.StatusOK, out)
}
