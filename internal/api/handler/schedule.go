package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/api/response"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/transit"
	"github.com/citytransit/transitengine/pkg/polyline"
)

const dateLayout = "2006-01-02"

// scheduleMaxAge is how long clients may reuse a timetable.
const scheduleMaxAge = 5 * time.Minute

// ScheduleHandler serves synthesized timetables.
type ScheduleHandler struct {
	service *transit.Service
	logger  zerolog.Logger
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(service *transit.Service, logger zerolog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, logger: logger}
}

// GetSchedule handles GET /v1/routes/{routeId}/schedule?direction=&date=.
// Direction defaults to forward and date to today in the service time zone.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")
	loc := h.service.Location()
	q := r.URL.Query()

	dir := network.DirectionForward
	if v := q.Get("direction"); v != "" {
		parsed, err := network.ParseDirection(v)
		if err != nil {
			response.BadRequest(w, r, "invalid direction", []models.FieldError{
				{Field: "direction", Message: "must be one of: forward reverse", Code: "INVALID"},
			})
			return
		}
		dir = parsed
	}

	date := time.Now().In(loc)
	if v := q.Get("date"); v != "" {
		parsed, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			response.BadRequest(w, r, "invalid date", []models.FieldError{
				{Field: "date", Message: "must be formatted as YYYY-MM-DD", Code: "INVALID"},
			})
			return
		}
		date = parsed
	}

	tt, err := h.service.SynthesizeSchedule(r.Context(), routeID, dir, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := models.ScheduleResponse{
		Route: models.RouteSummary{
			ID:            tt.Route.ID,
			Number:        tt.Route.Number,
			TransportType: h.service.TransportTypeName(tt.Route),
			Direction:     string(tt.Route.Direction),
		},
		ServiceDate: tt.ServiceDate.Format(dateLayout),
		Stops:       make([]models.ScheduleStop, 0, len(tt.Stops)),
		Departures:  make([]models.Timestamp, 0, len(tt.Departures)),
		Arrivals:    make([]models.Timestamp, 0, len(tt.Arrivals)),
	}
	if tt.Schedule != nil {
		out.Schedule = &models.ScheduleWindow{
			ID:              tt.Schedule.ID,
			WorkStart:       tt.Schedule.WorkStart.String(),
			WorkEnd:         tt.Schedule.WorkEnd.String(),
			IntervalMinutes: tt.Schedule.IntervalMin,
		}
	}
	for _, st := range tt.Stops {
		out.Stops = append(out.Stops, models.ScheduleStop{
			ID:            st.StopID,
			Name:          st.StopName,
			Ordinal:       st.Ordinal,
			OffsetMinutes: st.Offset.Minutes(),
		})
	}
	for _, d := range tt.Departures {
		out.Departures = append(out.Departures, models.Timestamp(d))
	}
	for _, a := range tt.Arrivals {
		out.Arrivals = append(out.Arrivals, models.Timestamp(a))
	}

	if pts, err := h.service.RouteGeometry(tt.Route.ID, tt.Route.Direction); err == nil {
		out.Geometry = polyline.Encode(pts)
	} else {
		h.logger.Warn().Err(err).Str("route_id", tt.Route.ID).Msg("route geometry unavailable")
	}

	response.Cached(w, r, scheduleMaxAge, out)
}
