package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/api/response"
	"github.com/citytransit/transitengine/internal/planner"
	"github.com/citytransit/transitengine/internal/transit"
)

// maxPlanBody bounds the journey request body.
const maxPlanBody = 64 << 10

// JourneyHandler handles journey planning.
type JourneyHandler struct {
	service *transit.Service
	logger  zerolog.Logger
}

// NewJourneyHandler creates a new JourneyHandler.
func NewJourneyHandler(service *transit.Service, logger zerolog.Logger) *JourneyHandler {
	return &JourneyHandler{service: service, logger: logger}
}

// Plan handles POST /v1/journeys:plan.
func (h *JourneyHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req models.PlanRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxPlanBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		detail := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			detail = "request body is required"
		}
		response.BadRequest(w, r, detail, nil)
		return
	}
	if fieldErrs := models.Validate(req); len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid journey request", fieldErrs)
		return
	}

	preq := planner.Request{
		From: req.From.Geo(),
		To:   req.To.Geo(),
	}
	if req.DepartureTime != nil {
		preq.At = req.DepartureTime.Time()
	} else {
		preq.At = time.Now().In(h.service.Location())
	}
	if o := req.Options; o != nil {
		if o.RadiusMeters != nil {
			preq.Options.RadiusMeters = *o.RadiusMeters
		}
		if o.MaxResults != nil {
			preq.Options.MaxResults = *o.MaxResults
		}
		if o.MaxWalkMeters != nil {
			preq.Options.MaxWalkMeters = *o.MaxWalkMeters
		}
		preq.Options.MaxWaitMin = o.MaxWaitMinutes
	}

	options, err := h.service.Plan(r.Context(), preq)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := toRouteOptions(options)
	response.JSON(w, r, http.StatusOK, models.PlanResponse{Options: out, Count: len(out)})
}
