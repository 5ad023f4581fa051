package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/api/response"
	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/planner"
)

// planFields maps planner option names to request body paths.
var planFields = map[string]string{
	"from":          "from",
	"to":            "to",
	"radiusMeters":  "options.radiusMeters",
	"maxWaitMin":    "options.maxWaitMinutes",
	"maxResults":    "options.maxResults",
	"maxWalkMeters": "options.maxWalkMeters",
}

// writeError maps engine errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var inputErr *planner.InputError
	switch {
	case errors.As(err, &inputErr):
		field, ok := planFields[inputErr.Field]
		if !ok {
			field = inputErr.Field
		}
		response.BadRequest(w, r, inputErr.Error(), []models.FieldError{
			{Field: field, Message: inputErr.Reason, Code: "INVALID"},
		})
	case errors.Is(err, planner.ErrInvalidInput), errors.Is(err, deviation.ErrInvalidInput):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, network.ErrRouteNotFound),
		errors.Is(err, network.ErrStopNotFound),
		errors.Is(err, deviation.ErrVehicleNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, network.ErrNoSnapshot):
		response.ServiceUnavailable(w, r, "the transit network has not been loaded yet")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("request canceled")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
