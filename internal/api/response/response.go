// Package response writes engine results and problems with request correlation and
// cache headers suited to how long each answer stays true.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/citytransit/transitengine/internal/api/middleware"
	"github.com/citytransit/transitengine/internal/api/models"
)

// JSON writes data with status and echoes the request id.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// Cached writes a 200 response that shared caches may keep for maxAge. Timetables
// only change when the network snapshot is rebuilt.
func Cached(w http.ResponseWriter, r *http.Request, maxAge time.Duration, data interface{}) {
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	JSON(w, r, http.StatusOK, data)
}

// Live writes a 200 response computed from vehicle positions, which must not be
// cached.
func Live(w http.ResponseWriter, r *http.Request, data interface{}) {
	w.Header().Set("Cache-Control", "no-store")
	JSON(w, r, http.StatusOK, data)
}

// Error writes problem for the current request path.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest rejects invalid input, listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

// NotFound reports an unknown route, stop or vehicle.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

// InternalError reports an unexpected failure without leaking its cause.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

// ServiceUnavailable reports that no network snapshot can answer yet.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
