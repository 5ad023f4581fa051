// Package middleware provides HTTP middleware for the transit engine API.
package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// Header names accepted as a request identifier, in priority order. Dispatch
// consoles forward the AVL feed's X-Correlation-Id when they have no request id.
const (
	HeaderRequestID     = "X-Request-Id"
	HeaderCorrelationID = "X-Correlation-Id"
)

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID tags every journey, schedule and deviation request with an id that
// follows it through logs, spans and problem responses. The id is echoed in
// X-Request-Id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := incomingRequestID(r)
		w.Header().Set(HeaderRequestID, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func incomingRequestID(r *http.Request) string {
	for _, h := range []string{HeaderRequestID, HeaderCorrelationID} {
		if id := r.Header.Get(h); validRequestID.MatchString(id) {
			return id
		}
	}
	return "req_" + uuid.New().String()[:22]
}

// GetRequestID returns the request id, or "" outside a RequestID chain.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
