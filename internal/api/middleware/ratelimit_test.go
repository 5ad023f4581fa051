package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/api/middleware"
	"github.com/citytransit/transitengine/internal/api/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 3,
		WindowLength: time.Minute,
	})(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/stops:nearby", http.NoBody)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/stops:nearby", http.NoBody)
	req.RemoteAddr = "10.0.0.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeTooManyRequests, problem.Type)
	assert.Equal(t, "/v1/stops:nearby", problem.Instance)

	// Another client is unaffected.
	req = httptest.NewRequest(http.MethodGet, "/v1/stops:nearby", http.NoBody)
	req.RemoteAddr = "10.0.0.2:12345"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitBySubject_KeysOnTokenSubject(t *testing.T) {
	verifier, tokenFor := testVerifier(t)
	handler := middleware.RequireRole(verifier, "dispatcher")(
		middleware.RateLimitBySubject(middleware.PerMinute(1))(okHandler()),
	)

	send := func(subject, ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/vehicles/deviations", http.NoBody)
		req.RemoteAddr = ip
		req.Header.Set("Authorization", "Bearer "+tokenFor(subject, "dispatcher"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("disp-1", "10.0.0.1:1"))
	// Same subject from another address shares the budget.
	assert.Equal(t, http.StatusTooManyRequests, send("disp-1", "10.0.0.9:1"))
	// Another subject from the first address has its own.
	assert.Equal(t, http.StatusOK, send("disp-2", "10.0.0.1:1"))
}

func TestRateLimitBySubject_FallsBackToIP(t *testing.T) {
	handler := middleware.RateLimitBySubject(middleware.PerMinute(1))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "10.1.1.1:1"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPerMinute(t *testing.T) {
	cfg := middleware.PerMinute(42)
	assert.Equal(t, 42, cfg.RequestLimit)
	assert.Equal(t, time.Minute, cfg.WindowLength)
}
