package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/api/middleware"
	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/auth"
)

const signingKey = "test-secret-key-for-testing-only"

// testVerifier returns a verifier and a function minting tokens it accepts.
func testVerifier(t *testing.T) (*auth.Verifier, func(subject string, roles ...string) string) {
	t.Helper()
	v := auth.NewVerifier(auth.VerifierConfig{SigningKey: signingKey})
	mint := func(subject string, roles ...string) string {
		claims := auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   subject,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Roles: roles,
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
		require.NoError(t, err)
		return s
	}
	return v, mint
}

func TestRequireRole(t *testing.T) {
	verifier, mint := testVerifier(t)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "disp-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Roles: []string{"dispatcher"},
	}).SignedString([]byte(signingKey))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		detail string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing authorization header"},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "invalid authorization header format"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "missing bearer token"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "invalid access token"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "access token has expired"},
		{"missing role", "Bearer " + mint("rider-1", "rider"), http.StatusForbidden, "token lacks the dispatcher role"},
		{"dispatcher", "Bearer " + mint("disp-1", "dispatcher"), http.StatusOK, ""},
		{"lowercase scheme", "bearer " + mint("disp-1", "dispatcher"), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject string
			handler := middleware.RequireRole(verifier, "dispatcher")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = middleware.GetSubject(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/vehicles/deviations", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "disp-1", subject)
				return
			}

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.detail, problem.Detail)
			assert.Equal(t, "/v1/vehicles/deviations", problem.Instance)
			if tt.status == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestGetSubject_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetSubject(req.Context()))
}
