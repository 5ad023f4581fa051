package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/auth"
)

// subjectKey is the context key for the authenticated token subject.
type subjectKey struct{}

// RequireRole returns middleware that accepts only bearer tokens granting role.
// Missing or invalid tokens get 401, valid tokens without the role get 403.
func RequireRole(verifier *auth.Verifier, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, detail := bearerToken(r)
			if detail != "" {
				writeAuthProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), detail))
				return
			}

			claims, err := verifier.Authorize(token, role)
			if err != nil {
				traceID := GetRequestID(r.Context())
				switch {
				case errors.Is(err, auth.ErrForbidden):
					writeAuthProblem(w, r, models.NewForbidden(traceID, "token lacks the "+role+" role"))
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeAuthProblem(w, r, models.NewUnauthorized(traceID, "access token has expired"))
				default:
					writeAuthProblem(w, r, models.NewUnauthorized(traceID, "invalid access token"))
				}
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "invalid authorization header format"
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// writeAuthProblem is local to avoid an import cycle with the response package.
func writeAuthProblem(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	if problem.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="transit"`)
	}
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetSubject retrieves the authenticated token subject from the context.
// Returns an empty string for unauthenticated requests.
func GetSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(subjectKey{}).(string); ok {
		return sub
	}
	return ""
}
