package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/auth"
)

const testKey = "test-secret-key-for-testing-only"

func sign(t *testing.T, key string, method jwt.SigningMethod, claims auth.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func claims(roles []string, exp time.Time) auth.Claims {
	return auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "citytransit",
			Subject:   "disp-7",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles: roles,
	}
}

func TestVerifier_Verify(t *testing.T) {
	v := auth.NewVerifier(auth.VerifierConfig{SigningKey: testKey, Issuer: "citytransit"})

	token := sign(t, testKey, jwt.SigningMethodHS256, claims([]string{"dispatcher"}, time.Now().Add(time.Hour)))

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "disp-7", got.Subject)
	assert.True(t, got.HasRole("dispatcher"))
	assert.False(t, got.HasRole("admin"))
}

func TestVerifier_Rejects(t *testing.T) {
	v := auth.NewVerifier(auth.VerifierConfig{SigningKey: testKey, Issuer: "citytransit"})
	valid := claims([]string{"dispatcher"}, time.Now().Add(time.Hour))

	noExp := valid
	noExp.ExpiresAt = nil

	otherIssuer := valid
	otherIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"wrong key", sign(t, "other-key", jwt.SigningMethodHS256, valid)},
		{"wrong algorithm", sign(t, testKey, jwt.SigningMethodHS512, valid)},
		{"missing expiry", sign(t, testKey, jwt.SigningMethodHS256, noExp)},
		{"wrong issuer", sign(t, testKey, jwt.SigningMethodHS256, otherIssuer)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestVerifier_Expired(t *testing.T) {
	v := auth.NewVerifier(auth.VerifierConfig{SigningKey: testKey})
	token := sign(t, testKey, jwt.SigningMethodHS256, claims(nil, time.Now().Add(-time.Minute)))

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestVerifier_NoKeyRejectsEverything(t *testing.T) {
	v := auth.NewVerifier(auth.VerifierConfig{})
	token := sign(t, testKey, jwt.SigningMethodHS256, claims(nil, time.Now().Add(time.Hour)))

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestVerifier_Authorize(t *testing.T) {
	v := auth.NewVerifier(auth.VerifierConfig{SigningKey: testKey})

	guest := sign(t, testKey, jwt.SigningMethodHS256, claims([]string{"guest"}, time.Now().Add(time.Hour)))
	_, err := v.Authorize(guest, "dispatcher")
	assert.ErrorIs(t, err, auth.ErrForbidden)

	dispatcher := sign(t, testKey, jwt.SigningMethodHS256, claims([]string{"guest", "dispatcher"}, time.Now().Add(time.Hour)))
	c, err := v.Authorize(dispatcher, "dispatcher")
	require.NoError(t, err)
	assert.Equal(t, "disp-7", c.Subject)
}
