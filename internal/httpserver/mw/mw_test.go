package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/portico/internal/auth"
	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8"}, false, logger.NewNop())(ok)

	r := httptest.NewRequest(http.MethodGet, "/infra", nil)
	r.RemoteAddr = "10.1.1.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)

	r.RemoteAddr = "192.0.2.1:1234"
	r.Header.Set("X-Forwarded-For", "10.1.1.1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code, "proxy headers are ignored unless trusted")

	trusted := AllowOnlyCIDRS([]string{"10.0.0.0/8"}, true, logger.NewNop())(ok)
	rec = httptest.NewRecorder()
	trusted.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAllowOnlyCIDRSEmptyIsPassthrough(t *testing.T) {
	h := AllowOnlyCIDRS(nil, false, logger.NewNop())(ok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"gw.example.com", "*.internal"}, logger.NewNop())(ok)

	tests := []struct {
		host string
		want int
	}{
		{"gw.example.com", http.StatusOK},
		{"GW.example.com:8080", http.StatusOK},
		{"api.internal", http.StatusOK},
		{"internal", http.StatusForbidden},
		{"evil.com", http.StatusForbidden},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Host = tt.host
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, tt.want, rec.Code, tt.host)
	}
}

type fixedLocal struct{}

func (fixedLocal) Validate(string) (domain.Identity, error) {
	return domain.Identity{ID: "u-1"}, nil
}

type unusedRemote struct{}

func (unusedRemote) Validate(context.Context, string) (domain.Identity, error) {
	return domain.Identity{}, auth.ErrRemoteRejected
}

func TestAuthenticateAttachesContext(t *testing.T) {
	gate := auth.NewGate(fixedLocal{}, unusedRemote{}, logger.NewNop())

	var got auth.AuthContext
	h := Authenticate(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer signed.token.value")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.True(t, got.Authenticated)
	assert.Equal(t, "u-1", got.Identity.ID)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer 1|opaque")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.False(t, got.Authenticated)
	assert.Equal(t, http.StatusOK, rec.Code, "auth failures never fail the request")
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerMin: 2})(ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/graphql", nil)
		r.RemoteAddr = "198.51.100.7:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestSecureHeaders(t *testing.T) {
	h := SecureHeaders(false)(ok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
