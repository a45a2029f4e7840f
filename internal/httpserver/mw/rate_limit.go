package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/MrSnakeDoc/portico/internal/utils"
)

type RateLimitConfig struct {
	RequestsPerMin int
	TrustProxy     bool // resolve IP from proxy headers when true
}

// RateLimit limits each client IP to RequestsPerMin over a sliding minute.
// Rejected requests get 429 with Retry-After and X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestsPerMin < 1 {
		cfg.RequestsPerMin = 1
	}
	return httprate.Limit(
		cfg.RequestsPerMin,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return utils.ClientIP(r, cfg.TrustProxy), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
}
