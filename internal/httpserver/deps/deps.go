package deps

import (
	"context"
	"net/url"
	"time"

	"github.com/MrSnakeDoc/portico/internal/auth"
	"github.com/MrSnakeDoc/portico/internal/compose"
	"github.com/MrSnakeDoc/portico/internal/logger"
	"github.com/MrSnakeDoc/portico/internal/observability"
	"github.com/MrSnakeDoc/portico/internal/readiness"
)

// RevocationPublisher announces a revoked credential hash to peer gateways.
type RevocationPublisher interface {
	Publish(ctx context.Context, key string) error
}

// Pinger reports whether a backing component answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SupergraphSource returns the last composed supergraph.
type SupergraphSource interface {
	Current() (compose.Supergraph, bool)
}

// CredentialInvalidator forgets a cached opaque credential.
type CredentialInvalidator interface {
	Invalidate(credential string)
}

// CacheSizer reports the number of cached validation results.
type CacheSizer interface {
	Len() int
}

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	InstanceID      string           // unique per process, reported in /health/detailed
	TimeNow         func() time.Time // for testing, defaults to time.Now
	AllowedHosts    []string         // Host headers allowed on operational endpoints
	AllowedCIDRS    []string         // IPs allowed on operational endpoints
	TrustProxy      bool             // true if running behind a trusted reverse proxy
	RateLimitPerMin int              // data plane requests per client IP per minute
	SSLRedirect     bool
	RequestTimeout  time.Duration

	Gate        *auth.Gate
	Credentials CredentialInvalidator // local revocation of opaque credentials
	Revocations RevocationPublisher   // nil when Redis is disabled
	Redis       Pinger                // nil when Redis is disabled
	Cache       CacheSizer
	Readiness   *readiness.Machine
	Supergraph  SupergraphSource
	EngineURL   *url.URL // upstream query engine for /graphql
	Metrics     *observability.Metrics

	HealthCheckTrigger chan struct{} // manual probe trigger, buffered (1)
}

// Now returns the current time using TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
