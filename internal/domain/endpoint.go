package domain

import "time"

const (
	// DefaultProbeTimeout applies when an endpoint does not declare its own timeout.
	DefaultProbeTimeout = 3 * time.Second
)

// ServiceEndpoint is a downstream service the gateway fronts.
//
// Endpoints are loaded once at boot and never mutated afterwards.
// Name is the unique identifier used in readiness reports.
type ServiceEndpoint struct {
	// Name is the logical service name (ex: "users").
	Name string

	// URL is the GraphQL endpoint of the service, used both for probes
	// and for SDL retrieval during composition.
	URL string

	// Timeout bounds a single probe attempt.
	Timeout time.Duration

	// MaxRetries is the number of extra probe attempts after a failure.
	MaxRetries int
}
