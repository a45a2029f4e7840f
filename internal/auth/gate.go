package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

// DefaultGateTimeout is the most a request waits on authentication.
const DefaultGateTimeout = 6 * time.Second

// AuthContext is what the gate attaches to every request. The zero value is
// the anonymous context.
type AuthContext struct {
	Authenticated bool
	Identity      *domain.Identity
	Scheme        Scheme
}

// Anonymous is returned whenever authentication does not succeed.
var Anonymous = AuthContext{}

// SelfContainedValidator verifies signed tokens without I/O.
type SelfContainedValidator interface {
	Validate(credential string) (domain.Identity, error)
}

// ReferenceValidator resolves opaque tokens against the authority.
type ReferenceValidator interface {
	Validate(ctx context.Context, credential string) (domain.Identity, error)
}

// Gate turns an Authorization header into an AuthContext. It never fails a
// request: every error collapses to Anonymous and is only logged.
type Gate struct {
	local    SelfContainedValidator
	remote   ReferenceValidator
	timeout  time.Duration
	log      logger.Logger
	recorder Recorder
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateTimeout bounds the whole authentication step.
func WithGateTimeout(d time.Duration) GateOption {
	return func(g *Gate) { g.timeout = d }
}

// WithGateRecorder wires metrics.
func WithGateRecorder(r Recorder) GateOption {
	return func(g *Gate) { g.recorder = r }
}

// NewGate routes self-contained credentials to local and opaque references
// to remote.
func NewGate(local SelfContainedValidator, remote ReferenceValidator, log logger.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		local:    local,
		remote:   remote,
		timeout:  DefaultGateTimeout,
		log:      log,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate validates the bearer credential carried by header.
func (g *Gate) Authenticate(ctx context.Context, header string) AuthContext {
	credential, ok := ParseBearer(header)
	if !ok {
		if header != "" {
			g.log.Debug("authorization header ignored",
				logger.Error(ErrMalformedCredential))
		}
		g.recorder.ObserveAuth(SchemeNone, OutcomeAnonymous)
		return Anonymous
	}

	scheme := Classify(credential)
	identity, err := g.validate(ctx, scheme, credential)
	outcome := Outcome(err)
	g.recorder.ObserveAuth(scheme, outcome)

	if err != nil {
		g.logFailure(scheme, outcome, err)
		return Anonymous
	}

	return AuthContext{
		Authenticated: true,
		Identity:      &identity,
		Scheme:        scheme,
	}
}

func (g *Gate) validate(ctx context.Context, scheme Scheme, credential string) (domain.Identity, error) {
	switch scheme {
	case SchemeOpaqueReference:
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.remote.Validate(ctx, credential)
	case SchemeSelfContained:
		return g.local.Validate(credential)
	default:
		return domain.Identity{}, fmt.Errorf("%w: scheme %q", ErrUnknownCredential, scheme)
	}
}

func (g *Gate) logFailure(scheme Scheme, outcome string, err error) {
	fields := []logger.Field{
		logger.String("scheme", string(scheme)),
		logger.String("outcome", outcome),
		logger.Error(err),
	}
	// An unreachable authority is an operational problem, the rest is client noise.
	if errors.Is(err, ErrUnverifiableRemote) {
		g.log.Warn("credential could not be verified", fields...)
		return
	}
	g.log.Debug("credential rejected", fields...)
}
