package auth

import "errors"

// Failure classes. Every one of them collapses to an anonymous context at the
// gate; they exist for logs and metrics only and are never sent to clients.
var (
	// ErrMalformedCredential: the Authorization header is missing or not "Bearer <value>".
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrExpiredCredential: a signed token whose exp is in the past.
	ErrExpiredCredential = errors.New("expired credential")
	// ErrInvalidSignature: a signed token that is malformed, has a bad signature,
	// an unexpected algorithm, or no subject.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrUnknownCredential: any other local validation failure.
	ErrUnknownCredential = errors.New("unknown credential failure")
	// ErrUnverifiableRemote: the authority could not be reached or answered garbage.
	ErrUnverifiableRemote = errors.New("remote authority unreachable")
	// ErrRemoteRejected: the authority answered and said no.
	ErrRemoteRejected = errors.New("remote authority rejected credential")
)

// Outcome labels used in logs and metrics.
const (
	OutcomeAuthenticated      = "authenticated"
	OutcomeAnonymous          = "anonymous"
	OutcomeExpired            = "expired"
	OutcomeInvalidSignature   = "invalid_signature"
	OutcomeUnverifiableRemote = "unverifiable_remote"
	OutcomeRemoteRejected     = "remote_rejected"
	OutcomeUnknown            = "unknown"
)

// Outcome maps a validation error to its label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeAuthenticated
	case errors.Is(err, ErrMalformedCredential):
		return OutcomeAnonymous
	case errors.Is(err, ErrExpiredCredential):
		return OutcomeExpired
	case errors.Is(err, ErrInvalidSignature):
		return OutcomeInvalidSignature
	case errors.Is(err, ErrUnverifiableRemote):
		return OutcomeUnverifiableRemote
	case errors.Is(err, ErrRemoteRejected):
		return OutcomeRemoteRejected
	default:
		return OutcomeUnknown
	}
}
