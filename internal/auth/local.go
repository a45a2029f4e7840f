package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrSnakeDoc/portico/internal/domain"
)

// Claim names tried, in order, for each identity field.
var (
	subjectClaims     = []string{"sub", "user_id", "userId", "id"}
	displayNameClaims = []string{"name", "nombre", "display_name"}
)

// LocalValidator verifies self-contained HMAC-signed tokens with a shared secret.
// It does no I/O.
type LocalValidator struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// LocalOption configures a LocalValidator.
type LocalOption func(*LocalValidator)

// WithLeeway tolerates clock skew on exp/nbf/iat.
func WithLeeway(d time.Duration) LocalOption {
	return func(v *LocalValidator) { v.leeway = d }
}

// WithLocalClock replaces time.Now, for tests.
func WithLocalClock(now func() time.Time) LocalOption {
	return func(v *LocalValidator) { v.now = now }
}

// NewLocalValidator creates a validator for tokens signed with secret.
func NewLocalValidator(secret string, opts ...LocalOption) *LocalValidator {
	v := &LocalValidator{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate verifies signature and expiry and maps the claims to an Identity.
func (v *LocalValidator) Validate(credential string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(credential, claims,
		func(_ *jwt.Token) (any, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return domain.Identity{}, classifyJWTError(err)
	}

	identity := domain.Identity{
		ID:          firstClaim(claims, subjectClaims),
		Email:       claimString(claims["email"]),
		DisplayName: firstClaim(claims, displayNameClaims),
		Role:        claimString(claims["role"]),
		Roles:       claimStrings(claims["roles"]),
		Permissions: claimStrings(claims["permissions"]),
	}
	if identity.ID == "" {
		return domain.Identity{}, fmt.Errorf("%w: token carries no subject", ErrInvalidSignature)
	}
	return identity, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredCredential, err)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownCredential, err)
	}
}

func firstClaim(claims jwt.MapClaims, names []string) string {
	for _, name := range names {
		if s := claimString(claims[name]); s != "" {
			return s
		}
	}
	return ""
}

// claimString accepts strings and JSON numbers (numeric user ids are common).
func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func claimStrings(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := claimString(item); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
