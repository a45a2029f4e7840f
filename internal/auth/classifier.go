package auth

import "strings"

// Scheme tells which validator a credential goes to.
type Scheme string

const (
	// SchemeNone marks an anonymous context.
	SchemeNone Scheme = ""
	// SchemeOpaqueReference is a revocable reference ("<id>|<secret>") checked by the authority.
	SchemeOpaqueReference Scheme = "opaque_reference"
	// SchemeSelfContained is a signed token verified locally.
	SchemeSelfContained Scheme = "self_contained"
)

const (
	// OpaqueSeparator appears in every opaque reference token and never in a signed token.
	OpaqueSeparator = "|"
	// BearerScheme is the only Authorization scheme accepted.
	BearerScheme = "Bearer"
)

// Classify returns the scheme of a credential. It is total: any string,
// including the empty one, gets a scheme.
func Classify(credential string) Scheme {
	if strings.Contains(credential, OpaqueSeparator) {
		return SchemeOpaqueReference
	}
	return SchemeSelfContained
}

// ParseBearer extracts the credential from an Authorization header value.
// The header must be exactly two space separated parts, the first one
// being BearerScheme, the second one non-empty.
func ParseBearer(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != BearerScheme || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
