package auth

import "context"

type ctxKey struct{}

// WithContext stores ac in ctx.
func WithContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext returns the AuthContext stored in ctx, or Anonymous.
func FromContext(ctx context.Context) AuthContext {
	if ac, ok := ctx.Value(ctxKey{}).(AuthContext); ok {
		return ac
	}
	return Anonymous
}
