package auth

import "context"

type scopeContextKey struct{}

// WithScope stores the request scope in the context for middleware
// chain access.
func WithScope(ctx context.Context, sc *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, sc)
}

// ScopeFromContext retrieves the request scope from the context.
// Returns nil if the scope was not previously stored.
func ScopeFromContext(ctx context.Context) *Scope {
	sc, _ := ctx.Value(scopeContextKey{}).(*Scope)
	return sc
}
