package auth

import (
	"context"

	"github.com/dmitrymomot/devscout/pkg/session"
)

// Provider abstracts the identity provider behind the narrow operations
// the session core needs. Implementations encapsulate all protocol
// details (oauth2.Config, token exchange, API calls); the reconciler
// never sees them.
type Provider interface {
	// AuthURL builds the provider authorization URL for the given state
	// token.
	AuthURL(state string) string

	// ExchangeCode exchanges an authorization code for an access
	// credential. Invalid or already-used codes return ErrExchangeFailed.
	ExchangeCode(ctx context.Context, code string) (string, error)

	// FetchIdentity resolves the access credential to a normalized
	// identity snapshot.
	FetchIdentity(ctx context.Context, accessToken string) (session.Identity, error)

	// Revoke invalidates the credential upstream. Callers treat failure
	// as ignorable; local logout proceeds regardless.
	Revoke(ctx context.Context, accessToken string) error
}
