package auth

import "errors"

var (
	// ErrExchangeFailed indicates the authorization code could not be
	// exchanged for a credential. The login action may be retried.
	ErrExchangeFailed = errors.New("auth.exchange_failed")

	// ErrIdentityFetchFailed indicates the provider profile call failed
	// after a successful exchange. The login action may be retried.
	ErrIdentityFetchFailed = errors.New("auth.identity_fetch_failed")
)
