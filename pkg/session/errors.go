package session

import "errors"

var (
	// ErrSessionNotFound indicates no session exists for the given id.
	ErrSessionNotFound = errors.New("session.not_found")

	// ErrSessionExpired indicates the session outlived its sliding TTL.
	ErrSessionExpired = errors.New("session.expired")

	// ErrInvalidSession indicates a nil or malformed session record.
	ErrInvalidSession = errors.New("session.invalid")

	// ErrStoreUnavailable wraps infrastructure-level store failures so
	// callers can tell an outage apart from a miss.
	ErrStoreUnavailable = errors.New("session.store_unavailable")
)
