// Package session persists the binding between a browser-held opaque
// identifier and an authenticated upstream identity.
//
// A Session is a durable document keyed by a randomly generated id. It
// carries the stable user id, the upstream access credential and a
// denormalized identity snapshot, so a restore never needs to call the
// identity provider. Expiry is sliding: a session dies TTL after its
// last access, and the check happens lazily on read rather than via a
// background sweep. A store observing an expired record deletes it as a
// side effect of the read.
//
// Store implementations distinguish a miss (ErrSessionNotFound,
// ErrSessionExpired) from infrastructure failure (ErrStoreUnavailable)
// so callers can decide between fail-open and fail-closed per
// operation. Three backends are provided: an in-memory map for tests
// and development, MongoDB, and Redis.
//
// At most one live session may exist per user. The invariant is
// enforced by DeleteByUserID followed by Create; the two steps are not
// atomic, so two near-simultaneous logins can transiently leave more
// than one record until the next login prunes them. This relaxation is
// deliberate.
package session
