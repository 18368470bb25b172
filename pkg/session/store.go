package session

import (
	"context"
	"time"
)

// Store defines session persistence. Implementations check the sliding
// TTL lazily on Get and delete the record when it is found expired.
//
// Error contract: a plain miss is ErrSessionNotFound, an expired record
// is ErrSessionExpired, and any infrastructure-level failure wraps
// ErrStoreUnavailable. Callers pick fail-open or fail-closed based on
// which of the three they see.
type Store interface {
	// Create stores a new session document.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a live session by id.
	Get(ctx context.Context, id string) (*Session, error)

	// Touch refreshes last_accessed_at without rewriting the document.
	Touch(ctx context.Context, id string, at time.Time) error

	// Delete removes a session by id. Deleting an absent session is not
	// an error.
	Delete(ctx context.Context, id string) error

	// DeleteByUserID removes every session belonging to a user,
	// supporting the one-session-per-user invariant and data erasure.
	DeleteByUserID(ctx context.Context, userID int64) error
}
