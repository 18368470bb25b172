package session

import (
	"time"

	"github.com/google/uuid"
)

// Identity is a denormalized snapshot of the upstream user profile,
// copied into the session at login time. It is not a live reference;
// a stale display name is acceptable until the next login.
type Identity struct {
	UserID    int64  `json:"user_id" bson:"user_id"`
	Login     string `json:"login" bson:"login"`
	Name      string `json:"name,omitempty" bson:"name,omitempty"`
	Email     string `json:"email,omitempty" bson:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
}

// DisplayName prefers the profile name and falls back to the login handle.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Login
}

// Session binds an opaque browser token to an authenticated identity
// and its upstream access credential.
type Session struct {
	ID             string    `json:"id" bson:"_id"`
	UserID         int64     `json:"user_id" bson:"user_id"`
	AccessToken    string    `json:"access_token" bson:"access_token"`
	Identity       Identity  `json:"identity" bson:"identity"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at" bson:"last_accessed_at"`
}

// New creates a session with a fresh unguessable id.
func New(identity Identity, accessToken string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             uuid.NewString(),
		UserID:         identity.UserID,
		AccessToken:    accessToken,
		Identity:       identity,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

// ExpiresAt returns the sliding expiry computed from the last access.
func (s *Session) ExpiresAt(ttl time.Duration) time.Time {
	return s.LastAccessedAt.Add(ttl)
}

// IsExpired reports whether the session has outlived its sliding TTL.
func (s *Session) IsExpired(ttl time.Duration) bool {
	return s != nil && time.Now().After(s.ExpiresAt(ttl))
}

// Touch refreshes the last access time.
func (s *Session) Touch(at time.Time) {
	s.LastAccessedAt = at.UTC()
}
