package auth

import (
	"encoding/json"
	"sync"

	"github.com/dmitrymomot/devscout/pkg/quota"
	"github.com/dmitrymomot/devscout/pkg/session"
)

// State is the reconciler's position in the request lifecycle.
type State string

const (
	StateAnonymous       State = "anonymous"
	StatePendingCallback State = "pending_callback"
	StateAuthenticated   State = "authenticated"
	StateLoggingOut      State = "logging_out"
)

// Scope carries all request-scoped identity and derived state for one
// request cycle. It replaces ambient globals: every function needing
// identity or quota state receives the scope explicitly, and nothing in
// it is trusted across cycles. It is rehydrated from the session store
// at the start of each cycle.
type Scope struct {
	mu sync.Mutex

	state       State
	sessionID   string
	accessToken string
	identity    *session.Identity

	// Derived caches, valid for this cycle only. Logout clears them
	// all; the durable quota ledger record is never touched.
	quotaStatus   *quota.Status
	profile       json.RawMessage
	searchResults json.RawMessage
	preferences   map[string]string
}

// NewScope returns an anonymous scope for a fresh request cycle.
func NewScope() *Scope {
	return &Scope{state: StateAnonymous}
}

// State reports the current lifecycle state.
func (s *Scope) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentIdentity returns the authenticated identity, or nil when
// anonymous.
func (s *Scope) CurrentIdentity() *session.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// IsAuthenticated reports whether the scope holds an identity.
func (s *Scope) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated && s.identity != nil
}

// SessionID returns the id of the session backing this scope.
func (s *Scope) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// AccessToken returns the upstream credential for this cycle.
func (s *Scope) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// setAuthenticated installs a restored or freshly created session.
func (s *Scope) setAuthenticated(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity := sess.Identity
	s.state = StateAuthenticated
	s.sessionID = sess.ID
	s.accessToken = sess.AccessToken
	s.identity = &identity
}

// setState moves the scope to the given lifecycle state.
func (s *Scope) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// beginLogout transitions to LoggingOut. It reports false when logout
// is already in progress, making re-entry a no-op.
func (s *Scope) beginLogout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoggingOut {
		return false
	}
	s.state = StateLoggingOut
	return true
}

// reset drops identity and every derived cache, returning the scope to
// Anonymous.
func (s *Scope) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAnonymous
	s.sessionID = ""
	s.accessToken = ""
	s.identity = nil
	s.quotaStatus = nil
	s.profile = nil
	s.searchResults = nil
	s.preferences = nil
}

// QuotaStatus returns the cached balance snapshot for this cycle, if
// any.
func (s *Scope) QuotaStatus() (quota.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quotaStatus == nil {
		return quota.Status{}, false
	}
	return *s.quotaStatus, true
}

// SetQuotaStatus overwrites the cached balance snapshot, so the next
// read in this cycle reflects a successful consume or grant.
func (s *Scope) SetQuotaStatus(st quota.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotaStatus = &st
}

// InvalidateQuota drops the cached balance snapshot.
func (s *Scope) InvalidateQuota() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotaStatus = nil
}

// Profile returns the generated profile cached for this cycle.
func (s *Scope) Profile() (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, s.profile != nil
}

// SetProfile caches a generated profile for this cycle.
func (s *Scope) SetProfile(p json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

// SearchResults returns the job search results cached for this cycle.
func (s *Scope) SearchResults() (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchResults, s.searchResults != nil
}

// SetSearchResults caches job search results for this cycle.
func (s *Scope) SetSearchResults(res json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchResults = res
}

// Preference reads a user preference cached for this cycle.
func (s *Scope) Preference(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.preferences[key]
	return v, ok
}

// SetPreference caches a user preference for this cycle.
func (s *Scope) SetPreference(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preferences == nil {
		s.preferences = make(map[string]string)
	}
	s.preferences[key] = value
}
