package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/devscout/pkg/cookie"
	"github.com/dmitrymomot/devscout/pkg/logger"
	"github.com/dmitrymomot/devscout/pkg/quota"
	"github.com/dmitrymomot/devscout/pkg/session"
)

// Reconciler orchestrates cookie, session store and request scope:
// restore-on-load, create-on-callback, invalidate-on-logout. All
// durable state lives in the session store and quota ledger; the
// reconciliation sequence re-runs from scratch on every request cycle.
type Reconciler struct {
	cfg      Config
	sessions session.Store
	ledger   quota.Ledger
	cookies  *cookie.Manager
	provider Provider
	log      *slog.Logger
}

// NewReconciler wires the session core together. A nil logger falls
// back to slog.Default.
func NewReconciler(cfg Config, sessions session.Store, ledger quota.Ledger, cookies *cookie.Manager, provider Provider, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		cfg:      cfg,
		sessions: sessions,
		ledger:   ledger,
		cookies:  cookies,
		provider: provider,
		log:      log,
	}
}

// LoginURL returns the provider authorization URL for the given state
// token.
func (r *Reconciler) LoginURL(state string) string {
	return r.provider.AuthURL(state)
}

// Restore rehydrates the scope from the identity cookie on the inbound
// request. It is idempotent: an already authenticated scope is returned
// unchanged. Every failure short of a store outage collapses to
// anonymous and self-heals the dangling cookie.
func (r *Reconciler) Restore(ctx context.Context, w http.ResponseWriter, req *http.Request, sc *Scope) (*session.Identity, bool) {
	if sc.IsAuthenticated() {
		return sc.CurrentIdentity(), true
	}

	id, err := r.cookies.Get(req, r.cfg.CookieName)
	if err != nil {
		return nil, false
	}

	return r.resolve(ctx, w, id, sc)
}

// RestoreFromSource rehydrates the scope from a deferred cookie source,
// masking the cold-start window where a client-rendered component has
// not replayed the cookie yet. Exhausting the bounded poll budget
// yields anonymous, never an error.
func (r *Reconciler) RestoreFromSource(ctx context.Context, w http.ResponseWriter, src cookie.Source, sc *Scope) (*session.Identity, bool) {
	if sc.IsAuthenticated() {
		return sc.CurrentIdentity(), true
	}

	id, ok := cookie.Await(ctx, src, r.cfg.CookieName, r.cfg.CookieAwaitAttempts, r.cfg.CookieAwaitInterval)
	if !ok {
		return nil, false
	}

	return r.resolve(ctx, w, id, sc)
}

// resolve looks a candidate session id up in the store and installs it
// into the scope on success.
func (r *Reconciler) resolve(ctx context.Context, w http.ResponseWriter, sessionID string, sc *Scope) (*session.Identity, bool) {
	s, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrStoreUnavailable) {
			// Fail closed but keep the cookie: the store may recover
			// and the session is likely still live.
			r.log.ErrorContext(ctx, "session store unavailable on restore",
				logger.Component("auth"), logger.SessionID(sessionID), logger.Error(err))
			return nil, false
		}

		// Miss, malformed or expired: the cookie references a dead
		// session and is deleted so it never dangles again.
		r.cookies.Delete(w, r.cfg.CookieName)
		return nil, false
	}

	// Sliding expiry; a failure to record the access is recoverable
	// and must not block the restore.
	if err := r.sessions.Touch(ctx, s.ID, time.Now()); err != nil {
		r.log.WarnContext(ctx, "failed to refresh session last access",
			logger.Component("auth"), logger.SessionID(s.ID), logger.Error(err))
	}

	sc.setAuthenticated(s)
	return sc.CurrentIdentity(), true
}

// HandleCallback finishes the identity-provider round-trip: exchanges
// the authorization code, fetches the identity, enforces the
// one-session-per-user invariant and persists the new session. It is
// idempotent when the scope is already authenticated. Upstream
// failures surface as recoverable errors and leave the scope
// anonymous so the user can retry the login action cleanly.
func (r *Reconciler) HandleCallback(ctx context.Context, w http.ResponseWriter, code string, sc *Scope) (*session.Identity, error) {
	if sc.IsAuthenticated() {
		return sc.CurrentIdentity(), nil
	}

	sc.setState(StatePendingCallback)

	token, err := r.provider.ExchangeCode(ctx, code)
	if err != nil {
		sc.reset()
		return nil, errors.Join(ErrExchangeFailed, err)
	}

	identity, err := r.provider.FetchIdentity(ctx, token)
	if err != nil {
		sc.reset()
		return nil, errors.Join(ErrIdentityFetchFailed, err)
	}

	// One session per user: delete-then-create. The two steps are not
	// atomic; a race between near-simultaneous logins is pruned by the
	// next one.
	if err := r.sessions.DeleteByUserID(ctx, identity.UserID); err != nil {
		r.log.WarnContext(ctx, "failed to prune previous sessions",
			logger.Component("auth"), logger.UserID(identity.UserID), logger.Error(err))
	}

	s := session.New(identity, token)
	if err := r.sessions.Create(ctx, s); err != nil {
		// Failing to persist is recoverable on the next login; the
		// user stays authenticated for this cycle without a cookie.
		r.log.ErrorContext(ctx, "failed to persist session",
			logger.Component("auth"), logger.UserID(identity.UserID), logger.Error(err))
	} else {
		r.cookies.Set(w, r.cfg.CookieName, s.ID,
			cookie.WithTTL(r.cfg.CookieTTL),
			cookie.WithSecure(r.cfg.SecureCookies),
		)
	}

	// Seed the credit balance on first login. The ledger also
	// initializes lazily, so a failure here only delays the grant.
	if err := r.ledger.EnsureInitialized(ctx, identity.UserID); err != nil {
		r.log.WarnContext(ctx, "failed to initialize credit balance",
			logger.Component("quota"), logger.UserID(identity.UserID), logger.Error(err))
	}

	sc.setAuthenticated(s)
	r.log.InfoContext(ctx, "user signed in",
		logger.Component("auth"), logger.Event("login"),
		logger.UserID(identity.UserID), logger.SessionID(s.ID))
	return sc.CurrentIdentity(), nil
}

// QuotaStatus reads the user's balance, serving repeated reads within
// one cycle from the scope cache. Ledger unavailability degrades to "no
// credits" rather than surfacing an error.
func (r *Reconciler) QuotaStatus(ctx context.Context, sc *Scope) quota.Status {
	identity := sc.CurrentIdentity()
	if identity == nil {
		return quota.Status{}
	}

	if st, ok := sc.QuotaStatus(); ok {
		return st
	}

	st, err := r.ledger.Status(ctx, identity.UserID)
	if err != nil {
		r.log.ErrorContext(ctx, "quota status read failed",
			logger.Component("quota"), logger.UserID(identity.UserID), logger.Error(err))
		return quota.Status{}
	}

	sc.SetQuotaStatus(st)
	return st
}

// ConsumeCredit spends one credit for a billable operation. A consume
// the ledger cannot confirm is never reported as success. On success
// the scope cache is overwritten so the next read in this cycle
// reflects the spend.
func (r *Reconciler) ConsumeCredit(ctx context.Context, sc *Scope) bool {
	identity := sc.CurrentIdentity()
	if identity == nil {
		return false
	}

	if err := r.ledger.Consume(ctx, identity.UserID); err != nil {
		if !errors.Is(err, quota.ErrInsufficientCredits) {
			r.log.ErrorContext(ctx, "credit consume failed",
				logger.Component("quota"), logger.UserID(identity.UserID), logger.Error(err))
		}
		return false
	}

	sc.InvalidateQuota()
	if st, err := r.ledger.Status(ctx, identity.UserID); err == nil {
		sc.SetQuotaStatus(st)
	}
	return true
}

// GrantCredits adds credits to the user's balance. Persistence failure
// is logged and reported; the ledger is the source of truth either way.
func (r *Reconciler) GrantCredits(ctx context.Context, sc *Scope, amount int64) bool {
	identity := sc.CurrentIdentity()
	if identity == nil {
		return false
	}

	if err := r.ledger.Grant(ctx, identity.UserID, amount); err != nil {
		r.log.ErrorContext(ctx, "credit grant failed",
			logger.Component("quota"), logger.UserID(identity.UserID),
			logger.Credits(amount), logger.Error(err))
		return false
	}

	sc.InvalidateQuota()
	if st, err := r.ledger.Status(ctx, identity.UserID); err == nil {
		sc.SetQuotaStatus(st)
	}
	return true
}

// Middleware rehydrates a fresh request scope from the identity cookie
// before the handler runs and injects it into the request context.
func (r *Reconciler) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sc := NewScope()
			r.Restore(req.Context(), w, req, sc)
			next.ServeHTTP(w, req.WithContext(WithScope(req.Context(), sc)))
		})
	}
}
