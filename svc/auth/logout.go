package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrymomot/devscout/pkg/logger"
)

// Logout runs the sign-out sequence: revoke the provider grant, delete
// the session record, delete the cookie, clear the scope. Each step is
// best effort and the sequence always runs to completion; a revocation
// or store failure never leaves the user half signed in locally. The
// quota ledger is deliberately untouched so the balance survives
// logout. Re-entrant calls during an in-flight logout are no-ops.
func (r *Reconciler) Logout(ctx context.Context, w http.ResponseWriter, req *http.Request, sc *Scope) {
	if !sc.beginLogout() {
		return
	}

	identity := sc.CurrentIdentity()
	token := sc.AccessToken()
	sessionID := sc.SessionID()

	if token != "" {
		if err := r.provider.Revoke(ctx, token); err != nil {
			r.log.WarnContext(ctx, "failed to revoke access grant",
				logger.Component("auth"), logger.Error(err))
		}
	}

	// The scope may never have been authenticated this cycle; the
	// cookie is then the only pointer to the server-side record.
	if sessionID == "" {
		if id, err := r.cookies.Get(req, r.cfg.CookieName); err == nil {
			sessionID = id
		}
	}

	if sessionID != "" {
		if err := r.sessions.Delete(ctx, sessionID); err != nil {
			attrs := []any{logger.Component("auth"), logger.SessionID(sessionID), logger.Error(err)}
			if identity != nil {
				attrs = append(attrs, logger.UserID(identity.UserID))
			}
			r.log.WarnContext(ctx, "failed to delete session record", attrs...)
		}
	}

	r.cookies.Delete(w, r.cfg.CookieName)
	sc.reset()

	attrs := []any{logger.Component("auth"), logger.Event("logout")}
	if identity != nil {
		attrs = append(attrs, logger.UserID(identity.UserID))
	}
	r.log.InfoContext(ctx, "user signed out", attrs...)
}

// Erase removes every trace of the user: all sessions and the quota
// record. This is the only path that deletes a ledger entry. Partial
// failures are joined so the caller can retry the erasure.
func (r *Reconciler) Erase(ctx context.Context, userID int64) error {
	var errs []error
	if err := r.sessions.DeleteByUserID(ctx, userID); err != nil {
		errs = append(errs, err)
	}
	if err := r.ledger.Erase(ctx, userID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
