package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devscout/pkg/cookie"
	"github.com/dmitrymomot/devscout/pkg/quota"
	"github.com/dmitrymomot/devscout/pkg/session"
	"github.com/dmitrymomot/devscout/svc/auth"
)

type stubProvider struct {
	identity    session.Identity
	exchangeErr error
	fetchErr    error
	revokeErr   error
	revoked     []string
}

func (p *stubProvider) AuthURL(state string) string {
	return "https://github.test/login/oauth/authorize?state=" + state
}

func (p *stubProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	if p.exchangeErr != nil {
		return "", p.exchangeErr
	}
	return "token-" + code, nil
}

func (p *stubProvider) FetchIdentity(ctx context.Context, token string) (session.Identity, error) {
	if p.fetchErr != nil {
		return session.Identity{}, p.fetchErr
	}
	return p.identity, nil
}

func (p *stubProvider) Revoke(ctx context.Context, token string) error {
	p.revoked = append(p.revoked, token)
	return p.revokeErr
}

func testIdentity() session.Identity {
	return session.Identity{
		UserID:    42,
		Login:     "octocat",
		Name:      "Octo Cat",
		Email:     "octo@example.com",
		AvatarURL: "https://avatars.test/42",
	}
}

type fixture struct {
	reconciler *auth.Reconciler
	sessions   *session.MemoryStore
	ledger     *quota.MemoryLedger
	provider   *stubProvider
	cfg        auth.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := auth.DefaultConfig()
	cfg.CookieAwaitInterval = time.Millisecond

	sessions := session.NewMemoryStore(cfg.CookieTTL)
	ledger := quota.NewMemoryLedger(quota.DefaultPlan())
	provider := &stubProvider{identity: testIdentity()}

	return &fixture{
		reconciler: auth.NewReconciler(cfg, sessions, ledger, cookie.New(), provider, nil),
		sessions:   sessions,
		ledger:     ledger,
		provider:   provider,
		cfg:        cfg,
	}
}

// sessionCookie extracts the identity cookie set on the recorder, if any.
func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestReconciler_HandleCallback(t *testing.T) {
	t.Parallel()

	t.Run("establishes session and cookie", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := httptest.NewRecorder()
		sc := auth.NewScope()

		identity, err := f.reconciler.HandleCallback(context.Background(), rec, "abc", sc)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, int64(42), identity.UserID)
		assert.Equal(t, auth.StateAuthenticated, sc.State())

		c := sessionCookie(t, rec, f.cfg.CookieName)
		require.NotNil(t, c)
		assert.Equal(t, sc.SessionID(), c.Value)
		assert.Equal(t, 1, f.sessions.Len())
	})

	t.Run("idempotent when already authenticated", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := httptest.NewRecorder()
		sc := auth.NewScope()

		first, err := f.reconciler.HandleCallback(context.Background(), rec, "abc", sc)
		require.NoError(t, err)
		sid := sc.SessionID()

		second, err := f.reconciler.HandleCallback(context.Background(), httptest.NewRecorder(), "other", sc)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, sid, sc.SessionID())
		assert.Equal(t, 1, f.sessions.Len())
	})

	t.Run("exchange failure resets scope", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.provider.exchangeErr = errors.New("upstream down")
		sc := auth.NewScope()

		_, err := f.reconciler.HandleCallback(context.Background(), httptest.NewRecorder(), "abc", sc)
		require.ErrorIs(t, err, auth.ErrExchangeFailed)
		assert.Equal(t, auth.StateAnonymous, sc.State())
		assert.False(t, sc.IsAuthenticated())
	})

	t.Run("identity fetch failure resets scope", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.provider.fetchErr = errors.New("api 500")
		sc := auth.NewScope()

		_, err := f.reconciler.HandleCallback(context.Background(), httptest.NewRecorder(), "abc", sc)
		require.ErrorIs(t, err, auth.ErrIdentityFetchFailed)
		assert.False(t, sc.IsAuthenticated())
		assert.Equal(t, 0, f.sessions.Len())
	})

	t.Run("second login invalidates first session", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		sc1 := auth.NewScope()
		_, err := f.reconciler.HandleCallback(context.Background(), httptest.NewRecorder(), "first", sc1)
		require.NoError(t, err)
		firstID := sc1.SessionID()

		sc2 := auth.NewScope()
		_, err = f.reconciler.HandleCallback(context.Background(), httptest.NewRecorder(), "second", sc2)
		require.NoError(t, err)

		assert.Equal(t, 1, f.sessions.Len())
		_, err = f.sessions.Get(context.Background(), firstID)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})
}

func TestReconciler_Restore(t *testing.T) {
	t.Parallel()

	login := func(t *testing.T, f *fixture) *http.Cookie {
		t.Helper()
		rec := httptest.NewRecorder()
		_, err := f.reconciler.HandleCallback(context.Background(), rec, "abc", auth.NewScope())
		require.NoError(t, err)
		c := sessionCookie(t, rec, f.cfg.CookieName)
		require.NotNil(t, c)
		return c
	}

	t.Run("restores identity from cookie", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		c := login(t, f)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)
		sc := auth.NewScope()

		identity, ok := f.reconciler.Restore(context.Background(), httptest.NewRecorder(), req, sc)
		require.True(t, ok)
		assert.Equal(t, "octocat", identity.Login)
		assert.Equal(t, auth.StateAuthenticated, sc.State())
		assert.Equal(t, c.Value, sc.SessionID())
	})

	t.Run("idempotent on authenticated scope", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		c := login(t, f)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)
		sc := auth.NewScope()

		first, ok := f.reconciler.Restore(context.Background(), httptest.NewRecorder(), req, sc)
		require.True(t, ok)

		second, ok := f.reconciler.Restore(context.Background(), httptest.NewRecorder(), req, sc)
		require.True(t, ok)
		assert.Equal(t, first, second)
	})

	t.Run("no cookie yields anonymous", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		sc := auth.NewScope()

		identity, ok := f.reconciler.Restore(context.Background(), httptest.NewRecorder(), req, sc)
		assert.False(t, ok)
		assert.Nil(t, identity)
		assert.Equal(t, auth.StateAnonymous, sc.State())
	})

	t.Run("dangling cookie is deleted", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: f.cfg.CookieName, Value: "no-such-session"})
		rec := httptest.NewRecorder()
		sc := auth.NewScope()

		_, ok := f.reconciler.Restore(context.Background(), rec, req, sc)
		assert.False(t, ok)

		c := sessionCookie(t, rec, f.cfg.CookieName)
		require.NotNil(t, c)
		assert.Equal(t, -1, c.MaxAge)
	})

	t.Run("expired session collapses to anonymous", func(t *testing.T) {
		t.Parallel()

		cfg := auth.DefaultConfig()
		sessions := session.NewMemoryStore(time.Nanosecond)
		provider := &stubProvider{identity: testIdentity()}
		r := auth.NewReconciler(cfg, sessions, quota.NewMemoryLedger(quota.DefaultPlan()), cookie.New(), provider, nil)

		rec := httptest.NewRecorder()
		_, err := r.HandleCallback(context.Background(), rec, "abc", auth.NewScope())
		require.NoError(t, err)
		c := sessionCookie(t, rec, cfg.CookieName)
		require.NotNil(t, c)

		time.Sleep(time.Millisecond)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)
		rec2 := httptest.NewRecorder()

		_, ok := r.Restore(context.Background(), rec2, req, auth.NewScope())
		assert.False(t, ok)

		cleared := sessionCookie(t, rec2, cfg.CookieName)
		require.NotNil(t, cleared)
		assert.Equal(t, -1, cleared.MaxAge)
	})
}

func TestReconciler_RestoreFromSource(t *testing.T) {
	t.Parallel()

	t.Run("waits out cold start", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := httptest.NewRecorder()
		_, err := f.reconciler.HandleCallback(context.Background(), rec, "abc", auth.NewScope())
		require.NoError(t, err)
		c := sessionCookie(t, rec, f.cfg.CookieName)
		require.NotNil(t, c)

		calls := 0
		src := cookie.SourceFunc(func(name string) (string, bool) {
			calls++
			if calls < 3 {
				return "", false
			}
			return c.Value, true
		})

		sc := auth.NewScope()
		identity, ok := f.reconciler.RestoreFromSource(context.Background(), httptest.NewRecorder(), src, sc)
		require.True(t, ok)
		assert.Equal(t, int64(42), identity.UserID)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausted budget yields anonymous", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		src := cookie.SourceFunc(func(name string) (string, bool) { return "", false })

		identity, ok := f.reconciler.RestoreFromSource(context.Background(), httptest.NewRecorder(), src, auth.NewScope())
		assert.False(t, ok)
		assert.Nil(t, identity)
	})
}

func TestReconciler_Quota(t *testing.T) {
	t.Parallel()

	authenticated := func(t *testing.T, f *fixture) *auth.Scope {
		t.Helper()
		sc := auth.NewScope()
		_, err := f.reconciler.HandleCallback(context.Background(), httptest.NewRecorder(), "abc", sc)
		require.NoError(t, err)
		require.NoError(t, f.ledger.EnsureInitialized(context.Background(), 42))
		return sc
	}

	t.Run("status for anonymous is empty", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		st := f.reconciler.QuotaStatus(context.Background(), auth.NewScope())
		assert.False(t, st.CanUse)
		assert.Zero(t, st.Credits)
	})

	t.Run("consume decrements and refreshes cache", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		sc := authenticated(t, f)

		st := f.reconciler.QuotaStatus(context.Background(), sc)
		assert.Equal(t, int64(5), st.Credits)

		require.True(t, f.reconciler.ConsumeCredit(context.Background(), sc))

		st = f.reconciler.QuotaStatus(context.Background(), sc)
		assert.Equal(t, int64(4), st.Credits)
		assert.True(t, st.CanUse)
	})

	t.Run("consume fails at zero", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		sc := authenticated(t, f)

		for range 5 {
			require.True(t, f.reconciler.ConsumeCredit(context.Background(), sc))
		}
		assert.False(t, f.reconciler.ConsumeCredit(context.Background(), sc))

		st := f.reconciler.QuotaStatus(context.Background(), sc)
		assert.Zero(t, st.Credits)
		assert.False(t, st.CanUse)
	})

	t.Run("consume for anonymous fails", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		assert.False(t, f.reconciler.ConsumeCredit(context.Background(), auth.NewScope()))
	})

	t.Run("grant increases balance", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		sc := authenticated(t, f)

		require.True(t, f.reconciler.GrantCredits(context.Background(), sc, 10))
		st := f.reconciler.QuotaStatus(context.Background(), sc)
		assert.Equal(t, int64(15), st.Credits)
	})
}

func TestReconciler_Middleware(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := httptest.NewRecorder()
	_, err := f.reconciler.HandleCallback(context.Background(), rec, "abc", auth.NewScope())
	require.NoError(t, err)
	c := sessionCookie(t, rec, f.cfg.CookieName)
	require.NotNil(t, c)

	var seen *auth.Scope
	handler := f.reconciler.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.ScopeFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.True(t, seen.IsAuthenticated())
	assert.Equal(t, "octocat", seen.CurrentIdentity().Login)
}
