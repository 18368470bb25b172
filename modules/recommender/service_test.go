package recommender_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devscout/modules/recommender"
	"github.com/dmitrymomot/devscout/pkg/cookie"
	"github.com/dmitrymomot/devscout/pkg/quota"
	"github.com/dmitrymomot/devscout/pkg/session"
	"github.com/dmitrymomot/devscout/svc/auth"
)

type stubProvider struct {
	identity session.Identity
	revoked  int
}

func (p *stubProvider) AuthURL(state string) string {
	return "https://github.test/authorize?state=" + url.QueryEscape(state)
}

func (p *stubProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	return "token-" + code, nil
}

func (p *stubProvider) FetchIdentity(ctx context.Context, token string) (session.Identity, error) {
	return p.identity, nil
}

func (p *stubProvider) Revoke(ctx context.Context, token string) error {
	p.revoked++
	return nil
}

type stubProfiles struct {
	out json.RawMessage
	err error
}

func (s *stubProfiles) Generate(ctx context.Context, identity session.Identity, input json.RawMessage) (json.RawMessage, error) {
	return s.out, s.err
}

type stubJobs struct {
	out         json.RawMessage
	err         error
	gotProfile  json.RawMessage
	invocations int
}

func (s *stubJobs) Search(ctx context.Context, profile, query json.RawMessage) (json.RawMessage, error) {
	s.gotProfile = profile
	s.invocations++
	return s.out, s.err
}

type fixture struct {
	handler  http.Handler
	sessions *session.MemoryStore
	ledger   *quota.MemoryLedger
	provider *stubProvider
	profiles *stubProfiles
	jobs     *stubJobs
	authCfg  auth.Config
	cfg      recommender.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	authCfg := auth.DefaultConfig()
	sessions := session.NewMemoryStore(authCfg.CookieTTL)
	ledger := quota.NewMemoryLedger(quota.DefaultPlan())
	provider := &stubProvider{identity: session.Identity{
		UserID: 42, Login: "octocat", Name: "Octo Cat", Email: "octo@example.com",
	}}
	cookies := cookie.New()

	reconciler := auth.NewReconciler(authCfg, sessions, ledger, cookies, provider, nil)

	profiles := &stubProfiles{out: json.RawMessage(`{"skills":["go"]}`)}
	jobs := &stubJobs{out: json.RawMessage(`[{"title":"Go developer"}]`)}

	cfg := recommender.DefaultConfig()
	svc := recommender.NewService(cfg, reconciler, cookies, profiles, jobs, nil)

	r := chi.NewRouter()
	r.Mount("/", recommender.Router(recommender.RouterOptions{
		Middleware:  []func(http.Handler) http.Handler{reconciler.Middleware()},
		Recommender: svc,
	}))

	return &fixture{
		handler:  r,
		sessions: sessions,
		ledger:   ledger,
		provider: provider,
		profiles: profiles,
		jobs:     jobs,
		authCfg:  authCfg,
		cfg:      cfg,
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// login drives the full login round-trip through the HTTP surface and
// returns the session cookie.
func login(t *testing.T, f *fixture) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	state := findCookie(rec, f.cfg.StateCookieName)
	require.NotNil(t, state)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, state.Value, loc.Query().Get("state"))

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state.Value), nil)
	req.AddCookie(state)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	c := findCookie(rec, f.authCfg.CookieName)
	require.NotNil(t, c)
	require.NotEmpty(t, c.Value)
	return c
}

func do(f *fixture, method, target string, body string, c *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if c != nil {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestService_LoginFlow(t *testing.T) {
	t.Parallel()

	t.Run("full round trip", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		c := login(t, f)

		rec := do(f, http.MethodGet, "/me", "", c)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data session.Identity `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "octocat", resp.Data.Login)
		assert.Equal(t, int64(42), resp.Data.UserID)
	})

	t.Run("callback rejects state mismatch", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=forged", nil)
		req.AddCookie(&http.Cookie{Name: f.cfg.StateCookieName, Value: "expected"})
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("callback requires code", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=s", nil)
		req.AddCookie(&http.Cookie{Name: f.cfg.StateCookieName, Value: "s"})
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("protected routes reject anonymous", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		for _, target := range []string{"/me", "/quota"} {
			rec := do(f, http.MethodGet, target, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		}
		rec := do(f, http.MethodPost, "/profile", `{}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestService_Logout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := login(t, f)

	rec := do(f, http.MethodPost, "/auth/logout", "", c)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, 1, f.provider.revoked)
	assert.Equal(t, 0, f.sessions.Len())

	cleared := findCookie(rec, f.authCfg.CookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	rec = do(f, http.MethodGet, "/me", "", c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestService_Quota(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := login(t, f)

	rec := do(f, http.MethodGet, "/quota", "", c)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data quota.Status `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(5), resp.Data.Credits)
	assert.True(t, resp.Data.CanUse)
}

func TestService_GenerateProfile(t *testing.T) {
	t.Parallel()

	t.Run("bills one credit", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		c := login(t, f)

		rec := do(f, http.MethodPost, "/profile", `{"cv":"ten years of Go"}`, c)
		require.Equal(t, http.StatusOK, rec.Code)

		st, err := f.ledger.Status(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(4), st.Credits)
	})

	t.Run("insufficient credits blocks the call", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		c := login(t, f)
		require.NoError(t, f.ledger.Grant(context.Background(), 42, -5))

		rec := do(f, http.MethodPost, "/profile", `{}`, c)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("generator failure keeps the credit spent", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		c := login(t, f)
		f.profiles.err = errors.New("llm timeout")

		rec := do(f, http.MethodPost, "/profile", `{}`, c)
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		st, err := f.ledger.Status(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(4), st.Credits)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		c := login(t, f)

		rec := do(f, http.MethodPost, "/profile", `{not json`, c)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		st, err := f.ledger.Status(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(5), st.Credits)
	})
}

func TestService_SearchJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := login(t, f)

	rec := do(f, http.MethodPost, "/jobs/search", `{"location":"remote"}`, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.jobs.invocations)

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.JSONEq(t, `[{"title":"Go developer"}]`, string(resp.Data))

	st, err := f.ledger.Status(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Credits)
}

func TestService_Erase(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := login(t, f)
	require.NoError(t, f.ledger.Grant(context.Background(), 42, 100))

	rec := do(f, http.MethodDelete, "/me", "", c)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.sessions.Len())

	// A fresh read starts over from the plan default.
	st, err := f.ledger.Status(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Credits)
}
