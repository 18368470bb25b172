package recommender

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/devscout/pkg/cookie"
	"github.com/dmitrymomot/devscout/pkg/logger"
	"github.com/dmitrymomot/devscout/pkg/session"
	"github.com/dmitrymomot/devscout/svc/auth"
)

// ProfileGenerator produces a developer profile from raw input such as
// a CV or a free-form description. Implementations call a paid
// upstream, which is why the service bills one credit per invocation.
type ProfileGenerator interface {
	Generate(ctx context.Context, identity session.Identity, input json.RawMessage) (json.RawMessage, error)
}

// JobSearcher runs a paid vacancy search for a generated profile.
type JobSearcher interface {
	Search(ctx context.Context, profile, query json.RawMessage) (json.RawMessage, error)
}

// Config holds the recommender module settings.
type Config struct {
	StateCookieName    string        `env:"OAUTH_STATE_COOKIE_NAME" envDefault:"devscout_oauth_state"`
	StateCookieTTL     time.Duration `env:"OAUTH_STATE_COOKIE_TTL" envDefault:"10m"`
	PostLoginRedirect  string        `env:"POST_LOGIN_REDIRECT" envDefault:"/"`
	PostLogoutRedirect string        `env:"POST_LOGOUT_REDIRECT" envDefault:"/"`
	MaxBodyBytes       int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

// DefaultConfig mirrors the envDefault values for callers that do not
// load from the environment.
func DefaultConfig() Config {
	return Config{
		StateCookieName:    "devscout_oauth_state",
		StateCookieTTL:     10 * time.Minute,
		PostLoginRedirect:  "/",
		PostLogoutRedirect: "/",
		MaxBodyBytes:       1 << 20,
	}
}

// Service exposes the app surface: the login round-trip, the current
// user and quota views, and the two metered operations.
type Service struct {
	cfg      Config
	auth     *auth.Reconciler
	cookies  *cookie.Manager
	profiles ProfileGenerator
	jobs     JobSearcher
	log      *slog.Logger
}

func NewService(cfg Config, reconciler *auth.Reconciler, cookies *cookie.Manager, profiles ProfileGenerator, jobs JobSearcher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		auth:     reconciler,
		cookies:  cookies,
		profiles: profiles,
		jobs:     jobs,
		log:      log,
	}
}

func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/auth/login", s.login)
	r.Get("/auth/callback", s.callback)
	r.Post("/auth/logout", s.logout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/me", s.me)
		r.Delete("/me", s.erase)
		r.Get("/quota", s.quota)
		r.Post("/profile", s.generateProfile)
		r.Post("/jobs/search", s.searchJobs)
	})

	return r
}

// requireAuth rejects requests whose scope never resolved to an
// authenticated session.
func (s *Service) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := auth.ScopeFromContext(r.Context())
		if sc == nil || !sc.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "auth.required", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	s.cookies.Set(w, s.cfg.StateCookieName, state, cookie.WithTTL(s.cfg.StateCookieTTL))
	http.Redirect(w, r, s.auth.LoginURL(state), http.StatusFound)
}

func (s *Service) callback(w http.ResponseWriter, r *http.Request) {
	expected, err := s.cookies.Get(r, s.cfg.StateCookieName)
	if err != nil || expected == "" || r.URL.Query().Get("state") != expected {
		writeError(w, http.StatusBadRequest, "auth.state_mismatch", "authorization state does not match")
		return
	}
	s.cookies.Delete(w, s.cfg.StateCookieName)

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "auth.missing_code", "authorization code is missing")
		return
	}

	sc := auth.ScopeFromContext(r.Context())
	if sc == nil {
		sc = auth.NewScope()
	}

	if _, err := s.auth.HandleCallback(r.Context(), w, code, sc); err != nil {
		s.log.ErrorContext(r.Context(), "oauth callback failed",
			logger.Component("recommender"), logger.Error(err))
		writeError(w, http.StatusBadGateway, "auth.callback_failed", "could not complete sign-in")
		return
	}

	http.Redirect(w, r, s.cfg.PostLoginRedirect, http.StatusFound)
}

func (s *Service) logout(w http.ResponseWriter, r *http.Request) {
	sc := auth.ScopeFromContext(r.Context())
	if sc == nil {
		sc = auth.NewScope()
	}
	s.auth.Logout(r.Context(), w, r, sc)
	http.Redirect(w, r, s.cfg.PostLogoutRedirect, http.StatusFound)
}

func (s *Service) me(w http.ResponseWriter, r *http.Request) {
	sc := auth.ScopeFromContext(r.Context())
	writeData(w, http.StatusOK, sc.CurrentIdentity())
}

func (s *Service) quota(w http.ResponseWriter, r *http.Request) {
	sc := auth.ScopeFromContext(r.Context())
	writeData(w, http.StatusOK, s.auth.QuotaStatus(r.Context(), sc))
}

// generateProfile bills one credit, then calls the generator. A
// generator failure after the consume does not refund: the upstream
// call was attempted and the balance reflects it.
func (s *Service) generateProfile(w http.ResponseWriter, r *http.Request) {
	sc := auth.ScopeFromContext(r.Context())
	identity := sc.CurrentIdentity()

	input, err := s.readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "request.invalid_body", "request body is not valid JSON")
		return
	}

	if !s.auth.ConsumeCredit(r.Context(), sc) {
		writeError(w, http.StatusPaymentRequired, "quota.insufficient", "no credits left")
		return
	}

	profile, err := s.profiles.Generate(r.Context(), *identity, input)
	if err != nil {
		s.log.ErrorContext(r.Context(), "profile generation failed",
			logger.Component("recommender"), logger.UserID(identity.UserID), logger.Error(err))
		writeError(w, http.StatusBadGateway, "profile.generation_failed", "profile generation failed")
		return
	}

	sc.SetProfile(profile)
	writeData(w, http.StatusOK, profile)
}

func (s *Service) searchJobs(w http.ResponseWriter, r *http.Request) {
	sc := auth.ScopeFromContext(r.Context())
	identity := sc.CurrentIdentity()

	query, err := s.readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "request.invalid_body", "request body is not valid JSON")
		return
	}

	profile, _ := sc.Profile()

	if !s.auth.ConsumeCredit(r.Context(), sc) {
		writeError(w, http.StatusPaymentRequired, "quota.insufficient", "no credits left")
		return
	}

	results, err := s.jobs.Search(r.Context(), profile, query)
	if err != nil {
		s.log.ErrorContext(r.Context(), "job search failed",
			logger.Component("recommender"), logger.UserID(identity.UserID), logger.Error(err))
		writeError(w, http.StatusBadGateway, "search.failed", "job search failed")
		return
	}

	sc.SetSearchResults(results)
	writeData(w, http.StatusOK, results)
}

func (s *Service) erase(w http.ResponseWriter, r *http.Request) {
	sc := auth.ScopeFromContext(r.Context())
	identity := sc.CurrentIdentity()

	if err := s.auth.Erase(r.Context(), identity.UserID); err != nil {
		s.log.ErrorContext(r.Context(), "account erasure failed",
			logger.Component("recommender"), logger.UserID(identity.UserID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "account.erase_failed", "could not erase account data")
		return
	}

	s.auth.Logout(r.Context(), w, r, sc)
	w.WriteHeader(http.StatusNoContent)
}

// readBody reads and validates the JSON request body. An empty body is
// allowed and returned as nil.
func (s *Service) readBody(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, errors.New("recommender.invalid_json")
	}
	return json.RawMessage(body), nil
}
