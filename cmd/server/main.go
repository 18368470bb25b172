package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/devscout/modules/recommender"
	"github.com/dmitrymomot/devscout/pkg/config"
	"github.com/dmitrymomot/devscout/pkg/cookie"
	"github.com/dmitrymomot/devscout/pkg/httpserver"
	"github.com/dmitrymomot/devscout/pkg/logger"
	"github.com/dmitrymomot/devscout/pkg/mongo"
	"github.com/dmitrymomot/devscout/pkg/pg"
	"github.com/dmitrymomot/devscout/pkg/quota"
	"github.com/dmitrymomot/devscout/pkg/redis"
	"github.com/dmitrymomot/devscout/pkg/session"
	"github.com/dmitrymomot/devscout/svc/auth"
)

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"development"`

	// Backend selection; memory is the dev default.
	SessionStore string `env:"SESSION_STORE" envDefault:"memory"` // memory | mongo | redis
	QuotaLedger  string `env:"QUOTA_LEDGER" envDefault:"memory"`  // memory | mongo | postgres

	PlansFile string `env:"PLANS_FILE"`
	PlanID    string `env:"PLAN_ID" envDefault:"free"`
}

type healthcheck func(context.Context) error

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	logOpts := []logger.Option{logger.WithProduction("devscout")}
	if appCfg.Env == "development" {
		logOpts = []logger.Option{logger.WithDevelopment("devscout")}
	}
	log := logger.New(logOpts...)
	logger.SetAsDefault(log)

	if err := run(ctx, appCfg, log); err != nil {
		log.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, log *slog.Logger) error {
	var authCfg auth.Config
	config.MustLoad(&authCfg)

	plan, err := quota.SelectPlan(appCfg.PlansFile, appCfg.PlanID)
	if err != nil {
		return fmt.Errorf("select plan: %w", err)
	}

	var sessCfg session.Config
	config.MustLoad(&sessCfg)

	sessions, sessionsHealth, err := newSessionStore(ctx, appCfg, sessCfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	ledger, ledgerHealth, err := newQuotaLedger(ctx, appCfg, plan, log)
	if err != nil {
		return fmt.Errorf("quota ledger: %w", err)
	}

	var ghCfg auth.GitHubConfig
	config.MustLoad(&ghCfg)

	cookies := cookie.New(cookie.WithSecure(authCfg.SecureCookies))
	reconciler := auth.NewReconciler(authCfg, sessions, ledger, cookies, auth.NewGitHubProvider(ghCfg), log)

	var upCfg upstreamConfig
	config.MustLoad(&upCfg)
	collaborators := newUpstream(upCfg)

	var recCfg recommender.Config
	config.MustLoad(&recCfg)

	svc := recommender.NewService(recCfg, reconciler, cookies, collaborators, collaborators, log)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", healthHandler(sessionsHealth, ledgerHealth))
	r.Mount("/", recommender.Router(recommender.RouterOptions{
		Middleware:  []func(http.Handler) http.Handler{reconciler.Middleware()},
		Recommender: svc,
	}))

	var srvCfg httpserver.Config
	config.MustLoad(&srvCfg)

	log.Info("starting server",
		slog.String("addr", srvCfg.Addr),
		slog.String("session_store", appCfg.SessionStore),
		slog.String("quota_ledger", appCfg.QuotaLedger),
	)
	return httpserver.New(srvCfg, log).Run(ctx, r)
}

func healthHandler(checks ...healthcheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func newSessionStore(ctx context.Context, appCfg appConfig, sessCfg session.Config) (session.Store, healthcheck, error) {
	switch appCfg.SessionStore {
	case "memory":
		return session.NewMemoryStore(sessCfg.TTL), nil, nil
	case "mongo":
		var cfg mongo.Config
		config.MustLoad(&cfg)
		db, err := mongo.ConnectDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return session.NewMongoStore(db, sessCfg.TTL), mongo.Healthcheck(db.Client()), nil
	case "redis":
		var cfg redis.Config
		config.MustLoad(&cfg)
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client, sessCfg.TTL), redis.Healthcheck(client), nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", appCfg.SessionStore)
	}
}

func newQuotaLedger(ctx context.Context, appCfg appConfig, plan quota.Plan, log *slog.Logger) (quota.Ledger, healthcheck, error) {
	switch appCfg.QuotaLedger {
	case "memory":
		return quota.NewMemoryLedger(plan), nil, nil
	case "mongo":
		var cfg mongo.Config
		config.MustLoad(&cfg)
		db, err := mongo.ConnectDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return quota.NewMongoLedger(db, plan), mongo.Healthcheck(db.Client()), nil
	case "postgres":
		var cfg pg.Config
		config.MustLoad(&cfg)
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
			return nil, nil, err
		}
		return quota.NewPGLedger(pool, plan), pg.Healthcheck(pool), nil
	default:
		return nil, nil, fmt.Errorf("unknown quota ledger %q", appCfg.QuotaLedger)
	}
}
