package recommender

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount in the recommender
// module. Each service is optional and will only be mounted if provided.
type RouterOptions struct {
	// Middleware applied to every route, typically the session
	// restore middleware.
	Middleware []func(http.Handler) http.Handler

	Recommender Mountable
}

// Router creates the recommender module router.
//
// Example:
//
//	svc := recommender.NewService(cfg, reconciler, profiles, jobs, log)
//
//	r := chi.NewRouter()
//	r.Mount("/", recommender.Router(recommender.RouterOptions{
//	    Middleware:  []func(http.Handler) http.Handler{reconciler.Middleware()},
//	    Recommender: svc,
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	for _, mw := range opts.Middleware {
		r.Use(mw)
	}

	if opts.Recommender != nil {
		r.Mount("/", opts.Recommender.Handle())
	}

	return r
}
