package api

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/whisperwalls/censor/config"
	"github.com/whisperwalls/censor/core"
	"github.com/whisperwalls/censor/interfaces"
	"github.com/whisperwalls/censor/internal/api/handlers"
	"github.com/whisperwalls/censor/internal/api/middleware"
	"github.com/whisperwalls/censor/internal/auth"
)

type Router struct {
	mux    *chi.Mux
	core   *core.Core
	store  interfaces.PreferenceStore
	cfg    *config.Config
	logger *log.Logger
	jwt    *auth.JWTMiddleware
}

func NewRouter(c *core.Core, store interfaces.PreferenceStore, cfg *config.Config, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		mux:    chi.NewRouter(),
		core:   c,
		store:  store,
		cfg:    cfg,
		logger: logger,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.logger))
	r.Use(chimiddleware.Recoverer)
	if rt.cfg.Server.MaxBodyBytes > 0 {
		r.Use(chimiddleware.RequestSize(rt.cfg.Server.MaxBodyBytes))
	}

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.cfg.Store.Kind, rt.store)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	filterH := handlers.NewFilterHandler(rt.core, rt.cfg.Filter.MaxBatchSize)
	prefsH := handlers.NewPreferencesHandler(rt.core)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/filter", filterH.Filter)

		r.Route("/me", func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)
			r.Post("/filter", filterH.FilterMine)
			r.Get("/preferences", prefsH.Get)
			r.Put("/preferences", prefsH.Put)
			r.Post("/trigger-words", prefsH.AddTriggerWord)
			r.Delete("/trigger-words/{word}", prefsH.RemoveTriggerWord)
		})
	})

	return r
}
