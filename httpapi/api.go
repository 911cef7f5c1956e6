package httpapi

import (
	"context"
	"log/slog"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/go-chi/chi/v5"
)

// API holds the dependencies of the HTTP handlers.
type API struct {
	engine  *goSession.Engine
	cfg     goSession.Config
	cookies cookieJar
	logger  *slog.Logger
	health  func(context.Context) error
}

// Option configures the API instance.
type Option func(*API)

// WithHealthCheck sets the dependency check behind /healthz.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(a *API) { a.health = check }
}

// New creates an API for engine.
func New(engine *goSession.Engine, opts ...Option) *API {
	cfg := engine.Config()
	a := &API{
		engine:  engine,
		cfg:     cfg,
		cookies: newCookieJar(cfg),
		logger:  engine.Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ClientMetadata)

	r.Get("/healthz", a.Health)
	r.Get("/.well-known/jwks.json", a.JWKS)

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(a.engine, nil))
		r.Get("/login", a.Login)
		r.Get("/callback/google", a.Callback)
		r.Post("/refresh", a.Refresh)
		r.With(middleware.RequireCSRF(a.engine)).Post("/logout", a.Logout)
		r.Get("/me", a.Me)
		r.Get("/csrf", a.CSRF)
	})

	return r
}
