package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/menuwaiter/internal/api/handlers"
	"github.com/nikhilbhutani/menuwaiter/internal/api/middleware"
)

// Deps are the constructed services the HTTP layer serves. Queue and
// Status are optional; without them uploads are ingested synchronously only.
type Deps struct {
	Ingester    handlers.Ingester
	Queue       handlers.Enqueuer
	Status      handlers.StatusTracker
	Graph       handlers.TurnRunner
	Responder   handlers.Replier
	Health      map[string]handlers.Pinger
	MaxUploadMB int

	// RateLimitRPS and RateLimitBurst size the per-client bucket.
	// Zero selects 100 requests/s with a burst of 200.
	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	mux  *chi.Mux
	deps Deps
}

func NewRouter(deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		deps: deps,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	rps, burst := rt.deps.RateLimitRPS, rt.deps.RateLimitBurst
	if rps <= 0 {
		rps = 100
	}
	if burst <= 0 {
		burst = 200
	}

	// Global middleware. The limiter keys on the connection address, so it
	// runs before RealIP rewrites RemoteAddr from forwarding headers.
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewRateLimiter(rps, burst).Limit)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	health := handlers.NewHealthHandler(rt.deps.Health)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		menuH := handlers.NewMenuHandler(rt.deps.Ingester, rt.deps.Queue, rt.deps.Status, rt.deps.MaxUploadMB)
		r.Route("/menus", func(r chi.Router) {
			r.Post("/", menuH.Upload)
			r.Get("/{namespace}/status", menuH.Status)
		})

		queryH := handlers.NewQueryHandler(rt.deps.Graph)
		r.Post("/query", queryH.Query)

		chatH := handlers.NewChatHandler(rt.deps.Graph, rt.deps.Responder)
		r.Post("/chat", chatH.Chat)
		r.Post("/chat/stream", chatH.ChatStream)
	})

	return r
}
