/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address behind the gateway
  3. RequestLogger: One zerolog line per request + Prometheus counter
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the booking front end
  6. WithActor:     Caller identity from X-Actor-ID / X-Actor-Role
  7. RateLimiter:   Per-actor token bucket (API routes only, when enabled)

ROUTE GROUPS:
  /healthz               Liveness
  /metrics               Prometheus scrape endpoint
  /api/resources/*       Rooms and items (reads are public)
  /api/reservations/*    Bookings and rentals (actor required)
  /api/rewards/*         Loyalty summary and config
  /api/admin/*           Admin operations
  /api/scenarios/*       Demo scenarios (dev only)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Actor, logging, rate limiting
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/warp/studio-engine/metrics"
)

// RouterOptions configure the HTTP surface.
type RouterOptions struct {
	Logger         zerolog.Logger
	CORSOrigins    []string
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	metrics.Register()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderActorID, HeaderActorRole},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	}))
	r.Use(WithActor)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			r.Use(NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware)
		}

		// Resource routes
		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.ListResources)
			r.Get("/{id}", h.GetResource)
			r.Get("/{id}/availability", h.GetAvailability)

			r.Group(func(r chi.Router) {
				r.Use(RequireActor)
				r.Post("/", h.CreateResource)
				r.Put("/{id}/active", h.SetResourceActive)
				r.Get("/{id}/reservations", h.ListResourceReservations)
			})
		})

		// Reservation routes
		r.Route("/reservations", func(r chi.Router) {
			r.Use(RequireActor)
			r.Get("/", h.ListReservations)
			r.Post("/", h.CreateReservation)
			r.Get("/mine", h.ListMyReservations)
			r.Get("/{id}", h.GetReservation)
			r.Get("/{id}/fee", h.GetCancellationFee)
			r.Post("/{id}/cancel", h.CancelReservation)
			r.Put("/{id}/status", h.UpdateReservationStatus)
			r.Put("/{id}/payment", h.UpdatePaymentStatus)
		})

		// Rewards routes
		r.Route("/rewards", func(r chi.Router) {
			r.Get("/config", h.GetRewardConfig)

			r.Group(func(r chi.Router) {
				r.Use(RequireActor)
				r.Get("/me", h.GetMySummary)
				r.Get("/me/history", h.GetMyHistory)
				r.Get("/accounts/{id}", h.GetAccountSummary)
			})
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireActor)
			r.Put("/rewards/config", h.UpdateRewardConfig)
			r.Post("/rewards/entries", h.PostRewardEntry)
			r.Post("/rewards/sweep", h.TriggerSweep)
			r.Get("/rewards/sweeps", h.ListSweeps)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)

			r.Group(func(r chi.Router) {
				r.Use(RequireActor)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		})
	})

	return r
}
