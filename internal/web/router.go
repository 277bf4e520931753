package web

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/znz-systems/mailbrief/internal/ratelimit"
	"github.com/znz-systems/mailbrief/internal/web/handlers"
	"github.com/znz-systems/mailbrief/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router. A nil handler
// leaves its route unmounted.
type RouterDeps struct {
	WebhookHandler *handlers.WebhookHandler
	EventsHandler  *handlers.EventsHandler
	PollHandler    *handlers.PollHandler
	Limiter        *ratelimit.Limiter
	WebhookSecret  string
	APIToken       string
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", handlers.HandleHealth)

	// Telegram webhook (rate limited, secret header)
	if deps.WebhookHandler != nil {
		r.Group(func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(middleware.RateLimit(deps.Limiter))
			}
			r.Use(middleware.RequireHeaderSecret(middleware.TelegramSecretHeader, deps.WebhookSecret))

			r.Post("/webhooks/telegram", deps.WebhookHandler.HandleTelegram)
		})
	}

	// Internal triggers (bearer token)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireBearer(deps.APIToken))

		if deps.EventsHandler != nil {
			r.Post("/events/storage", deps.EventsHandler.HandleStorageEvent)
		}
		if deps.PollHandler != nil {
			r.Post("/jobs/poll", deps.PollHandler.HandlePoll)
		}
	})

	return r
}
