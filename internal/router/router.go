package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genius-backend/internal/handlers"
	"genius-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	conversationHandler *handlers.ConversationHandler,
	conversationLimiter *middleware.RateLimiter,
	wsHandler http.HandlerFunc,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(frontendURL))
	r.Use(jwtAuth.Identify)

	r.Get("/health", handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(conversationLimiter.Limit(conversationHandler.Throttled)).Post("/conversation", conversationHandler.Converse)
		r.Get("/usage", conversationHandler.Usage)

		if wsHandler != nil {
			r.Get("/ws", wsHandler)
		}
	})

	return r
}
