// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/relay/internal/auth"
	"github.com/tomtom215/relay/internal/middleware"
)

// Router holds the handler and middleware used to build the route tree.
type Router struct {
	handler       *Handler
	middleware    *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. chiMw may be nil for defaults.
func NewRouter(handler *Handler, authMw *auth.Middleware, chiMw *ChiMiddleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		middleware:    authMw,
		chiMiddleware: chiMw,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.Handler)          // X-Request-ID plus logging context
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		// ========================
		// Health Endpoints
		// ========================
		r.Get("/health/live", h.HealthLive)
		r.Get("/health/ready", h.HealthReady)

		r.Group(func(r chi.Router) {
			r.Use(router.middleware.Handler)

			// ========================
			// Stream Endpoints
			// ========================
			r.Get("/stream", h.Stream)
			r.Get("/ws", h.WebSocket)

			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimit())
				r.Post("/stream/subscribe", h.Subscribe)
				r.Post("/stream/unsubscribe", h.Unsubscribe)
			})

			// ========================
			// Admin Endpoints
			// ========================
			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Use(router.chiMiddleware.RateLimitCustom(RateLimitAdmin))

				r.Get("/sessions", h.ListSessions)
				r.Post("/sessions/{id}/revoke", h.RevokeSession)
				r.Post("/broadcast", h.Broadcast)
				r.Post("/events", h.PublishEvent)
				r.Post("/refresh", h.Refresh)
				r.Post("/analyses/{id}/move", h.MoveAnalysis)
				r.Post("/users/{id}/permissions", h.PermissionsChanged)
			})
		})
	})

	return r
}
