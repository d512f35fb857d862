// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/middleware"
)

// Router builds the chi route tree.
type Router struct {
	handler *Handler
	mw      *ChiMiddleware
	logger  zerolog.Logger
}

// NewRouter creates a router. A nil middleware config uses defaults.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(handler *Handler, mwCfg *ChiMiddlewareConfig, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		mw:      NewChiMiddleware(mwCfg),
		logger:  logger,
	}
}

// Setup returns the HTTP handler with all routes mounted.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.mw.CORS())
	r.Use(middleware.AccessLog(rt.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.mw.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Get("/health", rt.handler.Health)
		r.Get("/health/live", rt.handler.Live)

		r.Get("/search", rt.handler.Search)
		r.Post("/search/image", rt.handler.SearchImage)

		r.Route("/users/{user}", func(r chi.Router) {
			r.Get("/recommendations", rt.handler.Recommendations)
			r.Post("/feedback", rt.handler.Feedback)
			r.Delete("/profile", rt.handler.ClearProfile)
		})
	})

	return r
}
