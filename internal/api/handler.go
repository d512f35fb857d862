// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/logging"
	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/validation"
)

// RankingService is the application layer behind the handlers.
// recommend.Service implements it.
type RankingService interface {
	Recommend(ctx context.Context, req recommend.RecommendRequest) (*recommend.RecommendResponse, error)
	Search(ctx context.Context, req recommend.SearchRequest) (*recommend.SearchResponse, error)
	RecordFeedback(ctx context.Context, req recommend.FeedbackRequest) (*recommend.FeedbackResult, error)
	ClearProfile(ctx context.Context, user string) error
}

var _ RankingService = (*recommend.Service)(nil)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// HandlerConfig bounds request handling.
type HandlerConfig struct {
	// RequestTimeout bounds each service call.
	RequestTimeout time.Duration
	// MaxImageBytes bounds image uploads.
	MaxImageBytes int64
	// MaxBodyBytes bounds JSON bodies.
	MaxBodyBytes int64
	// HealthTimeout bounds each health check.
	HealthTimeout time.Duration
}

// DefaultHandlerConfig returns production defaults.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		RequestTimeout: 10 * time.Second,
		MaxImageBytes:  8 << 20,
		MaxBodyBytes:   64 << 10,
		HealthTimeout:  2 * time.Second,
	}
}

// Handler serves the API routes.
type Handler struct {
	service RankingService
	cfg     HandlerConfig
	logger  zerolog.Logger
	started time.Time

	mu     sync.RWMutex
	checks []namedCheck
}

type namedCheck struct {
	name  string
	check HealthCheck
}

// NewHandler creates a handler. Zero config fields use defaults.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(service RankingService, cfg HandlerConfig, logger zerolog.Logger) *Handler {
	def := DefaultHandlerConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = def.MaxImageBytes
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = def.HealthTimeout
	}
	return &Handler{
		service: service,
		cfg:     cfg,
		logger:  logger.With().Str("component", "api").Logger(),
		started: time.Now(),
	}
}

// AddHealthCheck registers a dependency reported by the health endpoint.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

// requestContext bounds a service call.
func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
}

// respondValidation writes a VALIDATION_FAILED error.
func respondValidation(rw *ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	rw.ValidationError(apiErr.Message, apiErr.Details)
}

// respondServiceError maps service errors to HTTP errors.
func (h *Handler) respondServiceError(rw *ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidInput):
		rw.ValidationError(err.Error(), nil)
	case errors.Is(err, recommend.ErrDependencyUnavailable):
		logging.Ctx(r.Context()).Warn().Err(err).Str("operation", op).Msg("Dependency unavailable")
		rw.ServiceUnavailable("A required dependency is unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rw.ServiceUnavailable("Request canceled or timed out")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("operation", op).Msg("Request failed")
		rw.InternalError("An internal error occurred")
	}
}
