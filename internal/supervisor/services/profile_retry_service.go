// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/metrics"
)

// PendingRetrier re-applies feedback whose profile save failed.
// recommend.Service implements it.
type PendingRetrier interface {
	RetryPending(ctx context.Context) (succeeded, failed int)
	PendingCount() int
}

// ProfileRetryConfig configures the retry loop.
type ProfileRetryConfig struct {
	// Interval between retry passes. Default: 30s
	Interval time.Duration

	// PassTimeout bounds one retry pass. Default: Interval
	PassTimeout time.Duration
}

// ProfileRetryService periodically retries pending profile batches, so a
// profile whose save failed converges once storage recovers. Each tick
// exports the pending count to the profile_pending_events gauge.
type ProfileRetryService struct {
	retrier PendingRetrier
	config  ProfileRetryConfig
	logger  zerolog.Logger
	name    string
}

// NewProfileRetryService creates the retry loop.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewProfileRetryService(retrier PendingRetrier, cfg ProfileRetryConfig, logger zerolog.Logger) *ProfileRetryService {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = cfg.Interval
	}
	return &ProfileRetryService{
		retrier: retrier,
		config:  cfg,
		logger:  logger.With().Str("service", "profile-retry").Logger(),
		name:    "profile-retry",
	}
}

// Serve implements suture.Service.
func (s *ProfileRetryService) Serve(ctx context.Context) error {
	s.logger.Debug().Dur("interval", s.config.Interval).Msg("profile retry loop starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.retryOnce(ctx)
		}
	}
}

func (s *ProfileRetryService) retryOnce(ctx context.Context) {
	pending := s.retrier.PendingCount()
	metrics.ProfilePendingEvents.Set(float64(pending))
	if pending == 0 {
		return
	}

	passCtx, cancel := context.WithTimeout(ctx, s.config.PassTimeout)
	defer cancel()

	start := time.Now()
	succeeded, failed := s.retrier.RetryPending(passCtx)
	pending = s.retrier.PendingCount()
	metrics.ProfilePendingEvents.Set(float64(pending))

	evt := s.logger.Info()
	if failed > 0 {
		evt = s.logger.Warn()
	}
	evt.Int("succeeded", succeeded).
		Int("failed", failed).
		Int("pending", pending).
		Dur("duration", time.Since(start)).
		Msg("profile retry pass complete")
}

// String names the service in supervisor logs.
func (s *ProfileRetryService) String() string {
	return s.name
}
