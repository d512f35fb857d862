// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/metrics"
	"github.com/tomtom215/curio/internal/recommend/feedback"
)

// FeedbackPublisher hands recorded events to the asynchronous profile
// updater.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, event feedback.Event) error
}

// Service is the entry point used by the API layer.
type Service struct {
	engine    *Engine
	search    *SearchEngine
	profiles  *feedback.Store
	log       feedback.Log
	publisher FeedbackPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService wires the engines and the feedback path. publisher may be nil,
// in which case profile updates are applied inline.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewService(engine *Engine, search *SearchEngine, profiles *feedback.Store, log feedback.Log, publisher FeedbackPublisher, logger zerolog.Logger) *Service {
	return &Service{
		engine:    engine,
		search:    search,
		profiles:  profiles,
		log:       log,
		publisher: publisher,
		logger:    logger.With().Str("component", "service").Logger(),
		now:       time.Now,
	}
}

// SetPublisher attaches the asynchronous profile updater.
func (s *Service) SetPublisher(p FeedbackPublisher) {
	s.publisher = p
}

// Recommend delegates to the recommendation engine.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	return s.engine.Recommend(ctx, req)
}

// Search delegates to the hybrid search engine.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	return s.search.Search(ctx, req)
}

// RecordFeedback appends the event to the log, which changes the user's
// revision immediately, then updates the profile vector either through the
// publisher or inline.
//
// A failed profile save is not an error for the caller: the event is logged
// and the batch stays pending for retry.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *Service) RecordFeedback(ctx context.Context, req FeedbackRequest) (*FeedbackResult, error) {
	ev := feedback.Event{
		User:      strings.TrimSpace(req.User),
		Candidate: strings.TrimSpace(req.Candidate),
		Action:    req.Action,
		Weight:    req.Weight,
		Timestamp: req.Timestamp,
	}
	if ev.Weight == 0 {
		ev.Weight = feedback.DefaultWeight
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.log.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("%w: append feedback: %v", ErrDependencyUnavailable, err)
	}
	metrics.FeedbackEvents.WithLabelValues(string(ev.Action)).Inc()

	result := &FeedbackResult{Profile: ProfileApplied}
	switch {
	case s.publisher != nil:
		if err := s.publisher.PublishFeedback(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Str("user", ev.User).Msg("feedback publish failed, applying inline")
			result.Profile = s.applyInline(ctx, ev)
		} else {
			result.Profile = ProfileQueued
		}
	default:
		result.Profile = s.applyInline(ctx, ev)
	}

	rev, err := s.profiles.Revision(ctx, ev.User)
	if err != nil {
		s.logger.Warn().Err(err).Str("user", ev.User).Msg("revision unavailable after feedback")
	}
	result.Revision = rev
	return result, nil
}

// HandleFeedback applies one event delivered by the event bus. Persistence
// failures are absorbed: the batch is pending inside the store and the
// message must not be redelivered on top of it.
func (s *Service) HandleFeedback(ctx context.Context, ev feedback.Event) error {
	err := s.profiles.ApplyEvents(ctx, ev.User, []feedback.Event{ev})
	if err == nil || errors.Is(err, ErrPersistenceFailure) {
		return nil
	}
	return err
}

// ClearProfile deletes the user's profile vector. Cached rankings miss on
// the next request because the reset changes the revision.
func (s *Service) ClearProfile(ctx context.Context, user string) error {
	user = strings.TrimSpace(user)
	if user == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if err := s.profiles.Clear(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	return nil
}

// RetryPending re-applies profile batches whose save failed earlier.
func (s *Service) RetryPending(ctx context.Context) (succeeded, failed int) {
	return s.profiles.RetryPending(ctx)
}

// PendingCount returns the number of events waiting for a profile save.
func (s *Service) PendingCount() int {
	return s.profiles.PendingCount()
}

func (s *Service) applyInline(ctx context.Context, ev feedback.Event) string {
	err := s.profiles.ApplyEvents(ctx, ev.User, []feedback.Event{ev})
	if err != nil {
		if !errors.Is(err, ErrPersistenceFailure) {
			s.logger.Warn().Err(err).Str("user", ev.User).Msg("profile update deferred")
		}
		return ProfilePendingRetry
	}
	return ProfileApplied
}
