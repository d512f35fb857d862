// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/logging"
	"github.com/tomtom215/curio/internal/metrics"
	"github.com/tomtom215/curio/internal/recommend/feedback"
)

// FeedbackHandler applies one feedback event to the user's profile.
type FeedbackHandler interface {
	HandleFeedback(ctx context.Context, ev feedback.Event) error
}

// Bus publishes feedback events and routes them to a FeedbackHandler.
type Bus struct {
	cfg      Config
	pubsub   *gochannel.GoChannel
	handler  FeedbackHandler
	dedup    middleware.ExpiringKeyRepository
	logger   zerolog.Logger
	wmLogger watermill.LoggerAdapter

	running atomic.Bool
	closed  atomic.Bool
}

// New creates a bus. Call Serve to start consuming.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, handler FeedbackHandler, logger zerolog.Logger) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event bus config: %w", err)
	}
	if handler == nil {
		return nil, errors.New("feedback handler is required")
	}

	dedup, err := middleware.NewMapExpiringKeyRepository(cfg.DedupTTL)
	if err != nil {
		return nil, fmt.Errorf("create dedup repository: %w", err)
	}

	logger = logger.With().Str("component", "eventbus").Logger()
	wmLogger := logging.NewWatermillLogger(logger)

	return &Bus{
		cfg: cfg,
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(cfg.BufferSize),
		}, wmLogger),
		handler:  handler,
		dedup:    dedup,
		logger:   logger,
		wmLogger: wmLogger,
	}, nil
}

// PublishFeedback implements recommend.FeedbackPublisher.
func (b *Bus) PublishFeedback(ctx context.Context, ev feedback.Event) error {
	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = logging.RequestIDFromContext(ctx)
	}
	return b.Publish(ctx, NewFeedbackRecorded(ev, correlationID))
}

// Publish sends an already built payload. Publishing the same EventID twice
// delivers it to the handler once.
func (b *Bus) Publish(_ context.Context, payload FeedbackRecorded) error {
	switch {
	case b.closed.Load():
		metrics.EventsPublished.WithLabelValues(TopicFeedbackRecorded, "closed").Inc()
		return ErrClosed
	case !b.running.Load():
		metrics.EventsPublished.WithLabelValues(TopicFeedbackRecorded, "not_running").Inc()
		return ErrNotRunning
	}

	data, err := payload.Marshal()
	if err != nil {
		metrics.EventsPublished.WithLabelValues(TopicFeedbackRecorded, "error").Inc()
		return fmt.Errorf("encode feedback event: %w", err)
	}

	msg := message.NewMessage(payload.EventID, data)
	msg.Metadata.Set(MetadataEventID, payload.EventID)
	msg.Metadata.Set(MetadataUser, payload.User)
	if payload.CorrelationID != "" {
		msg.Metadata.Set(MetadataCorrelationID, payload.CorrelationID)
	}

	if err := b.pubsub.Publish(TopicFeedbackRecorded, msg); err != nil {
		metrics.EventsPublished.WithLabelValues(TopicFeedbackRecorded, "error").Inc()
		return fmt.Errorf("publish feedback event: %w", err)
	}
	metrics.EventsPublished.WithLabelValues(TopicFeedbackRecorded, "ok").Inc()
	return nil
}

// Serve runs a router until ctx is canceled. It implements suture.Service.
func (b *Bus) Serve(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}

	router, err := b.newRouter()
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx)
	}()

	select {
	case <-router.Running():
		b.running.Store(true)
		b.logger.Info().Str("topic", TopicFeedbackRecorded).Msg("Event router running")
	case err := <-errCh:
		return fmt.Errorf("start event router: %w", err)
	}

	err = <-errCh
	b.running.Store(false)

	if ctx.Err() != nil {
		b.logger.Info().Msg("Event router stopped")
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return errors.New("event router exited unexpectedly")
}

// String implements fmt.Stringer for suture logging.
func (b *Bus) String() string {
	return "event-bus"
}

// Running reports whether a router is consuming feedback.
func (b *Bus) Running() bool {
	return b.running.Load()
}

// Close shuts the pub/sub down. Serve must not be called afterwards.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.running.Store(false)
	return b.pubsub.Close()
}

func (b *Bus) newRouter() (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: b.cfg.CloseTimeout,
	}, b.wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	poisonQueue, err := middleware.PoisonQueue(b.pubsub, b.cfg.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	dedup := middleware.Deduplicator{
		KeyFactory: eventIDKey,
		Repository: b.dedup,
		Timeout:    time.Second,
	}
	retry := middleware.Retry{
		MaxRetries:      b.cfg.RetryMaxRetries,
		InitialInterval: b.cfg.RetryInitialInterval,
		MaxInterval:     b.cfg.RetryMaxInterval,
		Multiplier:      b.cfg.RetryMultiplier,
		Logger:          b.wmLogger,
	}

	updater := router.AddConsumerHandler("feedback-profile-updater", TopicFeedbackRecorded, b.pubsub, b.handleFeedback)
	// Outermost first. Handler-level so poisoned copies, which keep their
	// event id, are not swallowed by the deduplicator.
	updater.AddMiddleware(poisonQueue, dedup.Middleware)
	if b.cfg.ThrottlePerSecond > 0 {
		updater.AddMiddleware(middleware.NewThrottle(b.cfg.ThrottlePerSecond, time.Second).Middleware)
	}
	updater.AddMiddleware(retry.Middleware, middleware.Recoverer)

	router.AddConsumerHandler("feedback-poison-logger", b.cfg.PoisonTopic, b.pubsub, b.handlePoison)

	return router, nil
}

func (b *Bus) handleFeedback(msg *message.Message) error {
	payload, err := DecodeFeedbackRecorded(msg.Payload)
	if err != nil {
		b.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable feedback message")
		metrics.EventsHandled.WithLabelValues(TopicFeedbackRecorded, "invalid").Inc()
		return nil
	}

	ctx := msg.Context()
	if payload.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, payload.CorrelationID)
	}

	if err := b.handler.HandleFeedback(ctx, payload.Event()); err != nil {
		metrics.EventsHandled.WithLabelValues(TopicFeedbackRecorded, "error").Inc()
		return fmt.Errorf("apply feedback event %s: %w", payload.EventID, err)
	}
	metrics.EventsHandled.WithLabelValues(TopicFeedbackRecorded, "ok").Inc()
	return nil
}

func (b *Bus) handlePoison(msg *message.Message) error {
	metrics.EventsHandled.WithLabelValues(b.cfg.PoisonTopic, "poisoned").Inc()
	b.logger.Error().
		Str("event_id", msg.Metadata.Get(MetadataEventID)).
		Str("user", msg.Metadata.Get(MetadataUser)).
		Str("correlation_id", msg.Metadata.Get(MetadataCorrelationID)).
		Str("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)).
		Msg("Feedback event dropped after retries; profile update lost")
	return nil
}
