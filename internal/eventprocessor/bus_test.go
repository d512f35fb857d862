// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/logging"
	"github.com/tomtom215/curio/internal/metrics"
	"github.com/tomtom215/curio/internal/recommend/feedback"
)

type recordingHandler struct {
	mu           sync.Mutex
	events       []feedback.Event
	correlations []string
	calls        atomic.Int32
	fn           func(call int32) error
}

func (h *recordingHandler) HandleFeedback(ctx context.Context, ev feedback.Event) error {
	call := h.calls.Add(1)
	if h.fn != nil {
		if err := h.fn(call); err != nil {
			return err
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	h.correlations = append(h.correlations, logging.CorrelationIDFromContext(ctx))
	return nil
}

func (h *recordingHandler) handled() []feedback.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]feedback.Event(nil), h.events...)
}

func testConfig(poisonTopic string) Config {
	cfg := DefaultConfig()
	cfg.RetryMaxRetries = 1
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	cfg.CloseTimeout = time.Second
	cfg.PoisonTopic = poisonTopic
	return cfg
}

func startBus(t *testing.T, cfg Config, h FeedbackHandler) *Bus {
	t.Helper()

	bus, err := New(cfg, h, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after cancel")
		}
		_ = bus.Close()
	})

	waitFor(t, bus.Running)
	return bus
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func testEvent(user, candidate string) feedback.Event {
	return feedback.Event{
		User:      user,
		Candidate: candidate,
		Action:    feedback.ActionClick,
		Weight:    1,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBus_PublishFeedbackDelivers(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	bus := startBus(t, testConfig("feedback.poison.deliver"), h)

	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	if err := bus.PublishFeedback(ctx, testEvent("u1", "c1")); err != nil {
		t.Fatalf("PublishFeedback() error = %v", err)
	}

	waitFor(t, func() bool { return len(h.handled()) == 1 })

	got := h.handled()[0]
	if got.User != "u1" || got.Candidate != "c1" || got.Action != feedback.ActionClick {
		t.Errorf("handled event = %+v", got)
	}
	if !got.Timestamp.Equal(testEvent("u1", "c1").Timestamp) {
		t.Errorf("Timestamp = %v", got.Timestamp)
	}
	h.mu.Lock()
	corr := h.correlations[0]
	h.mu.Unlock()
	if corr != "corr-1" {
		t.Errorf("correlation id = %q, want corr-1", corr)
	}
}

func TestBus_DeduplicatesEventID(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	bus := startBus(t, testConfig("feedback.poison.dedup"), h)
	ctx := context.Background()

	first := NewFeedbackRecorded(testEvent("u1", "c1"), "")
	for i := 0; i < 2; i++ {
		if err := bus.Publish(ctx, first); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if err := bus.Publish(ctx, NewFeedbackRecorded(testEvent("u1", "c2"), "")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	waitFor(t, func() bool { return len(h.handled()) >= 2 })
	time.Sleep(20 * time.Millisecond)

	got := h.handled()
	if len(got) != 2 {
		t.Fatalf("handled %d events, want 2", len(got))
	}
	if got[0].Candidate != "c1" || got[1].Candidate != "c2" {
		t.Errorf("handled candidates = %s, %s", got[0].Candidate, got[1].Candidate)
	}
}

func TestBus_PoisonAfterRetries(t *testing.T) {
	t.Parallel()

	const poisonTopic = "feedback.poison.retries"
	poisoned := metrics.EventsHandled.WithLabelValues(poisonTopic, "poisoned")
	before := testutil.ToFloat64(poisoned)

	h := &recordingHandler{fn: func(int32) error { return errors.New("store down") }}
	bus := startBus(t, testConfig(poisonTopic), h)

	if err := bus.PublishFeedback(context.Background(), testEvent("u1", "c1")); err != nil {
		t.Fatalf("PublishFeedback() error = %v", err)
	}

	waitFor(t, func() bool { return testutil.ToFloat64(poisoned) == before+1 })

	// One attempt plus one retry.
	if calls := h.calls.Load(); calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestBus_RecoversPanic(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{fn: func(call int32) error {
		if call == 1 {
			panic("boom")
		}
		return nil
	}}
	bus := startBus(t, testConfig("feedback.poison.panic"), h)

	if err := bus.PublishFeedback(context.Background(), testEvent("u1", "c1")); err != nil {
		t.Fatalf("PublishFeedback() error = %v", err)
	}

	waitFor(t, func() bool { return len(h.handled()) == 1 })
	if calls := h.calls.Load(); calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestBus_DropsInvalidPayload(t *testing.T) {
	t.Parallel()

	invalid := metrics.EventsHandled.WithLabelValues(TopicFeedbackRecorded, "invalid")
	before := testutil.ToFloat64(invalid)

	h := &recordingHandler{}
	bus := startBus(t, testConfig("feedback.poison.invalid"), h)

	msg := message.NewMessage("raw-1", []byte(`{"event_id":"raw-1","user":""}`))
	if err := bus.pubsub.Publish(TopicFeedbackRecorded, msg); err != nil {
		t.Fatalf("pubsub.Publish() error = %v", err)
	}

	waitFor(t, func() bool { return testutil.ToFloat64(invalid) >= before+1 })
	if calls := h.calls.Load(); calls != 0 {
		t.Errorf("handler calls = %d, want 0", calls)
	}
}

func TestBus_NotRunningAndClosed(t *testing.T) {
	t.Parallel()

	bus, err := New(testConfig("feedback.poison.lifecycle"), &recordingHandler{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if bus.String() != "event-bus" {
		t.Errorf("String() = %q", bus.String())
	}

	if err := bus.PublishFeedback(context.Background(), testEvent("u1", "c1")); !errors.Is(err, ErrNotRunning) {
		t.Errorf("PublishFeedback() before Serve error = %v, want ErrNotRunning", err)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := bus.PublishFeedback(context.Background(), testEvent("u1", "c1")); !errors.Is(err, ErrClosed) {
		t.Errorf("PublishFeedback() after Close error = %v, want ErrClosed", err)
	}
	if err := bus.Serve(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Serve() after Close error = %v, want ErrClosed", err)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(DefaultConfig(), nil, zerolog.Nop()); err == nil {
		t.Error("New() with nil handler should fail")
	}
	cfg := DefaultConfig()
	cfg.RetryMultiplier = 0.5
	if _, err := New(cfg, &recordingHandler{}, zerolog.Nop()); err == nil {
		t.Error("New() with invalid config should fail")
	}
}
