// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package eventprocessor

import (
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestDecodeFeedbackRecorded(t *testing.T) {
	t.Parallel()

	valid := NewFeedbackRecorded(testEvent("u1", "c1"), "corr")
	data, err := valid.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := DecodeFeedbackRecorded(data)
	if err != nil {
		t.Fatalf("DecodeFeedbackRecorded() error = %v", err)
	}
	if got.EventID != valid.EventID || got.CorrelationID != "corr" {
		t.Errorf("decoded ids = %q/%q", got.EventID, got.CorrelationID)
	}

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"missing event id", `{"user":"u","candidate":"c","action":"click","weight":1}`},
		{"unknown action", `{"event_id":"e","user":"u","candidate":"c","action":"stare","weight":1}`},
		{"weight out of range", `{"event_id":"e","user":"u","candidate":"c","action":"click","weight":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeFeedbackRecorded([]byte(tt.data)); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestNewFeedbackRecorded_UniqueIDs(t *testing.T) {
	t.Parallel()

	a := NewFeedbackRecorded(testEvent("u", "c"), "")
	b := NewFeedbackRecorded(testEvent("u", "c"), "")
	if a.EventID == "" || a.EventID == b.EventID {
		t.Errorf("event ids %q and %q should be distinct and non-empty", a.EventID, b.EventID)
	}
}

func TestEventIDKey(t *testing.T) {
	t.Parallel()

	msg := message.NewMessage("uuid-1", nil)
	if key, _ := eventIDKey(msg); key != "uuid-1" {
		t.Errorf("key = %q, want message uuid fallback", key)
	}
	msg.Metadata.Set(MetadataEventID, "event-1")
	if key, _ := eventIDKey(msg); key != "event-1" {
		t.Errorf("key = %q, want event-1", key)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := func() error { c := DefaultConfig(); return c.Validate() }(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative buffer", func(c *Config) { c.BufferSize = -1 }},
		{"zero close timeout", func(c *Config) { c.CloseTimeout = 0 }},
		{"negative retries", func(c *Config) { c.RetryMaxRetries = -1 }},
		{"max below initial", func(c *Config) { c.RetryMaxInterval = time.Millisecond; c.RetryInitialInterval = time.Second }},
		{"multiplier below one", func(c *Config) { c.RetryMultiplier = 0.9 }},
		{"negative throttle", func(c *Config) { c.ThrottlePerSecond = -1 }},
		{"empty poison topic", func(c *Config) { c.PoisonTopic = "" }},
		{"poison equals feedback", func(c *Config) { c.PoisonTopic = TopicFeedbackRecorded }},
		{"zero dedup ttl", func(c *Config) { c.DedupTTL = 0 }},
		{"sub-millisecond dedup ttl", func(c *Config) { c.DedupTTL = time.Microsecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}
