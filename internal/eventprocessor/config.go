// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package eventprocessor

import (
	"errors"
	"time"
)

// Config holds event bus and router settings.
type Config struct {
	// BufferSize is the per-subscriber output buffer of the pub/sub.
	BufferSize int

	// CloseTimeout is how long the router waits for in-flight handlers.
	CloseTimeout time.Duration

	// Retry configuration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// ThrottlePerSecond limits handled messages per second (0 = disabled).
	ThrottlePerSecond int64

	// PoisonTopic receives messages that failed every retry.
	PoisonTopic string

	// DedupTTL is how long a delivered event id is remembered.
	DedupTTL time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:           1024,
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
		RetryMultiplier:      2.0,
		ThrottlePerSecond:    0,
		PoisonTopic:          TopicFeedbackPoison,
		DedupTTL:             10 * time.Minute,
	}
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.BufferSize < 0 {
		return errors.New("buffer size must be non-negative")
	}
	if c.CloseTimeout <= 0 {
		return errors.New("close timeout must be positive")
	}
	if c.RetryMaxRetries < 0 {
		return errors.New("retry max retries must be non-negative")
	}
	if c.RetryInitialInterval <= 0 || c.RetryMaxInterval < c.RetryInitialInterval {
		return errors.New("retry intervals must be positive with max >= initial")
	}
	if c.RetryMultiplier < 1 {
		return errors.New("retry multiplier must be >= 1")
	}
	if c.ThrottlePerSecond < 0 {
		return errors.New("throttle must be non-negative")
	}
	if c.PoisonTopic == "" || c.PoisonTopic == TopicFeedbackRecorded {
		return errors.New("poison topic must be set and differ from the feedback topic")
	}
	if c.DedupTTL < time.Millisecond {
		return errors.New("dedup ttl must be at least 1ms")
	}
	return nil
}
