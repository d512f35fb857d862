// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package eventprocessor

import "errors"

var (
	// ErrNotRunning is returned by PublishFeedback while no router consumes
	// the feedback topic.
	ErrNotRunning = errors.New("event bus not running")

	// ErrInvalidPayload marks a message that can never be handled.
	ErrInvalidPayload = errors.New("invalid event payload")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("event bus closed")
)
