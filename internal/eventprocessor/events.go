// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/curio/internal/recommend/feedback"
)

// Topics.
const (
	TopicFeedbackRecorded = "feedback.recorded"
	TopicFeedbackPoison   = "feedback.poison"
)

// Metadata keys set on every published message.
const (
	MetadataEventID       = "event_id"
	MetadataCorrelationID = "correlation_id"
	MetadataUser          = "user"
)

// FeedbackRecorded is the payload published after a feedback event has been
// appended to the log.
type FeedbackRecorded struct {
	EventID       string          `json:"event_id"`
	User          string          `json:"user"`
	Candidate     string          `json:"candidate"`
	Action        feedback.Action `json:"action"`
	Weight        float64         `json:"weight"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// NewFeedbackRecorded wraps ev with a fresh event id.
func NewFeedbackRecorded(ev feedback.Event, correlationID string) FeedbackRecorded {
	return FeedbackRecorded{
		EventID:       uuid.New().String(),
		User:          ev.User,
		Candidate:     ev.Candidate,
		Action:        ev.Action,
		Weight:        ev.Weight,
		Timestamp:     ev.Timestamp,
		CorrelationID: correlationID,
	}
}

// Event converts the payload back to a feedback event.
func (f *FeedbackRecorded) Event() feedback.Event {
	return feedback.Event{
		User:      f.User,
		Candidate: f.Candidate,
		Action:    f.Action,
		Weight:    f.Weight,
		Timestamp: f.Timestamp,
	}
}

// Marshal encodes the payload.
func (f *FeedbackRecorded) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFeedbackRecorded parses and validates a payload.
func DecodeFeedbackRecorded(data []byte) (FeedbackRecorded, error) {
	var f FeedbackRecorded
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if f.EventID == "" {
		return f, fmt.Errorf("%w: missing event_id", ErrInvalidPayload)
	}
	ev := f.Event()
	if err := ev.Validate(); err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return f, nil
}
