// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Action is the kind of implicit feedback a user gave on a candidate.
type Action string

const (
	ActionClick      Action = "click"
	ActionImpression Action = "impression"
	ActionDislike    Action = "dislike"
	ActionRead       Action = "read"
)

// Actions lists every action in a fixed order.
var Actions = []Action{ActionClick, ActionImpression, ActionDislike, ActionRead}

// Event weight bounds.
const (
	DefaultWeight = 1.0
	MaxWeight     = 10.0
)

var (
	// ErrInvalidEvent is returned for events that fail validation.
	ErrInvalidEvent = errors.New("invalid feedback event")

	// ErrPersistenceFailure is returned when an updated profile vector could
	// not be saved. The batch is kept for retry.
	ErrPersistenceFailure = errors.New("profile persistence failure")
)

// ParseAction converts a string to an Action.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, s)
	}
	return a, nil
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionClick, ActionImpression, ActionDislike, ActionRead:
		return true
	default:
		return false
	}
}

// Alpha is the signed EMA step of the action. Negative signals dominate.
func (a Action) Alpha() float64 {
	switch a {
	case ActionClick:
		return 0.05
	case ActionImpression:
		return 0.01
	case ActionDislike:
		return -0.15
	case ActionRead:
		return -0.30
	default:
		return 0
	}
}

// Event is one append-only feedback record.
type Event struct {
	User      string    `json:"user"`
	Candidate string    `json:"candidate"`
	Action    Action    `json:"action"`
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks identity, action and weight range (0, MaxWeight].
func (e *Event) Validate() error {
	if strings.TrimSpace(e.User) == "" {
		return fmt.Errorf("%w: empty user", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Candidate) == "" {
		return fmt.Errorf("%w: empty candidate", ErrInvalidEvent)
	}
	if !e.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, e.Action)
	}
	if e.Weight <= 0 || e.Weight > MaxWeight {
		return fmt.Errorf("%w: weight must be in (0, %v], got %v", ErrInvalidEvent, MaxWeight, e.Weight)
	}
	return nil
}

// Stats summarizes a user's feedback log for revision fingerprints.
type Stats struct {
	Counts map[Action]int64 `json:"counts"`
	Latest time.Time        `json:"latest"`
}

// Record is a persisted profile vector.
type Record struct {
	Vector     []float32 `json:"vector,omitempty"`
	Generation int64     `json:"generation"`
	// Version counts saves so a revision changes when a queued update lands.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemVectors are the embedding sources of a candidate.
type ItemVectors struct {
	Cover    []float32
	Interior []float32
}

// Log is the append-only feedback log.
type Log interface {
	Append(ctx context.Context, event Event) error
	CountsByAction(ctx context.Context, user string, ids []string, action Action) (map[string]int, error)
	Stats(ctx context.Context, user string) (Stats, error)
}

// ProfileStorage persists one vector per user. Load of an unknown user
// returns a zero Record and no error. Save bumps the version. Reset removes
// the vector and bumps the generation.
type ProfileStorage interface {
	Load(ctx context.Context, user string) (Record, error)
	Save(ctx context.Context, user string, vector []float32) error
	Reset(ctx context.Context, user string) error
}

// VectorResolver looks up embedding sources for candidate identities.
// Unknown identities are absent from the result.
type VectorResolver interface {
	Vectors(ctx context.Context, ids []string) (map[string]ItemVectors, error)
}
