// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"context"
	"errors"

	"github.com/tomtom215/curio/internal/recommend/feedback"
)

var (
	// ErrDependencyUnavailable marks a collaborator (catalog, embedding
	// service, feedback storage) that failed or timed out.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrInvalidInput marks a request that cannot be served as given.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersistenceFailure marks a profile vector that could not be saved.
	ErrPersistenceFailure = feedback.ErrPersistenceFailure
)

// Reason is the machine-readable outcome reported in Meta.
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonNoCandidates Reason = "no_candidates"
	ReasonUnavailable  Reason = "unavailable"
	ReasonInvalidInput Reason = "invalid_input"
	ReasonCanceled     Reason = "canceled"
)

// Exclusion reasons counted in Meta.Exclusions.
const (
	ExcludedOwned      = "already_owned"
	ExcludedDisliked   = "disliked"
	ExcludedRead       = "read"
	ExcludedCutoff     = "below_cutoff"
	ExcludedDecayed    = "decayed"
	ExcludedMalformed  = "malformed"
	ExcludedTagFilter  = "tag_filter"
	ExcludedOutOfScope = "out_of_scope"
	ExcludedMissing    = "missing"
)

// ReasonFor maps an error to the reason code reported to callers.
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonOK
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, ErrInvalidInput), errors.Is(err, feedback.ErrInvalidEvent):
		return ReasonInvalidInput
	default:
		return ReasonUnavailable
	}
}
