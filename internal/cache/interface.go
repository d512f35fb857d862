// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

// Package cache provides the in-memory TTL cache used for profile snapshots
// and ranking results, plus the key derivation shared by both.
package cache

import "time"

// Cacher is the typed cache contract consumed by the ranking layer.
// TTL implements it; tests substitute fakes.
type Cacher[V any] interface {
	// Get retrieves a value. Returns false on miss or expiry.
	Get(key string) (V, bool)

	// Set stores a value with the default TTL.
	Set(key string, value V)

	// SetWithTTL stores a value with a custom TTL.
	SetWithTTL(key string, value V, ttl time.Duration)

	// Delete removes a value.
	Delete(key string)

	// Clear removes all entries.
	Clear()

	// GetStats returns cache statistics.
	GetStats() Stats

	// HitRate returns the hit rate as a percentage.
	HitRate() float64
}

var _ Cacher[string] = (*TTL[string])(nil)
