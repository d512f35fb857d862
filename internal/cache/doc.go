// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package cache provides the in-memory structures shared by the profile and
ranking layers.

# TTL

TTL is a generic, thread-safe cache with per-entry expiration, an optional
capacity bound (oldest insertion evicted first) and a background sweep:

	snapshots := cache.New[*profile.Snapshot](cache.Options{
	    TTL:      90 * time.Second,
	    Capacity: 10000,
	})
	defer snapshots.Close()

Writes are last-writer-wins. Stats records hits, misses and evictions.

# Keys

GenerateKey derives a stable key from a namespace and any JSON-encodable
parameters (SHA-256 of the go-json encoding). Ranking and search results
are keyed this way, so a configuration change yields a different key.
*/
package cache
