// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"time"

	"github.com/tomtom215/curio/internal/cache"
	"github.com/tomtom215/curio/internal/metrics"
)

// RankingKey identifies one fully sorted recommendation list.
type RankingKey struct {
	User       string  `json:"user"`
	Revision   string  `json:"revision"`
	Mode       Mode    `json:"mode"`
	Depth      int     `json:"depth"`
	Nonce      string  `json:"nonce"`
	Strictness float64 `json:"strictness"`
	Config     string  `json:"config"`
}

// String returns the cache key.
//
//nolint:gocritic // value receiver keeps keys comparable and copyable
func (k RankingKey) String() string {
	return cache.GenerateKey("ranking", k)
}

// SearchKey identifies one fused search list.
type SearchKey struct {
	Query       string   `json:"query"`
	ImageDigest string   `json:"image"`
	Tags        []string `json:"tags"`
	RequireTags []string `json:"require"`
	ExcludeTags []string `json:"exclude"`
	Scope       Scope    `json:"scope"`
	Scenario    Scenario `json:"scenario"`
	TopN        int      `json:"top_n"`
	Config      string   `json:"config"`
}

// String returns the cache key.
func (k *SearchKey) String() string {
	return cache.GenerateKey("search", k)
}

// RankingEntry is a memoized, fully sorted result list.
type RankingEntry struct {
	Key        string
	BuiltAt    time.Time
	Candidates []ScoredCandidate
	Hits       []SearchHit
	Meta       Meta

	// truncated marks a fused list cut at topN; more results may follow.
	truncated bool
}

// RankingCache memoizes sorted result lists for a TTL. Entries are never
// mutated after Put; readers page over them directly.
type RankingCache struct {
	name  string
	store cache.Cacher[*RankingEntry]
	ttl   time.Duration
}

// NewRankingCache wraps a typed cache. name labels its metrics. A nil store
// disables caching.
func NewRankingCache(name string, store cache.Cacher[*RankingEntry], ttl time.Duration) *RankingCache {
	if ttl < MinCacheTTL {
		ttl = MinCacheTTL
	}
	return &RankingCache{name: name, store: store, ttl: ttl}
}

// Get returns the entry for key, or false on miss or expiry.
func (c *RankingCache) Get(key string) (*RankingEntry, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}
	entry, ok := c.store.Get(key)
	metrics.RecordCacheLookup(c.name, ok)
	return entry, ok
}

// Put stores entry under key. Concurrent writers for one key are
// equivalent, so the last write wins.
func (c *RankingCache) Put(key string, entry *RankingEntry) {
	if c == nil || c.store == nil {
		return
	}
	entry.Key = key
	c.store.SetWithTTL(key, entry, c.ttl)
}

// Stats returns the underlying cache statistics.
func (c *RankingCache) Stats() cache.Stats {
	if c == nil || c.store == nil {
		return cache.Stats{}
	}
	return c.store.GetStats()
}
