// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"fmt"
	"time"

	"github.com/tomtom215/curio/internal/cache"
	"github.com/tomtom215/curio/internal/recommend/fusion"
	"github.com/tomtom215/curio/internal/recommend/profile"
)

// MinCacheTTL is the shortest allowed lifetime of cached rankings and
// profile snapshots.
const MinCacheTTL = 60 * time.Second

// Config contains all configuration for the ranking engines.
type Config struct {
	// Scoring controls per-candidate score composition.
	Scoring ScoringConfig `json:"scoring"`

	// Window controls the candidate pool and activity sampling.
	Window WindowConfig `json:"window"`

	// Clusters controls visual clustering of activity.
	Clusters ClusterConfig `json:"clusters"`

	// Search controls channel retrieval and fusion.
	Search SearchConfig `json:"search"`

	// Cache controls ranking and profile memoization.
	Cache CacheConfig `json:"cache"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits"`

	// Timeouts bound each blocking collaborator call.
	Timeouts TimeoutConfig `json:"timeouts"`
}

// ScoringConfig holds the score composition constants.
type ScoringConfig struct {
	// Strictness in [0,1] drives the cutoff filter and precision bonus.
	Strictness float64 `json:"strictness"`

	// TagWeight and VisualWeight are renormalized to sum to 1.
	TagWeight    float64 `json:"tag_weight"`
	VisualWeight float64 `json:"visual_weight"`

	// Floor is the tag score of unseen tags, in [0, 0.4].
	Floor float64 `json:"floor"`

	// TouchPenalty and ImpressionPenalty are per-event decay rates in [0,1].
	TouchPenalty      float64 `json:"touch_penalty"`
	ImpressionPenalty float64 `json:"impression_penalty"`

	// NeutralVisual is the visual score when no comparison is possible.
	NeutralVisual float64 `json:"neutral_visual"`

	// ProfileBonus weights the feedback profile similarity. It is added on
	// top of the tag/visual blend, so final scores may exceed 1.
	ProfileBonus float64 `json:"profile_bonus"`

	NoveltyBonus   float64 `json:"novelty_bonus"`
	PrecisionBonus float64 `json:"precision_bonus"`

	// JitterSigma is the standard deviation of nonce-seeded jitter.
	JitterSigma float64 `json:"jitter_sigma"`
}

// Weights returns the tag and visual weights normalized to sum to 1.
// Defaults are used when either is non-positive.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (s ScoringConfig) Weights() (tag, visual float64) {
	tag, visual = s.TagWeight, s.VisualWeight
	if tag <= 0 || visual <= 0 {
		tag, visual = 0.55, 0.45
	}
	sum := tag + visual
	return tag / sum, visual / sum
}

// WindowConfig sizes the candidate pool and the activity sample.
type WindowConfig struct {
	// Candidate is the base recency window, expanded by 2^(depth-1).
	Candidate    time.Duration `json:"candidate"`
	MaxCandidate time.Duration `json:"max_candidate"`

	// Pool is the base candidate limit, expanded by 2^(depth-1).
	Pool    int `json:"pool"`
	MaxPool int `json:"max_pool"`

	Activity    time.Duration `json:"activity"`
	Fallback    time.Duration `json:"fallback"`
	SampleLimit int           `json:"sample_limit"`
}

// ClusterConfig controls k-means over activity covers.
type ClusterConfig struct {
	K          int `json:"k"`
	MaxSample  int `json:"max_sample"`
	Iterations int `json:"iterations"`
}

// SearchConfig controls channel retrieval and fusion.
type SearchConfig struct {
	RRFK int `json:"rrf_k"`
	// Overfetch multiplies the requested window before post-fusion filters.
	Overfetch int `json:"overfetch"`
	// ChannelLimit caps the ids each channel returns.
	ChannelLimit int `json:"channel_limit"`
}

// CacheConfig controls memoization.
type CacheConfig struct {
	Enabled    bool          `json:"enabled"`
	RankingTTL time.Duration `json:"ranking_ttl"`
	ProfileTTL time.Duration `json:"profile_ttl"`
	MaxEntries int           `json:"max_entries"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	DefaultLimit int `json:"default_limit"`
	MaxLimit     int `json:"max_limit"`
	MaxDepth     int `json:"max_depth"`
}

// TimeoutConfig bounds collaborator calls.
type TimeoutConfig struct {
	Activity   time.Duration `json:"activity"`
	Candidates time.Duration `json:"candidates"`
	Channel    time.Duration `json:"channel"`
	Feedback   time.Duration `json:"feedback"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Strictness:        0.5,
			TagWeight:         0.55,
			VisualWeight:      0.45,
			Floor:             0.1,
			TouchPenalty:      0.15,
			ImpressionPenalty: 0.05,
			NeutralVisual:     0.45,
			ProfileBonus:      0.18,
			NoveltyBonus:      0.12,
			PrecisionBonus:    0.08,
			JitterSigma:       0.022,
		},
		Window: WindowConfig{
			Candidate:    14 * 24 * time.Hour,
			MaxCandidate: 180 * 24 * time.Hour,
			Pool:         200,
			MaxPool:      3200,
			Activity:     30 * 24 * time.Hour,
			Fallback:     365 * 24 * time.Hour,
			SampleLimit:  800,
		},
		Clusters: ClusterConfig{
			K:          6,
			MaxSample:  400,
			Iterations: profile.DefaultIterations,
		},
		Search: SearchConfig{
			RRFK:         fusion.DefaultRRFK,
			Overfetch:    3,
			ChannelLimit: 100,
		},
		Cache: CacheConfig{
			Enabled:    true,
			RankingTTL: 120 * time.Second,
			ProfileTTL: 90 * time.Second,
			MaxEntries: 10000,
		},
		Limits: LimitsConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
			MaxDepth:     8,
		},
		Timeouts: TimeoutConfig{
			Activity:   2 * time.Second,
			Candidates: 3 * time.Second,
			Channel:    2 * time.Second,
			Feedback:   2 * time.Second,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	s := c.Scoring
	if s.Strictness < 0 || s.Strictness > 1 {
		return fmt.Errorf("scoring.strictness must be in [0, 1], got %v", s.Strictness)
	}
	if s.Floor < 0 || s.Floor > 0.4 {
		return fmt.Errorf("scoring.floor must be in [0, 0.4], got %v", s.Floor)
	}
	if s.TouchPenalty < 0 || s.TouchPenalty > 1 {
		return fmt.Errorf("scoring.touch_penalty must be in [0, 1], got %v", s.TouchPenalty)
	}
	if s.ImpressionPenalty < 0 || s.ImpressionPenalty > 1 {
		return fmt.Errorf("scoring.impression_penalty must be in [0, 1], got %v", s.ImpressionPenalty)
	}
	if s.NeutralVisual < 0 || s.NeutralVisual > 1 {
		return fmt.Errorf("scoring.neutral_visual must be in [0, 1], got %v", s.NeutralVisual)
	}
	if s.ProfileBonus < 0 || s.NoveltyBonus < 0 || s.PrecisionBonus < 0 {
		return fmt.Errorf("scoring bonuses must be non-negative")
	}
	if s.JitterSigma < 0 {
		return fmt.Errorf("scoring.jitter_sigma must be non-negative, got %v", s.JitterSigma)
	}

	w := c.Window
	if w.Candidate <= 0 || w.MaxCandidate < w.Candidate {
		return fmt.Errorf("window.candidate must be positive and <= window.max_candidate, got %v / %v", w.Candidate, w.MaxCandidate)
	}
	if w.Pool < 1 || w.MaxPool < w.Pool {
		return fmt.Errorf("window.pool must be positive and <= window.max_pool, got %d / %d", w.Pool, w.MaxPool)
	}
	if w.Activity <= 0 {
		return fmt.Errorf("window.activity must be positive, got %v", w.Activity)
	}
	if w.Fallback < 0 {
		return fmt.Errorf("window.fallback must be non-negative, got %v", w.Fallback)
	}
	if w.SampleLimit < 1 {
		return fmt.Errorf("window.sample_limit must be positive, got %d", w.SampleLimit)
	}

	if c.Clusters.K < 1 {
		return fmt.Errorf("clusters.k must be positive, got %d", c.Clusters.K)
	}
	if c.Clusters.MaxSample < c.Clusters.K {
		return fmt.Errorf("clusters.max_sample must be >= clusters.k, got %d < %d", c.Clusters.MaxSample, c.Clusters.K)
	}
	if c.Clusters.Iterations < 1 {
		return fmt.Errorf("clusters.iterations must be positive, got %d", c.Clusters.Iterations)
	}

	if c.Search.RRFK < 1 {
		return fmt.Errorf("search.rrf_k must be positive, got %d", c.Search.RRFK)
	}
	if c.Search.Overfetch < 1 {
		return fmt.Errorf("search.overfetch must be positive, got %d", c.Search.Overfetch)
	}
	if c.Search.ChannelLimit < 1 {
		return fmt.Errorf("search.channel_limit must be positive, got %d", c.Search.ChannelLimit)
	}

	if c.Cache.Enabled {
		if c.Cache.RankingTTL < MinCacheTTL {
			return fmt.Errorf("cache.ranking_ttl must be >= %v, got %v", MinCacheTTL, c.Cache.RankingTTL)
		}
		if c.Cache.ProfileTTL < MinCacheTTL {
			return fmt.Errorf("cache.profile_ttl must be >= %v, got %v", MinCacheTTL, c.Cache.ProfileTTL)
		}
	}

	if c.Limits.DefaultLimit < 1 {
		return fmt.Errorf("limits.default_limit must be positive, got %d", c.Limits.DefaultLimit)
	}
	if c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("limits.max_limit must be >= limits.default_limit, got %d < %d", c.Limits.MaxLimit, c.Limits.DefaultLimit)
	}
	if c.Limits.MaxDepth < 1 || c.Limits.MaxDepth > 8 {
		return fmt.Errorf("limits.max_depth must be in [1, 8], got %d", c.Limits.MaxDepth)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// All nested structs contain only value types.
	cp := *c
	return &cp
}

// Fingerprint identifies the settings that influence ranking output.
// Cache and timeout settings are excluded.
func (c *Config) Fingerprint() string {
	return cache.GenerateKey("config", struct {
		Scoring  ScoringConfig `json:"scoring"`
		Window   WindowConfig  `json:"window"`
		Clusters ClusterConfig `json:"clusters"`
		Search   SearchConfig  `json:"search"`
	}{c.Scoring, c.Window, c.Clusters, c.Search})
}

// ProfileConfig derives the activity profile settings.
func (c *Config) ProfileConfig() profile.Config {
	return profile.Config{
		Window:         c.Window.Activity,
		FallbackWindow: c.Window.Fallback,
		SampleLimit:    c.Window.SampleLimit,
		Clusters:       c.Clusters.K,
		MaxSample:      c.Clusters.MaxSample,
		Iterations:     c.Clusters.Iterations,
		Timeout:        c.Timeouts.Activity,
	}
}

// expansion returns the window and pool limit for a depth in [1, MaxDepth].
func (c *Config) expansion(depth int) (time.Duration, int) {
	factor := 1 << (depth - 1)
	window := c.Window.Candidate * time.Duration(factor)
	if window > c.Window.MaxCandidate || window <= 0 {
		window = c.Window.MaxCandidate
	}
	pool := c.Window.Pool * factor
	if pool > c.Window.MaxPool || pool <= 0 {
		pool = c.Window.MaxPool
	}
	return window, pool
}
