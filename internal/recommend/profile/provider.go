// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/cache"
	"github.com/tomtom215/curio/internal/metrics"
)

// ActivitySource returns the most recent activity samples of a user inside a
// time window, newest first, at most limit records.
type ActivitySource interface {
	RecentSamples(ctx context.Context, user string, window time.Duration, limit int) ([]Sample, error)
}

// Source records where a snapshot's samples came from.
type Source string

const (
	SourceRecent   Source = "recent_activity"
	SourceFallback Source = "fallback_window"
	SourceNone     Source = "none"
)

// Snapshot is the activity-derived profile used for one scoring pass.
type Snapshot struct {
	Tags      *TagAffinity
	Centroids [][]float32
	Source    Source
	Samples   int
	Window    time.Duration
	BuiltAt   time.Time
}

// Config controls sampling and clustering.
type Config struct {
	Window         time.Duration
	FallbackWindow time.Duration
	SampleLimit    int
	Clusters       int
	MaxSample      int
	Iterations     int
	Timeout        time.Duration
}

// Provider builds snapshots from an ActivitySource and memoizes them.
// Snapshots are keyed by user, windows, floor and clustering parameters, so
// a change to any of them builds a fresh one.
type Provider struct {
	source ActivitySource
	cache  cache.Cacher[*Snapshot]
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewProvider creates a snapshot provider. c may be nil to disable caching.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewProvider(source ActivitySource, c cache.Cacher[*Snapshot], cfg Config, logger zerolog.Logger) *Provider {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	return &Provider{
		source: source,
		cache:  c,
		cfg:    cfg,
		logger: logger.With().Str("component", "profile").Logger(),
		now:    time.Now,
	}
}

type snapshotKey struct {
	User       string  `json:"user"`
	Window     int64   `json:"window"`
	Fallback   int64   `json:"fallback"`
	Limit      int     `json:"limit"`
	Floor      float64 `json:"floor"`
	Clusters   int     `json:"clusters"`
	MaxSample  int     `json:"max_sample"`
	Iterations int     `json:"iterations"`
}

// Load returns the snapshot for user. When the activity source fails the
// returned snapshot is empty (floor tag scores, no centroids) and err
// describes the failure; callers continue with the empty snapshot.
func (p *Provider) Load(ctx context.Context, user string, floor float64) (*Snapshot, error) {
	key := cache.GenerateKey("profile", snapshotKey{
		User:       user,
		Window:     int64(p.cfg.Window),
		Fallback:   int64(p.cfg.FallbackWindow),
		Limit:      p.cfg.SampleLimit,
		Floor:      floor,
		Clusters:   p.cfg.Clusters,
		MaxSample:  p.cfg.MaxSample,
		Iterations: p.cfg.Iterations,
	})

	if p.cache != nil {
		snap, ok := p.cache.Get(key)
		metrics.RecordCacheLookup("profile", ok)
		if ok {
			return snap, nil
		}
	}

	samples, err := p.fetch(ctx, user, p.cfg.Window)
	if err != nil {
		return p.empty(floor), fmt.Errorf("recent activity: %w", err)
	}
	source, window := SourceRecent, p.cfg.Window

	if len(samples) == 0 && p.cfg.FallbackWindow > p.cfg.Window {
		fallback, ferr := p.fetch(ctx, user, p.cfg.FallbackWindow)
		if ferr != nil {
			p.logger.Warn().Err(ferr).Str("user", user).Msg("fallback activity window unavailable")
		} else {
			samples = fallback
			source, window = SourceFallback, p.cfg.FallbackWindow
		}
	}
	if len(samples) == 0 {
		source = SourceNone
	}

	snap := p.build(samples, floor)
	snap.Source = source
	snap.Window = window

	if p.cache != nil {
		p.cache.Set(key, snap)
	}

	p.logger.Debug().
		Str("user", user).
		Str("source", string(source)).
		Int("samples", snap.Samples).
		Int("tags", snap.Tags.Len()).
		Int("centroids", len(snap.Centroids)).
		Msg("built profile snapshot")

	return snap, nil
}

func (p *Provider) fetch(ctx context.Context, user string, window time.Duration) ([]Sample, error) {
	if p.source == nil {
		return nil, nil
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	return p.source.RecentSamples(ctx, user, window, p.cfg.SampleLimit)
}

func (p *Provider) build(samples []Sample, floor float64) *Snapshot {
	if p.cfg.SampleLimit > 0 && len(samples) > p.cfg.SampleLimit {
		samples = samples[:p.cfg.SampleLimit]
	}

	visual := make([][]float32, 0, len(samples))
	for _, s := range samples {
		if len(s.Visual) > 0 {
			visual = append(visual, s.Visual)
		}
	}

	return &Snapshot{
		Tags:      BuildTagAffinity(samples, floor),
		Centroids: BuildVisualClusters(visual, p.cfg.Clusters, p.cfg.MaxSample, p.cfg.Iterations),
		Samples:   len(samples),
		BuiltAt:   p.now(),
	}
}

func (p *Provider) empty(floor float64) *Snapshot {
	return &Snapshot{
		Tags:    BuildTagAffinity(nil, floor),
		Source:  SourceNone,
		BuiltAt: p.now(),
	}
}
