// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"github.com/tomtom215/curio/internal/recommend/profile"
	"github.com/tomtom215/curio/internal/recommend/vecops"
)

// Mode adjustments applied to strictness.
const (
	exploreShift = -0.20
	preciseShift = 0.20
)

// Params are the per-request scoring settings after mode adjustment.
type Params struct {
	Mode         Mode
	Strictness   float64
	TagWeight    float64
	VisualWeight float64
	MinTag       float64
	MinVisual    float64
}

// Explore reports whether the cutoff filter is skipped and novelty applied.
func (p *Params) Explore() bool {
	return p.Mode == ModeExplore
}

// Signals are the user state a scoring pass reads. Maps are keyed by
// candidate identity; absent keys mean zero.
type Signals struct {
	Snapshot      *profile.Snapshot
	ProfileVector []float32
	Clicks        map[string]int
	Impressions   map[string]int
	Dislikes      map[string]int
	Reads         map[string]int
	Owned         map[string]bool
}

// Scorer composes per-candidate scores.
type Scorer struct {
	cfg ScoringConfig
	dim int
}

// NewScorer creates a scorer. dim is the canonical width of feedback
// profile vectors.
func NewScorer(cfg ScoringConfig, dim int) *Scorer {
	return &Scorer{cfg: cfg, dim: dim}
}

// Params derives the settings for one request. override replaces the
// configured base strictness when non-nil.
func (s *Scorer) Params(mode Mode, override *float64) Params {
	strictness := s.cfg.Strictness
	if override != nil {
		strictness = *override
	}
	switch mode {
	case ModeExplore:
		strictness += exploreShift
	case ModePrecise:
		strictness += preciseShift
	}
	strictness = clamp01(strictness)

	tagW, visW := s.cfg.Weights()
	return Params{
		Mode:         mode,
		Strictness:   strictness,
		TagWeight:    tagW,
		VisualWeight: visW,
		MinTag:       0.04 + 0.36*strictness,
		MinVisual:    0.15 + 0.55*strictness,
	}
}

// Score scores one candidate. A non-empty exclusion means the candidate is
// dropped and the returned ScoredCandidate is partial.
func (s *Scorer) Score(p *Params, sig *Signals, item *CandidateItem) (ScoredCandidate, string) {
	id := item.Identity
	sc := ScoredCandidate{
		Item:            *item,
		TouchCount:      sig.Clicks[id],
		ImpressionCount: sig.Impressions[id],
		DislikeCount:    sig.Dislikes[id],
		ReadCount:       sig.Reads[id],
	}

	switch {
	case item.Kind == KindWork || sig.Owned[id]:
		return sc, ExcludedOwned
	case sc.DislikeCount > 0:
		return sc, ExcludedDisliked
	case sc.ReadCount > 0:
		return sc, ExcludedRead
	}

	var centroids [][]float32
	if sig.Snapshot != nil {
		centroids = sig.Snapshot.Centroids
	}
	if malformed(item, centroids) {
		return sc, ExcludedMalformed
	}

	if sig.Snapshot != nil && sig.Snapshot.Tags != nil {
		sc.TagScore = sig.Snapshot.Tags.Mean(item.Tags)
	} else {
		sc.TagScore = s.cfg.Floor
	}
	sc.VisualScore = s.cfg.NeutralVisual
	if len(item.Visual) > 0 {
		if d, ok := profile.MinDistance(centroids, item.Visual); ok {
			sc.VisualScore = 1 / (1 + d)
		}
	}

	if !p.Explore() && sc.TagScore < p.MinTag && sc.VisualScore < p.MinVisual {
		return sc, ExcludedCutoff
	}

	var novelty float64
	if p.Explore() {
		novelty = (1 - sc.TagScore) * s.cfg.NoveltyBonus
	}
	precision := ((sc.TagScore + sc.VisualScore) / 2) * s.cfg.PrecisionBonus * p.Strictness
	base := p.TagWeight*sc.TagScore + p.VisualWeight*sc.VisualScore + novelty + precision

	touch := math.Pow(1-s.cfg.TouchPenalty, float64(sc.TouchCount))
	if touch <= 0 {
		return sc, ExcludedDecayed
	}
	impression := math.Pow(1-s.cfg.ImpressionPenalty, float64(sc.ImpressionCount))

	if len(sig.ProfileVector) > 0 {
		if canonical := vecops.Mix(item.Visual, item.Interior, s.dim); canonical != nil {
			if cos, ok := vecops.Cosine(sig.ProfileVector, canonical); ok {
				sc.ProfileScore = clamp01((cos + 1) / 2)
			}
		}
	}

	sc.FinalScore = base*touch*impression + s.cfg.ProfileBonus*sc.ProfileScore
	return sc, ""
}

// Jitter adds N(0, JitterSigma) noise from a PRNG seeded by (user, nonce).
// Draws follow identity order so the result does not depend on input order.
func (s *Scorer) Jitter(user, nonce string, items []ScoredCandidate) {
	if nonce == "" || s.cfg.JitterSigma == 0 || len(items) == 0 {
		return
	}
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return items[order[a]].Item.Identity < items[order[b]].Item.Identity
	})

	rng := rand.New(rand.NewSource(jitterSeed(user, nonce))) //nolint:gosec // deterministic jitter, not security sensitive
	for _, i := range order {
		items[i].FinalScore += rng.NormFloat64() * s.cfg.JitterSigma
	}
}

// SortCandidates orders by final score desc, recency desc, identity asc.
func SortCandidates(items []ScoredCandidate) {
	sort.Slice(items, func(a, b int) bool {
		x, y := &items[a], &items[b]
		if x.FinalScore != y.FinalScore {
			return x.FinalScore > y.FinalScore
		}
		if !x.Item.UpdatedAt.Equal(y.Item.UpdatedAt) {
			return x.Item.UpdatedAt.After(y.Item.UpdatedAt)
		}
		return x.Item.Identity < y.Item.Identity
	})
}

func jitterSeed(user, nonce string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(user))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(nonce))
	return int64(h.Sum64()) //nolint:gosec // wraparound is fine for a seed
}

// malformed reports vectors that cannot be compared: non-finite values, or a
// cover width that differs from the centroid width.
func malformed(item *CandidateItem, centroids [][]float32) bool {
	if len(item.Visual) > 0 {
		if !vecops.IsFinite(item.Visual) {
			return true
		}
		if len(centroids) > 0 && len(item.Visual) != len(centroids[0]) {
			return true
		}
	}
	return len(item.Interior) > 0 && !vecops.IsFinite(item.Interior)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
