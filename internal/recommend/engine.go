// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/curio/internal/metrics"
	"github.com/tomtom215/curio/internal/recommend/feedback"
	"github.com/tomtom215/curio/internal/recommend/profile"
)

// CandidateSource returns catalog entries updated inside [start, end),
// newest first, at most limit.
type CandidateSource interface {
	ByTimeWindow(ctx context.Context, start, end time.Time, limit int) ([]CandidateItem, error)
}

// LibraryMembership answers whether an identity is already owned, either as
// a library work or as the source of one.
type LibraryMembership interface {
	Contains(ctx context.Context, identity string) (bool, error)
	ContainsAny(ctx context.Context, identities []string) (map[string]bool, error)
}

// ProfileVectors exposes the persisted feedback profile.
type ProfileVectors interface {
	GetVector(ctx context.Context, user string) ([]float32, error)
	Revision(ctx context.Context, user string) (string, error)
}

// Engine produces paginated, personalized recommendations.
// It is safe for concurrent use.
type Engine struct {
	cfg         *Config
	fingerprint string
	candidates  CandidateSource
	membership  LibraryMembership
	profiles    *profile.Provider
	vectors     ProfileVectors
	log         feedback.Log
	scorer      *Scorer
	cache       *RankingCache
	logger      zerolog.Logger
	now         func() time.Time
}

// EngineDeps are the collaborators of an Engine. Cache may be nil.
type EngineDeps struct {
	Candidates CandidateSource
	Membership LibraryMembership
	Profiles   *profile.Provider
	Vectors    ProfileVectors
	Log        feedback.Log
	Cache      *RankingCache
	// Dimension is the canonical profile vector width.
	Dimension int
}

// NewEngine creates a recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, deps EngineDeps, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Candidates == nil || deps.Membership == nil || deps.Vectors == nil || deps.Log == nil {
		return nil, fmt.Errorf("candidate source, membership, profile vectors and feedback log are required")
	}
	if deps.Profiles == nil {
		deps.Profiles = profile.NewProvider(nil, nil, cfg.ProfileConfig(), logger)
	}

	return &Engine{
		cfg:         cfg,
		fingerprint: cfg.Fingerprint(),
		candidates:  deps.Candidates,
		membership:  deps.Membership,
		profiles:    deps.Profiles,
		vectors:     deps.Vectors,
		log:         deps.Log,
		scorer:      NewScorer(cfg.Scoring, deps.Dimension),
		cache:       deps.Cache,
		logger:      logger.With().Str("component", "recommend").Logger(),
		now:         time.Now,
	}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.cfg.Clone()
}

// Recommend returns one page of recommendations. Collaborator failures are
// reported through Meta.Reason with an empty page; the returned error is
// reserved for a cancelled context.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	start := time.Now()

	req, offset, err := e.prepareRequest(req)
	if err != nil {
		return e.finish(e.emptyResponse(req, ReasonInvalidInput), start), nil
	}
	params := e.scorer.Params(req.Mode, req.Strictness)

	logger := e.logger.With().
		Str("user", req.User).
		Str("mode", string(req.Mode)).
		Int("depth", req.Depth).
		Logger()

	revision, err := e.revision(ctx, req.User)
	if err != nil {
		return e.fail(ctx, req, start, logger, fmt.Errorf("feedback revision: %w", err))
	}

	key := RankingKey{
		User:       req.User,
		Revision:   revision,
		Mode:       req.Mode,
		Depth:      req.Depth,
		Nonce:      req.Nonce,
		Strictness: params.Strictness,
		Config:     e.fingerprint,
	}.String()

	if entry, ok := e.cache.Get(key); ok {
		logger.Debug().Msg("ranking cache hit")
		resp := e.pageOf(entry, offset, req.Limit)
		resp.Meta.CacheHit = true
		return e.finish(resp, start), nil
	}

	entry, err := e.rank(ctx, req, &params, revision, logger)
	if err != nil {
		return e.fail(ctx, req, start, logger, err)
	}
	e.cache.Put(key, entry)

	logger.Debug().
		Int("candidates", entry.Meta.Candidates).
		Int("ranked", len(entry.Candidates)).
		Str("profile_source", string(entry.Meta.ProfileSource)).
		Msg("ranking computed")

	return e.finish(e.pageOf(entry, offset, req.Limit), start), nil
}

// prepareRequest applies defaults and validates the request.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req RecommendRequest) (RecommendRequest, int, error) {
	req.User = strings.TrimSpace(req.User)
	if req.Mode == "" {
		req.Mode = ModeBalanced
	}
	if req.Depth <= 0 {
		req.Depth = 1
	}
	if req.Depth > e.cfg.Limits.MaxDepth {
		req.Depth = e.cfg.Limits.MaxDepth
	}
	if req.Limit <= 0 {
		req.Limit = e.cfg.Limits.DefaultLimit
	}
	if req.Limit > e.cfg.Limits.MaxLimit {
		req.Limit = e.cfg.Limits.MaxLimit
	}

	if req.User == "" {
		return req, 0, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if _, err := ParseMode(string(req.Mode)); err != nil {
		return req, 0, err
	}
	if req.Strictness != nil && (*req.Strictness < 0 || *req.Strictness > 1) {
		return req, 0, fmt.Errorf("%w: strictness must be in [0, 1]", ErrInvalidInput)
	}
	offset, err := DecodeCursor(req.Cursor)
	if err != nil {
		return req, 0, err
	}
	return req, offset, nil
}

func (e *Engine) revision(ctx context.Context, user string) (string, error) {
	ctx, cancel := withTimeout(ctx, e.cfg.Timeouts.Feedback)
	defer cancel()
	return e.vectors.Revision(ctx, user)
}

// rank runs Retrieve -> Filter -> Score -> Sort for the request.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) rank(ctx context.Context, req RecommendRequest, params *Params, revision string, logger zerolog.Logger) (*RankingEntry, error) {
	window, pool := e.cfg.expansion(req.Depth)
	now := e.now()

	var (
		items    []CandidateItem
		snapshot *profile.Snapshot
		vector   []float32
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := withTimeout(gctx, e.cfg.Timeouts.Candidates)
		defer cancel()
		var err error
		items, err = e.candidates.ByTimeWindow(cctx, now.Add(-window), now, pool)
		if err != nil {
			return fmt.Errorf("%w: candidate source: %v", ErrDependencyUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		snap, err := e.profiles.Load(gctx, req.User, e.cfg.Scoring.Floor)
		if err != nil {
			logger.Warn().Err(err).Msg("activity profile unavailable, scoring with neutral profile")
		}
		snapshot = snap
		return nil
	})
	g.Go(func() error {
		vctx, cancel := withTimeout(gctx, e.cfg.Timeouts.Feedback)
		defer cancel()
		v, err := e.vectors.GetVector(vctx, req.User)
		if err != nil {
			logger.Warn().Err(err).Msg("feedback profile unavailable, profile score disabled")
			return nil
		}
		vector = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	weights := map[string]float64{
		WeightTag:     params.TagWeight,
		WeightVisual:  params.VisualWeight,
		WeightProfile: e.cfg.Scoring.ProfileBonus,
	}
	meta := Meta{
		Reason:     ReasonOK,
		Revision:   revision,
		Mode:       req.Mode,
		Depth:      req.Depth,
		Strictness: params.Strictness,
		Weights:    weights,
		Exclusions: make(map[string]int),
		Candidates: len(items),
		BuiltAt:    now,
	}
	if snapshot != nil {
		meta.ProfileSource = snapshot.Source
	}
	metrics.RankingCandidates.Observe(float64(len(items)))

	if len(items) == 0 {
		meta.Reason = ReasonNoCandidates
		return &RankingEntry{BuiltAt: now, Meta: meta}, nil
	}

	signals, err := e.signals(ctx, req.User, items)
	if err != nil {
		return nil, err
	}
	signals.Snapshot = snapshot
	signals.ProfileVector = vector

	scored := make([]ScoredCandidate, 0, len(items))
	for i := range items {
		sc, excluded := e.scorer.Score(params, signals, &items[i])
		if excluded != "" {
			meta.Exclusions[excluded]++
			continue
		}
		scored = append(scored, sc)
	}
	metrics.RecordExclusions(meta.Exclusions)

	e.scorer.Jitter(req.User, req.Nonce, scored)
	SortCandidates(scored)

	meta.Total = len(scored)
	if len(scored) == 0 {
		meta.Reason = ReasonNoCandidates
	}
	return &RankingEntry{BuiltAt: now, Candidates: scored, Meta: meta}, nil
}

// signals loads the per-candidate feedback counts and ownership. Any
// failure is fatal to the pass: hard exclusions cannot be guaranteed
// without them.
func (e *Engine) signals(ctx context.Context, user string, items []CandidateItem) (*Signals, error) {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].Identity
	}

	sig := &Signals{}
	targets := map[feedback.Action]*map[string]int{
		feedback.ActionClick:      &sig.Clicks,
		feedback.ActionImpression: &sig.Impressions,
		feedback.ActionDislike:    &sig.Dislikes,
		feedback.ActionRead:       &sig.Reads,
	}

	g, gctx := errgroup.WithContext(ctx)
	for action, dst := range targets {
		g.Go(func() error {
			fctx, cancel := withTimeout(gctx, e.cfg.Timeouts.Feedback)
			defer cancel()
			counts, err := e.log.CountsByAction(fctx, user, ids, action)
			if err != nil {
				return fmt.Errorf("%w: %s counts: %v", ErrDependencyUnavailable, action, err)
			}
			*dst = counts
			return nil
		})
	}
	g.Go(func() error {
		mctx, cancel := withTimeout(gctx, e.cfg.Timeouts.Candidates)
		defer cancel()
		owned, err := e.membership.ContainsAny(mctx, ids)
		if err != nil {
			return fmt.Errorf("%w: library membership: %v", ErrDependencyUnavailable, err)
		}
		sig.Owned = owned
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sig, nil
}

// pageOf slices one page out of a cached entry. The entry is shared, so the
// page is copied.
func (e *Engine) pageOf(entry *RankingEntry, offset, limit int) *RecommendResponse {
	start, end, next, more := page(len(entry.Candidates), offset, limit)
	items := make([]ScoredCandidate, end-start)
	copy(items, entry.Candidates[start:end])

	meta := entry.Meta
	meta.Exclusions = copyCounts(entry.Meta.Exclusions)
	meta.Weights = copyWeights(entry.Meta.Weights)
	return &RecommendResponse{
		Items:      items,
		NextCursor: next,
		HasMore:    more,
		Meta:       meta,
	}
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) fail(ctx context.Context, req RecommendRequest, start time.Time, logger zerolog.Logger, err error) (*RecommendResponse, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	reason := ReasonFor(err)
	logger.Warn().Err(err).Str("reason", string(reason)).Msg("recommendation degraded to empty result")
	return e.finish(e.emptyResponse(req, reason), start), nil
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) emptyResponse(req RecommendRequest, reason Reason) *RecommendResponse {
	return &RecommendResponse{
		Items: []ScoredCandidate{},
		Meta: Meta{
			Reason:  reason,
			Mode:    req.Mode,
			Depth:   req.Depth,
			BuiltAt: e.now(),
		},
	}
}

func (e *Engine) finish(resp *RecommendResponse, start time.Time) *RecommendResponse {
	metrics.RecordRanking("recommend", string(resp.Meta.Reason), resp.Meta.CacheHit, time.Since(start))
	return resp
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func copyCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
