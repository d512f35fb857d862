// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/curio/internal/metrics"
	"github.com/tomtom215/curio/internal/recommend/fusion"
	"github.com/tomtom215/curio/internal/recommend/profile"
)

// ChannelKind is one retrieval method, run once per catalog.
type ChannelKind string

const (
	ChannelText        ChannelKind = "text"
	ChannelTag         ChannelKind = "tag"
	ChannelDescription ChannelKind = "desc"
	ChannelVisual      ChannelKind = "visual"
)

// ChannelKinds lists every retrieval method.
var ChannelKinds = []ChannelKind{ChannelText, ChannelTag, ChannelDescription, ChannelVisual}

// ChannelName returns the fused channel name, e.g. "library.visual".
func ChannelName(c Catalog, k ChannelKind) string {
	return string(c) + "." + string(k)
}

// Channel weight tables per scenario. Each applies to both catalogs.
var scenarioWeights = map[Scenario]map[ChannelKind]float64{
	ScenarioPlot: {
		ChannelText:        1.0,
		ChannelTag:         0.8,
		ChannelDescription: 1.6,
		ChannelVisual:      0.4,
	},
	ScenarioVisual: {
		ChannelText:        0.6,
		ChannelTag:         0.6,
		ChannelDescription: 0.5,
		ChannelVisual:      1.8,
	},
	ScenarioMixed: {
		ChannelText:        1.0,
		ChannelTag:         1.0,
		ChannelDescription: 1.0,
		ChannelVisual:      1.0,
	},
}

// ScenarioWeights returns the weight of every channel name for a scenario.
func ScenarioWeights(s Scenario) map[string]float64 {
	table, ok := scenarioWeights[s]
	if !ok {
		table = scenarioWeights[ScenarioMixed]
	}
	out := make(map[string]float64, 8)
	for _, c := range []Catalog{CatalogLibrary, CatalogExternal} {
		for k, w := range table {
			out[ChannelName(c, k)] = w
		}
	}
	return out
}

// Retriever runs the per-catalog retrieval channels and hydrates ids back
// into items. Channel methods return identities, best first.
type Retriever interface {
	TextMatch(ctx context.Context, catalog Catalog, query string, limit int) ([]string, error)
	TagOverlap(ctx context.Context, catalog Catalog, tags []string, limit int) ([]string, error)
	NearestDescription(ctx context.Context, catalog Catalog, vector []float32, limit int) ([]string, error)
	NearestVisual(ctx context.Context, catalog Catalog, vector []float32, limit int) ([]string, error)
	Hydrate(ctx context.Context, identities []string) (map[string]CandidateItem, error)
}

// Embedder turns a query into vectors. Both calls may fail.
type Embedder interface {
	Text(ctx context.Context, text string) ([]float32, error)
	Image(ctx context.Context, image []byte) ([]float32, error)
}

// ChannelResult is the outcome of one channel. A channel with Err set is
// fused with weight 0; a Skipped channel had no input to work with.
type ChannelResult struct {
	Name    string
	IDs     []string
	Err     error
	Skipped bool
}

// SearchEngine runs hybrid multi-channel search.
// It is safe for concurrent use.
type SearchEngine struct {
	cfg         *Config
	fingerprint string
	retriever   Retriever
	embedder    Embedder
	cache       *RankingCache
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSearchEngine creates a search engine. embedder and c may be nil; without
// an embedder the embedding channels are reported unavailable.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSearchEngine(cfg *Config, retriever Retriever, embedder Embedder, c *RankingCache, logger zerolog.Logger) (*SearchEngine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	return &SearchEngine{
		cfg:         cfg,
		fingerprint: cfg.Fingerprint(),
		retriever:   retriever,
		embedder:    embedder,
		cache:       c,
		logger:      logger.With().Str("component", "search").Logger(),
		now:         time.Now,
	}, nil
}

// searchPlan is a normalized request.
type searchPlan struct {
	req        SearchRequest
	queryTags  []string
	require    []string
	exclude    []string
	offset     int
	topN       int
	imageRef   string
	hasQueries bool
}

// Search returns one page of fused results. Like Recommend, failures are
// reported through Meta.Reason; the error is reserved for cancellation.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *SearchEngine) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	plan, err := s.plan(req)
	if err != nil {
		return s.finish(s.emptyResponse(plan.req, ReasonInvalidInput), start), nil
	}

	key := (&SearchKey{
		Query:       plan.req.Query,
		ImageDigest: plan.imageRef,
		Tags:        plan.queryTags,
		RequireTags: plan.require,
		ExcludeTags: plan.exclude,
		Scope:       plan.req.Scope,
		Scenario:    plan.req.Scenario,
		TopN:        plan.topN,
		Config:      s.fingerprint,
	}).String()

	if entry, ok := s.cache.Get(key); ok {
		resp := s.pageOf(entry, plan.offset, plan.req.Limit)
		resp.Meta.CacheHit = true
		return s.finish(resp, start), nil
	}

	entry, err := s.run(ctx, plan)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		reason := ReasonFor(err)
		s.logger.Warn().Err(err).Str("reason", string(reason)).Msg("search degraded to empty result")
		return s.finish(s.emptyResponse(plan.req, reason), start), nil
	}
	s.cache.Put(key, entry)

	return s.finish(s.pageOf(entry, plan.offset, plan.req.Limit), start), nil
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *SearchEngine) plan(req SearchRequest) (searchPlan, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Scope == "" {
		req.Scope = ScopeBoth
	}
	if req.Scenario == "" {
		req.Scenario = ScenarioMixed
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.Limits.DefaultLimit
	}
	if req.Limit > s.cfg.Limits.MaxLimit {
		req.Limit = s.cfg.Limits.MaxLimit
	}
	p := searchPlan{
		req:       req,
		queryTags: normalizeTags(req.Tags),
		require:   normalizeTags(req.RequireTags),
		exclude:   normalizeTags(req.ExcludeTags),
	}

	if _, err := ParseScope(string(req.Scope)); err != nil {
		return p, err
	}
	if _, err := ParseScenario(string(req.Scenario)); err != nil {
		return p, err
	}
	if len(p.queryTags) == 0 && req.Query != "" {
		p.queryTags = normalizeTags(strings.Fields(req.Query))
	}
	if req.Query == "" && len(req.Image) == 0 && len(p.queryTags) == 0 {
		return p, fmt.Errorf("%w: query, image or tags required", ErrInvalidInput)
	}

	offset, err := DecodeCursor(req.Cursor)
	if err != nil {
		return p, err
	}
	p.offset = offset
	p.topN = (offset + req.Limit) * s.cfg.Search.Overfetch
	if len(req.Image) > 0 {
		sum := sha256.Sum256(req.Image)
		p.imageRef = hex.EncodeToString(sum[:8])
	}
	return p, nil
}

// run retrieves, fuses, hydrates and filters.
//
//nolint:gocritic // hugeParam: plan passed by value for immutability
func (s *SearchEngine) run(ctx context.Context, plan searchPlan) (*RankingEntry, error) {
	now := s.now()
	textVec, visualVec, textErr, visualErr := s.embed(ctx, plan.req)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	results := s.retrieve(ctx, plan, textVec, visualVec, textErr, visualErr)

	weights := ScenarioWeights(plan.req.Scenario)
	lists := make(map[string][]string, len(results))
	meta := Meta{
		Reason:     ReasonOK,
		Scenario:   plan.req.Scenario,
		Scope:      plan.req.Scope,
		Channels:   make(map[string]int),
		Weights:    make(map[string]float64),
		Exclusions: make(map[string]int),
		BuiltAt:    now,
	}
	available := 0
	for _, r := range results {
		switch {
		case r.Skipped:
			metrics.RecordChannel(r.Name, "skipped", 0)
			continue
		case r.Err != nil:
			metrics.RecordChannel(r.Name, "unavailable", 0)
			s.logger.Warn().Err(r.Err).Str("channel", r.Name).Msg("search channel unavailable, fusing without it")
			meta.Unavailable = append(meta.Unavailable, r.Name)
			meta.Weights[r.Name] = 0
			continue
		}
		metrics.RecordChannel(r.Name, "ok", len(r.IDs))
		available++
		lists[r.Name] = r.IDs
		meta.Channels[r.Name] = len(r.IDs)
		meta.Weights[r.Name] = weights[r.Name]
	}
	sort.Strings(meta.Unavailable)

	if available == 0 {
		return nil, fmt.Errorf("%w: every search channel failed", ErrDependencyUnavailable)
	}

	fused := fusion.FuseScored(lists, weights, s.cfg.Search.RRFK, plan.topN)
	meta.Candidates = len(fused)

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ID
	}
	items, err := s.hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(fused))
	for _, f := range fused {
		item, ok := items[f.ID]
		switch {
		case !ok:
			meta.Exclusions[ExcludedMissing]++
		case !plan.req.Scope.Includes(item.Kind):
			meta.Exclusions[ExcludedOutOfScope]++
		case !passesTagFilters(item.Tags, plan.require, plan.exclude):
			meta.Exclusions[ExcludedTagFilter]++
		default:
			hits = append(hits, SearchHit{Item: item, Score: f.Score, Channels: f.Channels})
		}
	}
	metrics.RecordExclusions(meta.Exclusions)

	meta.Total = len(hits)
	if len(hits) == 0 {
		meta.Reason = ReasonNoCandidates
	}
	return &RankingEntry{BuiltAt: now, Hits: hits, Meta: meta, truncated: len(fused) == plan.topN}, nil
}

// embed resolves the query vectors. The visual vector comes from the image
// when one is given, otherwise from the text embedding.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *SearchEngine) embed(ctx context.Context, req SearchRequest) (text, visual []float32, textErr, visualErr error) {
	if s.embedder == nil {
		err := fmt.Errorf("%w: no embedding service", ErrDependencyUnavailable)
		return nil, nil, err, err
	}

	var wg sync.WaitGroup
	if req.Query != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := withTimeout(ctx, s.cfg.Timeouts.Channel)
			defer cancel()
			text, textErr = s.embedder.Text(cctx, req.Query)
		}()
	}
	if len(req.Image) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := withTimeout(ctx, s.cfg.Timeouts.Channel)
			defer cancel()
			visual, visualErr = s.embedder.Image(cctx, req.Image)
		}()
	}
	wg.Wait()

	if textErr != nil {
		textErr = fmt.Errorf("%w: text embedding: %v", ErrDependencyUnavailable, textErr)
	}
	if visualErr != nil {
		visualErr = fmt.Errorf("%w: image embedding: %v", ErrDependencyUnavailable, visualErr)
	}
	if len(req.Image) == 0 {
		visual, visualErr = text, textErr
	}
	return text, visual, textErr, visualErr
}

// retrieve fans out every channel in scope and joins the results.
//
//nolint:gocritic // hugeParam: plan passed by value for immutability
func (s *SearchEngine) retrieve(ctx context.Context, plan searchPlan, textVec, visualVec []float32, textErr, visualErr error) []ChannelResult {
	catalogs := plan.req.Scope.Catalogs()
	results := make([]ChannelResult, 0, len(catalogs)*len(ChannelKinds))
	for _, c := range catalogs {
		for _, k := range ChannelKinds {
			results = append(results, ChannelResult{Name: ChannelName(c, k)})
		}
	}

	var g errgroup.Group
	limit := s.cfg.Search.ChannelLimit
	for i := range results {
		r := &results[i]
		c := catalogs[i/len(ChannelKinds)]
		k := ChannelKinds[i%len(ChannelKinds)]

		var call func(context.Context) ([]string, error)
		switch k {
		case ChannelText:
			if plan.req.Query == "" {
				r.Skipped = true
				continue
			}
			call = func(ctx context.Context) ([]string, error) {
				return s.retriever.TextMatch(ctx, c, plan.req.Query, limit)
			}
		case ChannelTag:
			if len(plan.queryTags) == 0 {
				r.Skipped = true
				continue
			}
			call = func(ctx context.Context) ([]string, error) {
				return s.retriever.TagOverlap(ctx, c, plan.queryTags, limit)
			}
		case ChannelDescription:
			if plan.req.Query == "" {
				r.Skipped = true
				continue
			}
			if textErr != nil {
				r.Err = textErr
				continue
			}
			call = func(ctx context.Context) ([]string, error) {
				return s.retriever.NearestDescription(ctx, c, textVec, limit)
			}
		case ChannelVisual:
			if plan.req.Query == "" && len(plan.req.Image) == 0 {
				r.Skipped = true
				continue
			}
			if visualErr != nil {
				r.Err = visualErr
				continue
			}
			call = func(ctx context.Context) ([]string, error) {
				return s.retriever.NearestVisual(ctx, c, visualVec, limit)
			}
		}

		g.Go(func() error {
			cctx, cancel := withTimeout(ctx, s.cfg.Timeouts.Channel)
			defer cancel()
			ids, err := call(cctx)
			if err != nil {
				r.Err = fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
				return nil
			}
			r.IDs = ids
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *SearchEngine) hydrate(ctx context.Context, ids []string) (map[string]CandidateItem, error) {
	if len(ids) == 0 {
		return map[string]CandidateItem{}, nil
	}
	hctx, cancel := withTimeout(ctx, s.cfg.Timeouts.Candidates)
	defer cancel()
	items, err := s.retriever.Hydrate(hctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: hydrate: %v", ErrDependencyUnavailable, err)
	}
	return items, nil
}

func (s *SearchEngine) pageOf(entry *RankingEntry, offset, limit int) *SearchResponse {
	start, end, next, more := page(len(entry.Hits), offset, limit)
	if !more && entry.truncated && end > start {
		more, next = true, EncodeCursor(end)
	}
	items := make([]SearchHit, end-start)
	copy(items, entry.Hits[start:end])

	meta := entry.Meta
	meta.Exclusions = copyCounts(entry.Meta.Exclusions)
	meta.Channels = copyCounts(entry.Meta.Channels)
	meta.Weights = copyWeights(entry.Meta.Weights)
	meta.Unavailable = append([]string(nil), entry.Meta.Unavailable...)
	return &SearchResponse{Items: items, NextCursor: next, HasMore: more, Meta: meta}
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *SearchEngine) emptyResponse(req SearchRequest, reason Reason) *SearchResponse {
	return &SearchResponse{
		Items: []SearchHit{},
		Meta: Meta{
			Reason:   reason,
			Scenario: req.Scenario,
			Scope:    req.Scope,
			BuiltAt:  s.now(),
		},
	}
}

func (s *SearchEngine) finish(resp *SearchResponse, start time.Time) *SearchResponse {
	metrics.RecordRanking("search", string(resp.Meta.Reason), resp.Meta.CacheHit, time.Since(start))
	return resp
}

func passesTagFilters(tags, require, exclude []string) bool {
	if len(require) == 0 && len(exclude) == 0 {
		return true
	}
	have := normalizeTags(tags)
	for _, want := range require {
		if !hasTag(have, want) {
			return false
		}
	}
	for _, banned := range exclude {
		if hasTag(have, banned) {
			return false
		}
	}
	return true
}

// hasTag matches a full namespaced tag, or a bare value against any
// namespace ("fantasy" matches "genre:fantasy").
func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want || strings.HasSuffix(t, ":"+want) {
			return true
		}
	}
	return false
}

// normalizeTags lowercases, trims, drops empties and dedupes, keeping order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := profile.NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func copyWeights(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
