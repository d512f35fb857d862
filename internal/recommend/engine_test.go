// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/curio/internal/recommend/feedback"
	"github.com/tomtom215/curio/internal/recommend/profile"
)

const day = 24 * time.Hour

// affinityItems are tagged a, b and c against an activity window of
// {a:3, b:1}.
func affinityItems() []CandidateItem {
	return []CandidateItem{
		external("ta", 1*day, []string{"a"}, nil),
		external("tb", 2*day, []string{"b"}, nil),
		external("tc", 3*day, []string{"c"}, nil),
	}
}

func affinitySamples() []profile.Sample {
	return []profile.Sample{
		{Tags: []string{"a"}},
		{Tags: []string{"a", "b"}},
		{Tags: []string{"a"}},
	}
}

func TestEngine_Recommend_TagAffinityOrdering(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, affinityItems())
	env.activity.samples["u"] = affinitySamples()

	resp, err := env.engine.Recommend(context.Background(), RecommendRequest{User: "u"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if resp.Meta.Reason != ReasonOK {
		t.Fatalf("Reason = %q, want ok", resp.Meta.Reason)
	}
	if resp.Meta.ProfileSource != profile.SourceRecent {
		t.Errorf("ProfileSource = %q, want %q", resp.Meta.ProfileSource, profile.SourceRecent)
	}

	want := []string{"external:feed:ta", "external:feed:tb", "external:feed:tc"}
	if got := identities(resp.Items); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}

	wantTag := []float64{1.0, math.Log(2) / math.Log(4), 0.1}
	for i, it := range resp.Items {
		if math.Abs(it.TagScore-wantTag[i]) > 1e-9 {
			t.Errorf("%s tag_score = %v, want %v", it.Item.Identity, it.TagScore, wantTag[i])
		}
		if it.VisualScore != 0.45 {
			t.Errorf("%s visual_score = %v, want neutral 0.45", it.Item.Identity, it.VisualScore)
		}
	}
}

func TestEngine_Recommend_MetaWeights(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Scoring.TagWeight = 3
	cfg.Scoring.VisualWeight = 1
	env := newTestEnv(t, cfg, affinityItems())
	ctx := context.Background()
	req := RecommendRequest{User: "u"}

	want := map[string]float64{WeightTag: 0.75, WeightVisual: 0.25, WeightProfile: 0.18}
	for _, call := range []string{"computed", "cached"} {
		resp, err := env.engine.Recommend(ctx, req)
		if err != nil {
			t.Fatalf("%s: Recommend() error = %v", call, err)
		}
		if len(resp.Meta.Weights) != len(want) {
			t.Fatalf("%s: Weights = %v, want %v", call, resp.Meta.Weights, want)
		}
		for k, w := range want {
			if math.Abs(resp.Meta.Weights[k]-w) > 1e-9 {
				t.Errorf("%s: Weights[%s] = %v, want %v", call, k, resp.Meta.Weights[k], w)
			}
		}
	}
}

func TestEngine_Recommend_HardExclusions(t *testing.T) {
	t.Parallel()
	items := []CandidateItem{
		external("keep", 1*day, []string{"a"}, nil),
		external("owned", 1*day, []string{"a"}, nil),
		external("disliked", 1*day, []string{"a"}, nil),
		external("read", 1*day, []string{"a"}, nil),
		{Kind: KindWork, Identity: WorkIdentity("w1"), Tags: []string{"a"}, UpdatedAt: testNow.Add(-day), Work: &WorkDetails{ID: "w1"}},
	}

	for _, mode := range []Mode{ModeBalanced, ModeExplore, ModePrecise} {
		mode := mode
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, nil, items)
			env.activity.samples["u"] = affinitySamples()
			env.membership.owned[ExternalIdentity("feed", "owned")] = true
			ctx := context.Background()

			for _, fb := range []FeedbackRequest{
				{User: "u", Candidate: ExternalIdentity("feed", "disliked"), Action: feedback.ActionDislike},
				{User: "u", Candidate: ExternalIdentity("feed", "read"), Action: feedback.ActionRead},
			} {
				if _, err := env.service.RecordFeedback(ctx, fb); err != nil {
					t.Fatalf("RecordFeedback() error = %v", err)
				}
			}

			zero := 0.0
			resp, _ := env.engine.Recommend(ctx, RecommendRequest{User: "u", Mode: mode, Strictness: &zero})
			if got := identities(resp.Items); !reflect.DeepEqual(got, []string{ExternalIdentity("feed", "keep")}) {
				t.Errorf("items = %v, want only keep", got)
			}
			ex := resp.Meta.Exclusions
			if ex[ExcludedOwned] != 2 || ex[ExcludedDisliked] != 1 || ex[ExcludedRead] != 1 {
				t.Errorf("exclusions = %v", ex)
			}
		})
	}
}

func TestEngine_Recommend_CutoffFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	precise := newTestEnv(t, nil, affinityItems())
	precise.activity.samples["u"] = affinitySamples()
	resp, _ := precise.engine.Recommend(ctx, RecommendRequest{User: "u", Mode: ModePrecise})
	// strictness 0.7: min_tag 0.292, min_visual 0.535; c has tag 0.1 and
	// neutral visual 0.45.
	if got := identities(resp.Items); !reflect.DeepEqual(got, []string{"external:feed:ta", "external:feed:tb"}) {
		t.Errorf("precise items = %v", got)
	}
	if resp.Meta.Exclusions[ExcludedCutoff] != 1 {
		t.Errorf("below_cutoff = %d, want 1", resp.Meta.Exclusions[ExcludedCutoff])
	}

	explore := newTestEnv(t, nil, affinityItems())
	explore.activity.samples["u"] = affinitySamples()
	resp, _ = explore.engine.Recommend(ctx, RecommendRequest{User: "u", Mode: ModeExplore})
	if len(resp.Items) != 3 {
		t.Errorf("explore returned %d items, want 3", len(resp.Items))
	}
}

func TestEngine_Recommend_CacheHitIsIdentical(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, affinityItems())
	env.activity.samples["u"] = affinitySamples()
	ctx := context.Background()
	req := RecommendRequest{User: "u", Nonce: "n1"}

	first, _ := env.engine.Recommend(ctx, req)
	second, _ := env.engine.Recommend(ctx, req)

	if first.Meta.CacheHit {
		t.Error("first call should miss")
	}
	if !second.Meta.CacheHit {
		t.Error("second call should hit")
	}
	if !reflect.DeepEqual(first.Items, second.Items) {
		t.Error("cached items differ from computed items")
	}
	if n := env.candidates.calls.Load(); n != 1 {
		t.Errorf("candidate source calls = %d, want 1", n)
	}
}

func TestEngine_Recommend_FeedbackInvalidatesCache(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, affinityItems())
	ctx := context.Background()
	req := RecommendRequest{User: "u"}

	before, _ := env.engine.Recommend(ctx, req)
	if _, err := env.service.RecordFeedback(ctx, FeedbackRequest{
		User: "u", Candidate: "external:feed:tc", Action: feedback.ActionImpression,
	}); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}
	after, _ := env.engine.Recommend(ctx, req)

	if after.Meta.CacheHit {
		t.Error("request after feedback should miss the cache")
	}
	if before.Meta.Revision == after.Meta.Revision {
		t.Error("revision did not change")
	}
	if n := env.candidates.calls.Load(); n != 2 {
		t.Errorf("candidate source calls = %d, want 2", n)
	}
}

func TestEngine_Recommend_ClearProfileInvalidatesCache(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, affinityItems())
	ctx := context.Background()

	_, _ = env.engine.Recommend(ctx, RecommendRequest{User: "u"})
	if err := env.service.ClearProfile(ctx, "u"); err != nil {
		t.Fatalf("ClearProfile() error = %v", err)
	}
	resp, _ := env.engine.Recommend(ctx, RecommendRequest{User: "u"})
	if resp.Meta.CacheHit {
		t.Error("request after profile reset should miss")
	}
}

func TestEngine_Recommend_CandidateSourceUnavailable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, affinityItems())
	env.candidates.setErr(errMockDown)
	ctx := context.Background()

	resp, err := env.engine.Recommend(ctx, RecommendRequest{User: "u"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if resp.Meta.Reason != ReasonUnavailable {
		t.Errorf("Reason = %q, want unavailable", resp.Meta.Reason)
	}
	if len(resp.Items) != 0 || resp.Items == nil {
		t.Errorf("Items = %v, want empty non-nil", resp.Items)
	}

	env.candidates.setErr(nil)
	resp, _ = env.engine.Recommend(ctx, RecommendRequest{User: "u"})
	if resp.Meta.CacheHit || resp.Meta.Reason != ReasonOK {
		t.Errorf("unavailable result was cached: %+v", resp.Meta)
	}
}

func TestEngine_Recommend_FeedbackLogUnavailable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, affinityItems())
	env.log.setErr(errMockDown)

	resp, _ := env.engine.Recommend(context.Background(), RecommendRequest{User: "u"})
	if resp.Meta.Reason != ReasonUnavailable || len(resp.Items) != 0 {
		t.Errorf("got reason %q with %d items, want unavailable and empty", resp.Meta.Reason, len(resp.Items))
	}
}

func TestEngine_Recommend_ActivityFailureDegrades(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, affinityItems())
	env.activity.err = errMockDown

	resp, _ := env.engine.Recommend(context.Background(), RecommendRequest{User: "u"})
	if resp.Meta.Reason != ReasonOK {
		t.Fatalf("Reason = %q, want ok", resp.Meta.Reason)
	}
	if resp.Meta.ProfileSource != profile.SourceNone {
		t.Errorf("ProfileSource = %q, want none", resp.Meta.ProfileSource)
	}
	for _, it := range resp.Items {
		if it.TagScore != 0.1 {
			t.Errorf("%s tag_score = %v, want floor", it.Item.Identity, it.TagScore)
		}
	}
}

func TestEngine_Recommend_InvalidInput(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, affinityItems())
	bad := 1.5

	tests := []struct {
		name string
		req  RecommendRequest
	}{
		{"empty user", RecommendRequest{User: "  "}},
		{"bad cursor", RecommendRequest{User: "u", Cursor: "%%%"}},
		{"bad mode", RecommendRequest{User: "u", Mode: "wild"}},
		{"bad strictness", RecommendRequest{User: "u", Strictness: &bad}},
	}
	for _, tt := range tests {
		resp, err := env.engine.Recommend(context.Background(), tt.req)
		if err != nil {
			t.Errorf("%s: error = %v", tt.name, err)
			continue
		}
		if resp.Meta.Reason != ReasonInvalidInput {
			t.Errorf("%s: Reason = %q, want invalid_input", tt.name, resp.Meta.Reason)
		}
	}
	if n := env.candidates.calls.Load(); n != 0 {
		t.Errorf("candidate source called %d times for invalid requests", n)
	}
}

func TestEngine_Recommend_Pagination(t *testing.T) {
	t.Parallel()
	var items []CandidateItem
	for _, tok := range []string{"p1", "p2", "p3", "p4", "p5"} {
		items = append(items, external(tok, day, []string{"a"}, nil))
	}
	env := newTestEnv(t, nil, items)
	ctx := context.Background()

	full, _ := env.engine.Recommend(ctx, RecommendRequest{User: "u", Limit: 10})

	var paged []string
	cursor := ""
	for pages := 0; pages < 10; pages++ {
		resp, _ := env.engine.Recommend(ctx, RecommendRequest{User: "u", Limit: 2, Cursor: cursor})
		paged = append(paged, identities(resp.Items)...)
		if !resp.HasMore {
			if resp.NextCursor != "" {
				t.Error("last page carries a cursor")
			}
			break
		}
		cursor = resp.NextCursor
	}
	if !reflect.DeepEqual(paged, identities(full.Items)) {
		t.Errorf("paged = %v, want %v", paged, identities(full.Items))
	}
}

func TestEngine_Recommend_DepthExpandsWindow(t *testing.T) {
	t.Parallel()
	items := []CandidateItem{
		external("recent", 2*day, []string{"a"}, nil),
		external("older", 20*day, []string{"a"}, nil),
	}
	env := newTestEnv(t, nil, items)
	ctx := context.Background()

	shallow, _ := env.engine.Recommend(ctx, RecommendRequest{User: "u", Depth: 1})
	deep, _ := env.engine.Recommend(ctx, RecommendRequest{User: "u", Depth: 2})

	if shallow.Meta.Candidates != 1 {
		t.Errorf("depth 1 candidates = %d, want 1", shallow.Meta.Candidates)
	}
	if deep.Meta.Candidates != 2 {
		t.Errorf("depth 2 candidates = %d, want 2", deep.Meta.Candidates)
	}

	clamped, _ := env.engine.Recommend(ctx, RecommendRequest{User: "u", Depth: 99})
	if clamped.Meta.Depth != 8 {
		t.Errorf("depth = %d, want clamp to 8", clamped.Meta.Depth)
	}
}

func TestEngine_Recommend_JitterDeterministic(t *testing.T) {
	t.Parallel()
	var items []CandidateItem
	for _, tok := range []string{"j1", "j2", "j3", "j4", "j5", "j6"} {
		items = append(items, external(tok, day, []string{"a"}, nil))
	}
	ctx := context.Background()

	run := func(nonce string) []ScoredCandidate {
		env := newTestEnv(t, nil, items)
		resp, _ := env.engine.Recommend(ctx, RecommendRequest{User: "u", Nonce: nonce})
		return resp.Items
	}

	a, b := run("n1"), run("n1")
	if !reflect.DeepEqual(a, b) {
		t.Error("same nonce produced different output")
	}

	plain := run("")
	jittered := false
	for i := range plain {
		if math.Abs(plain[i].FinalScore-plain[0].FinalScore) > 1e-12 {
			t.Fatal("identical candidates should score identically without jitter")
		}
	}
	for i := range a {
		if math.Abs(a[i].FinalScore-plain[0].FinalScore) > 1e-12 {
			jittered = true
		}
	}
	if !jittered {
		t.Error("nonce did not perturb scores")
	}
}

func TestEngine_Recommend_ProfileScoreFollowsFeedback(t *testing.T) {
	t.Parallel()
	items := []CandidateItem{
		external("liked", day, []string{"a"}, []float32{1, 0, 0, 0}),
		external("other", day, []string{"a"}, []float32{0, 1, 0, 0}),
	}
	env := newTestEnv(t, nil, items)
	ctx := context.Background()

	if _, err := env.service.RecordFeedback(ctx, FeedbackRequest{
		User: "u", Candidate: ExternalIdentity("feed", "liked"), Action: feedback.ActionClick,
	}); err != nil {
		t.Fatal(err)
	}

	resp, _ := env.engine.Recommend(ctx, RecommendRequest{User: "u"})
	scores := map[string]float64{}
	for _, it := range resp.Items {
		scores[it.Item.External.Token] = it.ProfileScore
	}
	if math.Abs(scores["liked"]-1) > 1e-6 {
		t.Errorf("liked profile_score = %v, want 1", scores["liked"])
	}
	if math.Abs(scores["other"]-0.5) > 1e-6 {
		t.Errorf("orthogonal profile_score = %v, want 0.5", scores["other"])
	}
}

func TestEngine_Recommend_QueuedFeedbackInvalidatesCache(t *testing.T) {
	t.Parallel()
	items := []CandidateItem{
		external("liked", day, []string{"a"}, []float32{1, 0, 0, 0}),
		external("other", day, []string{"a"}, []float32{0, 1, 0, 0}),
	}
	env := newTestEnv(t, nil, items)
	pub := &recordingPublisher{}
	env.service.SetPublisher(pub)
	ctx := context.Background()
	req := RecommendRequest{User: "u"}

	if _, err := env.service.RecordFeedback(ctx, FeedbackRequest{
		User: "u", Candidate: ExternalIdentity("feed", "liked"), Action: feedback.ActionClick,
	}); err != nil {
		t.Fatal(err)
	}
	queued, _ := env.engine.Recommend(ctx, req)
	if queued.Meta.CacheHit {
		t.Fatal("first request should miss")
	}

	if err := env.service.HandleFeedback(ctx, pub.events[0]); err != nil {
		t.Fatalf("HandleFeedback() error = %v", err)
	}
	applied, _ := env.engine.Recommend(ctx, req)

	if applied.Meta.CacheHit {
		t.Error("request after the queued update landed should miss the cache")
	}
	if applied.Meta.Revision == queued.Meta.Revision {
		t.Error("revision unchanged after the profile update")
	}
	for _, it := range applied.Items {
		if it.Item.External.Token == "liked" && math.Abs(it.ProfileScore-1) > 1e-6 {
			t.Errorf("liked profile_score = %v, want 1", it.ProfileScore)
		}
	}
}

func TestEngine_Recommend_NoCandidates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)
	resp, _ := env.engine.Recommend(context.Background(), RecommendRequest{User: "u"})
	if resp.Meta.Reason != ReasonNoCandidates || len(resp.Items) != 0 {
		t.Errorf("got %q with %d items", resp.Meta.Reason, len(resp.Items))
	}
}

func TestEngine_Recommend_Canceled(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, affinityItems())
	env.candidates.setErr(context.Canceled)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := env.engine.Recommend(ctx, RecommendRequest{User: "u"}); err == nil {
		t.Error("Recommend() with canceled context should return an error")
	}
}

func TestNewEngine_RequiresCollaborators(t *testing.T) {
	t.Parallel()
	if _, err := NewEngine(nil, EngineDeps{}, zeroLogger()); err == nil {
		t.Error("NewEngine() without collaborators should fail")
	}
	cfg := DefaultConfig()
	cfg.Scoring.Floor = 0.9
	if _, err := NewEngine(cfg, EngineDeps{}, zeroLogger()); err == nil {
		t.Error("NewEngine() with invalid config should fail")
	}
}
