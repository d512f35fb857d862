// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/cache"
	"github.com/tomtom215/curio/internal/recommend/feedback"
	"github.com/tomtom215/curio/internal/recommend/profile"
)

const testDim = 4

var errMockDown = errors.New("mock collaborator down")

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// mockCandidates is a CandidateSource backed by a slice.
type mockCandidates struct {
	mu    sync.Mutex
	items []CandidateItem
	err   error
	calls atomic.Int32
}

func (m *mockCandidates) ByTimeWindow(_ context.Context, start, end time.Time, limit int) ([]CandidateItem, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []CandidateItem
	for _, it := range m.items {
		if it.UpdatedAt.Before(start) || !it.UpdatedAt.Before(end) {
			continue
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockCandidates) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// mockMembership owns a fixed identity set.
type mockMembership struct {
	owned map[string]bool
	err   error
}

func (m *mockMembership) Contains(_ context.Context, identity string) (bool, error) {
	return m.owned[identity], m.err
}

func (m *mockMembership) ContainsAny(_ context.Context, ids []string) (map[string]bool, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if m.owned[id] {
			out[id] = true
		}
	}
	return out, nil
}

// mockLog is an in-memory feedback.Log.
type mockLog struct {
	mu     sync.Mutex
	events []feedback.Event
	err    error
}

func (l *mockLog) Append(_ context.Context, ev feedback.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.events = append(l.events, ev)
	return nil
}

func (l *mockLog) CountsByAction(_ context.Context, user string, ids []string, action feedback.Action) (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]int)
	for _, ev := range l.events {
		if ev.User == user && ev.Action == action && want[ev.Candidate] {
			out[ev.Candidate]++
		}
	}
	return out, nil
}

func (l *mockLog) Stats(_ context.Context, user string) (feedback.Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return feedback.Stats{}, l.err
	}
	st := feedback.Stats{Counts: make(map[feedback.Action]int64)}
	for _, ev := range l.events {
		if ev.User != user {
			continue
		}
		st.Counts[ev.Action]++
		if ev.Timestamp.After(st.Latest) {
			st.Latest = ev.Timestamp
		}
	}
	return st, nil
}

func (l *mockLog) setErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

// memProfiles is an in-memory feedback.ProfileStorage.
type memProfiles struct {
	mu      sync.Mutex
	records map[string]feedback.Record
	saveErr error
}

func newMemProfiles() *memProfiles {
	return &memProfiles{records: make(map[string]feedback.Record)}
}

func (m *memProfiles) Load(_ context.Context, user string) (feedback.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[user], nil
}

func (m *memProfiles) Save(_ context.Context, user string, v []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	rec := m.records[user]
	rec.Vector = append([]float32(nil), v...)
	rec.Version++
	m.records[user] = rec
	return nil
}

func (m *memProfiles) Reset(_ context.Context, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[user]
	rec.Vector = nil
	rec.Generation++
	m.records[user] = rec
	return nil
}

// itemResolver resolves vectors from a candidate slice.
type itemResolver struct {
	src *mockCandidates
}

func (r itemResolver) Vectors(_ context.Context, ids []string) (map[string]feedback.ItemVectors, error) {
	r.src.mu.Lock()
	defer r.src.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]feedback.ItemVectors)
	for i := range r.src.items {
		if want[r.src.items[i].Identity] {
			out[r.src.items[i].Identity] = r.src.items[i].Vectors()
		}
	}
	return out, nil
}

// mockActivity is a profile.ActivitySource with fixed samples per user.
type mockActivity struct {
	samples map[string][]profile.Sample
	err     error
	calls   atomic.Int32
}

func (m *mockActivity) RecentSamples(_ context.Context, user string, _ time.Duration, _ int) ([]profile.Sample, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.samples[user], nil
}

// external builds an external candidate updated age before testNow.
func external(token string, age time.Duration, tags []string, visual []float32) CandidateItem {
	return CandidateItem{
		Kind:      KindExternal,
		Identity:  ExternalIdentity("feed", token),
		Title:     strings.ToUpper(token),
		Tags:      tags,
		Visual:    visual,
		External:  &ExternalDetails{Source: "feed", Token: token},
		UpdatedAt: testNow.Add(-age),
	}
}

type testEnv struct {
	engine     *Engine
	service    *Service
	candidates *mockCandidates
	membership *mockMembership
	log        *mockLog
	profiles   *memProfiles
	activity   *mockActivity
	store      *feedback.Store
}

func newTestEnv(t *testing.T, cfg *Config, items []CandidateItem) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	env := &testEnv{
		candidates: &mockCandidates{items: items},
		membership: &mockMembership{owned: map[string]bool{}},
		log:        &mockLog{},
		profiles:   newMemProfiles(),
		activity:   &mockActivity{samples: map[string][]profile.Sample{}},
	}
	env.store = feedback.NewStore(env.log, env.profiles, itemResolver{src: env.candidates}, zerolog.Nop(), feedback.WithDimension(testDim))

	rankings := cache.New[*RankingEntry](cache.Options{TTL: cfg.Cache.RankingTTL, CleanupInterval: -1})
	t.Cleanup(rankings.Close)
	provider := profile.NewProvider(env.activity, nil, cfg.ProfileConfig(), zerolog.Nop())

	engine, err := NewEngine(cfg, EngineDeps{
		Candidates: env.candidates,
		Membership: env.membership,
		Profiles:   provider,
		Vectors:    env.store,
		Log:        env.log,
		Cache:      NewRankingCache("ranking", rankings, cfg.Cache.RankingTTL),
		Dimension:  testDim,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	engine.now = func() time.Time { return testNow }
	env.engine = engine
	env.service = NewService(engine, nil, env.store, env.log, nil, zerolog.Nop())
	env.service.now = func() time.Time { return testNow }
	return env
}

func identities(items []ScoredCandidate) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].Item.Identity
	}
	return out
}

func zeroLogger() zerolog.Logger {
	return zerolog.Nop()
}
