// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

// Package feedback maintains the persisted per-user embedding profile and
// its revision fingerprint.
//
// A profile vector is either empty or unit length. It changes only through
// ApplyEvents, which folds a batch of events into the stored vector:
//
//	base[i] += alpha(action) * weight * canonical(candidate)[i]
//
// and L2-normalizes the result once per batch. canonical() projects the
// candidate's cover and interior embeddings to vecops.CanonicalDim and mixes
// them 0.6/0.4.
package feedback

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/metrics"
	"github.com/tomtom215/curio/internal/recommend/vecops"
)

// DefaultMaxPending bounds the retry queue per user.
const DefaultMaxPending = 1000

// Store applies feedback batches to persisted profile vectors.
// It is safe for concurrent use; updates for one user are serialized.
type Store struct {
	log      Log
	storage  ProfileStorage
	resolver VectorResolver
	dim      int
	logger   zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	pendingMu  sync.Mutex
	pending    map[string][]Event
	maxPending int
}

// Option configures a Store.
type Option func(*Store)

// WithDimension overrides the canonical vector width.
func WithDimension(dim int) Option {
	return func(s *Store) {
		if dim > 0 {
			s.dim = dim
		}
	}
}

// WithMaxPending overrides the per-user retry queue bound.
func WithMaxPending(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxPending = n
		}
	}
}

// NewStore creates a feedback profile store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(log Log, storage ProfileStorage, resolver VectorResolver, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		log:        log,
		storage:    storage,
		resolver:   resolver,
		dim:        vecops.CanonicalDim,
		logger:     logger.With().Str("component", "feedback").Logger(),
		locks:      make(map[string]*sync.Mutex),
		pending:    make(map[string][]Event),
		maxPending: DefaultMaxPending,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dimension returns the canonical vector width.
func (s *Store) Dimension() int {
	return s.dim
}

// Canonical returns the canonical vector of an item, or nil when it has no
// usable embedding.
func (s *Store) Canonical(v ItemVectors) []float32 {
	return vecops.Mix(v.Cover, v.Interior, s.dim)
}

// ApplyEvents folds events, preceded by any batch still pending for user,
// into the user's profile vector.
//
// On a load or lookup failure the batch stays pending and the error is
// returned. On a save failure the batch stays pending and the returned error
// wraps ErrPersistenceFailure.
func (s *Store) ApplyEvents(ctx context.Context, user string, events []Event) error {
	unlock := s.lockUser(user)
	defer unlock()

	batch := append(s.takePending(user), events...)
	if len(batch) == 0 {
		return nil
	}

	rec, err := s.storage.Load(ctx, user)
	if err != nil {
		s.keepPending(user, batch)
		return fmt.Errorf("load profile: %w", err)
	}

	vectors, err := s.resolver.Vectors(ctx, candidateIDs(batch))
	if err != nil {
		s.keepPending(user, batch)
		return fmt.Errorf("resolve candidate vectors: %w", err)
	}

	base := make([]float32, s.dim)
	if len(rec.Vector) > 0 {
		base = vecops.Project(rec.Vector, s.dim)
	}

	applied := 0
	for _, ev := range batch {
		iv, ok := vectors[ev.Candidate]
		if !ok {
			continue
		}
		canonical := s.Canonical(iv)
		if canonical == nil {
			continue
		}
		weight := ev.Weight
		if weight <= 0 {
			weight = DefaultWeight
		}
		vecops.AddScaled(base, canonical, ev.Action.Alpha()*weight)
		applied++
	}

	if applied == 0 {
		metrics.ProfileUpdates.WithLabelValues("unchanged").Inc()
		return nil
	}

	// A batch that cancels the profile out leaves it empty rather than zero.
	updated := vecops.Normalize(base)

	if err := s.storage.Save(ctx, user, updated); err != nil {
		s.keepPending(user, batch)
		metrics.ProfileUpdates.WithLabelValues("failed").Inc()
		s.logger.Warn().
			Err(err).
			Str("user", user).
			Int("events", len(batch)).
			Msg("profile save failed, batch queued for retry")
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	metrics.ProfileUpdates.WithLabelValues("applied").Inc()
	s.logger.Debug().
		Str("user", user).
		Int("events", len(batch)).
		Int("applied", applied).
		Msg("profile vector updated")
	return nil
}

// GetVector returns the user's profile vector, or nil if none exists.
func (s *Store) GetVector(ctx context.Context, user string) ([]float32, error) {
	rec, err := s.storage.Load(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if len(rec.Vector) == 0 {
		return nil, nil
	}
	return rec.Vector, nil
}

// Revision returns a fingerprint of the user's feedback state: per-action
// event counts, the latest event time, the profile reset generation and the
// profile save version. Any new event, applied update or reset changes it.
func (s *Store) Revision(ctx context.Context, user string) (string, error) {
	stats, err := s.log.Stats(ctx, user)
	if err != nil {
		return "", fmt.Errorf("feedback stats: %w", err)
	}
	rec, err := s.storage.Load(ctx, user)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	return Fingerprint(stats, rec.Generation, rec.Version), nil
}

// Fingerprint derives the revision string from log stats, the reset
// generation and the profile version.
func Fingerprint(stats Stats, generation, version int64) string {
	var b strings.Builder
	for _, a := range Actions {
		b.WriteString(string(a))
		b.WriteByte('=')
		b.WriteString(strconv.FormatInt(stats.Counts[a], 10))
		b.WriteByte(';')
	}
	b.WriteString("t=")
	if !stats.Latest.IsZero() {
		b.WriteString(strconv.FormatInt(stats.Latest.UnixNano(), 10))
	}
	b.WriteString(";g=")
	b.WriteString(strconv.FormatInt(generation, 10))
	b.WriteString(";v=")
	b.WriteString(strconv.FormatInt(version, 10))

	h := fnv.New64a()
	_, _ = h.Write([]byte(b.String()))
	return strconv.FormatUint(h.Sum64(), 16)
}

// Clear removes the user's profile vector and any pending batch.
// The feedback log itself is kept.
func (s *Store) Clear(ctx context.Context, user string) error {
	unlock := s.lockUser(user)
	defer unlock()

	s.takePending(user)
	if err := s.storage.Reset(ctx, user); err != nil {
		return fmt.Errorf("reset profile: %w", err)
	}
	s.logger.Info().Str("user", user).Msg("profile cleared")
	return nil
}

// RetryPending re-applies every pending batch. It returns the number of
// users whose batch was persisted and the number still pending.
func (s *Store) RetryPending(ctx context.Context) (succeeded, failed int) {
	for _, user := range s.pendingUsers() {
		if ctx.Err() != nil {
			break
		}
		if err := s.ApplyEvents(ctx, user, nil); err != nil {
			failed++
			continue
		}
		succeeded++
	}
	return succeeded, failed
}

// PendingCount returns the number of events waiting for retry.
func (s *Store) PendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return s.countLocked()
}

func (s *Store) lockUser(user string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[user]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[user] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (s *Store) takePending(user string) []Event {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	evs := s.pending[user]
	delete(s.pending, user)
	metrics.ProfilePendingEvents.Set(float64(s.countLocked()))
	return evs
}

func (s *Store) keepPending(user string, batch []Event) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if over := len(batch) - s.maxPending; over > 0 {
		s.logger.Warn().
			Str("user", user).
			Int("dropped", over).
			Msg("pending feedback queue full, dropping oldest events")
		batch = batch[over:]
	}
	s.pending[user] = batch
	metrics.ProfilePendingEvents.Set(float64(s.countLocked()))
}

func (s *Store) countLocked() int {
	n := 0
	for _, evs := range s.pending {
		n += len(evs)
	}
	return n
}

func (s *Store) pendingUsers() []string {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	users := make([]string, 0, len(s.pending))
	for u := range s.pending {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func candidateIDs(events []Event) []string {
	seen := make(map[string]struct{}, len(events))
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.Candidate]; ok {
			continue
		}
		seen[ev.Candidate] = struct{}{}
		ids = append(ids, ev.Candidate)
	}
	return ids
}
