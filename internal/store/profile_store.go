// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/curio/internal/metrics"
	"github.com/tomtom215/curio/internal/recommend/feedback"
)

// ProfileStore implements feedback.ProfileStorage on BadgerDB.
type ProfileStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewProfileStore creates a BadgerDB-backed profile store.
func NewProfileStore(db *badger.DB) *ProfileStore {
	return &ProfileStore{db: db, now: time.Now}
}

var _ feedback.ProfileStorage = (*ProfileStore)(nil)

// Load returns the stored record, or a zero Record for an unknown user.
func (s *ProfileStore) Load(ctx context.Context, user string) (rec feedback.Record, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation(storeLabel, "profile_load", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return feedback.Record{}, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readProfile(txn, user)
		return err
	})
	return rec, err
}

// Save replaces the user's vector, keeping the reset generation and bumping
// the version.
func (s *ProfileStore) Save(ctx context.Context, user string, vector []float32) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation(storeLabel, "profile_save", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return update(s.db, func(txn *badger.Txn) error {
		rec, err := readProfile(txn, user)
		if err != nil {
			return err
		}
		rec.Vector = vector
		rec.Version++
		rec.UpdatedAt = s.now()
		return writeProfile(txn, user, rec)
	})
}

// Reset drops the user's vector and bumps the generation so revisions
// computed before the reset no longer match.
func (s *ProfileStore) Reset(ctx context.Context, user string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation(storeLabel, "profile_reset", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return update(s.db, func(txn *badger.Txn) error {
		rec, err := readProfile(txn, user)
		if err != nil {
			return err
		}
		rec.Vector = nil
		rec.Generation++
		rec.UpdatedAt = s.now()
		return writeProfile(txn, user, rec)
	})
}

func readProfile(txn *badger.Txn, user string) (feedback.Record, error) {
	var rec feedback.Record
	item, err := txn.Get([]byte(profileKeyPrefix + user))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("get profile: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, fmt.Errorf("decode profile: %w", err)
	}
	return rec, nil
}

func writeProfile(txn *badger.Txn, user string, rec feedback.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := txn.Set([]byte(profileKeyPrefix+user), data); err != nil {
		return fmt.Errorf("set profile: %w", err)
	}
	return nil
}
