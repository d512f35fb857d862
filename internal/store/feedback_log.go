// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/curio/internal/metrics"
	"github.com/tomtom215/curio/internal/recommend/feedback"
)

const storeLabel = "badger"

// FeedbackLog implements feedback.Log on BadgerDB. Each append also updates
// the per-item action counter and the per-user stats in the same transaction.
type FeedbackLog struct {
	db  *badger.DB
	seq atomic.Uint64
}

// NewFeedbackLog creates a BadgerDB-backed feedback log.
func NewFeedbackLog(db *badger.DB) *FeedbackLog {
	return &FeedbackLog{db: db}
}

var _ feedback.Log = (*FeedbackLog)(nil)

// Append stores an event.
func (l *FeedbackLog) Append(ctx context.Context, event feedback.Event) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation(storeLabel, "append", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	eventKey := []byte(eventKeyPrefix + event.User + keySep +
		fmt.Sprintf("%020d", event.Timestamp.UnixNano()) + keySep +
		strconv.FormatUint(l.seq.Add(1), 10))
	counterKey := countKey(event.User, event.Action, event.Candidate)
	statsKey := []byte(statsKeyPrefix + event.User)

	return update(l.db, func(txn *badger.Txn) error {
		if err := txn.Set(eventKey, data); err != nil {
			return fmt.Errorf("set event: %w", err)
		}

		count, err := readCount(txn, counterKey)
		if err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], count+1)
		if err := txn.Set(counterKey, buf[:]); err != nil {
			return fmt.Errorf("set counter: %w", err)
		}

		stats, err := readStats(txn, statsKey)
		if err != nil {
			return err
		}
		stats.Counts[event.Action]++
		if event.Timestamp.After(stats.Latest) {
			stats.Latest = event.Timestamp
		}
		statsData, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		if err := txn.Set(statsKey, statsData); err != nil {
			return fmt.Errorf("set stats: %w", err)
		}
		return nil
	})
}

// CountsByAction returns how many events of action the user logged against
// each of ids. Identities without events are absent.
func (l *FeedbackLog) CountsByAction(ctx context.Context, user string, ids []string, action feedback.Action) (counts map[string]int, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation(storeLabel, "counts", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts = make(map[string]int)
	err = l.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			n, err := readCount(txn, countKey(user, action, id))
			if err != nil {
				return err
			}
			if n > 0 {
				counts[id] = int(n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Stats returns per-action totals and the latest event time for user.
func (l *FeedbackLog) Stats(ctx context.Context, user string) (stats feedback.Stats, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation(storeLabel, "stats", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return feedback.Stats{}, err
	}
	err = l.db.View(func(txn *badger.Txn) error {
		var err error
		stats, err = readStats(txn, []byte(statsKeyPrefix+user))
		return err
	})
	return stats, err
}

func countKey(user string, action feedback.Action, identity string) []byte {
	return []byte(countKeyPrefix + user + keySep + string(action) + keySep + identity)
}

func readCount(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get counter: %w", err)
	}
	var n uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("counter %q has %d bytes", key, len(val))
		}
		n = binary.BigEndian.Uint64(val)
		return nil
	})
	return n, err
}

func readStats(txn *badger.Txn, key []byte) (feedback.Stats, error) {
	stats := feedback.Stats{Counts: make(map[feedback.Action]int64)}
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("get stats: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &stats)
	})
	if err != nil {
		return stats, fmt.Errorf("decode stats: %w", err)
	}
	if stats.Counts == nil {
		stats.Counts = make(map[feedback.Action]int64)
	}
	return stats, nil
}
