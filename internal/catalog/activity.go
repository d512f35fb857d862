// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/curio/internal/recommend/profile"
)

// RecordActivity stores one read of identity by user.
func (s *DuckDBStore) RecordActivity(ctx context.Context, user, identity string, at time.Time) (err error) {
	start := time.Now()
	defer func() { observe("record_activity", start, err) }()

	user = strings.TrimSpace(user)
	if user == "" || identity == "" {
		return fmt.Errorf("%w: activity needs a user and an identity", ErrInvalidItem)
	}
	if at.IsZero() {
		at = s.now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO activity (user_id, identity, occurred_at) VALUES (?, ?, ?)`,
		user, identity, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// RecentSamples returns the tags and cover vectors of the items user read
// within window, newest first. A non-positive window is unbounded. Reads of
// items missing from the catalog are skipped.
func (s *DuckDBStore) RecentSamples(ctx context.Context, user string, window time.Duration, limit int) (samples []profile.Sample, err error) {
	start := time.Now()
	defer func() { observe("recent_samples", start, err) }()

	if limit <= 0 {
		return nil, nil
	}
	since := time.Time{}
	if window > 0 {
		since = s.now().Add(-window)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.identity, i.visual
		FROM activity a
		JOIN catalog_items i ON i.identity = a.identity
		WHERE a.user_id = ? AND a.occurred_at >= ?
		ORDER BY a.occurred_at DESC, i.identity
		LIMIT ?
	`, user, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}

	var ids []string
	for rows.Next() {
		var (
			id     string
			visual []byte
		)
		if err := rows.Scan(&id, &visual); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		ids = append(ids, id)
		samples = append(samples, profile.Sample{Visual: s.decode(id, "visual", visual)})
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	tags, err := s.tagsOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		samples[i].Tags = tags[id]
	}
	return samples, nil
}

// tagsOf loads tags keyed by identity.
func (s *DuckDBStore) tagsOf(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, batch := range chunks(dedupe(ids)) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT identity, tag FROM catalog_tags
			WHERE identity IN (`+placeholders(len(batch))+`)
			ORDER BY identity, position
		`, stringArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query tags: %w", err)
		}
		for rows.Next() {
			var id, tag string
			if err := rows.Scan(&id, &tag); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan tag: %w", err)
			}
			out[id] = append(out[id], tag)
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}
