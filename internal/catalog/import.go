// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/curio/internal/recommend"
)

// Record types accepted by Import.
const (
	RecordWork     = "work"
	RecordExternal = "external"
	RecordActivity = "activity"
)

// SeedRecord is one line of a catalog seed file (JSON lines).
type SeedRecord struct {
	Type string `json:"type"`

	// Items
	ID          string    `json:"id,omitempty"`
	Source      string    `json:"source,omitempty"`
	Token       string    `json:"token,omitempty"`
	URL         string    `json:"url,omitempty"`
	Title       string    `json:"title,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	Description []float32 `json:"description,omitempty"`
	Visual      []float32 `json:"visual,omitempty"`
	Interior    []float32 `json:"interior,omitempty"`
	SourceRefs  []string  `json:"source_refs,omitempty"`

	// Activity
	User       string    `json:"user,omitempty"`
	Identity   string    `json:"identity,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Item converts an item record into a catalog item.
func (r *SeedRecord) Item() (recommend.CandidateItem, error) {
	item := recommend.CandidateItem{
		Title:       r.Title,
		Tags:        r.Tags,
		UpdatedAt:   r.UpdatedAt,
		Description: r.Description,
		Visual:      r.Visual,
		Interior:    r.Interior,
	}
	switch r.Type {
	case RecordWork:
		item.Kind = recommend.KindWork
		item.Work = &recommend.WorkDetails{ID: r.ID, SourceRefs: r.SourceRefs}
	case RecordExternal:
		item.Kind = recommend.KindExternal
		item.External = &recommend.ExternalDetails{Source: r.Source, Token: r.Token, URL: r.URL}
	default:
		return item, fmt.Errorf("%w: record type %q is not an item", ErrInvalidItem, r.Type)
	}
	return item, validateItem(&item)
}

// ImportStats counts what Import wrote.
type ImportStats struct {
	Items    int `json:"items"`
	Activity int `json:"activity"`
	Skipped  int `json:"skipped"`
}

// Import reads JSON-lines seed records from r. Invalid records are logged
// and skipped; storage errors abort the import.
func (s *DuckDBStore) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	dec := json.NewDecoder(r)
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		var rec SeedRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return stats, fmt.Errorf("failed to decode seed record %d: %w", line, err)
		}

		switch rec.Type {
		case RecordActivity:
			err := s.RecordActivity(ctx, rec.User, rec.Identity, rec.OccurredAt)
			if errors.Is(err, ErrInvalidItem) {
				s.logger.Warn().Err(err).Int("record", line).Msg("skipping invalid seed record")
				stats.Skipped++
				continue
			}
			if err != nil {
				return stats, err
			}
			stats.Activity++
		default:
			item, err := rec.Item()
			if err != nil {
				s.logger.Warn().Err(err).Int("record", line).Msg("skipping invalid seed record")
				stats.Skipped++
				continue
			}
			if err := s.UpsertItem(ctx, item); err != nil {
				return stats, err
			}
			stats.Items++
		}
	}

	s.logger.Info().
		Int("items", stats.Items).
		Int("activity", stats.Activity).
		Int("skipped", stats.Skipped).
		Msg("Catalog import complete")
	return stats, nil
}
