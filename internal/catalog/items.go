// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/recommend/feedback"
	"github.com/tomtom215/curio/internal/recommend/profile"
)

var (
	_ recommend.CandidateSource   = (*DuckDBStore)(nil)
	_ recommend.LibraryMembership = (*DuckDBStore)(nil)
	_ recommend.Retriever         = (*DuckDBStore)(nil)
	_ profile.ActivitySource      = (*DuckDBStore)(nil)
	_ feedback.VectorResolver     = (*DuckDBStore)(nil)
)

// ErrInvalidItem is returned for items that cannot be stored.
var ErrInvalidItem = errors.New("invalid catalog item")

const maxUpsertRetries = 3

const itemColumns = `identity, kind, title, work_id, source, token, url, updated_at, description, visual, interior`

// UpsertItem inserts or replaces an item, its tags and, for works, its
// source references.
//
//nolint:gocritic // hugeParam: item passed by value for immutability
func (s *DuckDBStore) UpsertItem(ctx context.Context, item recommend.CandidateItem) (err error) {
	start := time.Now()
	defer func() { observe("upsert_item", start, err) }()

	if err := validateItem(&item); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = s.upsertOnce(ctx, &item)
		if !isTransactionConflict(err) || attempt >= maxUpsertRetries {
			return err
		}
		s.logger.Debug().Str("identity", item.Identity).Int("attempt", attempt).Msg("catalog upsert conflict, retrying")
	}
}

func (s *DuckDBStore) upsertOnce(ctx context.Context, item *recommend.CandidateItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var workID, source, token, url sql.NullString
	switch item.Kind {
	case recommend.KindWork:
		workID = sql.NullString{String: item.Work.ID, Valid: true}
	case recommend.KindExternal:
		source = sql.NullString{String: item.External.Source, Valid: true}
		token = sql.NullString{String: item.External.Token, Valid: true}
		url = sql.NullString{String: item.External.URL, Valid: item.External.URL != ""}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity) DO UPDATE SET
			kind = EXCLUDED.kind,
			title = EXCLUDED.title,
			work_id = EXCLUDED.work_id,
			source = EXCLUDED.source,
			token = EXCLUDED.token,
			url = EXCLUDED.url,
			updated_at = EXCLUDED.updated_at,
			description = EXCLUDED.description,
			visual = EXCLUDED.visual,
			interior = EXCLUDED.interior
	`, item.Identity, string(item.Kind), item.Title, workID, source, token, url, item.UpdatedAt.UTC(),
		blobArg(item.Description), blobArg(item.Visual), blobArg(item.Interior))
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.Identity, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_tags WHERE identity = ?`, item.Identity); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	tags := dedupe(normalizeTags(item.Tags))
	for pos, tag := range tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO catalog_tags (identity, tag, position) VALUES (?, ?, ?)`,
			item.Identity, tag, pos); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", tag, err)
		}
	}

	if item.Kind == recommend.KindWork {
		if _, err := tx.ExecContext(ctx, `DELETE FROM library_sources WHERE work_identity = ?`, item.Identity); err != nil {
			return fmt.Errorf("failed to clear source refs: %w", err)
		}
		for _, ref := range dedupe(item.Work.SourceRefs) {
			if _, err := tx.ExecContext(ctx, `INSERT INTO library_sources (work_identity, source_ref) VALUES (?, ?)`,
				item.Identity, ref); err != nil {
				return fmt.Errorf("failed to insert source ref %q: %w", ref, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item %s: %w", item.Identity, err)
	}
	return nil
}

// validateItem fills the identity from the variant details and checks that
// they agree.
func validateItem(item *recommend.CandidateItem) error {
	switch item.Kind {
	case recommend.KindWork:
		if item.Work == nil || item.Work.ID == "" {
			return fmt.Errorf("%w: work without id", ErrInvalidItem)
		}
		want := recommend.WorkIdentity(item.Work.ID)
		if item.Identity == "" {
			item.Identity = want
		}
		if item.Identity != want {
			return fmt.Errorf("%w: identity %q does not match work %q", ErrInvalidItem, item.Identity, item.Work.ID)
		}
	case recommend.KindExternal:
		if item.External == nil || item.External.Source == "" || item.External.Token == "" {
			return fmt.Errorf("%w: external entry without source or token", ErrInvalidItem)
		}
		want := recommend.ExternalIdentity(item.External.Source, item.External.Token)
		if item.Identity == "" {
			item.Identity = want
		}
		if item.Identity != want {
			return fmt.Errorf("%w: identity %q does not match %q", ErrInvalidItem, item.Identity, want)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, item.Kind)
	}
	if item.Title == "" {
		return fmt.Errorf("%w: %s has no title", ErrInvalidItem, item.Identity)
	}
	if item.UpdatedAt.IsZero() {
		return fmt.Errorf("%w: %s has no update time", ErrInvalidItem, item.Identity)
	}
	return nil
}

// ByTimeWindow returns external entries updated in [start, end], newest
// first. Library works are never candidates.
func (s *DuckDBStore) ByTimeWindow(ctx context.Context, start, end time.Time, limit int) (items []recommend.CandidateItem, err error) {
	begin := time.Now()
	defer func() { observe("by_time_window", begin, err) }()

	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM catalog_items
		WHERE kind = ? AND updated_at >= ? AND updated_at <= ?
		ORDER BY updated_at DESC, identity
		LIMIT ?
	`, string(recommend.KindExternal), start.UTC(), end.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	items, err = s.scanItems(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Hydrate loads items by identity. Each variant is loaded by its own
// query; unknown identities are absent from the result.
func (s *DuckDBStore) Hydrate(ctx context.Context, identities []string) (out map[string]recommend.CandidateItem, err error) {
	start := time.Now()
	defer func() { observe("hydrate", start, err) }()

	var works, externals []string
	for _, id := range dedupe(identities) {
		switch recommend.KindOf(id) {
		case recommend.KindWork:
			works = append(works, id)
		case recommend.KindExternal:
			externals = append(externals, id)
		}
	}

	out = make(map[string]recommend.CandidateItem, len(works)+len(externals))
	if err := s.hydrateExternal(ctx, externals, out); err != nil {
		return nil, err
	}
	if err := s.hydrateWorks(ctx, works, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DuckDBStore) hydrateExternal(ctx context.Context, ids []string, out map[string]recommend.CandidateItem) error {
	items, err := s.loadItems(ctx, recommend.KindExternal, ids)
	if err != nil {
		return err
	}
	for i := range items {
		out[items[i].Identity] = items[i]
	}
	return nil
}

func (s *DuckDBStore) hydrateWorks(ctx context.Context, ids []string, out map[string]recommend.CandidateItem) error {
	items, err := s.loadItems(ctx, recommend.KindWork, ids)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	index := make(map[string]int, len(items))
	found := make([]string, len(items))
	for i := range items {
		index[items[i].Identity] = i
		found[i] = items[i].Identity
	}
	for _, batch := range chunks(found) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT work_identity, source_ref FROM library_sources
			WHERE work_identity IN (`+placeholders(len(batch))+`)
			ORDER BY work_identity, source_ref
		`, stringArgs(batch)...)
		if err != nil {
			return fmt.Errorf("failed to query source refs: %w", err)
		}
		for rows.Next() {
			var work, ref string
			if err := rows.Scan(&work, &ref); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan source ref: %w", err)
			}
			it := &items[index[work]]
			it.Work.SourceRefs = append(it.Work.SourceRefs, ref)
		}
		if err := closeRows(rows); err != nil {
			return err
		}
	}

	for i := range items {
		out[items[i].Identity] = items[i]
	}
	return nil
}

// loadItems reads items of one kind with their tags.
func (s *DuckDBStore) loadItems(ctx context.Context, kind recommend.Kind, ids []string) ([]recommend.CandidateItem, error) {
	var items []recommend.CandidateItem
	for _, batch := range chunks(ids) {
		args := append([]any{string(kind)}, stringArgs(batch)...)
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+itemColumns+`
			FROM catalog_items
			WHERE kind = ? AND identity IN (`+placeholders(len(batch))+`)
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s items: %w", kind, err)
		}
		got, err := s.scanItems(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, got...)
	}
	if err := s.attachTags(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// scanItems reads every row and closes rows. Rows with undecodable vectors
// keep their other fields; the vector is dropped with a warning.
func (s *DuckDBStore) scanItems(rows *sql.Rows) ([]recommend.CandidateItem, error) {
	var items []recommend.CandidateItem
	for rows.Next() {
		var (
			it                            recommend.CandidateItem
			kind                          string
			workID, source, token, url    sql.NullString
			description, visual, interior []byte
		)
		if err := rows.Scan(&it.Identity, &kind, &it.Title, &workID, &source, &token, &url, &it.UpdatedAt,
			&description, &visual, &interior); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.Kind = recommend.Kind(kind)
		switch it.Kind {
		case recommend.KindWork:
			it.Work = &recommend.WorkDetails{ID: workID.String}
		case recommend.KindExternal:
			it.External = &recommend.ExternalDetails{Source: source.String, Token: token.String, URL: url.String}
		}
		it.Description = s.decode(it.Identity, "description", description)
		it.Visual = s.decode(it.Identity, "visual", visual)
		it.Interior = s.decode(it.Identity, "interior", interior)
		items = append(items, it)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *DuckDBStore) decode(identity, column string, b []byte) []float32 {
	v, err := decodeVector(b)
	if err != nil {
		s.logger.Warn().Err(err).Str("identity", identity).Str("column", column).Msg("dropping undecodable vector")
		return nil
	}
	return v
}

// attachTags fills Tags on items in place.
func (s *DuckDBStore) attachTags(ctx context.Context, items []recommend.CandidateItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].Identity
	}
	tags, err := s.tagsOf(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Tags = tags[items[i].Identity]
	}
	return nil
}

// Contains reports whether identity is in the library: a library work, or an
// external entry some work was imported from.
func (s *DuckDBStore) Contains(ctx context.Context, identity string) (bool, error) {
	owned, err := s.ContainsAny(ctx, []string{identity})
	if err != nil {
		return false, err
	}
	return owned[identity], nil
}

// ContainsAny answers Contains for many identities. Only owned identities
// appear in the result.
func (s *DuckDBStore) ContainsAny(ctx context.Context, identities []string) (owned map[string]bool, err error) {
	start := time.Now()
	defer func() { observe("contains", start, err) }()

	owned = make(map[string]bool)
	var works, externals []string
	for _, id := range dedupe(identities) {
		switch recommend.KindOf(id) {
		case recommend.KindWork:
			works = append(works, id)
		case recommend.KindExternal:
			externals = append(externals, id)
		}
	}

	queries := []struct {
		ids []string
		sql string
	}{
		{works, `SELECT identity FROM catalog_items WHERE kind = 'work' AND identity IN (%s)`},
		{externals, `SELECT DISTINCT source_ref FROM library_sources WHERE source_ref IN (%s)`},
	}
	for _, q := range queries {
		for _, batch := range chunks(q.ids) {
			rows, err := s.db.QueryContext(ctx, fmt.Sprintf(q.sql, placeholders(len(batch))), stringArgs(batch)...)
			if err != nil {
				return nil, fmt.Errorf("failed to query library membership: %w", err)
			}
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					_ = rows.Close()
					return nil, fmt.Errorf("failed to scan membership: %w", err)
				}
				owned[id] = true
			}
			if err := closeRows(rows); err != nil {
				return nil, err
			}
		}
	}
	return owned, nil
}

// Vectors returns the cover and interior vectors of the given items.
func (s *DuckDBStore) Vectors(ctx context.Context, ids []string) (out map[string]feedback.ItemVectors, err error) {
	start := time.Now()
	defer func() { observe("vectors", start, err) }()

	out = make(map[string]feedback.ItemVectors)
	for _, batch := range chunks(dedupe(ids)) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT identity, visual, interior FROM catalog_items
			WHERE identity IN (`+placeholders(len(batch))+`)
		`, stringArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query vectors: %w", err)
		}
		for rows.Next() {
			var (
				id               string
				visual, interior []byte
			)
			if err := rows.Scan(&id, &visual, &interior); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan vectors: %w", err)
			}
			out[id] = feedback.ItemVectors{
				Cover:    s.decode(id, "visual", visual),
				Interior: s.decode(id, "interior", interior),
			}
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// closeRows surfaces iteration errors and closes rows.
func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := profile.NormalizeTag(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}
