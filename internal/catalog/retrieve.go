// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/recommend/vecops"
)

// TextMatch returns items of one catalog whose title contains every query
// term. Exact titles rank first, then prefix matches, then shorter titles.
func (s *DuckDBStore) TextMatch(ctx context.Context, catalog recommend.Catalog, query string, limit int) (ids []string, err error) {
	start := time.Now()
	defer func() { observe("text_match", start, err) }()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	where := make([]string, 0, len(terms))
	args := []any{string(catalog.Kind())}
	for _, t := range terms {
		where = append(where, `title ILIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(t)+"%")
	}
	phrase := strings.Join(terms, " ")
	args = append(args, phrase, escapeLike(phrase)+"%", limit)

	q := `
		SELECT identity FROM catalog_items
		WHERE kind = ? AND ` + strings.Join(where, " AND ") + `
		ORDER BY
			CASE WHEN lower(title) = ? THEN 0 WHEN title ILIKE ? ESCAPE '\' THEN 1 ELSE 2 END,
			length(title), identity
		LIMIT ?`
	return s.queryIDs(ctx, q, args...)
}

// TagOverlap ranks items of one catalog by how many query tags they carry.
func (s *DuckDBStore) TagOverlap(ctx context.Context, catalog recommend.Catalog, tags []string, limit int) (ids []string, err error) {
	start := time.Now()
	defer func() { observe("tag_overlap", start, err) }()

	tags = dedupe(normalizeTags(tags))
	if len(tags) == 0 || limit <= 0 {
		return nil, nil
	}

	// Each query tag becomes one CASE arm so an item carrying both
	// "fantasy" and "genre:fantasy" counts the query tag once.
	arms := make([]string, 0, len(tags))
	args := make([]any, 0, 3*len(tags)+2)
	for _, tag := range tags {
		arms = append(arms, `MAX(CASE WHEN t.tag = ? OR ends_with(t.tag, ?) THEN 1 ELSE 0 END)`)
		args = append(args, tag, ":"+tag)
	}
	args = append(args, string(catalog.Kind()), limit)

	q := `
		SELECT identity FROM (
			SELECT t.identity AS identity, ` + strings.Join(arms, " + ") + ` AS hits, MAX(i.updated_at) AS updated_at
			FROM catalog_tags t
			JOIN catalog_items i ON i.identity = t.identity
			WHERE i.kind = ?
			GROUP BY t.identity
		)
		WHERE hits > 0
		ORDER BY hits DESC, updated_at DESC, identity
		LIMIT ?`
	return s.queryIDs(ctx, q, args...)
}

// NearestDescription ranks items by cosine similarity of their description
// vector to vector.
func (s *DuckDBStore) NearestDescription(ctx context.Context, catalog recommend.Catalog, vector []float32, limit int) (ids []string, err error) {
	start := time.Now()
	defer func() { observe("nearest_description", start, err) }()
	return s.nearest(ctx, catalog, "description", vector, limit)
}

// NearestVisual ranks items by cosine similarity of their cover vector to
// vector.
func (s *DuckDBStore) NearestVisual(ctx context.Context, catalog recommend.Catalog, vector []float32, limit int) (ids []string, err error) {
	start := time.Now()
	defer func() { observe("nearest_visual", start, err) }()
	return s.nearest(ctx, catalog, "visual", vector, limit)
}

type neighbor struct {
	id  string
	sim float64
}

// nearest scans one vector column. column is one of the fixed names above,
// never user input.
func (s *DuckDBStore) nearest(ctx context.Context, catalog recommend.Catalog, column string, vector []float32, limit int) ([]string, error) {
	if !vecops.Valid(vector) || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, `+column+` FROM catalog_items WHERE kind = ? AND `+column+` IS NOT NULL`,
		string(catalog.Kind()))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s vectors: %w", column, err)
	}

	var found []neighbor
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan %s vector: %w", column, err)
		}
		v := s.decode(id, column, blob)
		if !vecops.IsFinite(v) {
			continue
		}
		// Width mismatches and zero vectors are not comparable.
		sim, ok := vecops.Cosine(vector, v)
		if !ok {
			continue
		}
		found = append(found, neighbor{id: id, sim: sim})
		if ctx.Err() != nil {
			_ = rows.Close()
			return nil, ctx.Err()
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].sim != found[j].sim {
			return found[i].sim > found[j].sim
		}
		return found[i].id < found[j].id
	})
	if len(found) > limit {
		found = found[:limit]
	}
	ids := make([]string, len(found))
	for i, n := range found {
		ids[i] = n.id
	}
	return ids, nil
}

func (s *DuckDBStore) queryIDs(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run channel query: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return ids, nil
}

// escapeLike escapes LIKE wildcards with a backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
