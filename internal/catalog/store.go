// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver
	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/metrics"
)

const storeLabel = "duckdb"

// Options configures the DuckDB connection.
type Options struct {
	// Path is the database file. Empty opens an in-memory database.
	Path string

	// Threads bounds DuckDB worker threads. Zero uses the CPU count.
	Threads int

	// MaxMemory is a DuckDB memory limit such as "1GB". Empty leaves the
	// DuckDB default.
	MaxMemory string
}

// DuckDBStore implements the catalog reads and writes on DuckDB.
type DuckDBStore struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// Open opens the database, configures the pool and creates the schema.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (*DuckDBStore, error) {
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	path := opts.Path
	if path == "" {
		path = ":memory:"
	}

	// Extension auto-install is disabled so a restricted network cannot hang startup.
	params := []string{
		fmt.Sprintf("threads=%d", threads),
		"autoinstall_known_extensions=false",
		"autoload_known_extensions=false",
	}
	if opts.MaxMemory != "" {
		params = append(params, "max_memory="+opts.MaxMemory)
	}
	conn, err := sql.Open("duckdb", path+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	conn.SetMaxOpenConns(threads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	s := NewDuckDBStore(conn, logger)
	if err := s.InitSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.logger.Info().Str("path", path).Int("threads", threads).Msg("Catalog database ready")
	return s, nil
}

// NewDuckDBStore wraps an open connection. Call InitSchema before use.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewDuckDBStore(db *sql.DB, logger zerolog.Logger) *DuckDBStore {
	return &DuckDBStore{
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
		now:    time.Now,
	}
}

// InitSchema creates the catalog tables and indexes.
func (s *DuckDBStore) InitSchema(ctx context.Context) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"catalog_items", `
			CREATE TABLE IF NOT EXISTS catalog_items (
				identity VARCHAR PRIMARY KEY,
				kind VARCHAR NOT NULL,
				title VARCHAR NOT NULL,
				work_id VARCHAR,
				source VARCHAR,
				token VARCHAR,
				url VARCHAR,
				updated_at TIMESTAMP NOT NULL,
				description BLOB,
				visual BLOB,
				interior BLOB
			)`},
		{"catalog_tags", `
			CREATE TABLE IF NOT EXISTS catalog_tags (
				identity VARCHAR NOT NULL,
				tag VARCHAR NOT NULL,
				position INTEGER NOT NULL
			)`},
		{"library_sources", `
			CREATE TABLE IF NOT EXISTS library_sources (
				work_identity VARCHAR NOT NULL,
				source_ref VARCHAR NOT NULL
			)`},
		{"activity", `
			CREATE TABLE IF NOT EXISTS activity (
				user_id VARCHAR NOT NULL,
				identity VARCHAR NOT NULL,
				occurred_at TIMESTAMP NOT NULL
			)`},
		{"idx_catalog_items_kind_updated", `CREATE INDEX IF NOT EXISTS idx_catalog_items_kind_updated ON catalog_items(kind, updated_at)`},
		{"idx_catalog_tags_identity", `CREATE INDEX IF NOT EXISTS idx_catalog_tags_identity ON catalog_tags(identity)`},
		{"idx_catalog_tags_tag", `CREATE INDEX IF NOT EXISTS idx_catalog_tags_tag ON catalog_tags(tag)`},
		{"idx_library_sources_ref", `CREATE INDEX IF NOT EXISTS idx_library_sources_ref ON library_sources(source_ref)`},
		{"idx_activity_user", `CREATE INDEX IF NOT EXISTS idx_activity_user ON activity(user_id, occurred_at)`},
	}

	for _, st := range statements {
		if _, err := s.db.ExecContext(ctx, st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}
	return nil
}

// Ping checks the connection.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// observe records one store operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(storeLabel, op, time.Since(start), err)
}

// placeholders returns "?, ?, ..." for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// stringArgs converts ids into query arguments.
func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// maxBatch bounds IN lists per query.
const maxBatch = 500

// chunks splits ids into batches of at most maxBatch.
func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > maxBatch {
		out = append(out, ids[:maxBatch])
		ids = ids[maxBatch:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// dedupe returns ids without duplicates or empties, keeping order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// isTransactionConflict reports a DuckDB optimistic concurrency failure.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") || strings.Contains(msg, "Conflict on update")
}
