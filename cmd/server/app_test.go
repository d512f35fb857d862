// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/config"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DUCKDB_PATH", filepath.Join(t.TempDir(), "catalog.duckdb"))
	t.Setenv("BADGER_IN_MEMORY", "true")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("EMBED_ENABLED", "false")
	t.Setenv("DISABLE_RATE_LIMIT", "true")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestApp_EndToEnd(t *testing.T) {
	cfg := loadTestConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	if a.bus == nil {
		t.Fatal("event bus not built")
	}
	busDone := make(chan error, 1)
	go func() { busDone <- a.bus.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !a.bus.Running() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !a.bus.Running() {
		t.Fatal("event bus did not start")
	}

	srv := a.server.Handler

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"health", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"feedback", http.MethodPost, "/api/v1/users/alice/feedback", `{"candidate":"work:1","action":"click"}`, http.StatusCreated},
		{"recommendations", http.MethodGet, "/api/v1/users/alice/recommendations", "", http.StatusOK},
		{"search", http.MethodGet, "/api/v1/search?q=dragons", "", http.StatusOK},
		{"clear profile", http.MethodDelete, "/api/v1/users/alice/profile", "", http.StatusOK},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
		if w.Code != tt.status {
			t.Errorf("%s: status = %d, want %d: %s", tt.name, w.Code, tt.status, w.Body.String())
		}
	}

	cancel()
	select {
	case <-busDone:
	case <-time.After(5 * time.Second):
		t.Error("event bus did not stop")
	}
}

func TestNewApp_SeedFileMissing(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Catalog.SeedFile = filepath.Join(t.TempDir(), "nope.jsonl")

	if _, err := newApp(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing seed file")
	}
}
