// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	t.Parallel()

	m := NewChiMiddleware(nil)
	if m == nil || m.config == nil {
		t.Fatal("NewChiMiddleware returned nil config")
	}
	// Origins must be configured explicitly.
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want 86400", m.config.CORSMaxAge)
	}
}

func TestChiMiddleware_RateLimitDisabled(t *testing.T) {
	t.Parallel()

	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
		RateLimitDisabled: true,
	})
	h := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d, want 204", i, w.Code)
		}
	}
}

func TestChiMiddleware_RateLimitCustomKey(t *testing.T) {
	t.Parallel()

	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
		RateLimitKeyFunc: func(r *http.Request) (string, error) {
			return r.Header.Get("X-User"), nil
		},
	})
	h := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	if got := do("a"); got != http.StatusNoContent {
		t.Errorf("first a = %d", got)
	}
	if got := do("b"); got != http.StatusNoContent {
		t.Errorf("first b = %d", got)
	}
	if got := do("a"); got != http.StatusTooManyRequests {
		t.Errorf("second a = %d, want 429", got)
	}
}
