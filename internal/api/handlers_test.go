// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/recommend/feedback"
)

func TestSearch_BuildsRequest(t *testing.T) {
	t.Parallel()

	svc := &fakeService{searchResp: &recommend.SearchResponse{
		Items:      []recommend.SearchHit{{Score: 0.5, Channels: []string{"semantic"}}},
		NextCursor: "abc",
		HasMore:    true,
		Meta:       recommend.Meta{Reason: recommend.ReasonOK},
	}}
	srv := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/search?q=space+opera&tags=scifi,drama&tags=war&require=scifi&exclude=horror&scope=library&scenario=plot&limit=5", nil)
	w, env := serve(t, srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !env.Success {
		t.Error("expected success")
	}
	if env.Meta.Pagination == nil || env.Meta.Pagination.Count != 1 || !env.Meta.Pagination.HasMore || env.Meta.Pagination.NextCursor != "abc" {
		t.Errorf("pagination = %+v", env.Meta.Pagination)
	}

	got := svc.searchReq
	if got == nil {
		t.Fatal("service not called")
	}
	if got.Query != "space opera" {
		t.Errorf("Query = %q", got.Query)
	}
	if len(got.Tags) != 3 || got.Tags[2] != "war" {
		t.Errorf("Tags = %v", got.Tags)
	}
	if got.Scope != recommend.ScopeLibrary || got.Scenario != recommend.ScenarioPlot {
		t.Errorf("Scope/Scenario = %s/%s", got.Scope, got.Scenario)
	}
	if got.Limit != 5 || got.Image != nil {
		t.Errorf("Limit = %d, Image = %v", got.Limit, got.Image)
	}
}

func TestSearch_Defaults(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	srv := newTestServer(t, svc)

	w, _ := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/search?tags=scifi", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if svc.searchReq.Scope != recommend.ScopeBoth || svc.searchReq.Scenario != recommend.ScenarioMixed {
		t.Errorf("defaults = %s/%s", svc.searchReq.Scope, svc.searchReq.Scenario)
	}
}

func TestSearch_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
	}{
		{"no query or tags", ""},
		{"non-integer limit", "q=a&limit=ten"},
		{"limit too large", "q=a&limit=1000"},
		{"bad scope", "q=a&scope=everything"},
		{"bad scenario", "q=a&scenario=audio"},
		{"bad cursor", "q=a&cursor=***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeService{}
			srv := newTestServer(t, svc)

			w, env := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/search?"+tt.query, nil))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
				t.Errorf("error = %+v, want VALIDATION_FAILED", env.Error)
			}
			if svc.searchReq != nil {
				t.Error("service should not be called")
			}
		})
	}
}

func TestSearch_ServiceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid input", fmt.Errorf("%w: bad", recommend.ErrInvalidInput), http.StatusBadRequest, ErrCodeValidationFailed},
		{"dependency", recommend.ErrDependencyUnavailable, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(t, &fakeService{err: tt.err})

			w, env := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=x", nil))
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
}

func TestSearchImage_RawBody(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	srv := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/image?scenario=visual", bytes.NewReader([]byte{0x89, 'P', 'N', 'G'}))
	req.Header.Set("Content-Type", "image/png")
	w, _ := serve(t, srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if len(svc.searchReq.Image) != 4 || svc.searchReq.Scenario != recommend.ScenarioVisual {
		t.Errorf("request = %+v", svc.searchReq)
	}
}

func TestSearchImage_Multipart(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	srv := newTestServer(t, svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "cover.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("jpegbytes")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, _ := serve(t, srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if string(svc.searchReq.Image) != "jpegbytes" {
		t.Errorf("Image = %q", svc.searchReq.Image)
	}
}

func TestSearchImage_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   []byte
		status int
		code   string
	}{
		{"empty body", nil, http.StatusBadRequest, ErrCodeValidationFailed},
		{"too large", bytes.Repeat([]byte{1}, 2048), http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeService{}
			srv := newTestServer(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/search/image", bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/octet-stream")
			w, env := serve(t, srv, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
			if svc.searchReq != nil {
				t.Error("service should not be called")
			}
		})
	}
}

func TestRecommendations_BuildsRequest(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	srv := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/users/alice/recommendations?mode=Explore&depth=2&nonce=n1&limit=10&strictness=0.25", nil)
	w, env := serve(t, srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var data recommend.RecommendResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Meta.Reason != recommend.ReasonNoCandidates {
		t.Errorf("reason = %s", data.Meta.Reason)
	}

	got := svc.recommendReq
	if got.User != "alice" || got.Mode != recommend.ModeExplore || got.Depth != 2 || got.Nonce != "n1" || got.Limit != 10 {
		t.Errorf("request = %+v", got)
	}
	if got.Strictness == nil || *got.Strictness != 0.25 {
		t.Errorf("Strictness = %v", got.Strictness)
	}
}

func TestRecommendations_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{"bad mode", "/api/v1/users/alice/recommendations?mode=wild"},
		{"depth too large", "/api/v1/users/alice/recommendations?depth=99"},
		{"non-integer depth", "/api/v1/users/alice/recommendations?depth=deep"},
		{"strictness out of range", "/api/v1/users/alice/recommendations?strictness=1.5"},
		{"non-numeric strictness", "/api/v1/users/alice/recommendations?strictness=high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeService{}
			srv := newTestServer(t, svc)

			w, env := serve(t, srv, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
				t.Errorf("error = %+v", env.Error)
			}
			if svc.recommendReq != nil {
				t.Error("service should not be called")
			}
		})
	}
}

func TestFeedback_Created(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	srv := newTestServer(t, svc)

	body := `{"candidate":"work:42","action":"Click","weight":2,"timestamp":"2026-01-02T03:04:05Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/alice/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w, env := serve(t, srv, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var result recommend.FeedbackResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Revision != "rev-1" || result.Profile != recommend.ProfileApplied {
		t.Errorf("result = %+v", result)
	}

	got := svc.feedbackReq
	if got.User != "alice" || got.Candidate != "work:42" || got.Action != feedback.ActionClick || got.Weight != 2 {
		t.Errorf("request = %+v", got)
	}
	if got.Timestamp.Year() != 2026 {
		t.Errorf("Timestamp = %v", got.Timestamp)
	}
}

func TestFeedback_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"candidate":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown action", `{"candidate":"work:1","action":"share"}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"bad identity", `{"candidate":"42","action":"click"}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"weight too large", `{"candidate":"work:1","action":"click","weight":11}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"body too large", `{"candidate":"work:1","action":"click","pad":"` + strings.Repeat("x", 2048) + `"}`, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeService{}
			srv := newTestServer(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/alice/feedback", strings.NewReader(tt.body))
			w, env := serve(t, srv, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
			if svc.feedbackReq != nil {
				t.Error("service should not be called")
			}
		})
	}
}

func TestFeedback_DependencyUnavailable(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeService{err: fmt.Errorf("%w: badger closed", recommend.ErrDependencyUnavailable)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/alice/feedback", strings.NewReader(`{"candidate":"work:1","action":"read"}`))
	w, _ := serve(t, srv, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestClearProfile(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	srv := newTestServer(t, svc)

	w, env := serve(t, srv, httptest.NewRequest(http.MethodDelete, "/api/v1/users/bob/profile", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if svc.clearedUser != "bob" {
		t.Errorf("cleared = %q", svc.clearedUser)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["cleared"] != true {
		t.Errorf("data = %v", data)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := NewHandler(&fakeService{}, HandlerConfig{}, zerolog.Nop())
	h.AddHealthCheck("catalog", func(context.Context) error { return nil })

	w, env := serve(t, http.HandlerFunc(h.Health), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != statusHealthy || status.Components["catalog"] != componentUp {
		t.Errorf("status = %+v", status)
	}

	h.AddHealthCheck("events", func(context.Context) error { return errors.New("not running") })
	w, env = serve(t, http.HandlerFunc(h.Health), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestLive(t *testing.T) {
	t.Parallel()

	h := NewHandler(&fakeService{}, HandlerConfig{}, zerolog.Nop())
	h.AddHealthCheck("broken", func(context.Context) error { return errors.New("down") })

	w, _ := serve(t, http.HandlerFunc(h.Live), httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
