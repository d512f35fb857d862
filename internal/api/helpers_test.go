// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/curio/internal/recommend"
)

// fakeService records requests and returns canned results.
type fakeService struct {
	mu sync.Mutex

	recommendReq *recommend.RecommendRequest
	searchReq    *recommend.SearchRequest
	feedbackReq  *recommend.FeedbackRequest
	clearedUser  string

	recommendResp *recommend.RecommendResponse
	searchResp    *recommend.SearchResponse
	err           error
}

func (f *fakeService) Recommend(_ context.Context, req recommend.RecommendRequest) (*recommend.RecommendResponse, error) { //nolint:gocritic // test fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recommendReq = &req
	if f.err != nil {
		return nil, f.err
	}
	if f.recommendResp != nil {
		return f.recommendResp, nil
	}
	return &recommend.RecommendResponse{Items: []recommend.ScoredCandidate{}, Meta: recommend.Meta{Reason: recommend.ReasonNoCandidates}}, nil
}

func (f *fakeService) Search(_ context.Context, req recommend.SearchRequest) (*recommend.SearchResponse, error) { //nolint:gocritic // test fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchReq = &req
	if f.err != nil {
		return nil, f.err
	}
	if f.searchResp != nil {
		return f.searchResp, nil
	}
	return &recommend.SearchResponse{Items: []recommend.SearchHit{}, Meta: recommend.Meta{Reason: recommend.ReasonNoCandidates}}, nil
}

func (f *fakeService) RecordFeedback(_ context.Context, req recommend.FeedbackRequest) (*recommend.FeedbackResult, error) { //nolint:gocritic // test fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbackReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return &recommend.FeedbackResult{Revision: "rev-1", Profile: recommend.ProfileApplied}, nil
}

func (f *fakeService) ClearProfile(_ context.Context, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearedUser = user
	return f.err
}

// testEnvelope mirrors APIResponse with raw data for per-test decoding.
type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func newTestServer(t *testing.T, svc RankingService) http.Handler {
	t.Helper()
	h := NewHandler(svc, HandlerConfig{MaxImageBytes: 1024, MaxBodyBytes: 1024}, zerolog.Nop())
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	return NewRouter(h, cfg, zerolog.Nop()).Setup()
}

func serve(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env testEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to unmarshal response %q: %v", w.Body.String(), err)
	}
	return w, env
}
