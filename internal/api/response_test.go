// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func TestResponseWriter_Success(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	NewResponseWriter(w, r).Success(map[string]string{"message": "hello"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var response APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !response.Success {
		t.Error("Expected Success to be true")
	}
	if response.Error != nil {
		t.Error("Expected Error to be nil")
	}
	if response.Meta == nil || response.Meta.Timestamp.IsZero() {
		t.Error("Expected Meta with a timestamp")
	}
}

func TestResponseWriter_SuccessWithPagination(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	NewResponseWriter(w, r).SuccessWithPagination([]string{"a", "b"}, &PaginationMeta{
		Count:      2,
		HasMore:    true,
		NextCursor: "next",
	})

	var response APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	p := response.Meta.Pagination
	if p == nil || p.Count != 2 || !p.HasMore || p.NextCursor != "next" {
		t.Errorf("pagination = %+v", p)
	}
}

func TestResponseWriter_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		write  func(rw *ResponseWriter)
		status int
		code   string
	}{
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("bad") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"validation", func(rw *ResponseWriter) { rw.ValidationError("invalid", nil) }, http.StatusBadRequest, ErrCodeValidationFailed},
		{"not found", func(rw *ResponseWriter) { rw.NotFound("missing") }, http.StatusNotFound, ErrCodeNotFound},
		{"too many", func(rw *ResponseWriter) { rw.TooManyRequests("slow down") }, http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{"internal", func(rw *ResponseWriter) { rw.InternalError("oops") }, http.StatusInternalServerError, ErrCodeInternalError},
		{"unavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable("down") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/test", nil)
			tt.write(NewResponseWriter(w, r))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var response APIResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if response.Success {
				t.Error("Expected Success to be false")
			}
			if response.Error == nil || response.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", response.Error, tt.code)
			}
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/x?tags=a,%20b&tags=c&tags=&n=7&bad=x&f=0.5", nil)
	q := r.URL.Query()

	if got := queryList(q, "tags"); len(got) != 3 || got[1] != "b" {
		t.Errorf("queryList = %v", got)
	}
	if n, err := queryInt(q, "n"); err != nil || n != 7 {
		t.Errorf("queryInt = %d, %v", n, err)
	}
	if n, err := queryInt(q, "missing"); err != nil || n != 0 {
		t.Errorf("queryInt(missing) = %d, %v", n, err)
	}
	if _, err := queryInt(q, "bad"); err == nil {
		t.Error("expected error for non-integer")
	}
	if f, err := queryFloat(q, "f"); err != nil || f == nil || *f != 0.5 {
		t.Errorf("queryFloat = %v, %v", f, err)
	}
	if f, err := queryFloat(q, "missing"); err != nil || f != nil {
		t.Errorf("queryFloat(missing) = %v, %v", f, err)
	}
}
