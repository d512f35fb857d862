// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/validation"
)

// Search handles GET /api/v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req, ok := parseSearch(rw, r.URL.Query(), nil)
	if !ok {
		return
	}
	h.runSearch(rw, r, req)
}

// SearchImage handles POST /api/v1/search/image. The image is the
// multipart field "image" or, for any other content type, the raw body.
// Filters come from the query string as for Search.
func (h *Handler) SearchImage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	image, err := h.readImage(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
				fmt.Sprintf("image exceeds %d bytes", h.cfg.MaxImageBytes))
			return
		}
		rw.BadRequest(err.Error())
		return
	}

	req, ok := parseSearch(rw, r.URL.Query(), image)
	if !ok {
		return
	}
	h.runSearch(rw, r, req)
}

func (h *Handler) runSearch(rw *ResponseWriter, r *http.Request, req recommend.SearchRequest) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	resp, err := h.service.Search(ctx, req)
	if err != nil {
		h.respondServiceError(rw, r, "search", err)
		return
	}

	rw.SuccessWithPagination(resp, &PaginationMeta{
		Count:      len(resp.Items),
		HasMore:    resp.HasMore,
		NextCursor: resp.NextCursor,
	})
}

// parseSearch validates the query string and builds the engine request.
// It writes the error response itself and reports false on failure.
func parseSearch(rw *ResponseWriter, q url.Values, image []byte) (recommend.SearchRequest, bool) {
	limit, err := queryInt(q, "limit")
	if err != nil {
		rw.ValidationError(err.Error(), map[string]interface{}{"field": "limit"})
		return recommend.SearchRequest{}, false
	}

	query := strings.TrimSpace(q.Get("q"))
	tags := queryList(q, "tags")
	require := queryList(q, "require")
	exclude := queryList(q, "exclude")
	scope := q.Get("scope")
	scenario := q.Get("scenario")
	cursor := q.Get("cursor")

	var verr *validation.RequestValidationError
	if image == nil {
		verr = validation.ValidateStruct(&validation.SearchParams{
			Query: query, Tags: tags, Require: require, Exclude: exclude,
			Scope: scope, Scenario: scenario, Limit: limit, Cursor: cursor,
		})
	} else {
		verr = validation.ValidateStruct(&validation.ImageSearchParams{
			ImageSize: len(image), Query: query, Tags: tags, Require: require, Exclude: exclude,
			Scope: scope, Scenario: scenario, Limit: limit, Cursor: cursor,
		})
	}
	if verr != nil {
		respondValidation(rw, verr)
		return recommend.SearchRequest{}, false
	}

	// Both values passed the oneof check above.
	parsedScope, _ := recommend.ParseScope(scope)          //nolint:errcheck // validated
	parsedScenario, _ := recommend.ParseScenario(scenario) //nolint:errcheck // validated

	return recommend.SearchRequest{
		Query:       query,
		Image:       image,
		Tags:        tags,
		RequireTags: require,
		ExcludeTags: exclude,
		Scope:       parsedScope,
		Scenario:    parsedScenario,
		Limit:       limit,
		Cursor:      cursor,
	}, true
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	// Multipart framing adds a little on top of the image itself.
	limit := h.cfg.MaxImageBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(limit); err != nil {
			return nil, err
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return nil, errors.New("multipart field \"image\" is required")
		}
		defer func() { _ = file.Close() }()
		if header.Size > limit {
			return nil, &http.MaxBytesError{Limit: limit}
		}
		return readAllLimited(file, limit)
	}

	return readAllLimited(r.Body, limit)
}

func readAllLimited(src io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &http.MaxBytesError{Limit: limit}
	}
	if len(data) == 0 {
		return []byte{}, nil
	}
	return data, nil
}
