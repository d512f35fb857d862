// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/validation"
)

// Recommendations handles GET /api/v1/users/{user}/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	depth, err := queryInt(q, "depth")
	if err != nil {
		rw.ValidationError(err.Error(), map[string]interface{}{"field": "depth"})
		return
	}
	limit, err := queryInt(q, "limit")
	if err != nil {
		rw.ValidationError(err.Error(), map[string]interface{}{"field": "limit"})
		return
	}
	strictness, err := queryFloat(q, "strictness")
	if err != nil {
		rw.ValidationError(err.Error(), map[string]interface{}{"field": "strictness"})
		return
	}

	params := validation.RecommendParams{
		User:       strings.TrimSpace(chi.URLParam(r, "user")),
		Mode:       strings.ToLower(strings.TrimSpace(q.Get("mode"))),
		Depth:      depth,
		Nonce:      q.Get("nonce"),
		Cursor:     q.Get("cursor"),
		Limit:      limit,
		Strictness: strictness,
	}
	if verr := validation.ValidateStruct(&params); verr != nil {
		respondValidation(rw, verr)
		return
	}

	mode, err := recommend.ParseMode(params.Mode)
	if err != nil {
		rw.ValidationError(err.Error(), nil)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	resp, err := h.service.Recommend(ctx, recommend.RecommendRequest{
		User:       params.User,
		Mode:       mode,
		Depth:      params.Depth,
		Nonce:      params.Nonce,
		Cursor:     params.Cursor,
		Limit:      params.Limit,
		Strictness: params.Strictness,
	})
	if err != nil {
		h.respondServiceError(rw, r, "recommend", err)
		return
	}

	rw.SuccessWithPagination(resp, &PaginationMeta{
		Count:      len(resp.Items),
		HasMore:    resp.HasMore,
		NextCursor: resp.NextCursor,
	})
}
