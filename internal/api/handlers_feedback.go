// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/recommend/feedback"
	"github.com/tomtom215/curio/internal/validation"
)

// feedbackBody is the JSON body of POST /api/v1/users/{user}/feedback.
type feedbackBody struct {
	Candidate string     `json:"candidate"`
	Action    string     `json:"action"`
	Weight    float64    `json:"weight"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Feedback handles POST /api/v1/users/{user}/feedback.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body too large")
			return
		}
		rw.BadRequest("Failed to read request body")
		return
	}
	var body feedbackBody
	if err := json.Unmarshal(raw, &body); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}

	params := validation.FeedbackParams{
		User:      strings.TrimSpace(chi.URLParam(r, "user")),
		Candidate: strings.TrimSpace(body.Candidate),
		Action:    strings.ToLower(strings.TrimSpace(body.Action)),
		Weight:    body.Weight,
	}
	if verr := validation.ValidateStruct(&params); verr != nil {
		respondValidation(rw, verr)
		return
	}

	req := recommend.FeedbackRequest{
		User:      params.User,
		Candidate: params.Candidate,
		Action:    feedback.Action(params.Action),
		Weight:    params.Weight,
	}
	if body.Timestamp != nil {
		req.Timestamp = body.Timestamp.UTC()
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	result, err := h.service.RecordFeedback(ctx, req)
	if err != nil {
		h.respondServiceError(rw, r, "feedback", err)
		return
	}
	rw.Created(result)
}

// ClearProfile handles DELETE /api/v1/users/{user}/profile.
func (h *Handler) ClearProfile(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	params := validation.UserParams{User: strings.TrimSpace(chi.URLParam(r, "user"))}
	if verr := validation.ValidateStruct(&params); verr != nil {
		respondValidation(rw, verr)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.service.ClearProfile(ctx, params.User); err != nil {
		h.respondServiceError(rw, r, "clear_profile", err)
		return
	}
	rw.Success(map[string]interface{}{
		"user":    params.User,
		"cleared": true,
	})
}
