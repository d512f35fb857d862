// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package validation

// SearchParams are the query parameters of GET /api/v1/search.
type SearchParams struct {
	Query    string   `json:"q" validate:"required_without_all=Tags,max=512"`
	Tags     []string `json:"tags" validate:"max=32,dive,tag"`
	Require  []string `json:"require" validate:"max=32,dive,tag"`
	Exclude  []string `json:"exclude" validate:"max=32,dive,tag"`
	Scope    string   `json:"scope" validate:"omitempty,oneof=both library external"`
	Scenario string   `json:"scenario" validate:"omitempty,oneof=plot visual mixed"`
	Limit    int      `json:"limit" validate:"min=0,max=100"`
	Cursor   string   `json:"cursor" validate:"omitempty,max=128,base64rawurl"`
}

// ImageSearchParams are the parameters of POST /api/v1/search/image. The
// image itself is bounded by the handler's body limit.
type ImageSearchParams struct {
	ImageSize int      `json:"image" validate:"gt=0"`
	Query     string   `json:"q" validate:"max=512"`
	Tags      []string `json:"tags" validate:"max=32,dive,tag"`
	Require   []string `json:"require" validate:"max=32,dive,tag"`
	Exclude   []string `json:"exclude" validate:"max=32,dive,tag"`
	Scope     string   `json:"scope" validate:"omitempty,oneof=both library external"`
	Scenario  string   `json:"scenario" validate:"omitempty,oneof=plot visual mixed"`
	Limit     int      `json:"limit" validate:"min=0,max=100"`
	Cursor    string   `json:"cursor" validate:"omitempty,max=128,base64rawurl"`
}

// RecommendParams are the parameters of
// GET /api/v1/users/{user}/recommendations.
type RecommendParams struct {
	User       string   `json:"user" validate:"required,userid"`
	Mode       string   `json:"mode" validate:"omitempty,oneof=balanced explore precise"`
	Depth      int      `json:"depth" validate:"min=0,max=8"`
	Nonce      string   `json:"nonce" validate:"max=64"`
	Cursor     string   `json:"cursor" validate:"omitempty,max=128,base64rawurl"`
	Limit      int      `json:"limit" validate:"min=0,max=100"`
	Strictness *float64 `json:"strictness" validate:"omitempty,gte=0,lte=1"`
}

// FeedbackParams is the body of POST /api/v1/users/{user}/feedback.
type FeedbackParams struct {
	User      string  `json:"user" validate:"required,userid"`
	Candidate string  `json:"candidate" validate:"required,identity,max=512"`
	Action    string  `json:"action" validate:"required,oneof=click impression dislike read"`
	Weight    float64 `json:"weight" validate:"gte=0,lte=10"`
}

// UserParams identifies the user of a profile route.
type UserParams struct {
	User string `json:"user" validate:"required,userid"`
}
