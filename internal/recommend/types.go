// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/curio/internal/recommend/feedback"
	"github.com/tomtom215/curio/internal/recommend/profile"
)

// Kind distinguishes the two candidate variants.
type Kind string

const (
	// KindWork is an item owned in the library.
	KindWork Kind = "work"
	// KindExternal is an externally discovered entry.
	KindExternal Kind = "external"
)

// WorkIdentity returns the identity of a library work.
func WorkIdentity(id string) string {
	return string(KindWork) + ":" + id
}

// ExternalIdentity returns the identity of an external entry.
func ExternalIdentity(source, token string) string {
	return string(KindExternal) + ":" + source + ":" + token
}

// KindOf returns the variant encoded in an identity, or "" if unknown.
func KindOf(identity string) Kind {
	switch {
	case strings.HasPrefix(identity, string(KindWork)+":"):
		return KindWork
	case strings.HasPrefix(identity, string(KindExternal)+":"):
		return KindExternal
	default:
		return ""
	}
}

// CandidateItem is a read-only snapshot of a catalog item.
//
// Work is set for KindWork, External for KindExternal.
type CandidateItem struct {
	Kind        Kind      `json:"kind"`
	Identity    string    `json:"identity"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags,omitempty"`
	Description []float32 `json:"-"`
	Visual      []float32 `json:"-"`
	Interior    []float32 `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`

	Work     *WorkDetails     `json:"work,omitempty"`
	External *ExternalDetails `json:"external,omitempty"`
}

// WorkDetails holds library-only attributes.
type WorkDetails struct {
	ID string `json:"id"`
	// SourceRefs are the identities of the external entries this work was
	// imported from.
	SourceRefs []string `json:"source_refs,omitempty"`
}

// ExternalDetails holds external-catalog attributes.
type ExternalDetails struct {
	Source string `json:"source"`
	Token  string `json:"token"`
	URL    string `json:"url,omitempty"`
}

// Sample converts the item into an activity sample.
func (c *CandidateItem) Sample() profile.Sample {
	return profile.Sample{Tags: c.Tags, Visual: c.Visual}
}

// Vectors returns the embedding sources used for the feedback profile.
func (c *CandidateItem) Vectors() feedback.ItemVectors {
	return feedback.ItemVectors{Cover: c.Visual, Interior: c.Interior}
}

// Mode adjusts strictness and the cutoff filter.
type Mode string

const (
	ModeBalanced Mode = "balanced"
	ModeExplore  Mode = "explore"
	ModePrecise  Mode = "precise"
)

// ParseMode converts a string to a Mode. Empty selects ModeBalanced.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeBalanced, nil
	case ModeBalanced, ModeExplore, ModePrecise:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
	}
}

// Scope selects which catalogs participate.
type Scope string

const (
	ScopeBoth     Scope = "both"
	ScopeLibrary  Scope = "library"
	ScopeExternal Scope = "external"
)

// ParseScope converts a string to a Scope. Empty selects ScopeBoth.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScopeBoth, nil
	case ScopeBoth, ScopeLibrary, ScopeExternal:
		return sc, nil
	default:
		return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, s)
	}
}

// Catalogs lists the catalogs the scope covers.
func (s Scope) Catalogs() []Catalog {
	switch s {
	case ScopeLibrary:
		return []Catalog{CatalogLibrary}
	case ScopeExternal:
		return []Catalog{CatalogExternal}
	default:
		return []Catalog{CatalogLibrary, CatalogExternal}
	}
}

// Includes reports whether items of kind k are in scope.
func (s Scope) Includes(k Kind) bool {
	for _, c := range s.Catalogs() {
		if c.Kind() == k {
			return true
		}
	}
	return false
}

// Catalog is one searchable item collection.
type Catalog string

const (
	CatalogLibrary  Catalog = "library"
	CatalogExternal Catalog = "external"
)

// Kind returns the item variant stored in the catalog.
func (c Catalog) Kind() Kind {
	if c == CatalogLibrary {
		return KindWork
	}
	return KindExternal
}

// Scenario picks the channel weight table for search.
type Scenario string

const (
	ScenarioPlot   Scenario = "plot"
	ScenarioVisual Scenario = "visual"
	ScenarioMixed  Scenario = "mixed"
)

// ParseScenario converts a string to a Scenario. Empty selects ScenarioMixed.
func ParseScenario(s string) (Scenario, error) {
	switch sc := Scenario(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScenarioMixed, nil
	case ScenarioPlot, ScenarioVisual, ScenarioMixed:
		return sc, nil
	default:
		return "", fmt.Errorf("%w: unknown scenario %q", ErrInvalidInput, s)
	}
}

// ScoredCandidate is a candidate with its score breakdown.
type ScoredCandidate struct {
	Item            CandidateItem `json:"item"`
	TagScore        float64       `json:"tag_score"`
	VisualScore     float64       `json:"visual_score"`
	ProfileScore    float64       `json:"profile_score"`
	TouchCount      int           `json:"touch_count"`
	ImpressionCount int           `json:"impression_count"`
	DislikeCount    int           `json:"dislike_count"`
	ReadCount       int           `json:"read_count"`
	FinalScore      float64       `json:"final_score"`
}

// SearchHit is a fused search result.
type SearchHit struct {
	Item     CandidateItem `json:"item"`
	Score    float64       `json:"score"`
	Channels []string      `json:"channels"`
}

// RecommendRequest asks for a page of recommendations.
type RecommendRequest struct {
	User  string
	Mode  Mode
	Depth int
	// Nonce enables deterministic jitter when non-empty.
	Nonce  string
	Cursor string
	Limit  int
	// Strictness overrides the configured strictness when set.
	Strictness *float64
}

// RecommendResponse is a page of recommendations.
type RecommendResponse struct {
	Items      []ScoredCandidate `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
	Meta       Meta              `json:"meta"`
}

// SearchRequest is an explicit query. At least one of Query, Image or Tags
// must be set.
type SearchRequest struct {
	Query string
	Image []byte
	// Tags feed the tag-overlap channel. When empty, query words are used.
	Tags        []string
	RequireTags []string
	ExcludeTags []string
	Scope       Scope
	Scenario    Scenario
	Limit       int
	Cursor      string
}

// SearchResponse is a page of fused search results.
type SearchResponse struct {
	Items      []SearchHit `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
	Meta       Meta        `json:"meta"`
}

// FeedbackRequest records one feedback event.
type FeedbackRequest struct {
	User      string
	Candidate string
	Action    feedback.Action
	// Weight defaults to 1 when zero.
	Weight    float64
	Timestamp time.Time
}

// FeedbackResult describes what happened to a recorded event.
type FeedbackResult struct {
	Revision string `json:"revision"`
	// Profile is "applied", "queued" or "pending_retry".
	Profile string `json:"profile"`
}

// Profile update outcomes.
const (
	ProfileApplied      = "applied"
	ProfileQueued       = "queued"
	ProfilePendingRetry = "pending_retry"
)

// Meta.Weights keys of a recommendation: the renormalized tag and visual
// weights and the additive profile bonus.
const (
	WeightTag     = "tag"
	WeightVisual  = "visual"
	WeightProfile = "profile"
)

// Meta carries debugging detail about how a result was produced.
type Meta struct {
	Reason        Reason             `json:"reason"`
	CacheHit      bool               `json:"cache_hit"`
	Revision      string             `json:"revision,omitempty"`
	ProfileSource profile.Source     `json:"profile_source,omitempty"`
	Mode          Mode               `json:"mode,omitempty"`
	Depth         int                `json:"depth,omitempty"`
	Strictness    float64            `json:"strictness,omitempty"`
	Scenario      Scenario           `json:"scenario,omitempty"`
	Scope         Scope              `json:"scope,omitempty"`
	Channels      map[string]int     `json:"channels,omitempty"`
	Weights       map[string]float64 `json:"weights,omitempty"`
	Unavailable   []string           `json:"unavailable,omitempty"`
	Exclusions    map[string]int     `json:"exclusions,omitempty"`
	Candidates    int                `json:"candidates"`
	Total         int                `json:"total"`
	BuiltAt       time.Time          `json:"built_at"`
}
