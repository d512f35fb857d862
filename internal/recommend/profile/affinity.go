// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

// Package profile builds the short-lived, activity-derived parts of a user
// profile: the tag affinity map and the visual cluster centroids. Both
// builders are pure and deterministic for a given input order; Provider adds
// retrieval and TTL caching on top.
package profile

import (
	"math"
	"strings"
)

// Sample is one activity record reduced to what the builders consume.
type Sample struct {
	Tags   []string  `json:"tags"`
	Visual []float32 `json:"visual,omitempty"`
}

// TagAffinity maps tags to a preference score in [floor, 1].
type TagAffinity struct {
	scores map[string]float64
	floor  float64
}

// NormalizeTag canonicalizes a tag for counting and lookup.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// BuildTagAffinity counts in how many samples each tag occurs and scores it
// as ln(1+f)/ln(1+maxf). Scores never drop below floor; tags that were never
// seen resolve to floor on lookup.
func BuildTagAffinity(samples []Sample, floor float64) *TagAffinity {
	freq := make(map[string]int)
	maxFreq := 0

	for _, s := range samples {
		seen := make(map[string]struct{}, len(s.Tags))
		for _, raw := range s.Tags {
			tag := NormalizeTag(raw)
			if tag == "" {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			freq[tag]++
			if freq[tag] > maxFreq {
				maxFreq = freq[tag]
			}
		}
	}

	p := &TagAffinity{scores: make(map[string]float64, len(freq)), floor: floor}
	if maxFreq == 0 {
		return p
	}

	denom := math.Log1p(float64(maxFreq))
	for tag, f := range freq {
		score := math.Log1p(float64(f)) / denom
		if score < floor {
			score = floor
		}
		p.scores[tag] = score
	}
	return p
}

// Score returns the affinity of a single tag.
func (p *TagAffinity) Score(tag string) float64 {
	if p == nil {
		return 0
	}
	if s, ok := p.scores[NormalizeTag(tag)]; ok {
		return s
	}
	return p.floor
}

// Mean returns the average affinity over tags, or floor for an untagged item.
func (p *TagAffinity) Mean(tags []string) float64 {
	if p == nil {
		return 0
	}
	if len(tags) == 0 {
		return p.floor
	}
	var sum float64
	for _, t := range tags {
		sum += p.Score(t)
	}
	return sum / float64(len(tags))
}

// Floor returns the score assigned to unseen tags.
func (p *TagAffinity) Floor() float64 {
	if p == nil {
		return 0
	}
	return p.floor
}

// Len returns the number of distinct tags seen.
func (p *TagAffinity) Len() int {
	if p == nil {
		return 0
	}
	return len(p.scores)
}

// Scores returns a copy of the tag scores.
func (p *TagAffinity) Scores() map[string]float64 {
	out := make(map[string]float64, p.Len())
	if p == nil {
		return out
	}
	for k, v := range p.scores {
		out[k] = v
	}
	return out
}
