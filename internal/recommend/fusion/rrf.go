// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

// Package fusion merges independently ranked id lists with weighted
// Reciprocal Rank Fusion.
//
// Only ranks are used. Each channel's internal score magnitude is ignored, so
// channels with incomparable scales (substring match, cosine distance, tag
// frequency) combine on equal footing:
//
//	score(id) = Σ_channels weight(channel) / (k + rank(id, channel))
//
// with 1-based ranks. Channels are visited in name order so that the
// first-seen tie-break is deterministic for a given input.
package fusion

import (
	"sort"
)

// DefaultRRFK is the rank constant used when the caller passes k <= 0.
const DefaultRRFK = 60

// Result is one fused entry.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`

	// Channels lists the channels that contributed to Score, in visit order.
	Channels []string `json:"channels"`
}

// Fuse returns the topN ids ordered by fused score.
func Fuse(channels map[string][]string, weights map[string]float64, rrfK, topN int) []string {
	results := FuseScored(channels, weights, rrfK, topN)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

// FuseScored is Fuse with the accumulated scores and contributing channels.
//
// A channel whose weight is zero, negative or absent is skipped. An id that
// appears more than once in one channel counts only at its first rank. Equal
// scores keep first-seen order.
func FuseScored(channels map[string][]string, weights map[string]float64, rrfK, topN int) []Result {
	if len(channels) == 0 || topN <= 0 {
		return nil
	}
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}

	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]int)
	var acc []Result

	for _, name := range names {
		w := weights[name]
		if w <= 0 {
			continue
		}
		seen := make(map[string]struct{}, len(channels[name]))
		for pos, id := range channels[name] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			contribution := w / float64(rrfK+pos+1)
			if i, ok := index[id]; ok {
				acc[i].Score += contribution
				acc[i].Channels = append(acc[i].Channels, name)
				continue
			}
			index[id] = len(acc)
			acc = append(acc, Result{ID: id, Score: contribution, Channels: []string{name}})
		}
	}

	sort.SliceStable(acc, func(i, j int) bool {
		return acc[i].Score > acc[j].Score
	})

	if len(acc) > topN {
		acc = acc[:topN]
	}
	return acc
}
