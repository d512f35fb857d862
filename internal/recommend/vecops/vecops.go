// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

// Package vecops provides dimension-safe vector primitives shared by the
// profile builders, the feedback profile store and the candidate scorer.
//
// Vectors are stored as []float32 (the width embedding services return) and
// all arithmetic is carried out in float64. Functions never mutate their
// inputs unless the name says so (AddScaled).
package vecops

import "math"

// CanonicalDim is the width every embedding is projected to before vectors
// from different sources are compared or combined.
const CanonicalDim = 1024

// Mixing weights for items with two embedding sources.
const (
	CoverWeight    = 0.6
	InteriorWeight = 0.4
)

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		f := float64(x)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Valid reports whether v is non-empty and finite.
func Valid(v []float32) bool {
	return len(v) > 0 && IsFinite(v)
}

// Normalize returns a unit-length copy of v.
// Returns nil when v is empty, non-finite or has zero norm.
func Normalize(v []float32) []float32 {
	if !Valid(v) {
		return nil
	}
	n := Norm(v)
	if n == 0 {
		return nil
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Distance returns the Euclidean distance between a and b.
// ok is false when the dimensions differ or either vector is empty.
func Distance(a, b []float32) (dist float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), true
}

// Cosine returns the cosine similarity of a and b.
// ok is false when the dimensions differ, either vector is empty, or either
// has zero norm.
func Cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// Project returns a copy of v truncated or zero-padded to width.
func Project(v []float32, width int) []float32 {
	if width <= 0 {
		return nil
	}
	out := make([]float32, width)
	copy(out, v)
	return out
}

// Mix builds the canonical vector of an item from its cover and interior
// embeddings: each present source is projected to width, the projections are
// combined as CoverWeight*cover + InteriorWeight*interior, and the result is
// L2-normalized. A missing or malformed source is skipped rather than
// zero-filled. Returns nil when neither source is usable.
func Mix(cover, interior []float32, width int) []float32 {
	coverOK, interiorOK := Valid(cover), Valid(interior)
	switch {
	case coverOK && interiorOK:
		out := make([]float32, width)
		AddScaled(out, Project(cover, width), CoverWeight)
		AddScaled(out, Project(interior, width), InteriorWeight)
		return Normalize(out)
	case coverOK:
		return Normalize(Project(cover, width))
	case interiorOK:
		return Normalize(Project(interior, width))
	default:
		return nil
	}
}

// AddScaled performs dst[i] += scale*src[i] in place over the shared prefix
// of both slices.
func AddScaled(dst, src []float32, scale float64) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] = float32(float64(dst[i]) + scale*float64(src[i]))
	}
}
