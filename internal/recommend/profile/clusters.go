// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package profile

import (
	"sort"

	"github.com/tomtom215/curio/internal/recommend/vecops"
)

// DefaultIterations is the Lloyd iteration budget.
const DefaultIterations = 8

// BuildVisualClusters runs k-means over the visual vectors of an activity
// window and returns at most k centroids.
//
// Inputs larger than maxSample are stride-subsampled (every ceil(n/maxSample)-th
// vector). Malformed vectors are dropped: empty, non-finite, or of a width
// other than the most common one. Seeds are picked at evenly spaced quantiles
// of the component sum, so the result is fully determined by the input.
func BuildVisualClusters(samples [][]float32, k, maxSample, iterations int) [][]float32 {
	if k <= 0 || len(samples) == 0 {
		return nil
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	points := usable(stride(samples, maxSample))
	n := len(points)
	if n == 0 {
		return nil
	}
	if k > n {
		k = n
	}

	centroids := seedQuantiles(points, k)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearest(centroids, p)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recompute(points, assign, centroids)
	}

	return centroids
}

// MinDistance returns the distance from v to the closest centroid.
// ok is false when there are no centroids or no centroid matches v's width.
func MinDistance(centroids [][]float32, v []float32) (float64, bool) {
	best, found := 0.0, false
	for _, c := range centroids {
		d, ok := vecops.Distance(c, v)
		if !ok {
			continue
		}
		if !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}

func stride(samples [][]float32, maxSample int) [][]float32 {
	n := len(samples)
	if maxSample <= 0 || n <= maxSample {
		return samples
	}
	step := (n + maxSample - 1) / maxSample
	out := make([][]float32, 0, maxSample)
	for i := 0; i < n; i += step {
		out = append(out, samples[i])
	}
	return out
}

// usable drops malformed vectors and those whose width differs from the
// dominant width. Ties between widths go to the one seen first.
func usable(samples [][]float32) [][]float32 {
	counts := make(map[int]int)
	var order []int
	for _, s := range samples {
		if !vecops.Valid(s) {
			continue
		}
		if counts[len(s)] == 0 {
			order = append(order, len(s))
		}
		counts[len(s)]++
	}
	if len(order) == 0 {
		return nil
	}

	dim := order[0]
	for _, d := range order[1:] {
		if counts[d] > counts[dim] {
			dim = d
		}
	}

	out := make([][]float32, 0, counts[dim])
	for _, s := range samples {
		if len(s) == dim && vecops.Valid(s) {
			out = append(out, s)
		}
	}
	return out
}

func seedQuantiles(points [][]float32, k int) [][]float32 {
	n := len(points)
	keys := make([]float64, n)
	idx := make([]int, n)
	for i, p := range points {
		var sum float64
		for _, x := range p {
			sum += float64(x)
		}
		keys[i] = sum
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]] < keys[idx[b]]
	})

	centroids := make([][]float32, k)
	for j := 0; j < k; j++ {
		pos := int((float64(j) + 0.5) * float64(n) / float64(k))
		if pos >= n {
			pos = n - 1
		}
		centroids[j] = append([]float32(nil), points[idx[pos]]...)
	}
	return centroids
}

// nearest returns the index of the closest centroid; ties go to the lower index.
func nearest(centroids [][]float32, p []float32) int {
	best, bestDist := 0, -1.0
	for j, c := range centroids {
		d, _ := vecops.Distance(c, p)
		if bestDist < 0 || d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// recompute moves each centroid to the mean of its members. A centroid with
// no members keeps its previous position.
func recompute(points [][]float32, assign []int, prev [][]float32) [][]float32 {
	dim := len(points[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, p := range points {
		c := assign[i]
		counts[c]++
		for d, x := range p {
			sums[c][d] += float64(x)
		}
	}

	out := make([][]float32, len(prev))
	for c := range prev {
		if counts[c] == 0 {
			out[c] = prev[c]
			continue
		}
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32(sums[c][d] / float64(counts[c]))
		}
		out[c] = v
	}
	return out
}
