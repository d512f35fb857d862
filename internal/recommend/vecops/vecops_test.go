// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package vecops

import (
	"math"
	"testing"
)

const eps = 1e-6

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      []float32
		wantNil bool
	}{
		{"unit stays unit", []float32{1, 0, 0}, false},
		{"scaled", []float32{3, 4}, false},
		{"negative components", []float32{-2, 2, -1}, false},
		{"empty", nil, true},
		{"zero vector", []float32{0, 0, 0}, true},
		{"nan", []float32{float32(math.NaN()), 1}, true},
		{"inf", []float32{float32(math.Inf(1)), 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize(tt.in)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("Normalize(%v) = %v, want nil", tt.in, got)
				}
				return
			}
			if n := Norm(got); math.Abs(n-1) > eps {
				t.Errorf("norm = %v, want 1", n)
			}
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	in := []float32{3, 4}
	_ = Normalize(in)
	if in[0] != 3 || in[1] != 4 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestDistance(t *testing.T) {
	t.Parallel()

	d, ok := Distance([]float32{0, 0}, []float32{3, 4})
	if !ok || math.Abs(d-5) > eps {
		t.Errorf("Distance = (%v, %v), want (5, true)", d, ok)
	}

	if _, ok := Distance([]float32{1, 2}, []float32{1, 2, 3}); ok {
		t.Error("Distance with mismatched dimensions should not be ok")
	}
	if _, ok := Distance(nil, nil); ok {
		t.Error("Distance of empty vectors should not be ok")
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   []float32
		want   float64
		wantOK bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1, true},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1, true},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, true},
		{"scale invariant", []float32{1, 1}, []float32{5, 5}, 1, true},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0, false},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Cosine(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > eps {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProject(t *testing.T) {
	t.Parallel()

	truncated := Project([]float32{1, 2, 3, 4}, 2)
	if len(truncated) != 2 || truncated[0] != 1 || truncated[1] != 2 {
		t.Errorf("truncate = %v, want [1 2]", truncated)
	}

	padded := Project([]float32{1, 2}, 4)
	if len(padded) != 4 || padded[2] != 0 || padded[3] != 0 {
		t.Errorf("pad = %v, want [1 2 0 0]", padded)
	}

	if Project([]float32{1}, 0) != nil {
		t.Error("Project to width 0 should return nil")
	}
}

func TestMix(t *testing.T) {
	t.Parallel()

	cover := []float32{1, 0, 0}
	interior := []float32{0, 1}

	t.Run("both sources weighted", func(t *testing.T) {
		got := Mix(cover, interior, 4)
		if len(got) != 4 {
			t.Fatalf("len = %d, want 4", len(got))
		}
		if math.Abs(Norm(got)-1) > eps {
			t.Errorf("norm = %v, want 1", Norm(got))
		}
		// 0.6 and 0.4 before normalization keep their ratio.
		ratio := float64(got[0]) / float64(got[1])
		if math.Abs(ratio-1.5) > 1e-5 {
			t.Errorf("cover/interior ratio = %v, want 1.5", ratio)
		}
	})

	t.Run("missing interior skipped", func(t *testing.T) {
		got := Mix(cover, nil, 4)
		if got[0] != 1 || got[1] != 0 {
			t.Errorf("Mix(cover, nil) = %v, want unit cover", got)
		}
	})

	t.Run("missing cover skipped", func(t *testing.T) {
		got := Mix(nil, interior, 4)
		if got[1] != 1 {
			t.Errorf("Mix(nil, interior) = %v, want unit interior", got)
		}
	})

	t.Run("neither source", func(t *testing.T) {
		if got := Mix(nil, []float32{}, 4); got != nil {
			t.Errorf("Mix(nil, empty) = %v, want nil", got)
		}
	})

	t.Run("malformed cover treated as missing", func(t *testing.T) {
		got := Mix([]float32{float32(math.NaN())}, interior, 4)
		if got == nil || got[1] != 1 {
			t.Errorf("Mix(nan, interior) = %v, want unit interior", got)
		}
	})
}

func TestAddScaled(t *testing.T) {
	t.Parallel()
	dst := []float32{1, 1, 1}
	AddScaled(dst, []float32{2, 4}, 0.5)
	want := []float32{2, 3, 1}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}
}
