package covertree

import (
	"math"
	"testing"
)

// TestNewDistance tests distance factory behavior for all kinds
func TestNewDistance(t *testing.T) {
	tests := []struct {
		name    string
		kind    DistanceKind
		wantErr bool
	}{
		{name: "euclidean", kind: Euclidean, wantErr: false},
		{name: "manhattan", kind: Manhattan, wantErr: false},
		{name: "cosine", kind: Cosine, wantErr: false},
		{name: "unknown kind", kind: DistanceKind("chebyshev"), wantErr: true},
		{name: "empty kind", kind: DistanceKind(""), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDistance(tt.kind)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewDistance(%q) error = %v, wantErr %v", tt.kind, err, tt.wantErr)
			}
			if !tt.wantErr && d.Kind() != tt.kind {
				t.Errorf("Kind() = %q, want %q", d.Kind(), tt.kind)
			}
		})
	}
}

// TestDistanceCalculate checks known distance values
func TestDistanceCalculate(t *testing.T) {
	tests := []struct {
		name string
		kind DistanceKind
		a    []float32
		b    []float32
		want float32
	}{
		{
			name: "euclidean 3-4-5 triangle",
			kind: Euclidean,
			a:    []float32{0, 0},
			b:    []float32{3, 4},
			want: 5,
		},
		{
			name: "euclidean identical points",
			kind: Euclidean,
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 0,
		},
		{
			name: "manhattan",
			kind: Manhattan,
			a:    []float32{1, 2, 3},
			b:    []float32{4, 0, 3},
			want: 5,
		},
		{
			name: "cosine orthogonal",
			kind: Cosine,
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 1,
		},
		{
			name: "cosine identical direction",
			kind: Cosine,
			a:    []float32{2, 2},
			b:    []float32{4, 4},
			want: 0,
		},
		{
			name: "cosine zero vector",
			kind: Cosine,
			a:    []float32{0, 0},
			b:    []float32{1, 1},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDistance(tt.kind)
			if err != nil {
				t.Fatalf("NewDistance(%q) error = %v", tt.kind, err)
			}
			got := d.Calculate(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-5 {
				t.Errorf("Calculate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestDistanceMetricAxioms spot-checks non-negativity and symmetry for the
// true metrics over a fixed set of vectors.
func TestDistanceMetricAxioms(t *testing.T) {
	vectors := [][]float32{
		{0, 0, 0},
		{1, -2, 3},
		{-4, 5, -6},
		{0.5, 0.5, 0.5},
	}
	for _, kind := range []DistanceKind{Euclidean, Manhattan} {
		d, err := NewDistance(kind)
		if err != nil {
			t.Fatalf("NewDistance(%q) error = %v", kind, err)
		}
		for i, a := range vectors {
			for j, b := range vectors {
				ab := d.Calculate(a, b)
				ba := d.Calculate(b, a)
				if ab < 0 {
					t.Errorf("%s: Calculate(v%d, v%d) = %v, want non-negative", kind, i, j, ab)
				}
				if ab != ba {
					t.Errorf("%s: asymmetric distance %v vs %v", kind, ab, ba)
				}
				if i == j && ab != 0 {
					t.Errorf("%s: Calculate(v%d, v%d) = %v, want 0", kind, i, j, ab)
				}
				// triangle inequality against every third vector
				for _, c := range vectors {
					if ac, cb := d.Calculate(a, c), d.Calculate(c, b); ab > ac+cb+1e-5 {
						t.Errorf("%s: triangle inequality violated: %v > %v + %v", kind, ab, ac, cb)
					}
				}
			}
		}
	}
}
