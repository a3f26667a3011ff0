package covertree

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"
)

// bruteForceKNN is the oracle: a linear scan over the whole cloud.
func bruteForceKNN(distance Distance, rows [][]float32, query []float32, k int) []Neighbor {
	all := make([]Neighbor, len(rows))
	for i, row := range rows {
		all[i] = Neighbor{Distance: distance.Calculate(query, row), Index: uint32(i)}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance < all[j].Distance
		}
		return all[i].Index < all[j].Index
	})
	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

// TestKNNExactness cross-checks tree search against a linear scan on random
// data, before and after summaries tighten the pruning bounds.
func TestKNNExactness(t *testing.T) {
	tests := []struct {
		name      string
		kind      DistanceKind
		summarize bool
	}{
		{name: "euclidean unsummarized", kind: Euclidean, summarize: false},
		{name: "euclidean summarized", kind: Euclidean, summarize: true},
	}

	rng := rand.New(rand.NewPCG(99, 0))
	rows, _ := clusterData(rng, [][]float32{
		clusterCenter(6, 0),
		clusterCenter(6, 8),
		clusterCenter(6, -5),
	}, 80, 3.0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud, err := NewDensePointCloudFromRows(rows, nil)
			if err != nil {
				t.Fatalf("NewDensePointCloudFromRows() error = %v", err)
			}
			writer, err := NewCoverTreeBuilder().Build(cloud, tt.kind)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if tt.summarize {
				if err := writer.GenerateSummaries(); err != nil {
					t.Fatalf("GenerateSummaries() error = %v", err)
				}
			}
			reader := writer.Reader()
			distance, err := NewDistance(tt.kind)
			if err != nil {
				t.Fatalf("NewDistance() error = %v", err)
			}

			for q := 0; q < 25; q++ {
				query := make([]float32, 6)
				for i := range query {
					query[i] = float32(rng.NormFloat64() * 8)
				}
				k := 1 + rng.IntN(20)

				got, err := reader.KNN(query, k)
				if err != nil {
					t.Fatalf("KNN() error = %v", err)
				}
				want := bruteForceKNN(distance, rows, query, k)
				if len(got) != len(want) {
					t.Fatalf("KNN() returned %d results, want %d", len(got), len(want))
				}
				for i := range got {
					if got[i] != want[i] {
						t.Errorf("query %d result %d = %+v, want %+v", q, i, got[i], want[i])
					}
				}
			}
		})
	}
}

// TestKNNOrdering tests that results come back sorted ascending by distance
func TestKNNOrdering(t *testing.T) {
	rng := rand.New(rand.NewPCG(99, 1))
	rows, labels := clusterData(rng, [][]float32{clusterCenter(4, 0)}, 100, 5.0)
	_, reader := buildTestTree(t, rows, labels)

	results, err := reader.KNN(clusterCenter(4, 1), 30)
	if err != nil {
		t.Fatalf("KNN() error = %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not ascending at %d: %v then %v", i, results[i-1], results[i])
		}
		if results[i].Distance == results[i-1].Distance && results[i].Index < results[i-1].Index {
			t.Errorf("tied distances not index-ordered at %d", i)
		}
	}
}

// TestKNNBoundaries tests k at and beyond the cloud size, and degenerate k
func TestKNNBoundaries(t *testing.T) {
	rows := [][]float32{{0, 0}, {1, 0}, {0, 1}, {3, 3}}
	_, reader := buildTestTree(t, rows, nil)

	results, err := reader.KNN([]float32{0, 0}, 0)
	if err != nil {
		t.Fatalf("KNN(k=0) error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("KNN(k=0) returned %d results, want 0", len(results))
	}

	results, err = reader.KNN([]float32{0, 0}, 100)
	if err != nil {
		t.Fatalf("KNN(k=100) error = %v", err)
	}
	if len(results) != len(rows) {
		t.Errorf("KNN(k=100) returned %d results, want %d", len(results), len(rows))
	}
	seen := make(map[uint32]bool)
	for _, r := range results {
		if seen[r.Index] {
			t.Errorf("duplicate index %d in results", r.Index)
		}
		seen[r.Index] = true
	}

	if _, err := reader.KNN([]float32{0}, 2); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("KNN() short query error = %v, want ErrDimensionMismatch", err)
	}
}
