package covertree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

// TestLoadTreeConfigInline tests a config with inline points
func TestLoadTreeConfigInline(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tree.yaml", `
scale_base: 1.5
leaf_cutoff: 4
min_res_index: -12
use_singletons: false
metric: l1
dim: 2
points:
  - [0, 0]
  - [3, 0]
  - [0, 3]
labels: [1, 2, 3]
`)

	cfg, err := LoadTreeConfig(path)
	if err != nil {
		t.Fatalf("LoadTreeConfig() error = %v", err)
	}
	if cfg.ScaleBase != 1.5 || cfg.LeafCutoff != 4 {
		t.Errorf("parsed builder values = %v, %v, want 1.5, 4", cfg.ScaleBase, cfg.LeafCutoff)
	}
	if cfg.MinResIndex == nil || *cfg.MinResIndex != -12 {
		t.Errorf("parsed min_res_index = %v, want -12", cfg.MinResIndex)
	}
	if cfg.UseSingletons == nil || *cfg.UseSingletons {
		t.Errorf("parsed use_singletons = %v, want false", cfg.UseSingletons)
	}
	if cfg.DistanceKind() != Manhattan {
		t.Errorf("DistanceKind() = %v, want %v", cfg.DistanceKind(), Manhattan)
	}

	cloud, err := cfg.PointCloud()
	if err != nil {
		t.Fatalf("PointCloud() error = %v", err)
	}
	if cloud.Len() != 3 || cloud.Dim() != 2 {
		t.Errorf("cloud is %dx%d, want 3x2", cloud.Len(), cloud.Dim())
	}
	if cloud.LabelAt(2) != 3 {
		t.Errorf("LabelAt(2) = %d, want 3", cloud.LabelAt(2))
	}
}

// TestLoadTreeConfigDefaults tests that omitted fields keep package defaults
func TestLoadTreeConfigDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tree.yaml", `
points:
  - [0, 0]
  - [1, 1]
`)
	cfg, err := LoadTreeConfig(path)
	if err != nil {
		t.Fatalf("LoadTreeConfig() error = %v", err)
	}
	if cfg.DistanceKind() != Euclidean {
		t.Errorf("DistanceKind() = %v, want default %v", cfg.DistanceKind(), Euclidean)
	}
	writer, err := BuildFromYAML(path)
	if err != nil {
		t.Fatalf("BuildFromYAML() error = %v", err)
	}
	if writer.Reader().Len() != 2 {
		t.Errorf("built tree over %d points, want 2", writer.Reader().Len())
	}
}

// TestLoadTreeConfigDataFile tests CSV ingestion resolved relative to the
// config file
func TestLoadTreeConfigDataFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "points.csv", "0,0,0\n5,0,0\n0,5,0\n0,0,5\n")
	path := writeFile(t, dir, "tree.yaml", `
metric: l2
dim: 3
data_file: points.csv
`)

	writer, err := BuildFromYAML(path)
	if err != nil {
		t.Fatalf("BuildFromYAML() error = %v", err)
	}
	reader := writer.Reader()
	if reader.Len() != 4 || reader.Dim() != 3 {
		t.Errorf("built tree is %dx%d, want 4x3", reader.Len(), reader.Dim())
	}
	results, err := reader.KNN([]float32{5, 0, 0}, 1)
	if err != nil {
		t.Fatalf("KNN() error = %v", err)
	}
	if len(results) != 1 || results[0].Index != 1 || results[0].Distance != 0 {
		t.Errorf("KNN() = %v, want exact hit on point 1", results)
	}
}

// TestLoadTreeConfigErrors tests ingestion failure modes
func TestLoadTreeConfigErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadTreeConfig(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("LoadTreeConfig() missing file error = nil")
	}

	bad := writeFile(t, dir, "bad.yaml", "points: {not a list\n")
	if _, err := LoadTreeConfig(bad); err == nil {
		t.Error("LoadTreeConfig() malformed yaml error = nil")
	}

	empty := writeFile(t, dir, "empty.yaml", "metric: l2\n")
	cfg, err := LoadTreeConfig(empty)
	if err != nil {
		t.Fatalf("LoadTreeConfig() error = %v", err)
	}
	if _, err := cfg.PointCloud(); !errors.Is(err, ErrEmptyPointCloud) {
		t.Errorf("PointCloud() with no data error = %v, want ErrEmptyPointCloud", err)
	}

	missing := writeFile(t, dir, "missing-data.yaml", "data_file: nowhere.csv\n")
	if _, err := BuildFromYAML(missing); err == nil {
		t.Error("BuildFromYAML() with missing data file error = nil")
	}

	writeFile(t, dir, "ragged.csv", "1,2\n3\n")
	ragged := writeFile(t, dir, "ragged.yaml", "data_file: ragged.csv\n")
	if _, err := BuildFromYAML(ragged); err == nil {
		t.Error("BuildFromYAML() with ragged csv error = nil")
	}
}
