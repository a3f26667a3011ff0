package covertree

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// TreeConfig is a YAML description of a tree: builder parameters, metric,
// and the reference point collection, either inline or in a referenced CSV
// file of float rows.
//
// Example:
//
//	scale_base: 2.0
//	leaf_cutoff: 10
//	min_res_index: -20
//	use_singletons: true
//	metric: l2
//	dim: 8
//	data_file: reference.csv
//	labels: [0, 0, 1, 1]
type TreeConfig struct {
	ScaleBase     float32     `yaml:"scale_base"`
	LeafCutoff    int         `yaml:"leaf_cutoff"`
	MinResIndex   *int32      `yaml:"min_res_index"`
	MaxResIndex   *int32      `yaml:"max_res_index"`
	UseSingletons *bool       `yaml:"use_singletons"`
	Metric        string      `yaml:"metric"`
	Dim           int         `yaml:"dim"`
	Points        [][]float32 `yaml:"points"`
	Labels        []uint64    `yaml:"labels"`
	DataFile      string      `yaml:"data_file"`

	// dir resolves DataFile relative to the config's location.
	dir string
}

// LoadTreeConfig reads and parses a YAML tree configuration.
func LoadTreeConfig(path string) (*TreeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg TreeConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return &cfg, nil
}

// Builder returns a cover-tree builder configured from the YAML values;
// omitted fields keep the package defaults.
func (c *TreeConfig) Builder() *CoverTreeBuilder {
	b := NewCoverTreeBuilder()
	if c.ScaleBase != 0 {
		b.SetScaleBase(c.ScaleBase)
	}
	if c.LeafCutoff != 0 {
		b.SetLeafCutoff(c.LeafCutoff)
	}
	if c.MinResIndex != nil {
		b.SetMinResIndex(*c.MinResIndex)
	}
	if c.MaxResIndex != nil {
		b.SetMaxResIndex(*c.MaxResIndex)
	}
	if c.UseSingletons != nil {
		b.SetUseSingletons(*c.UseSingletons)
	}
	return b
}

// DistanceKind returns the configured metric, defaulting to Euclidean.
func (c *TreeConfig) DistanceKind() DistanceKind {
	if c.Metric == "" {
		return Euclidean
	}
	return DistanceKind(c.Metric)
}

// PointCloud materializes the configured point collection: inline points
// when present, otherwise the referenced CSV data file.
func (c *TreeConfig) PointCloud() (PointCloud, error) {
	if len(c.Points) > 0 {
		return NewDensePointCloudFromRows(c.Points, c.Labels)
	}
	if c.DataFile == "" {
		return nil, ErrEmptyPointCloud
	}
	path := c.DataFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.dir, path)
	}
	rows, err := readCSVFloats(path)
	if err != nil {
		return nil, err
	}
	return NewDensePointCloudFromRows(rows, c.Labels)
}

// BuildFromYAML is the one-call ingestion path: load a config, materialize
// its point cloud and build the tree.
func BuildFromYAML(path string) (*CoverTreeWriter, error) {
	cfg, err := LoadTreeConfig(path)
	if err != nil {
		return nil, err
	}
	cloud, err := cfg.PointCloud()
	if err != nil {
		return nil, err
	}
	return cfg.Builder().Build(cloud, cfg.DistanceKind())
}

// readCSVFloats parses a headerless CSV file of float rows.
func readCSVFloats(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse data file %s: %w", path, err)
	}
	rows := make([][]float32, 0, len(records))
	for i, record := range records {
		row := make([]float32, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("parse data file %s row %d column %d: %w", path, i, j, err)
			}
			row[j] = float32(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
