package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wizenheimer/covertree"
)

var rootCmd = &cobra.Command{
	Use:          "covertree",
	Short:        "Build and query cover trees over reference point collections",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `covertree builds a multiresolution metric index over a reference point
collection (from a YAML config or a SQLite table) and runs nearest-neighbor
queries and drift-baseline calibration against it.`,
}

// Source flags shared by all subcommands.
var (
	configPath string
	dbPath     string
	dbTable    string
	dbDim      int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML tree configuration")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database holding the reference collection")
	rootCmd.PersistentFlags().StringVar(&dbTable, "table", "vectors", "SQLite table name (with --db)")
	rootCmd.PersistentFlags().IntVar(&dbDim, "dim", 0, "vector dimension (with --db)")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildWriter constructs a tree from whichever source the user selected.
func buildWriter(ctx context.Context) (*covertree.CoverTreeWriter, error) {
	switch {
	case configPath != "":
		return covertree.BuildFromYAML(configPath)
	case dbPath != "":
		if dbDim <= 0 {
			return nil, fmt.Errorf("--dim is required with --db")
		}
		cloud, err := covertree.LoadSQLitePointCloud(ctx, dbPath, dbTable, dbDim)
		if err != nil {
			return nil, err
		}
		return covertree.NewCoverTreeBuilder().Build(cloud, covertree.Euclidean)
	default:
		return nil, fmt.Errorf("either --config or --db is required")
	}
}

// parsePoint parses a comma-separated float vector.
func parsePoint(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	point := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid query component %q: %w", f, err)
		}
		point[i] = float32(v)
	}
	return point, nil
}
