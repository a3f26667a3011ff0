package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var knnK int
var knnQuery string

var knnCmd = &cobra.Command{
	Use:   "knn",
	Short: "Run a nearest-neighbor query against the reference collection",
	RunE:  runKNN,
}

func init() {
	knnCmd.Flags().IntVarP(&knnK, "k", "k", 10, "number of neighbors to return")
	knnCmd.Flags().StringVarP(&knnQuery, "query", "q", "", "comma-separated query vector (required)")
	_ = knnCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(knnCmd)
}

func runKNN(cmd *cobra.Command, args []string) error {
	point, err := parsePoint(knnQuery)
	if err != nil {
		return err
	}
	writer, err := buildWriter(cmd.Context())
	if err != nil {
		return err
	}
	if err := writer.GenerateSummaries(); err != nil {
		return err
	}
	reader := writer.Reader()

	results, err := reader.KNN(point, knnK)
	if err != nil {
		return err
	}
	for rank, r := range results {
		label, _ := reader.Label(int(r.Index))
		fmt.Printf("%2d. point=%d label=%d distance=%.6f\n", rank+1, r.Index, label, r.Distance)
	}
	return nil
}
