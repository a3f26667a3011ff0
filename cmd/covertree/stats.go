package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the layer structure of the built tree",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	writer, err := buildWriter(cmd.Context())
	if err != nil {
		return err
	}
	if err := writer.GenerateSummaries(); err != nil {
		return err
	}
	reader := writer.Reader()

	fmt.Printf("points: %d  dim: %d  metric: %s  scale base: %g\n",
		reader.Len(), reader.Dim(), reader.DistanceKind(), reader.ScaleBase())
	fmt.Printf("scales: %d (top) .. %d (bottom)  root: %s\n",
		reader.TopScale(), reader.BottomScale(), reader.RootAddress())
	for scale, layer := range reader.Layers() {
		singletons := 0
		for _, addr := range layer.Addresses() {
			if node, ok := layer.Node(addr.Index); ok {
				singletons += node.SingletonCount()
			}
		}
		fmt.Printf("  scale %4d: %6d nodes, %6d singletons\n", scale, layer.Len(), singletons)
	}
	return nil
}
