package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dskow/resilience-core/internal/memgraph"
)

var (
	graphLogDir string
	graphOut    string
	graphMax    int
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "build a session/error graph from session logs",
	Long: "Graph scans the newest session logs for error signatures and writes a " +
		"JSON graph linking each session to the signatures seen in it.",
	RunE: graphExec,
}

func init() {
	graphCmd.Flags().StringVar(&graphLogDir, "log-dir", "", "directory of session *.log files")
	graphCmd.Flags().StringVar(&graphOut, "out", "memory-graph.json", "output file")
	graphCmd.Flags().IntVar(&graphMax, "max", memgraph.DefaultMaxFiles, "newest log files to scan")
	graphCmd.MarkFlagRequired("log-dir")
}

func graphExec(cmd *cobra.Command, _ []string) error {
	g, err := memgraph.Build(graphLogDir, graphMax)
	if err != nil {
		return err
	}
	if err := g.WriteFile(graphOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: wrote %s with %d nodes and %d edges\n",
		graphOut, len(g.Nodes), len(g.Edges))
	return nil
}
