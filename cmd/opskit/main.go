// Package main is the opskit CLI: operational utilities for the resilience
// stack. Each subcommand is a thin wrapper over an internal package.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "opskit",
	Short:        "operational utilities for the resilience stack",
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(doctorCmd, runbookCmd, evalsCmd, graphCmd, proofcheckCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
