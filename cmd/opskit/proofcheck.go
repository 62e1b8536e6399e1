package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dskow/resilience-core/internal/proofcheck"
)

var proofcheckDir string

var proofcheckCmd = &cobra.Command{
	Use:   "proofcheck",
	Short: "report worktree status and run the test gate",
	Long:  "Proofcheck prints git status for the worktree and runs the test suite, exiting non-zero when the tests fail.",
	RunE:  proofcheckExec,
}

func init() {
	proofcheckCmd.Flags().StringVar(&proofcheckDir, "dir", ".", "worktree to check")
}

func proofcheckExec(cmd *cobra.Command, _ []string) error {
	gate := &proofcheck.Gate{Dir: proofcheckDir}
	if rc := gate.Run(cmd.Context(), cmd.OutOrStdout()); rc != 0 {
		return fmt.Errorf("tests failed")
	}
	return nil
}
