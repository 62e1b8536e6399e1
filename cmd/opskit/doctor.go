package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dskow/resilience-core/internal/doctor"
)

var doctorDir string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "diagnose the fallback-model configuration",
	Long: "Doctor locates the agent config file, validates the fallback model list, " +
		"and prints OK/FAIL findings. Exits non-zero on any failure.",
	RunE: doctorExec,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorDir, "dir", ".", "project directory to diagnose")
}

func doctorExec(cmd *cobra.Command, _ []string) error {
	result := doctor.Run(doctorDir)
	for _, f := range result.Findings {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	if result.Failed() {
		return fmt.Errorf("configuration check failed")
	}
	return nil
}
