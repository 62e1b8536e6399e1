package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dskow/resilience-core/internal/runbook"
)

var (
	runbookLog   string
	runbookRules string
)

var runbookCmd = &cobra.Command{
	Use:   "runbook",
	Short: "match known failure signatures in a log file",
	Long: "Runbook scans a log file for known failure signatures and prints the " +
		"paired remediation for each hit. Extra rules load from a YAML file.",
	RunE: runbookExec,
}

func init() {
	runbookCmd.Flags().StringVar(&runbookLog, "log", "", "log file to scan")
	runbookCmd.Flags().StringVar(&runbookRules, "rules", "", "additional signature rules (YAML)")
	runbookCmd.MarkFlagRequired("log")
}

func runbookExec(cmd *cobra.Command, _ []string) error {
	rules := runbook.Builtin()
	if runbookRules != "" {
		extra, err := runbook.LoadRules(runbookRules)
		if err != nil {
			return err
		}
		rules = append(rules, extra...)
	}

	matches, err := runbook.ScanFile(runbookLog, rules)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintln(out, "No known signatures found.")
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(out, "MATCH: %s\n", m.Name)
		fmt.Fprintf(out, "FIX:   %s\n", m.Fix)
	}
	return nil
}
