package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dskow/resilience-core/internal/evals"
)

var (
	evalsCommand string
	evalsExpect  string
	evalsRuns    int
	evalsRate    float64
	evalsTimeout time.Duration
	evalsJSON    bool
)

var evalsCmd = &cobra.Command{
	Use:   "evals",
	Short: "run a smoke eval through a circuit breaker",
	Long: "Evals runs a shell command repeatedly through a circuit breaker and " +
		"reports success rate and latency percentiles. Runs rejected while the " +
		"circuit is open count as skipped.",
	RunE: evalsExec,
}

func init() {
	evalsCmd.Flags().StringVar(&evalsCommand, "command", "", "shell command to evaluate")
	evalsCmd.Flags().StringVar(&evalsExpect, "expect", "", "substring the output must contain")
	evalsCmd.Flags().IntVar(&evalsRuns, "runs", 3, "number of runs")
	evalsCmd.Flags().Float64Var(&evalsRate, "rate", 0, "max runs per second, 0 = unpaced")
	evalsCmd.Flags().DurationVar(&evalsTimeout, "timeout", 120*time.Second, "per-run timeout")
	evalsCmd.Flags().BoolVar(&evalsJSON, "json", false, "emit the report as JSON")
	evalsCmd.MarkFlagRequired("command")
}

func evalsExec(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	h, err := evals.New(evals.Options{
		Command:  evalsCommand,
		Expect:   evalsExpect,
		Runs:     evalsRuns,
		Rate:     evalsRate,
		Timeout:  evalsTimeout,
		Progress: out,
	})
	if err != nil {
		return err
	}

	report, err := h.Run(cmd.Context())
	if err != nil {
		return err
	}

	if evalsJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprintf(out, "run_id=%s\n", report.RunID)
		fmt.Fprintf(out, "success_rate=%d/%d\n", report.Passed, report.Total)
		fmt.Fprintf(out, "skipped=%d\n", report.Skipped)
		fmt.Fprintf(out, "latency_mean_s=%.2f\n", report.MeanSeconds)
		fmt.Fprintf(out, "latency_p95_s=%.2f\n", report.P95Seconds)
	}

	if report.Passed != report.Total {
		return fmt.Errorf("%d of %d runs did not pass", report.Total-report.Passed, report.Total)
	}
	return nil
}
