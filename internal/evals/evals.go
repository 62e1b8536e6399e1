// Package evals runs a smoke-eval command repeatedly through a circuit
// breaker and reports success rate and latency percentiles. A run that the
// breaker rejects while open is counted as skipped, not failed.
package evals

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dskow/resilience-core/pkg/breaker"
)

// CommandRunner executes the eval command once and returns its combined
// output. A non-nil error marks the run as failed.
type CommandRunner func(ctx context.Context, command string) (string, error)

// Options configure a harness. Zero values fall back to three runs, a 120s
// per-run timeout, and the 3/2/100ms reference breaker settings.
type Options struct {
	Command string
	Expect  string // substring the output must contain, empty skips the check
	Runs    int
	Rate    float64       // runs per second, 0 = unpaced
	Timeout time.Duration // per-run timeout

	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration

	Runner   CommandRunner // nil runs the command through sh -c
	Progress io.Writer     // nil discards per-run progress lines
}

// Report is the aggregate outcome of one harness invocation. Latency stats
// cover executed runs only; skipped runs never left the breaker.
type Report struct {
	RunID       string  `json:"run_id"`
	Command     string  `json:"command"`
	Total       int     `json:"total"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	SuccessRate float64 `json:"success_rate"`
	MeanSeconds float64 `json:"latency_mean_s"`
	P95Seconds  float64 `json:"latency_p95_s"`
}

// Harness drives the eval runs.
type Harness struct {
	opts    Options
	breaker *breaker.Breaker
	limiter *rate.Limiter
}

func New(opts Options) (*Harness, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("evals: command is required")
	}
	if opts.Runs <= 0 {
		opts.Runs = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 2
	}
	if opts.RecoveryTimeout <= 0 {
		opts.RecoveryTimeout = 100 * time.Millisecond
	}
	if opts.Runner == nil {
		opts.Runner = shellRunner
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}

	b, err := breaker.New("evals", breaker.Settings{
		FailureThreshold: opts.FailureThreshold,
		SuccessThreshold: opts.SuccessThreshold,
		RecoveryTimeout:  opts.RecoveryTimeout,
	})
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	return &Harness{
		opts:    opts,
		breaker: b,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Run executes the configured number of runs and aggregates the outcome.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Command: h.opts.Command,
		Total:   h.opts.Runs,
	}
	var latencies []float64

	for i := 1; i <= h.opts.Runs; i++ {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("evals: cancelled while pacing: %w", err)
		}

		runCtx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
		start := time.Now()
		err := h.breaker.Do(runCtx, h.runOnce)
		elapsed := time.Since(start)
		cancel()

		switch {
		case breaker.IsOpen(err):
			report.Skipped++
			fmt.Fprintf(h.opts.Progress, "run %d: SKIP (circuit open)\n", i)
		case err != nil:
			report.Failed++
			latencies = append(latencies, elapsed.Seconds())
			fmt.Fprintf(h.opts.Progress, "run %d: FAIL (%v)\n", i, err)
		default:
			report.Passed++
			latencies = append(latencies, elapsed.Seconds())
		}
	}

	if report.Total > 0 {
		report.SuccessRate = float64(report.Passed) / float64(report.Total)
	}
	report.MeanSeconds, report.P95Seconds = latencyStats(latencies)
	return report, nil
}

func (h *Harness) runOnce(ctx context.Context) error {
	out, err := h.opts.Runner(ctx, h.opts.Command)
	if err != nil {
		return err
	}
	if h.opts.Expect != "" && !strings.Contains(out, h.opts.Expect) {
		return fmt.Errorf("output does not contain %q", h.opts.Expect)
	}
	return nil
}

func shellRunner(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// latencyStats returns mean and p95 over executed runs, zeros when none ran.
func latencyStats(lat []float64) (mean, p95 float64) {
	if len(lat) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range lat {
		sum += v
	}
	mean = sum / float64(len(lat))

	sorted := append([]float64(nil), lat...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted))*0.95) - 1
	if idx < 0 {
		idx = 0
	}
	p95 = sorted[idx]
	return mean, p95
}
