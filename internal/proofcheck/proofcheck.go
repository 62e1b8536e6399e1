// Package proofcheck gates a worktree: it reports uncommitted changes and
// runs the repo's test command, failing when the tests fail.
package proofcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// CommandRunner executes one check command in dir, writing its combined
// output to out, and returns the exit code. A non-nil error means the
// command could not run at all.
type CommandRunner func(ctx context.Context, dir string, out io.Writer, name string, args ...string) (int, error)

// Gate runs the worktree checks.
type Gate struct {
	Dir         string
	TestCommand []string      // defaults to go test ./...
	Runner      CommandRunner // nil runs real commands
}

// Run executes the checks and returns the process exit code: zero only when
// the tests pass. Git being unavailable is reported but does not gate.
func (g *Gate) Run(ctx context.Context, out io.Writer) int {
	runner := g.Runner
	if runner == nil {
		runner = execRunner
	}
	testCmd := g.TestCommand
	if len(testCmd) == 0 {
		testCmd = []string{"go", "test", "./..."}
	}

	var status bytes.Buffer
	exit, err := runner(ctx, g.Dir, &status, "git", "status", "--short")
	if err != nil {
		fmt.Fprintf(out, "[git_status] error=%v\n", err)
	} else {
		out.Write(status.Bytes())
		fmt.Fprintf(out, "[git_status] exit=%d\n", exit)
		if exit == 0 {
			fmt.Fprintf(out, "[git_status] changed_files=%d\n", countLines(status.String()))
		}
	}

	rc := 0
	exit, err = runner(ctx, g.Dir, out, testCmd[0], testCmd[1:]...)
	if err != nil {
		fmt.Fprintf(out, "[tests] error=%v\n", err)
		rc = 1
	} else {
		fmt.Fprintf(out, "[tests] exit=%d\n", exit)
		if exit != 0 {
			rc = 1
		}
	}
	return rc
}

func countLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

func execRunner(ctx context.Context, dir string, out io.Writer, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
