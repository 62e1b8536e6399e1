package proofcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

// scriptedRunner returns canned output and exit codes keyed by command name,
// recording the commands it saw.
type scriptedRunner struct {
	gitOut   string
	gitExit  int
	gitErr   error
	testOut  string
	testExit int
	testErr  error

	commands [][]string
}

func (s *scriptedRunner) run(_ context.Context, _ string, out io.Writer, name string, args ...string) (int, error) {
	s.commands = append(s.commands, append([]string{name}, args...))
	if name == "git" {
		if s.gitErr != nil {
			return 0, s.gitErr
		}
		fmt.Fprint(out, s.gitOut)
		return s.gitExit, nil
	}
	if s.testErr != nil {
		return 0, s.testErr
	}
	fmt.Fprint(out, s.testOut)
	return s.testExit, nil
}

func TestRun_CleanTreePassingTests(t *testing.T) {
	runner := &scriptedRunner{testOut: "ok  \tresilience-core\t0.01s\n"}
	gate := &Gate{Dir: "/repo", Runner: runner.run}

	var buf bytes.Buffer
	if rc := gate.Run(context.Background(), &buf); rc != 0 {
		t.Fatalf("expected rc 0, got %d\noutput:\n%s", rc, buf.String())
	}

	out := buf.String()
	for _, want := range []string{
		"[git_status] exit=0",
		"[git_status] changed_files=0",
		"[tests] exit=0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRun_DirtyTreeCountsFiles(t *testing.T) {
	runner := &scriptedRunner{gitOut: " M breaker.go\n?? scratch.txt\n"}
	gate := &Gate{Dir: "/repo", Runner: runner.run}

	var buf bytes.Buffer
	if rc := gate.Run(context.Background(), &buf); rc != 0 {
		t.Fatalf("expected rc 0 with passing tests, got %d", rc)
	}

	out := buf.String()
	if !strings.Contains(out, "[git_status] changed_files=2") {
		t.Errorf("expected changed_files=2 in output:\n%s", out)
	}
	// The raw status lines stream through.
	if !strings.Contains(out, " M breaker.go") {
		t.Errorf("expected status lines in output:\n%s", out)
	}
}

func TestRun_FailingTestsGate(t *testing.T) {
	runner := &scriptedRunner{testOut: "--- FAIL: TestX\nFAIL\n", testExit: 1}
	gate := &Gate{Dir: "/repo", Runner: runner.run}

	var buf bytes.Buffer
	if rc := gate.Run(context.Background(), &buf); rc != 1 {
		t.Fatalf("expected rc 1, got %d", rc)
	}

	out := buf.String()
	if !strings.Contains(out, "[tests] exit=1") {
		t.Errorf("expected test exit line in output:\n%s", out)
	}
	if !strings.Contains(out, "--- FAIL: TestX") {
		t.Errorf("expected streamed test output:\n%s", out)
	}
}

func TestRun_TestCommandUnavailable(t *testing.T) {
	runner := &scriptedRunner{testErr: errors.New("exec: \"go\": executable file not found")}
	gate := &Gate{Dir: "/repo", Runner: runner.run}

	var buf bytes.Buffer
	if rc := gate.Run(context.Background(), &buf); rc != 1 {
		t.Fatalf("expected rc 1 when tests cannot run, got %d", rc)
	}
	if !strings.Contains(buf.String(), "[tests] error=") {
		t.Errorf("expected tests error line in output:\n%s", buf.String())
	}
}

func TestRun_GitUnavailableDoesNotGate(t *testing.T) {
	runner := &scriptedRunner{gitErr: errors.New("exec: \"git\": executable file not found")}
	gate := &Gate{Dir: "/repo", Runner: runner.run}

	var buf bytes.Buffer
	if rc := gate.Run(context.Background(), &buf); rc != 0 {
		t.Fatalf("expected rc 0 when only git is unavailable, got %d", rc)
	}
	if !strings.Contains(buf.String(), "[git_status] error=") {
		t.Errorf("expected git error line in output:\n%s", buf.String())
	}
}

func TestRun_DefaultTestCommand(t *testing.T) {
	runner := &scriptedRunner{}
	gate := &Gate{Dir: "/repo", Runner: runner.run}

	var buf bytes.Buffer
	gate.Run(context.Background(), &buf)

	if len(runner.commands) != 2 {
		t.Fatalf("expected 2 commands, got %v", runner.commands)
	}
	got := strings.Join(runner.commands[1], " ")
	if got != "go test ./..." {
		t.Errorf("expected default test command, got %q", got)
	}
}

func TestRun_CustomTestCommand(t *testing.T) {
	runner := &scriptedRunner{}
	gate := &Gate{
		Dir:         "/repo",
		TestCommand: []string{"make", "check"},
		Runner:      runner.run,
	}

	var buf bytes.Buffer
	gate.Run(context.Background(), &buf)

	got := strings.Join(runner.commands[1], " ")
	if got != "make check" {
		t.Errorf("expected custom test command, got %q", got)
	}
}
