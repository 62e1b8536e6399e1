// Package doctor diagnoses the agent fallback-model configuration. It
// locates the config file by candidate order, validates the fallback model
// list, and reports findings as OK/FAIL lines.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const configName = "opencode.json"

// Finding is a single diagnostic line.
type Finding struct {
	OK      bool
	Message string
}

func (f Finding) String() string {
	if f.OK {
		return "OK: " + f.Message
	}
	return "FAIL: " + f.Message
}

// Result collects the findings of one doctor run.
type Result struct {
	ConfigPath string
	Findings   []Finding
}

// Failed reports whether any finding failed.
func (r *Result) Failed() bool {
	for _, f := range r.Findings {
		if !f.OK {
			return true
		}
	}
	return false
}

func (r *Result) ok(format string, args ...interface{}) {
	r.Findings = append(r.Findings, Finding{OK: true, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) fail(format string, args ...interface{}) {
	r.Findings = append(r.Findings, Finding{OK: false, Message: fmt.Sprintf(format, args...)})
}

// Candidates returns the config file locations in precedence order:
// project-local .opencode/, project root, then the user-level locations.
func Candidates(dir string) []string {
	candidates := []string{
		filepath.Join(dir, ".opencode", configName),
		filepath.Join(dir, configName),
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		candidates = append(candidates, filepath.Join(home, ".opencode", configName))
	}
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" && home != "" {
		xdg = filepath.Join(home, ".config")
	}
	if xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "opencode", configName))
	}
	return candidates
}

type agentConfig struct {
	Model          string   `json:"model"`
	FallbackModels []string `json:"fallbackModels"`
}

// Run diagnoses the fallback configuration reachable from dir.
func Run(dir string) *Result {
	r := &Result{}

	candidates := Candidates(dir)
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			r.ConfigPath = p
			break
		}
	}
	if r.ConfigPath == "" {
		r.fail("no fallback config found, looked in:\n  - %s", strings.Join(candidates, "\n  - "))
		return r
	}
	r.ok("fallback config %s", r.ConfigPath)

	data, err := os.ReadFile(r.ConfigPath)
	if err != nil {
		r.fail("cannot read %s: %v", r.ConfigPath, err)
		return r
	}
	var cfg agentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		r.fail("%s is not valid JSON: %v", r.ConfigPath, err)
		return r
	}

	if len(cfg.FallbackModels) == 0 {
		r.fail("fallbackModels empty in %s", r.ConfigPath)
		return r
	}

	var badIdx []int
	for i, m := range cfg.FallbackModels {
		if !validModelRef(m) {
			badIdx = append(badIdx, i)
		}
	}
	if len(badIdx) > 0 {
		r.fail("invalid fallback entries at indexes %v (want provider/model)", badIdx)
	}

	seen := make(map[string]bool)
	var dups []string
	for _, m := range cfg.FallbackModels {
		if seen[m] {
			dups = append(dups, m)
		}
		seen[m] = true
	}
	if len(dups) > 0 {
		r.fail("duplicate fallback models: %s", strings.Join(dups, ", "))
	}

	if cfg.Model != "" && seen[cfg.Model] {
		r.fail("primary model %q repeated in fallbackModels", cfg.Model)
	}

	if !r.Failed() {
		r.ok("fallbackModels count = %d", len(cfg.FallbackModels))
	}
	return r
}

// validModelRef accepts provider/model with both halves non-empty.
func validModelRef(s string) bool {
	provider, model, found := strings.Cut(s, "/")
	return found && provider != "" && model != ""
}
