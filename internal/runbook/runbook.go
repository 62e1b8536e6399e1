// Package runbook matches known failure signatures against log output and
// pairs each hit with its remediation.
package runbook

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rule pairs a signature regex with a remediation. Rules loaded from YAML
// carry the same three fields.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Fix     string `yaml:"fix"`

	re *regexp.Regexp
}

// Match is one triggered rule.
type Match struct {
	Name string
	Fix  string
}

// Builtin returns the built-in signature table.
func Builtin() []Rule {
	rules := []Rule{
		{
			Name:    "provider-rate-limit",
			Pattern: `(?i)\b429\b|rate.?limit|too many requests`,
			Fix:     "Provider is throttling; lower the request rate or configure fallback models.",
		},
		{
			Name:    "timeout",
			Pattern: `(?i)context deadline exceeded|timed? ?out|ETIMEDOUT`,
			Fix:     "Raise the request timeout or check provider latency.",
		},
		{
			Name:    "connection-refused",
			Pattern: `(?i)connection refused|ECONNREFUSED`,
			Fix:     "Dependency is down or the endpoint is wrong; check the probe URL and the service.",
		},
		{
			Name:    "auth",
			Pattern: `(?i)\b401\b|\b403\b|unauthorized|invalid api key|forbidden`,
			Fix:     "API key is missing, expired, or lacks access; rotate the credential.",
		},
		{
			Name:    "model-not-found",
			Pattern: `(?i)model not found|no such model`,
			Fix:     "Model ID is wrong or retired; update the configured model list.",
		},
		{
			Name:    "context-length",
			Pattern: `(?i)context.?length|maximum context|prompt is too long`,
			Fix:     "Trim the prompt or summarize history before retrying.",
		},
	}
	for i := range rules {
		rules[i].re = regexp.MustCompile(rules[i].Pattern)
	}
	return rules
}

// LoadRules reads additional rules from a YAML file of the form
//
//	rules:
//	  - name: my-signature
//	    pattern: "(?i)some regex"
//	    fix: what to do about it
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	for i := range doc.Rules {
		r := &doc.Rules[i]
		if r.Name == "" || r.Pattern == "" {
			return nil, fmt.Errorf("rule %d: name and pattern are required", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid pattern: %w", r.Name, err)
		}
		r.re = re
	}
	return doc.Rules, nil
}

// Scan runs every rule against the text and returns hits in rule order.
// Each rule matches at most once.
func Scan(text string, rules []Rule) []Match {
	var matches []Match
	for _, r := range rules {
		if r.re != nil && r.re.MatchString(text) {
			matches = append(matches, Match{Name: r.Name, Fix: r.Fix})
		}
	}
	return matches
}

// ScanFile matches rules against the contents of a log file.
func ScanFile(path string, rules []Rule) ([]Match, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return Scan(string(data), rules), nil
}
