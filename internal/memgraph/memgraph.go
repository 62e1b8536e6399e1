// Package memgraph builds a session/error graph from agent session logs.
// Nodes are sessions and distinct error signatures; an edge links a session
// to each signature occurrence observed in it.
package memgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultMaxFiles bounds how many of the newest session logs are scanned.
const DefaultMaxFiles = 200

const maxSignatureLen = 200

// errLine extracts the message field from an ERROR log line, stopping at the
// code= or fatal markers when present.
var errLine = regexp.MustCompile(`(?i)ERROR\s+.*?message=(.+?)(?:\s+code=|\s+fatal\b|$)`)

type Node struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Build scans the newest maxFiles *.log files under logDir. Each file is a
// session named by its stem; repeated signatures within a session produce one
// node and one edge per occurrence.
func Build(logDir string, maxFiles int) (*Graph, error) {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if _, err := os.Stat(logDir); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(logDir, "*.log"))
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	sort.Strings(paths)
	if len(paths) > maxFiles {
		paths = paths[len(paths)-maxFiles:]
	}

	g := &Graph{Nodes: []Node{}, Edges: []Edge{}}
	seen := make(map[string]bool)

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		session := strings.TrimSuffix(filepath.Base(p), ".log")
		if !seen[session] {
			seen[session] = true
			g.Nodes = append(g.Nodes, Node{ID: session, Type: "session"})
		}

		for _, line := range strings.Split(string(data), "\n") {
			m := errLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			sig := strings.TrimSpace(m[1])
			if sig == "" {
				continue
			}
			if len(sig) > maxSignatureLen {
				sig = sig[:maxSignatureLen]
			}
			id := "err:" + sig
			if !seen[id] {
				seen[id] = true
				g.Nodes = append(g.Nodes, Node{ID: id, Type: "error", Label: sig})
			}
			g.Edges = append(g.Edges, Edge{From: session, To: id, Type: "has_error"})
		}
	}
	return g, nil
}

// WriteFile writes the graph as indented JSON, creating parent directories
// as needed.
func (g *Graph) WriteFile(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}
