package memgraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLog(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func findNode(g *Graph, id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

func TestBuild_GraphShape(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "ses-aaa.log",
		"INFO session started\n"+
			"ERROR provider call failed message=rate limited code=429\n"+
			"INFO retrying\n"+
			"ERROR provider call failed message=rate limited code=429\n")
	writeLog(t, dir, "ses-bbb.log",
		"ERROR dial failed message=connection refused\n"+
			"INFO done\n")

	g, err := Build(dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	// Two sessions, two distinct signatures.
	if len(g.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d: %+v", len(g.Nodes), g.Nodes)
	}
	for _, id := range []string{"ses-aaa", "ses-bbb", "err:rate limited", "err:connection refused"} {
		if findNode(g, id) == nil {
			t.Errorf("missing node %q", id)
		}
	}
	if n := findNode(g, "ses-aaa"); n != nil && n.Type != "session" {
		t.Errorf("expected session type, got %q", n.Type)
	}
	if n := findNode(g, "err:rate limited"); n != nil {
		if n.Type != "error" || n.Label != "rate limited" {
			t.Errorf("unexpected error node: %+v", *n)
		}
	}

	// The repeated signature contributes one node but two edges.
	if len(g.Edges) != 3 {
		t.Fatalf("expected 3 edges, got %d: %+v", len(g.Edges), g.Edges)
	}
	count := 0
	for _, e := range g.Edges {
		if e.From == "ses-aaa" && e.To == "err:rate limited" && e.Type == "has_error" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected 2 edges for the repeated signature, got %d", count)
	}
}

func TestBuild_FatalTerminator(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "ses-ccc.log", "ERROR disk message=no space left fatal\n")

	g, err := Build(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if findNode(g, "err:no space left") == nil {
		t.Errorf("expected signature cut at the fatal marker, nodes: %+v", g.Nodes)
	}
}

func TestBuild_MessageAtLineEnd(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "ses-ddd.log", "ERROR timeout message=context deadline exceeded\n")

	g, err := Build(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if findNode(g, "err:context deadline exceeded") == nil {
		t.Errorf("expected signature from line-end message, nodes: %+v", g.Nodes)
	}
}

func TestBuild_SignatureTruncated(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 300)
	writeLog(t, dir, "ses-eee.log", "ERROR big message="+long+" code=500\n")

	g, err := Build(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	var errNode *Node
	for i := range g.Nodes {
		if g.Nodes[i].Type == "error" {
			errNode = &g.Nodes[i]
		}
	}
	if errNode == nil {
		t.Fatal("expected an error node")
	}
	if len(errNode.Label) != maxSignatureLen {
		t.Errorf("expected label truncated to %d chars, got %d", maxSignatureLen, len(errNode.Label))
	}
}

func TestBuild_MaxFilesKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "ses-001.log", "ERROR a message=first\n")
	writeLog(t, dir, "ses-002.log", "ERROR b message=second\n")
	writeLog(t, dir, "ses-003.log", "ERROR c message=third\n")

	g, err := Build(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	if findNode(g, "ses-001") != nil {
		t.Error("expected the oldest session to be dropped")
	}
	if findNode(g, "ses-002") == nil || findNode(g, "ses-003") == nil {
		t.Errorf("expected the two newest sessions, nodes: %+v", g.Nodes)
	}
}

func TestBuild_SessionWithoutErrors(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "ses-fff.log", "INFO nothing went wrong\n")

	g, err := Build(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 1 || g.Nodes[0].ID != "ses-fff" {
		t.Errorf("expected a lone session node, got %+v", g.Nodes)
	}
	if len(g.Edges) != 0 {
		t.Errorf("expected no edges, got %+v", g.Edges)
	}
}

func TestBuild_EmptyDir(t *testing.T) {
	g, err := Build(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	// Empty graphs marshal as empty arrays, not null.
	if string(data) != `{"nodes":[],"edges":[]}` {
		t.Errorf("unexpected empty graph JSON: %s", string(data))
	}
}

func TestBuild_MissingDir(t *testing.T) {
	if _, err := Build(filepath.Join(t.TempDir(), "nope"), 0); err == nil {
		t.Fatal("expected error for missing log dir")
	}
}

func TestWriteFile_CreatesParents(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "ses-ggg.log", "ERROR x message=boom code=1\n")

	g, err := Build(dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "nested", "graph.json")
	if err := g.WriteFile(out); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var parsed Graph
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("written graph is not valid JSON: %v", err)
	}
	if len(parsed.Nodes) != len(g.Nodes) || len(parsed.Edges) != len(g.Edges) {
		t.Errorf("round trip mismatch: %+v vs %+v", parsed, *g)
	}
}
