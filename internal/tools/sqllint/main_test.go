package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLintAcceptsMarkedStatements(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "q.go", "package q\n\nconst QOne = `--sql 3f1c2a7e-8d4b-4c59-9a61-0b7e5d2c9f10\nSELECT 1`\n\nconst QTwo = `--sql 6a0d9b3c-1e2f-4a57-8b64-7c9d0e1f2a3b\nCREATE TABLE t (id int)`\n\nconst label = \"plan: select one\"\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none", violations)
	}
}

func TestLintReportsMissingMarker(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "q.go", "package q\n\nconst QBad = `\nDELETE FROM t`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(violations))
	}
	if violations[0].name != "QBad" || violations[0].line != 3 {
		t.Fatalf("violation = %+v, want QBad at line 3", violations[0])
	}
}

func TestLintReportsDuplicateMarkerAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	marker := "--sql 3f1c2a7e-8d4b-4c59-9a61-0b7e5d2c9f10"
	writeGo(t, dir, "a.go", "package q\n\nconst QA = `"+marker+"\nSELECT 1`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst QB = `"+marker+"\nSELECT 2`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(violations))
	}
	if !strings.Contains(violations[0].message, "QA") {
		t.Fatalf("message = %q, want reference to QA", violations[0].message)
	}
}

func TestLintSkipsUnderscoreAndHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "_examples/q.go", "package q\n\nconst QBad = `SELECT 1`\n")
	writeGo(t, dir, ".cache/q.go", "package q\n\nconst QBad = `SELECT 1`\n")
	writeGo(t, dir, "testdata/q.go", "package q\n\nconst QBad = `SELECT 1`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none", violations)
	}
}

func TestLintMissingTarget(t *testing.T) {
	if _, err := lint([]string{filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Fatal("expected error for missing target")
	}
}
