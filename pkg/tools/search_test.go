package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchFilesTool_FindsMatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package main\n\nfunc Hello() {}\n")
	writeFile(t, dir, "b.go", "package main\n\nfunc Goodbye() {}\n")

	tool := &SearchFilesTool{CWD: dir}
	out, err := tool.Execute(context.Background(), map[string]any{"pattern": "func (Hello|Goodbye)"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "a.go:3:") || !strings.Contains(out.Content, "b.go:3:") {
		t.Errorf("expected both files matched, got %q", out.Content)
	}
	if !strings.Contains(out.Content, "2 match(es) in 2 file(s)") {
		t.Errorf("expected match count summary, got %q", out.Content)
	}
}

func TestSearchFilesTool_SkipsBuildDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "node_modules/pkg/index.js", "needle")
	writeFile(t, dir, "src/index.js", "needle")

	tool := &SearchFilesTool{CWD: dir}
	out, err := tool.Execute(context.Background(), map[string]any{"pattern": "needle"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.Content, "node_modules") {
		t.Errorf("expected node_modules to be skipped, got %q", out.Content)
	}
	if !strings.Contains(out.Content, "src/index.js") {
		t.Errorf("expected src/index.js matched, got %q", out.Content)
	}
}

func TestSearchFilesTool_SkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bin.dat"), []byte("needle\x00more"), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := &SearchFilesTool{CWD: dir}
	out, err := tool.Execute(context.Background(), map[string]any{"pattern": "needle"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.Content, "bin.dat") {
		t.Errorf("expected binary file to be skipped, got %q", out.Content)
	}
}

func TestSearchFilesTool_GlobFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "needle")
	writeFile(t, dir, "a.txt", "needle")

	tool := &SearchFilesTool{CWD: dir}
	out, err := tool.Execute(context.Background(), map[string]any{"pattern": "needle", "glob": "**/*.go"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "a.go") {
		t.Errorf("expected a.go matched, got %q", out.Content)
	}
	if strings.Contains(out.Content, "a.txt") {
		t.Errorf("expected a.txt excluded by glob, got %q", out.Content)
	}
}

func TestSearchFilesTool_NoMatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "nothing here")

	tool := &SearchFilesTool{CWD: dir}
	out, err := tool.Execute(context.Background(), map[string]any{"pattern": "needle"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "no matches found") {
		t.Errorf("expected no-matches message, got %q", out.Content)
	}
}

func TestSearchFilesTool_InvalidPattern(t *testing.T) {
	tool := &SearchFilesTool{CWD: t.TempDir()}
	out, err := tool.Execute(context.Background(), map[string]any{"pattern": "("})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsError {
		t.Error("expected IsError for invalid regex")
	}
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
