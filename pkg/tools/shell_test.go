package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShellTool_RunsCommandAndReportsExitCode(t *testing.T) {
	dir := t.TempDir()
	shell := &ShellTool{CWD: dir}

	out, err := shell.Execute(context.Background(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "exit=0") || !strings.Contains(out.Content, "hello") {
		t.Errorf("unexpected output: %q", out.Content)
	}
}

func TestShellTool_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	shell := &ShellTool{CWD: dir}

	out, err := shell.Execute(context.Background(), map[string]any{"command": "exit 3"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "exit=3") {
		t.Errorf("expected exit=3, got %q", out.Content)
	}
}

func TestShellTool_MissingCommand(t *testing.T) {
	shell := &ShellTool{CWD: t.TempDir()}
	out, err := shell.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsError {
		t.Error("expected IsError for missing command")
	}
}

func TestShellTool_ReportsFileCreation(t *testing.T) {
	dir := t.TempDir()
	shell := &ShellTool{CWD: dir}

	out, err := shell.Execute(context.Background(), map[string]any{"command": "echo content > new.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "Filesystem changes:") {
		t.Fatalf("expected filesystem change summary, got %q", out.Content)
	}
	if !strings.Contains(out.Content, "new.txt") {
		t.Errorf("expected new.txt mentioned, got %q", out.Content)
	}
}

func TestExplorerTool_LabelsEachCommandAndStopsOnError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	explorer := &ExplorerTool{CWD: dir}

	out, err := explorer.Execute(context.Background(), map[string]any{
		"commands": []string{"cat a.txt", "false", "cat a.txt"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "Read(a.txt)") {
		t.Errorf("expected Read(a.txt) label, got %q", out.Content)
	}
	if strings.Count(out.Content, "$ cat a.txt") != 1 {
		t.Errorf("expected explorer to stop after the failing command, got: %q", out.Content)
	}
}

func TestExplorerTool_MissingCommands(t *testing.T) {
	explorer := &ExplorerTool{CWD: t.TempDir()}
	out, err := explorer.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsError {
		t.Error("expected IsError")
	}
}

func TestClassifyCommand(t *testing.T) {
	cases := []struct {
		cmd  string
		kind operationKind
	}{
		{"cat foo.txt", opRead},
		{"ls -la", opRead},
		{"git status", opRead},
		{"echo hi > out.txt", opWrite},
		{"tee out.txt", opWrite},
		{"rm -rf dir", opUpdate},
		{"sed -i s/a/b/ file", opUpdate},
		{"go build ./...", opBash},
	}
	for _, c := range cases {
		got := classifyCommand(c.cmd)
		if got.kind != c.kind {
			t.Errorf("classifyCommand(%q) = %v, want %v", c.cmd, got.kind, c.kind)
		}
	}
}

func TestClassifyCommand_ExtractsTarget(t *testing.T) {
	got := classifyCommand("cat foo.txt")
	if got.target != "foo.txt" {
		t.Errorf("target = %q, want foo.txt", got.target)
	}

	got = classifyCommand("echo hi > out.txt")
	if got.target != "out.txt" {
		t.Errorf("target = %q, want out.txt", got.target)
	}
}

func TestSnapshotFiles_DetectsChanges(t *testing.T) {
	dir := t.TempDir()
	before := snapshotFiles(dir)
	if len(before) != 0 {
		t.Fatalf("expected empty snapshot, got %d entries", len(before))
	}

	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	after := snapshotFiles(dir)
	if len(after) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(after))
	}

	summary := buildFSSummary(dir, before, after)
	if !strings.Contains(summary, "created (1)") {
		t.Errorf("expected created(1) in summary, got %q", summary)
	}
}

func TestSnapshotShouldSkip(t *testing.T) {
	if !snapshotShouldSkip(".git/HEAD") {
		t.Error("expected .git to be skipped")
	}
	if snapshotShouldSkip("src/main.go") {
		t.Error("expected src/main.go to not be skipped")
	}
}
