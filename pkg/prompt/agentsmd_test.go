package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAgentsMD_AtCWD(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "AGENTS.md"), "project instructions")

	result := LoadAgentsMD(dir)
	if result != "project instructions" {
		t.Errorf("expected 'project instructions', got %q", result)
	}
}

func TestLoadAgentsMD_DotGoldbotDir(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, ".goldbot"), 0o755)
	writeFile(t, filepath.Join(dir, ".goldbot", "AGENTS.md"), "dot-goldbot instructions")

	result := LoadAgentsMD(dir)
	if result != "dot-goldbot instructions" {
		t.Errorf("expected 'dot-goldbot instructions', got %q", result)
	}
}

func TestLoadAgentsMD_LocalFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "AGENTS.local.md"), "local overrides")

	result := LoadAgentsMD(dir)
	if result != "local overrides" {
		t.Errorf("expected 'local overrides', got %q", result)
	}
}

func TestLoadAgentsMD_MultipleFilesMerged(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, ".goldbot"), 0o755)

	writeFile(t, filepath.Join(dir, "AGENTS.md"), "main instructions")
	writeFile(t, filepath.Join(dir, ".goldbot", "AGENTS.md"), "dot-goldbot instructions")
	writeFile(t, filepath.Join(dir, "AGENTS.local.md"), "local overrides")

	result := LoadAgentsMD(dir)

	parts := strings.Split(result, "\n\n---\n\n")
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %q", len(parts), result)
	}
	if parts[0] != "main instructions" {
		t.Errorf("part[0] = %q, want 'main instructions'", parts[0])
	}
	if parts[1] != "dot-goldbot instructions" {
		t.Errorf("part[1] = %q, want 'dot-goldbot instructions'", parts[1])
	}
	if parts[2] != "local overrides" {
		t.Errorf("part[2] = %q, want 'local overrides'", parts[2])
	}
}

func TestLoadAgentsMD_ParentDirectoryWalking(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "project")
	grandchild := filepath.Join(child, "src")
	os.MkdirAll(grandchild, 0o755)

	writeFile(t, filepath.Join(root, "AGENTS.md"), "root instructions")
	writeFile(t, filepath.Join(child, "AGENTS.md"), "project instructions")

	// Load from grandchild — should find project and root
	result := LoadAgentsMD(grandchild)

	parts := strings.Split(result, "\n\n---\n\n")
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %q", len(parts), result)
	}
	if parts[0] != "project instructions" {
		t.Errorf("part[0] = %q, want 'project instructions'", parts[0])
	}
	if parts[1] != "root instructions" {
		t.Errorf("part[1] = %q, want 'root instructions'", parts[1])
	}
}

func TestLoadAgentsMD_NoFiles(t *testing.T) {
	dir := t.TempDir()
	result := LoadAgentsMD(dir)
	if result != "" {
		t.Errorf("expected empty string, got %q", result)
	}
}

func TestLoadAgentsMD_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "AGENTS.md"), "")

	result := LoadAgentsMD(dir)
	if result != "" {
		t.Errorf("expected empty string for empty file, got %q", result)
	}
}

func TestLoadAgentsMD_WhitespaceOnlyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "AGENTS.md"), "   \n\n  ")

	result := LoadAgentsMD(dir)
	if result != "" {
		t.Errorf("expected empty string for whitespace-only file, got %q", result)
	}
}

func TestLoadAgentsMD_CWDAndParentCombined(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "project")
	os.MkdirAll(child, 0o755)
	os.MkdirAll(filepath.Join(child, ".goldbot"), 0o755)

	writeFile(t, filepath.Join(root, "AGENTS.md"), "root")
	writeFile(t, filepath.Join(child, "AGENTS.md"), "project")
	writeFile(t, filepath.Join(child, ".goldbot", "AGENTS.md"), "dot-goldbot")
	writeFile(t, filepath.Join(child, "AGENTS.local.md"), "local")

	result := LoadAgentsMD(child)
	parts := strings.Split(result, "\n\n---\n\n")
	if len(parts) != 4 {
		t.Fatalf("expected 4 parts, got %d: %q", len(parts), result)
	}
	if parts[0] != "project" {
		t.Errorf("part[0] = %q, want 'project'", parts[0])
	}
	if parts[1] != "dot-goldbot" {
		t.Errorf("part[1] = %q, want 'dot-goldbot'", parts[1])
	}
	if parts[2] != "local" {
		t.Errorf("part[2] = %q, want 'local'", parts[2])
	}
	if parts[3] != "root" {
		t.Errorf("part[3] = %q, want 'root'", parts[3])
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
