package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jg-phare/goat/pkg/mcp"
	"github.com/jg-phare/goat/pkg/types"
)

func newTestDispatcher(t *testing.T, cwd string) *Dispatcher {
	t.Helper()
	return NewDispatcher(cwd, mcp.NewClient(), StubSearchProvider{}, nil)
}

func TestDispatcher_Shell(t *testing.T) {
	dir := t.TempDir()
	d := newTestDispatcher(t, dir)

	out, err := d.Dispatch(context.Background(), types.Action{Kind: types.ActionShell, Command: "echo hi"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "hi") {
		t.Errorf("unexpected output: %q", out.Content)
	}
}

func TestDispatcher_Explorer(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644)
	d := newTestDispatcher(t, dir)

	out, err := d.Dispatch(context.Background(), types.Action{Kind: types.ActionExplorer, Commands: []string{"cat a.txt"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "Read(a.txt)") {
		t.Errorf("unexpected output: %q", out.Content)
	}
}

func TestDispatcher_ReadWriteUpdateFile(t *testing.T) {
	dir := t.TempDir()
	d := newTestDispatcher(t, dir)

	_, err := d.Dispatch(context.Background(), types.Action{Kind: types.ActionWriteFile, Path: "f.txt", Content: "one\ntwo\n"})
	if err != nil {
		t.Fatal(err)
	}

	out, err := d.Dispatch(context.Background(), types.Action{Kind: types.ActionReadFile, Path: "f.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "1\tone") {
		t.Errorf("unexpected read output: %q", out.Content)
	}

	_, err = d.Dispatch(context.Background(), types.Action{
		Kind: types.ActionUpdateFile, Path: "f.txt", LineStart: 1, LineEnd: 1, NewString: "ONE",
	})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "f.txt"))
	if string(data) != "ONE\ntwo\n" {
		t.Errorf("unexpected file content: %q", data)
	}
}

func TestDispatcher_SearchFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.go"), []byte("needle"), 0o644)
	d := newTestDispatcher(t, dir)

	out, err := d.Dispatch(context.Background(), types.Action{Kind: types.ActionSearchFiles, Pattern: "needle"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "a.go") {
		t.Errorf("unexpected output: %q", out.Content)
	}
}

func TestDispatcher_WebSearch(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	out, err := d.Dispatch(context.Background(), types.Action{Kind: types.ActionWebSearch, Query: "golang"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsError {
		t.Error("expected stub provider to report an error")
	}
}

func TestDispatcher_Mcp_UnknownAction(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	out, err := d.Dispatch(context.Background(), types.Action{Kind: types.ActionMcp, ToolName: "mcp_none_none"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsError {
		t.Error("expected IsError for unknown MCP action")
	}
}

func TestDispatcher_CreateMcp(t *testing.T) {
	t.Setenv("GOLDBOT_MEMORY_DIR", t.TempDir())
	t.Setenv("GOLDBOT_MCP_SERVERS_FILE", "")
	d := newTestDispatcher(t, t.TempDir())

	out, err := d.Dispatch(context.Background(), types.Action{
		Kind:      types.ActionCreateMcp,
		McpConfig: map[string]any{"name": "srv", "command": "npx"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.IsError {
		t.Fatalf("unexpected error: %q", out.Content)
	}
}

func TestDispatcher_Skill_UnknownName(t *testing.T) {
	t.Setenv("GOLDBOT_MEMORY_DIR", t.TempDir())
	d := newTestDispatcher(t, t.TempDir())
	out, err := d.Dispatch(context.Background(), types.Action{Kind: types.ActionSkill, SkillName: "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsError {
		t.Error("expected IsError for unknown skill")
	}
}

func TestDispatcher_RejectsNonToolActions(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	_, err := d.Dispatch(context.Background(), types.Action{Kind: types.ActionFinal, Summary: "done"})
	if err == nil {
		t.Error("expected error for non-tool-backed action kind")
	}
}
