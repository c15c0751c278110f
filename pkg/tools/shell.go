package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

const (
	shellMaxOutputChars   = 10_000
	shellMaxSnapshotFiles = 20_000
	shellMaxDiffPerKind   = 6
	shellMaxPreviewFiles  = 2
	shellMaxPreviewLines  = 8
	shellMaxPreviewChars  = 140
)

// ShellTool runs a command through the platform shell (bash -lc on POSIX,
// powershell -NoProfile -Command on Windows) and reports a filesystem-change
// summary alongside stdout/stderr, so the LLM sees what a command actually
// touched without having to run a separate ReadFile/SearchFiles round trip.
type ShellTool struct {
	CWD string
}

func (s *ShellTool) Name() string        { return "Shell" }
func (s *ShellTool) Description() string { return "Runs a shell command and reports its output plus any filesystem changes it made." }
func (s *ShellTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"command": map[string]any{"type": "string"}},
		"required":   []string{"command"},
	}
}
func (s *ShellTool) SideEffect() SideEffectType { return SideEffectMutating }

func (s *ShellTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	command, _ := input["command"].(string)
	if strings.TrimSpace(command) == "" {
		return ToolOutput{Content: "Error: command is required", IsError: true}, nil
	}

	cwd := s.CWD
	if cwd == "" {
		cwd = "."
	}

	before := snapshotFiles(cwd)

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", command)
	} else {
		cmd = exec.CommandContext(ctx, "bash", "-lc", command)
	}
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	after := snapshotFiles(cwd)
	fsSummary := buildFSSummary(cwd, before, after)

	text := stdout.String() + stderr.String()
	if fsSummary != "" {
		if strings.TrimSpace(text) != "" {
			text += "\n"
		}
		text += fsSummary
	}
	if strings.TrimSpace(text) == "" {
		text = "(no output)"
	}
	if len(text) > shellMaxOutputChars {
		text = text[:shellMaxOutputChars] + "\n...[truncated]"
	}

	return ToolOutput{Content: fmt.Sprintf("exit=%d\n%s", exitCode, text)}, nil
}

// ExplorerTool runs a batch of read-only-intent commands in sequence,
// stopping at the first failure, and labels each with the operation kind
// classify_command would assign so the transcript reads like a diff log.
type ExplorerTool struct {
	CWD string
}

func (e *ExplorerTool) Name() string        { return "Explorer" }
func (e *ExplorerTool) Description() string { return "Runs a sequence of read-only exploration commands." }
func (e *ExplorerTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"commands": map[string]any{"type": "array", "items": map[string]any{"type": "string"}}},
		"required":   []string{"commands"},
	}
}
func (e *ExplorerTool) SideEffect() SideEffectType { return SideEffectNone }

func (e *ExplorerTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	raw, _ := input["commands"].([]string)
	if len(raw) == 0 {
		return ToolOutput{Content: "Error: commands is required", IsError: true}, nil
	}

	shell := &ShellTool{CWD: e.CWD}
	var b strings.Builder
	for _, c := range raw {
		intent := classifyCommand(c)
		out, _ := shell.Execute(ctx, map[string]any{"command": c})
		b.WriteString(fmt.Sprintf("$ %s  [%s]\n%s\n\n", c, intent.Label(), out.Content))
		if out.IsError || !strings.HasPrefix(out.Content, "exit=0\n") {
			break
		}
	}
	return ToolOutput{Content: strings.TrimRight(b.String(), "\n")}, nil
}

// operationKind is the coarse classification classify_command assigns a
// shell command, used only for the human-readable Explorer label.
type operationKind int

const (
	opRead operationKind = iota
	opWrite
	opUpdate
	opBash
)

func (k operationKind) String() string {
	switch k {
	case opRead:
		return "Read"
	case opWrite:
		return "Write"
	case opUpdate:
		return "Update"
	default:
		return "Bash"
	}
}

type commandIntent struct {
	kind   operationKind
	target string
}

func (c commandIntent) Label() string {
	if c.target == "" {
		return c.kind.String()
	}
	return fmt.Sprintf("%s(%s)", c.kind.String(), c.target)
}

var readOnlyPrefixes = []string{
	"cat ", "less ", "more ", "ls", "pwd", "find ", "grep ", "rg ", "head ",
	"tail ", "wc ", "stat ", "du ", "tree", "git status", "git log", "git show",
}
var writePrefixes = []string{"tee ", "touch ", "printf ", "echo "}
var updatePrefixes = []string{
	"rm ", "mv ", "cp ", "mkdir ", "rmdir ", "chmod ", "chown ", "sed -i",
	"perl -pi", "git add ", "git rm ", "git mv ",
}

func classifyCommand(cmd string) commandIntent {
	trimmed := strings.TrimSpace(cmd)
	lower := strings.ToLower(trimmed)
	target := extractTarget(trimmed)

	var kind operationKind
	switch {
	case looksReadOnly(trimmed, lower):
		kind = opRead
	case looksWrite(trimmed, lower):
		kind = opWrite
	case looksUpdate(lower):
		kind = opUpdate
	default:
		kind = opBash
	}
	return commandIntent{kind: kind, target: target}
}

func looksReadOnly(trimmed, lower string) bool {
	if containsWriteRedirection(trimmed) {
		return false
	}
	return matchesAnyPrefix(lower, readOnlyPrefixes)
}

func looksWrite(trimmed, lower string) bool {
	if containsWriteRedirection(trimmed) || strings.Contains(lower, "<<") {
		return true
	}
	if matchesAnyPrefix(lower, writePrefixes) {
		return true
	}
	return strings.Contains(lower, "open(") && (strings.Contains(lower, `"w"`) || strings.Contains(lower, "'w'"))
}

func looksUpdate(lower string) bool {
	return matchesAnyPrefix(lower, updatePrefixes)
}

func matchesAnyPrefix(lower string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func containsWriteRedirection(cmd string) bool {
	b := []byte(cmd)
	for i := 0; i < len(b); i++ {
		if b[i] == '>' {
			if i+1 < len(b) && b[i+1] == '&' {
				i++
				continue
			}
			return true
		}
	}
	return false
}

func extractTarget(cmd string) string {
	if t := extractTargetFromRedirection(cmd); t != "" {
		return t
	}
	tokens := strings.Fields(cmd)
	if len(tokens) == 0 {
		return ""
	}
	switch tokens[0] {
	case "cat", "less", "more", "head", "tail", "stat", "rm", "mkdir", "rmdir", "touch", "chmod", "chown":
		for _, t := range tokens[1:] {
			if !strings.HasPrefix(t, "-") {
				return normalizeTarget(t)
			}
		}
	case "mv", "cp":
		return normalizeTarget(tokens[len(tokens)-1])
	}
	return ""
}

func extractTargetFromRedirection(cmd string) string {
	tokens := strings.Fields(cmd)
	for i, t := range tokens {
		if (t == ">" || t == ">>") && i+1 < len(tokens) {
			return normalizeTarget(tokens[i+1])
		}
	}
	b := []byte(cmd)
	for i := 0; i < len(b); i++ {
		if b[i] != '>' {
			continue
		}
		if i+1 < len(b) && b[i+1] == '&' {
			continue
		}
		j := i + 1
		for j < len(b) && b[j] == ' ' {
			j++
		}
		if j < len(b) && b[j] == '>' {
			j++
		}
		for j < len(b) && b[j] == ' ' {
			j++
		}
		start := j
		for j < len(b) && b[j] != ' ' {
			j++
		}
		if start < j {
			return normalizeTarget(cmd[start:j])
		}
	}
	return ""
}

func normalizeTarget(s string) string {
	cleaned := strings.Trim(s, "'\"`;,)")
	if cleaned == "" || strings.HasPrefix(cleaned, "-") {
		return ""
	}
	return cleaned
}

// fileSignature is the cheap (size, mtime) pair used to detect file changes
// between two snapshots without hashing content.
type fileSignature struct {
	size     int64
	modified time.Time
}

func snapshotFiles(root string) map[string]fileSignature {
	out := make(map[string]fileSignature)
	walkSnapshot(root, root, out)
	return out
}

func walkSnapshot(root, dir string, out map[string]fileSignature) {
	if len(out) >= shellMaxSnapshotFiles {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if len(out) >= shellMaxSnapshotFiles {
			return
		}
		path := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if snapshotShouldSkip(rel) {
			continue
		}
		if entry.IsDir() {
			walkSnapshot(root, path, out)
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out[rel] = fileSignature{size: info.Size(), modified: info.ModTime()}
	}
}

func snapshotShouldSkip(rel string) bool {
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return first == ".git" || first == "target"
}

func buildFSSummary(root string, before, after map[string]fileSignature) string {
	var created, deleted, updated []string
	for p := range after {
		if _, ok := before[p]; !ok {
			created = append(created, p)
		}
	}
	for p := range before {
		if _, ok := after[p]; !ok {
			deleted = append(deleted, p)
		}
	}
	for p, sigBefore := range before {
		if sigAfter, ok := after[p]; ok && sigAfter != sigBefore {
			updated = append(updated, p)
		}
	}
	if len(created) == 0 && len(deleted) == 0 && len(updated) == 0 {
		return ""
	}
	sort.Strings(created)
	sort.Strings(deleted)
	sort.Strings(updated)

	var lines []string
	lines = append(lines, "Filesystem changes:")
	lines = append(lines, pushChangeLines("created", created, '+')...)
	lines = append(lines, pushChangeLines("updated", updated, '~')...)
	lines = append(lines, pushChangeLines("deleted", deleted, '-')...)

	preview := append(append([]string{}, created...), updated...)
	if len(preview) > shellMaxPreviewFiles {
		preview = preview[:shellMaxPreviewFiles]
	}
	for _, p := range preview {
		if text := readPreview(root, p); text != "" {
			lines = append(lines, fmt.Sprintf("Preview %s:", filepath.ToSlash(p)))
			for _, l := range strings.Split(text, "\n") {
				lines = append(lines, "  "+l)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func pushChangeLines(label string, paths []string, marker byte) []string {
	if len(paths) == 0 {
		return nil
	}
	out := []string{fmt.Sprintf("  %s (%d)", label, len(paths))}
	shown := paths
	if len(shown) > shellMaxDiffPerKind {
		shown = shown[:shellMaxDiffPerKind]
	}
	for _, p := range shown {
		out = append(out, fmt.Sprintf("    %c %s", marker, filepath.ToSlash(p)))
	}
	if len(paths) > shellMaxDiffPerKind {
		out = append(out, fmt.Sprintf("    ... and %d more", len(paths)-shellMaxDiffPerKind))
	}
	return out
}

func readPreview(root, rel string) string {
	content, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return ""
	}
	lines := strings.Split(string(content), "\n")
	if len(lines) > shellMaxPreviewLines {
		lines = lines[:shellMaxPreviewLines]
	}
	var out []string
	for _, l := range lines {
		r := []rune(l)
		if len(r) > shellMaxPreviewChars {
			l = string(r[:shellMaxPreviewChars]) + "..."
		}
		out = append(out, l)
	}
	text := strings.Join(out, "\n")
	if text == "" {
		return "(empty file)"
	}
	return text
}
