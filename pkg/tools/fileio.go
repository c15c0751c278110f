package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	readDefaultLimit = 2000
	readMaxLineChars  = 2000
)

// ReadFileTool reads a file's content with 1-based line numbers, honoring an
// optional offset/limit window.
type ReadFileTool struct{ CWD string }

func (r *ReadFileTool) Name() string        { return "ReadFile" }
func (r *ReadFileTool) Description() string { return "Reads a file from the workspace, returning line-numbered content." }
func (r *ReadFileTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":   map[string]any{"type": "string"},
			"offset": map[string]any{"type": "integer"},
			"limit":  map[string]any{"type": "integer"},
		},
		"required": []string{"path"},
	}
}
func (r *ReadFileTool) SideEffect() SideEffectType { return SideEffectNone }

func (r *ReadFileTool) Execute(_ context.Context, input map[string]any) (ToolOutput, error) {
	path, _ := input["path"].(string)
	if path == "" {
		return ToolOutput{Content: "Error: path is required", IsError: true}, nil
	}
	full := resolvePath(r.CWD, path)

	data, err := os.ReadFile(full)
	if err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error reading %s: %s", path, err), IsError: true}, nil
	}
	text := normalizeText(data)
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	total := len(lines)

	offset := 1
	if o, ok := input["offset"].(int); ok && o > 0 {
		offset = o
	}
	limit := readDefaultLimit
	if l, ok := input["limit"].(int); ok && l > 0 {
		limit = l
	}

	start := offset - 1
	if start < 0 {
		start = 0
	}
	if start >= total {
		return ToolOutput{Content: fmt.Sprintf("(file has %d lines; offset %d is past the end)", total, offset)}, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	width := len(strconv.Itoa(total))
	var b strings.Builder
	for i := start; i < end; i++ {
		line := lines[i]
		if len([]rune(line)) > readMaxLineChars {
			line = string([]rune(line)[:readMaxLineChars]) + "...[line truncated]"
		}
		fmt.Fprintf(&b, "%*d\t%s\n", width, i+1, line)
	}
	if end < total {
		fmt.Fprintf(&b, "... (%d more lines)\n", total-end)
	}
	return ToolOutput{Content: strings.TrimRight(b.String(), "\n")}, nil
}

// WriteFileTool creates or overwrites a file with exact content.
type WriteFileTool struct{ CWD string }

func (w *WriteFileTool) Name() string        { return "WriteFile" }
func (w *WriteFileTool) Description() string { return "Creates or overwrites a file with the given content." }
func (w *WriteFileTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}, "content": map[string]any{"type": "string"}},
		"required":   []string{"path", "content"},
	}
}
func (w *WriteFileTool) SideEffect() SideEffectType { return SideEffectMutating }

func (w *WriteFileTool) Execute(_ context.Context, input map[string]any) (ToolOutput, error) {
	path, _ := input["path"].(string)
	content, _ := input["content"].(string)
	if path == "" {
		return ToolOutput{Content: "Error: path is required", IsError: true}, nil
	}
	full := resolvePath(w.CWD, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error creating parent directories: %s", err), IsError: true}, nil
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error writing %s: %s", path, err), IsError: true}, nil
	}
	lines := strings.Count(content, "\n") + 1
	return ToolOutput{Content: fmt.Sprintf("Wrote %s (%d lines)", path, lines)}, nil
}

// UpdateFileTool replaces an inclusive [line_start, line_end] (1-based) range
// with new_string, preserving the file's original line ending style and
// rendering a small unified-diff-style preview of the change.
type UpdateFileTool struct{ CWD string }

func (u *UpdateFileTool) Name() string        { return "UpdateFile" }
func (u *UpdateFileTool) Description() string { return "Replaces a line range in a file with new content." }
func (u *UpdateFileTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":       map[string]any{"type": "string"},
			"line_start": map[string]any{"type": "integer"},
			"line_end":   map[string]any{"type": "integer"},
			"new_string": map[string]any{"type": "string"},
		},
		"required": []string{"path", "line_start", "line_end", "new_string"},
	}
}
func (u *UpdateFileTool) SideEffect() SideEffectType { return SideEffectMutating }

func (u *UpdateFileTool) Execute(_ context.Context, input map[string]any) (ToolOutput, error) {
	path, _ := input["path"].(string)
	lineStart, _ := input["line_start"].(int)
	lineEnd, _ := input["line_end"].(int)
	newString, _ := input["new_string"].(string)
	if path == "" || lineStart < 1 || lineEnd < lineStart {
		return ToolOutput{Content: "Error: path, line_start and line_end (line_start <= line_end) are required", IsError: true}, nil
	}

	full := resolvePath(u.CWD, path)
	data, err := os.ReadFile(full)
	if err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error reading %s: %s", path, err), IsError: true}, nil
	}

	crlf := bytesHasCRLF(data)
	text := normalizeText(data)
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if lineEnd > len(lines) {
		return ToolOutput{Content: fmt.Sprintf("Error: file has %d lines, line_end %d out of range", len(lines), lineEnd), IsError: true}, nil
	}

	removed := lines[lineStart-1 : lineEnd]
	replacement := strings.Split(newString, "\n")

	out := make([]string, 0, len(lines)-(lineEnd-lineStart+1)+len(replacement))
	out = append(out, lines[:lineStart-1]...)
	out = append(out, replacement...)
	out = append(out, lines[lineEnd:]...)

	newline := "\n"
	if crlf {
		newline = "\r\n"
	}
	if err := os.WriteFile(full, []byte(strings.Join(out, newline)+newline), 0o644); err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error writing %s: %s", path, err), IsError: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Updated %s, lines %d-%d:\n", path, lineStart, lineEnd)
	for _, l := range removed {
		fmt.Fprintf(&b, "- %s\n", l)
	}
	for _, l := range replacement {
		fmt.Fprintf(&b, "+ %s\n", l)
	}
	return ToolOutput{Content: strings.TrimRight(b.String(), "\n")}, nil
}

func resolvePath(cwd, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if cwd == "" {
		cwd = "."
	}
	return filepath.Join(cwd, path)
}

func normalizeText(data []byte) string {
	s := string(data)
	s = strings.TrimPrefix(s, "\uFEFF")
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func bytesHasCRLF(data []byte) bool {
	return strings.Contains(string(data), "\r\n")
}
