package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/jg-phare/goat/pkg/tools"
)

// ShellRunner runs GE's plumbing commands (git add/commit/show, done_when
// `cmd:` predicates) through pkg/tools.ShellTool, so they go through the
// same snapshot/output-capping path as every other shell command the main
// loop runs, and parses the "exit=%d\n" prefix that tool wraps its output
// in back out into a plain (exitCode, output) pair.
type ShellRunner struct {
	Tool *tools.ShellTool
}

// NewShellRunner builds a ShellRunner rooted at cwd.
func NewShellRunner(cwd string) *ShellRunner {
	return &ShellRunner{Tool: &tools.ShellTool{CWD: cwd}}
}

// Run implements CommandRunner.
func (r *ShellRunner) Run(ctx context.Context, command string) (int, string, error) {
	out, err := r.Tool.Execute(ctx, map[string]any{"command": command})
	if err != nil {
		return -1, err.Error(), err
	}
	if code, rest, ok := splitExitPrefix(out.Content); ok {
		return code, rest, nil
	}
	if out.IsError {
		return -1, out.Content, nil
	}
	return 0, out.Content, nil
}

func splitExitPrefix(content string) (int, string, bool) {
	const prefix = "exit="
	if !strings.HasPrefix(content, prefix) {
		return 0, "", false
	}
	nl := strings.IndexByte(content, '\n')
	if nl < 0 {
		return 0, "", false
	}
	code, err := strconv.Atoi(content[len(prefix):nl])
	if err != nil {
		return 0, "", false
	}
	return code, content[nl+1:], true
}
