package prompt

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadAgentsMD discovers and loads AGENTS.md files from the directory
// hierarchy, for splicing into the assistant-context prefix (spec §3).
// It searches cwd and parent directories, returning the combined content
// with files separated by "\n\n---\n\n", nearest directory first.
//
// Loading order at each directory level:
//  1. AGENTS.md
//  2. .goldbot/AGENTS.md
//  3. AGENTS.local.md
//
// Returns "" if no files are found.
func LoadAgentsMD(cwd string) string {
	var sections []string

	sections = appendAgentsMDFiles(sections, cwd)

	parent := filepath.Dir(cwd)
	for parent != cwd {
		sections = appendAgentsMDFiles(sections, parent)
		cwd = parent
		parent = filepath.Dir(parent)
	}

	return strings.Join(sections, "\n\n---\n\n")
}

// appendAgentsMDFiles checks for all three AGENTS.md file patterns in a directory.
func appendAgentsMDFiles(sections []string, dir string) []string {
	sections = appendIfExists(sections, filepath.Join(dir, "AGENTS.md"))
	sections = appendIfExists(sections, filepath.Join(dir, ".goldbot", "AGENTS.md"))
	sections = appendIfExists(sections, filepath.Join(dir, "AGENTS.local.md"))
	return sections
}

// appendIfExists reads a file and appends its content to the slice if the
// file exists and has non-empty content, resolving @import directives
// relative to the file's directory.
func appendIfExists(sections []string, path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return sections
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return sections
	}
	resolved, err := ResolveImports(content, filepath.Dir(path))
	if err == nil {
		content = resolved
	}
	return append(sections, content)
}
