package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	searchMaxMatches    = 300
	searchMaxLineChars  = 200
	searchMaxOutputChars = 10_000
	searchMaxFileBytes  = 512 * 1024
)

var searchSkipDirs = map[string]bool{
	"target": true, "node_modules": true, "dist": true, "build": true,
	"out": true, "obj": true, "vendor": true, "__pycache__": true,
	"Binaries": true, "Saved": true, "Intermediate": true, "DerivedDataCache": true,
}

// SearchFilesTool walks the workspace tree looking for lines matching a
// regex, skipping build output / VCS directories and binary or oversized
// files. An optional glob narrows which files are visited, matched with
// doublestar so "**/*.go"-style patterns work the same as shell globbing.
type SearchFilesTool struct{ CWD string }

func (s *SearchFilesTool) Name() string        { return "SearchFiles" }
func (s *SearchFilesTool) Description() string { return "Searches file contents for a regex pattern across the workspace tree." }
func (s *SearchFilesTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string"},
			"path":    map[string]any{"type": "string"},
			"glob":    map[string]any{"type": "string"},
		},
		"required": []string{"pattern"},
	}
}
func (s *SearchFilesTool) SideEffect() SideEffectType { return SideEffectNone }

func (s *SearchFilesTool) Execute(_ context.Context, input map[string]any) (ToolOutput, error) {
	pattern, _ := input["pattern"].(string)
	if pattern == "" {
		return ToolOutput{Content: "Error: pattern is required", IsError: true}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error: invalid pattern: %s", err), IsError: true}, nil
	}

	path, _ := input["path"].(string)
	if path == "" {
		path = "."
	}
	glob, _ := input["glob"].(string)

	root := s.CWD
	if root == "" {
		root = "."
	}
	searchRoot := path
	if !filepath.IsAbs(path) {
		searchRoot = filepath.Join(root, path)
	}

	w := &searchWalk{root: searchRoot, re: re, glob: glob}

	info, err := os.Stat(searchRoot)
	if err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error: %s", err), IsError: true}, nil
	}
	if info.IsDir() {
		w.walkDir(searchRoot)
	} else {
		w.searchFile(searchRoot, filepath.Base(searchRoot))
	}

	if w.truncated {
		w.output.WriteString("... (results truncated)\n")
	}
	output := w.output.String()
	if output == "" {
		output = "(no matches found)"
	}
	return ToolOutput{Content: fmt.Sprintf("%s\n%d match(es) in %d file(s)", strings.TrimRight(output, "\n"), w.matchCount, w.fileCount)}, nil
}

type searchWalk struct {
	root       string
	re         *regexp.Regexp
	glob       string
	output     strings.Builder
	matchCount int
	fileCount  int
	truncated  bool
}

func (w *searchWalk) walkDir(dir string) {
	if w.truncated {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		byName[e.Name()] = e
	}

	for _, name := range names {
		if w.truncated {
			return
		}
		entry := byName[name]
		path := filepath.Join(dir, name)
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			continue
		}
		if searchShouldSkip(rel) {
			continue
		}
		if entry.IsDir() {
			w.walkDir(path)
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if info, err := entry.Info(); err == nil && info.Size() > searchMaxFileBytes {
			continue
		}
		if w.glob != "" {
			if ok, _ := doublestar.Match(w.glob, filepath.ToSlash(rel)); !ok {
				continue
			}
		}
		w.searchFile(path, rel)
	}
}

func searchShouldSkip(rel string) bool {
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	if strings.HasPrefix(first, ".") {
		return true
	}
	return searchSkipDirs[first]
}

func (w *searchWalk) searchFile(path, rel string) {
	if w.truncated {
		return
	}
	text, ok := readTextForSearch(path)
	if !ok {
		return
	}

	fileHadMatch := false
	for lineno, line := range strings.Split(text, "\n") {
		if !w.re.MatchString(line) {
			continue
		}
		if !fileHadMatch {
			fileHadMatch = true
			w.fileCount++
		}
		w.matchCount++

		display := line
		if r := []rune(line); len(r) > searchMaxLineChars {
			display = string(r[:searchMaxLineChars]) + "…"
		}
		fmt.Fprintf(&w.output, "%s:%d: %s\n", filepath.ToSlash(rel), lineno+1, display)

		if w.output.Len() >= searchMaxOutputChars || w.matchCount >= searchMaxMatches {
			w.truncated = true
			return
		}
	}
}

func readTextForSearch(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if len(data) > searchMaxFileBytes {
		data = data[:searchMaxFileBytes]
	}
	for _, b := range data {
		if b == 0 {
			return "", false
		}
	}
	return normalizeText(data), true
}
