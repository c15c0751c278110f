package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Skill is a loaded SKILL.md: a name, one-line description shown in the
// system prompt, and the markdown body injected once the LLM decides to
// load it.
type Skill struct {
	Name        string
	Description string
	Content     string
}

var localSkillSubdirs = []string{".goldbot/skills", ".agents/skills", ".opencode/skills"}
var globalSkillSubdirs = []string{".config/opencode/skills", ".goldbot/skills", ".agents/skills"}

// DiscoverSkills scans project-local directories (walked from cwd up to the
// nearest .git root), then GoldBot's own skills directory, then the other
// global directories under $HOME. The first occurrence of each skill name
// wins.
func DiscoverSkills(cwd string) []Skill {
	var skills []Skill
	seen := make(map[string]bool)

	for _, dir := range walkToGitRoot(cwd) {
		for _, sub := range localSkillSubdirs {
			scanSkillDir(filepath.Join(dir, sub), &skills, seen)
		}
	}

	scanSkillDir(filepath.Join(goldbotHomeDir(), "skills"), &skills, seen)

	if home, err := os.UserHomeDir(); err == nil {
		for _, sub := range globalSkillSubdirs {
			scanSkillDir(filepath.Join(home, sub), &skills, seen)
		}
	}

	return skills
}

// SkillsSystemPrompt renders the "## Available Skills" section injected into
// the system prompt, or "" if no skills were discovered.
func SkillsSystemPrompt(skills []Skill) string {
	if len(skills) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n## Available Skills\n")
	b.WriteString("If the user's task matches one of the skills below, you MUST load it FIRST ")
	b.WriteString("before taking any other action. Loading a skill gives you specialized instructions ")
	b.WriteString("for that task — do not attempt the task without loading the relevant skill first.\n")
	b.WriteString("<thought>this task matches skill X</thought>\n<skill>skill-name</skill>\n\nSkills:\n")
	for _, s := range skills {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	return b.String()
}

func walkToGitRoot(start string) []string {
	var dirs []string
	cur := start
	for {
		dirs = append(dirs, cur)
		if info, err := os.Stat(filepath.Join(cur, ".git")); err == nil && info != nil {
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return dirs
}

func scanSkillDir(dir string, skills *[]Skill, seen map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillFile := filepath.Join(dir, entry.Name(), "SKILL.md")
		if _, err := os.Stat(skillFile); err != nil {
			continue
		}
		skill, ok := parseSkillFile(skillFile, entry.Name())
		if !ok || seen[skill.Name] {
			continue
		}
		seen[skill.Name] = true
		*skills = append(*skills, skill)
	}
}

func parseSkillFile(path, dirName string) (Skill, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, false
	}
	meta, body, ok := parseSkillFrontmatter(string(data))
	if !ok {
		return Skill{}, false
	}

	name := strings.TrimSpace(meta["name"])
	if name == "" || !isValidSkillName(name) || name != dirName {
		return Skill{}, false
	}

	return Skill{
		Name:        name,
		Description: strings.TrimSpace(meta["description"]),
		Content:     strings.TrimSpace(body),
	}, true
}

func isValidSkillName(name string) bool {
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}

// parseSkillFrontmatter splits "---\nkey: value\n---\nbody" into its
// key/value header and markdown body.
func parseSkillFrontmatter(content string) (map[string]string, string, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, "", false
	}

	meta := make(map[string]string)
	inBody := false
	var bodyLines []string
	for _, line := range lines[1:] {
		if !inBody && strings.TrimSpace(line) == "---" {
			inBody = true
			continue
		}
		if inBody {
			bodyLines = append(bodyLines, line)
			continue
		}
		if k, v, found := strings.Cut(line, ":"); found {
			meta[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if !inBody {
		return nil, "", false
	}
	return meta, strings.Join(bodyLines, "\n"), true
}

// SkillTool loads a discovered skill's body so the dispatcher can fold it
// into the conversation as the LLM's next turn. Skill loading is terminal
// for the action loop (ActionSkill.Blocking() == true): the content is the
// instructions the LLM follows instead of taking another action this turn.
type SkillTool struct {
	CWD string
}

func (s *SkillTool) Name() string        { return "Skill" }
func (s *SkillTool) Description() string { return "Loads a discovered skill's SKILL.md body by name." }
func (s *SkillTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []string{"name"},
	}
}
func (s *SkillTool) SideEffect() SideEffectType { return SideEffectNone }

func (s *SkillTool) Execute(_ context.Context, input map[string]any) (ToolOutput, error) {
	name, _ := input["name"].(string)
	if name == "" {
		return ToolOutput{Content: "Error: skill name is required", IsError: true}, nil
	}

	for _, skill := range DiscoverSkills(s.CWD) {
		if skill.Name == name {
			return ToolOutput{Content: skill.Content}, nil
		}
	}
	return ToolOutput{Content: fmt.Sprintf("Error: no skill named %q found", name), IsError: true}, nil
}
