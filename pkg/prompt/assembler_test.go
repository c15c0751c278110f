package prompt

import "testing"
import "strings"

func TestSystemPrompt_MentionsWireFormat(t *testing.T) {
	sp := SystemPrompt()
	for _, tag := range []string{"<thought>", "<tool>", "<final>", "shell", "sub_agent"} {
		if !strings.Contains(sp, tag) {
			t.Errorf("system prompt missing %q", tag)
		}
	}
}

func TestContextPrefix_WorkspaceAlwaysPresent(t *testing.T) {
	got := ContextPrefix(Config{CWD: "/work"})
	if !strings.Contains(got, "# Workspace") || !strings.Contains(got, "/work") {
		t.Errorf("expected workspace section, got %q", got)
	}
}

func TestContextPrefix_OmitsEmptySections(t *testing.T) {
	got := ContextPrefix(Config{CWD: "/work"})
	for _, section := range []string{"# Memory", "# AGENTS.md", "# Rules", "# Available skills", "# MCP servers", "# Plan mode"} {
		if strings.Contains(got, section) {
			t.Errorf("expected %q to be omitted when unset, got %q", section, got)
		}
	}
}

func TestContextPrefix_IncludesSetSections(t *testing.T) {
	got := ContextPrefix(Config{
		CWD:         "/work",
		MemoryNotes: []string{"- did x → worked"},
		AgentsMD:    "build with make",
		Rules:       []string{"always run tests"},
		Skills:      []SkillSummary{{Name: "debug", Description: "helps debug"}},
		McpServers:  []string{"weather"},
		PlanMode:    true,
	})
	for _, want := range []string{"# Memory", "did x", "# AGENTS.md", "build with make", "# Rules", "always run tests", "# Available skills", "debug", "# MCP servers", "weather", "# Plan mode"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected prefix to contain %q, got %q", want, got)
		}
	}
}
