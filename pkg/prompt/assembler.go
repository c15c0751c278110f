// Package prompt assembles the two fixed messages at the head of every
// conversation buffer: the immutable system prompt (index 0) that teaches
// the model GoldBot's tagged wire format, and the assistant-context prefix
// (index 1) that carries workspace info, memory hints, AGENTS.md, and the
// plan-mode appendix, rewritten in place every turn rather than re-appended
// (spec §3/§4.2).
package prompt

import (
	"fmt"
	"strings"
)

// Config carries everything the assembler needs to build the two fixed
// messages for one workspace.
type Config struct {
	CWD      string
	OS       string
	Shell    string
	GitBranch string
	GitStatus string

	// MemoryNotes are long-term notes loaded from MEMORY.md (pkg/memory).
	MemoryNotes []string
	// AgentsMD is the combined content from LoadAgentsMD, or "".
	AgentsMD string
	// Rules are the active rule bodies already filtered by MatchRules, or nil.
	Rules []string
	// Skills lists discovered skill names+descriptions for the reminder.
	Skills []SkillSummary
	// McpServers lists connected MCP server names.
	McpServers []string
	// PlanMode is true when the assist mode is Plan (spec §3's AssistMode).
	PlanMode bool
}

// SkillSummary is the minimal per-skill info the prefix needs to mention a
// discovered skill without inlining its body.
type SkillSummary struct {
	Name        string
	Description string
}

// SystemPrompt returns the fixed, immutable system prompt (message index 0).
// It is identical across turns and across workspaces: it teaches the model
// the tagged wire format of spec §6 rather than embedding workspace state
// (that lives in the assistant-context prefix instead).
func SystemPrompt() string {
	return strings.TrimSpace(systemPromptText)
}

const systemPromptText = `
You are GoldBot, an autonomous shell operator. You are given a task and you
drive it to completion by reasoning about what to do next and invoking at
most one blocking tool per response.

# Response format

Every response MUST match one of these shapes:

  <thought>...</thought><tool>NAME</tool><...per-tool sub-tags...>
  <thought>...</thought><final>summary</final>
  <thought>...</thought><skill>name</skill>
  <create_mcp>{...}</create_mcp>

A response may be preceded by non-blocking tool calls (phase, todo, plan,
set_mode) before the single blocking tool call that ends the turn. Only one
blocking tool (shell, explorer, read, write, update, search, web_search,
question, sub_agent, mcp_<server>_<tool>) may appear per response; everything
after the first blocking tool is ignored.

# Tools

- shell: <command>...</command> — runs one shell command.
- explorer: one or more <command>...</command> — runs a batch of read-only
  exploration commands in sequence.
- read: <path>...</path>, optional <offset>, <limit> — reads a file.
- write: <path>...</path>, <content>...</content> — creates or overwrites a file.
- update: <path>, <line_start>, <line_end>, <new_string> — replaces a line range.
- search: <pattern>...</pattern>, optional <path> — regex search under a directory.
- web_search: <query>...</query> — searches the web.
- mcp_<server>_<tool>: optional <arguments>{...}</arguments> — calls an MCP tool.
- question: <question>...</question>, two or more <option>...</option> — asks the user.
- sub_agent: <graph>{...}</graph> — runs a DAG of sub-agents and merges their output.
- plan: <plan>...</plan> — shares a plan; non-blocking.
- todo: <todo>[...]</todo> — a JSON array of {label, status}; non-blocking.
- set_mode: <mode>...</mode> — changes the assist mode; non-blocking.
- phase: <phase>...</phase> — announces the current phase; non-blocking.
- skill: <skill>name</skill> — loads a discovered skill; ends the turn.
- create_mcp: <create_mcp>{...}</create_mcp> — registers a new MCP server; ends the turn.
- final: <final>summary</final> — ends the task.

Never echo your raw response verbatim back to yourself. If a tool result
reports a parse error, fix the shape of your next response — do not repeat
the same malformed tags.
`

// ContextPrefix builds the assistant-context prefix (message index 1) from
// cfg. It is rewritten in place every turn by the caller (pkg/context),
// never re-appended, per spec §3's invariant.
func ContextPrefix(cfg Config) string {
	var parts []string

	parts = append(parts, formatWorkspaceSection(cfg))

	if len(cfg.MemoryNotes) > 0 {
		parts = append(parts, formatMemorySection(cfg.MemoryNotes))
	}

	if cfg.AgentsMD != "" {
		parts = append(parts, "# AGENTS.md\n\n"+cfg.AgentsMD)
	}

	if len(cfg.Rules) > 0 {
		parts = append(parts, "# Rules\n\n"+strings.Join(cfg.Rules, "\n\n"))
	}

	if len(cfg.Skills) > 0 {
		parts = append(parts, formatSkillsSection(cfg.Skills))
	}

	if len(cfg.McpServers) > 0 {
		parts = append(parts, "# MCP servers\n\nConnected: "+strings.Join(cfg.McpServers, ", "))
	}

	if cfg.PlanMode {
		parts = append(parts, planModeAppendix)
	}

	return strings.Join(parts, "\n\n")
}

func formatWorkspaceSection(cfg Config) string {
	var lines []string
	lines = append(lines, "# Workspace")
	if cfg.CWD != "" {
		lines = append(lines, fmt.Sprintf("- Working directory: %s", cfg.CWD))
	}
	if cfg.OS != "" {
		lines = append(lines, fmt.Sprintf("- Platform: %s", cfg.OS))
	}
	if cfg.Shell != "" {
		lines = append(lines, fmt.Sprintf("- Shell: %s", cfg.Shell))
	}
	if cfg.GitBranch != "" {
		lines = append(lines, fmt.Sprintf("- Git branch: %s", cfg.GitBranch))
	}
	if cfg.GitStatus != "" {
		lines = append(lines, fmt.Sprintf("- Git status:\n%s", cfg.GitStatus))
	}
	return strings.Join(lines, "\n")
}

func formatMemorySection(notes []string) string {
	return "# Memory\n\n" + strings.Join(notes, "\n")
}

func formatSkillsSection(skills []SkillSummary) string {
	var lines []string
	lines = append(lines, "# Available skills")
	for _, s := range skills {
		lines = append(lines, fmt.Sprintf("- %s: %s", s.Name, s.Description))
	}
	return strings.Join(lines, "\n")
}

const planModeAppendix = `# Plan mode

You are in Plan mode. Investigate and share a <plan> before making any
mutating change. Do not run write/update/mutating shell commands until the
user has approved the plan and the mode has changed away from Plan.`
