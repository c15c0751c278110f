package prompt

import (
	"fmt"
	"strings"

	"github.com/jg-phare/goat/pkg/types"
)

// AssembleSubAgentPrompt builds the system prompt for one TaskGraph node
// (spec §3's TaskNode): the node's custom SystemPrompt overrides its Role
// preset when set (pkg/subagent.RolePrompt resolves presets), followed by
// the workspace's environment details so a sub-agent knows where it runs
// without inheriting the parent's full assistant-context prefix (memory
// notes, AGENTS.md, rules stay with the main loop only).
func AssembleSubAgentPrompt(node types.TaskNode, rolePrompt string, cwd string) string {
	var parts []string

	switch {
	case node.SystemPrompt != "":
		parts = append(parts, node.SystemPrompt)
	case rolePrompt != "":
		parts = append(parts, rolePrompt)
	}

	parts = append(parts, formatSubAgentEnvironment(cwd))

	return strings.Join(parts, "\n\n")
}

func formatSubAgentEnvironment(cwd string) string {
	if cwd == "" {
		return "# Environment"
	}
	return fmt.Sprintf("# Environment\n- Working directory: %s", cwd)
}
