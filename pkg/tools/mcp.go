package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jg-phare/goat/pkg/mcp"
)

// McpTool dispatches an action_name (mcp_<server>_<tool>) to the connected
// MCP server that registered it. Unknown names get a best-effort suggestion
// instead of a bare "not found" — an LLM that slightly misspells a tool name
// (or uses the double-underscore mcp__server__tool variant some servers
// advertise in their own docs) has a shot at self-correcting.
type McpTool struct {
	Client *mcp.Client
}

func (m *McpTool) Name() string        { return "Mcp" }
func (m *McpTool) Description() string { return "Calls a tool on a connected MCP server by its mcp_<server>_<tool> action name." }
func (m *McpTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action_name": map[string]any{"type": "string"},
			"arguments":   map[string]any{"type": "object"},
		},
		"required": []string{"action_name"},
	}
}
func (m *McpTool) SideEffect() SideEffectType { return SideEffectNetwork }

func (m *McpTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	actionName, _ := input["action_name"].(string)
	if actionName == "" {
		return ToolOutput{Content: "Error: action_name is required", IsError: true}, nil
	}
	args, _ := input["arguments"].(map[string]any)

	if m.Client == nil {
		return ToolOutput{Content: "Error: no MCP servers configured", IsError: true}, nil
	}

	resolved := normalizeMcpActionName(actionName)
	if _, _, ok := m.Client.ActionName(resolved); !ok {
		return ToolOutput{Content: suggestMcpAction(m.Client, actionName), IsError: true}, nil
	}

	result, err := m.Client.CallAction(ctx, resolved, normalizeMcpArguments(resolved, args))
	if err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error calling %s: %s", resolved, err), IsError: true}, nil
	}

	var b strings.Builder
	for i, block := range result.Content {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch block.Type {
		case "text":
			b.WriteString(block.Text)
		case "image":
			fmt.Fprintf(&b, "[image: %s]", block.MimeType)
		case "resource":
			fmt.Fprintf(&b, "[resource: %s]", block.URI)
		default:
			fmt.Fprintf(&b, "[%s content]", block.Type)
		}
	}
	return ToolOutput{Content: b.String(), IsError: result.IsError}, nil
}

// normalizeMcpActionName accepts the legacy mcp__server__tool (double
// underscore) spelling some MCP client docs use and rewrites it to GoldBot's
// mcp_server_tool single-underscore scheme.
func normalizeMcpActionName(name string) string {
	if strings.Contains(name, "__") {
		return strings.ReplaceAll(name, "__", "_")
	}
	return name
}

// normalizeMcpArguments fills a missing "query" argument from "libraryName"
// for context7 actions, so a close-enough call still succeeds instead of
// failing on a naming mismatch. No other aliases are handled.
func normalizeMcpArguments(actionName string, args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	if _, hasQuery := args["query"]; !hasQuery {
		if lib, ok := args["libraryName"]; ok && strings.Contains(actionName, "context7") {
			args["query"] = lib
		}
	}
	return args
}

// suggestMcpAction renders an error listing the closest-matching registered
// action names, so the caller can retry instead of giving up.
func suggestMcpAction(client *mcp.Client, requested string) string {
	names := client.ActionNames()
	if len(names) == 0 {
		return fmt.Sprintf("Error: unknown MCP action %q (no MCP servers are connected)", requested)
	}

	type scored struct {
		name string
		dist int
	}
	var candidates []scored
	for _, n := range names {
		candidates = append(candidates, scored{n, levenshtein(requested, n)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	limit := 5
	if len(candidates) < limit {
		limit = len(candidates)
	}
	var suggestions []string
	for _, c := range candidates[:limit] {
		suggestions = append(suggestions, c.name)
	}
	return fmt.Sprintf("Error: unknown MCP action %q. Did you mean one of: %s?", requested, strings.Join(suggestions, ", "))
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	row := make([]int, lb+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= la; i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= lb; j++ {
			tmp := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min3(row[j]+1, row[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return row[lb]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
