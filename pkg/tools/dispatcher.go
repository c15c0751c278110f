package tools

import (
	"context"
	"fmt"

	"github.com/jg-phare/goat/pkg/mcp"
	"github.com/jg-phare/goat/pkg/types"
)

// Dispatcher turns a parsed Action into a tool Execute call, translating
// between the Action's typed fields and a tool's map[string]any input. Only
// the ten action kinds that carry real side effects go through here — Plan,
// Todo, SetMode, Phase, Question, Final and SubAgent are handled directly by
// the agent loop, which owns the conversational state those actions affect.
type Dispatcher struct {
	Shell      *ShellTool
	Explorer   *ExplorerTool
	ReadFile   *ReadFileTool
	WriteFile  *WriteFileTool
	UpdateFile *UpdateFileTool
	Search     *SearchFilesTool
	WebSearch  *WebSearchTool
	Mcp        *McpTool
	CreateMcp  *CreateMcpTool
	Skill      *SkillTool
}

// NewDispatcher wires every concrete tool against a shared working
// directory and MCP client.
func NewDispatcher(cwd string, mcpClient *mcp.Client, searchProvider SearchProvider, mcpReload func(context.Context, map[string]types.McpServerConfig) error) *Dispatcher {
	return &Dispatcher{
		Shell:      &ShellTool{CWD: cwd},
		Explorer:   &ExplorerTool{CWD: cwd},
		ReadFile:   &ReadFileTool{CWD: cwd},
		WriteFile:  &WriteFileTool{CWD: cwd},
		UpdateFile: &UpdateFileTool{CWD: cwd},
		Search:     &SearchFilesTool{CWD: cwd},
		WebSearch:  &WebSearchTool{Provider: searchProvider},
		Mcp:        &McpTool{Client: mcpClient},
		CreateMcp:  &CreateMcpTool{Reload: mcpReload},
		Skill:      &SkillTool{CWD: cwd},
	}
}

// Dispatch executes the tool-backed action and renders its ToolOutput. It
// returns an error only for action kinds this dispatcher doesn't own.
func (d *Dispatcher) Dispatch(ctx context.Context, action types.Action) (ToolOutput, error) {
	switch action.Kind {
	case types.ActionShell:
		return d.Shell.Execute(ctx, map[string]any{"command": action.Command})

	case types.ActionExplorer:
		return d.Explorer.Execute(ctx, map[string]any{"commands": action.Commands})

	case types.ActionReadFile:
		input := map[string]any{"path": action.Path}
		if action.Offset != nil {
			input["offset"] = *action.Offset
		}
		if action.Limit != nil {
			input["limit"] = *action.Limit
		}
		return d.ReadFile.Execute(ctx, input)

	case types.ActionWriteFile:
		return d.WriteFile.Execute(ctx, map[string]any{"path": action.Path, "content": action.Content})

	case types.ActionUpdateFile:
		return d.UpdateFile.Execute(ctx, map[string]any{
			"path":       action.Path,
			"line_start": action.LineStart,
			"line_end":   action.LineEnd,
			"new_string": action.NewString,
		})

	case types.ActionSearchFiles:
		return d.Search.Execute(ctx, map[string]any{"pattern": action.Pattern, "path": action.SearchPath})

	case types.ActionWebSearch:
		return d.WebSearch.Execute(ctx, map[string]any{"query": action.Query})

	case types.ActionMcp:
		return d.Mcp.Execute(ctx, map[string]any{"action_name": action.ToolName, "arguments": action.Arguments})

	case types.ActionCreateMcp:
		name, _ := action.McpConfig["name"].(string)
		return d.CreateMcp.Execute(ctx, map[string]any{"name": name, "config": action.McpConfig})

	case types.ActionSkill:
		return d.Skill.Execute(ctx, map[string]any{"name": action.SkillName})

	default:
		return ToolOutput{}, fmt.Errorf("action kind %q is not tool-backed", action.Kind)
	}
}
