package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jg-phare/goat/pkg/types"
)

// parseToolAction dispatches one <tool>name</tool> occurrence plus its
// owned parameter segment to the matching Action constructor, per the tool
// dispatch table in spec §4.1.
func parseToolAction(tool, body string) (types.Action, error) {
	switch {
	case tool == "shell":
		return parseShell(body)
	case tool == "explorer":
		return parseExplorer(body)
	case tool == "phase":
		return parsePhase(body)
	case tool == "update":
		return parseUpdate(body)
	case tool == "write":
		return parseWrite(body)
	case tool == "read":
		return parseRead(body)
	case tool == "search":
		return parseSearch(body)
	case tool == "web_search":
		return parseWebSearch(body)
	case tool == "set_mode":
		return parseSetMode(body)
	case tool == "plan":
		return parsePlan(body)
	case tool == "question":
		return parseQuestion(body)
	case tool == "todo":
		return parseTodo(body)
	case tool == "sub_agent":
		return parseSubAgent(body)
	case strings.HasPrefix(tool, "mcp_"):
		return parseMcp(tool, body)
	default:
		return types.Action{}, &ParseError{Reason: fmt.Sprintf("unsupported tool %q", tool)}
	}
}

func parseShell(body string) (types.Action, error) {
	cmd, ok := extractLastTag(body, "command")
	if !ok {
		return types.Action{}, missingTag("shell", "command")
	}
	return types.Action{Kind: types.ActionShell, Command: cmd}, nil
}

func parseExplorer(body string) (types.Action, error) {
	cmds := extractAllTags(body, "command")
	if len(cmds) == 0 {
		return types.Action{}, missingTag("explorer", "command")
	}
	return types.Action{Kind: types.ActionExplorer, Commands: cmds}, nil
}

func parsePhase(body string) (types.Action, error) {
	text, ok := extractLastTag(body, "phase")
	if !ok {
		return types.Action{}, missingTag("phase", "phase")
	}
	return types.Action{Kind: types.ActionPhase, PhaseText: text}, nil
}

func parseUpdate(body string) (types.Action, error) {
	path, ok := extractLastTag(body, "path")
	if !ok {
		return types.Action{}, missingTag("update", "path")
	}
	startStr, ok := extractLastTag(body, "line_start")
	if !ok {
		return types.Action{}, missingTag("update", "line_start")
	}
	endStr, ok := extractLastTag(body, "line_end")
	if !ok {
		return types.Action{}, missingTag("update", "line_end")
	}
	newString, ok := extractLastTagPreserveBlock(body, "new_string")
	if !ok {
		return types.Action{}, missingTag("update", "new_string")
	}
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil || start <= 0 {
		return types.Action{}, &ParseError{Reason: "update: line_start must be a positive integer"}
	}
	end, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil || end <= 0 {
		return types.Action{}, &ParseError{Reason: "update: line_end must be a positive integer"}
	}
	return types.Action{
		Kind:      types.ActionUpdateFile,
		Path:      path,
		LineStart: start,
		LineEnd:   end,
		NewString: newString,
	}, nil
}

func parseWrite(body string) (types.Action, error) {
	path, ok := extractLastTag(body, "path")
	if !ok {
		return types.Action{}, missingTag("write", "path")
	}
	content, ok := extractLastTagPreserveBlock(body, "content")
	if !ok {
		return types.Action{}, missingTag("write", "content")
	}
	return types.Action{Kind: types.ActionWriteFile, Path: path, Content: content}, nil
}

func parseRead(body string) (types.Action, error) {
	path, ok := extractLastTag(body, "path")
	if !ok {
		return types.Action{}, missingTag("read", "path")
	}
	action := types.Action{Kind: types.ActionReadFile, Path: path}
	if offStr, ok := extractLastTag(body, "offset"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(offStr)); err == nil {
			action.Offset = &v
		}
	}
	if limStr, ok := extractLastTag(body, "limit"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(limStr)); err == nil {
			action.Limit = &v
		}
	}
	return action, nil
}

func parseSearch(body string) (types.Action, error) {
	pattern, ok := extractLastTag(body, "pattern")
	if !ok {
		return types.Action{}, missingTag("search", "pattern")
	}
	path, ok := extractLastTag(body, "path")
	if !ok {
		path = "."
	}
	return types.Action{Kind: types.ActionSearchFiles, Pattern: pattern, SearchPath: path}, nil
}

func parseWebSearch(body string) (types.Action, error) {
	query, ok := extractLastTag(body, "query")
	if !ok {
		return types.Action{}, missingTag("web_search", "query")
	}
	return types.Action{Kind: types.ActionWebSearch, Query: query}, nil
}

// modePresetNames maps the names the LLM is instructed to emit to the
// internal AssistMode enum.
var modePresetNames = map[string]types.AssistMode{
	"agent":        types.ModeAgent,
	"accept_edits": types.ModeAcceptEdits,
	"acceptedits":  types.ModeAcceptEdits,
	"plan":         types.ModePlan,
}

func parseSetMode(body string) (types.Action, error) {
	raw, ok := extractLastTag(body, "mode")
	if !ok {
		return types.Action{}, missingTag("set_mode", "mode")
	}
	mode, ok := modePresetNames[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return types.Action{}, &ParseError{Reason: fmt.Sprintf("set_mode: unrecognized mode %q", raw)}
	}
	return types.Action{Kind: types.ActionSetMode, Mode: mode}, nil
}

var tagStripper = regexp.MustCompile(`</?[a-zA-Z_][\w-]*(?:\s[^>]*)?>`)

func parsePlan(body string) (types.Action, error) {
	content, ok := extractLastTag(body, "plan")
	if !ok {
		return types.Action{}, missingTag("plan", "plan")
	}
	content = tagStripper.ReplaceAllString(content, "")
	return types.Action{Kind: types.ActionPlan, PlanContent: strings.TrimSpace(content)}, nil
}

func parseQuestion(body string) (types.Action, error) {
	question, ok := extractLastTag(body, "question")
	if !ok {
		return types.Action{}, missingTag("question", "question")
	}
	opts := extractAllTags(body, "option")
	if len(opts) == 0 {
		return types.Action{}, missingTag("question", "option")
	}
	for i, o := range opts {
		if strings.Contains(o, "<user_input") {
			opts[i] = types.UserInputSentinel
		}
	}
	return types.Action{Kind: types.ActionQuestion, QuestionText: question, Options: opts}, nil
}

type rawTodoLine struct {
	Label  string `json:"label"`
	Status string `json:"status"`
}

func parseTodo(body string) (types.Action, error) {
	raw, ok := extractLastTag(body, "todo")
	if !ok {
		return types.Action{}, missingTag("todo", "todo")
	}
	var lines []rawTodoLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return types.Action{}, &ParseError{Reason: "todo: invalid JSON array: " + err.Error()}
	}
	items := make([]types.TodoLine, 0, len(lines))
	for _, l := range lines {
		status := types.TodoPending
		switch strings.ToLower(strings.TrimSpace(l.Status)) {
		case "done":
			status = types.TodoDone
		case "running":
			status = types.TodoRunning
		}
		items = append(items, types.TodoLine{Label: l.Label, Status: status})
	}
	return types.Action{Kind: types.ActionTodo, Items: items}, nil
}

type rawTaskNode struct {
	ID           string   `json:"id"`
	Task         string   `json:"task"`
	Model        string   `json:"model"`
	Role         string   `json:"role"`
	SystemPrompt string   `json:"system_prompt"`
	DependsOn    []string `json:"depends_on"`
	InputMerge   string   `json:"input_merge"`
}

type rawTaskGraph struct {
	Nodes       []rawTaskNode `json:"nodes"`
	OutputNodes []string      `json:"output_nodes"`
	OutputMerge string        `json:"output_merge"`
}

func parseSubAgent(body string) (types.Action, error) {
	raw, ok := extractLastTag(body, "graph")
	if !ok {
		return types.Action{}, missingTag("sub_agent", "graph")
	}
	var g rawTaskGraph
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return types.Action{}, &ParseError{Reason: "sub_agent: invalid JSON graph: " + err.Error()}
	}
	if len(g.Nodes) == 0 {
		return types.Action{}, &ParseError{Reason: "sub_agent: graph has no nodes"}
	}
	graph := &types.TaskGraph{
		OutputNodes: g.OutputNodes,
		OutputMerge: types.ParseOutputMerge(g.OutputMerge),
	}
	for _, n := range g.Nodes {
		if n.ID == "" || n.Task == "" {
			return types.Action{}, &ParseError{Reason: "sub_agent: every node needs id and task"}
		}
		graph.Nodes = append(graph.Nodes, types.TaskNode{
			ID:           n.ID,
			Task:         n.Task,
			Model:        n.Model,
			Role:         n.Role,
			SystemPrompt: n.SystemPrompt,
			DependsOn:    n.DependsOn,
			InputMerge:   types.ParseInputMerge(n.InputMerge),
		})
	}
	return types.Action{Kind: types.ActionSubAgent, Graph: graph}, nil
}

func parseMcp(tool, body string) (types.Action, error) {
	argsRaw, ok := extractLastTag(body, "arguments")
	if !ok {
		argsRaw, ok = extractLastTag(body, "args")
	}
	args := map[string]any{}
	if ok && strings.TrimSpace(argsRaw) != "" {
		obj, err := parseJSONObject(argsRaw)
		if err != nil {
			return types.Action{}, &ParseError{Reason: fmt.Sprintf("%s: arguments must be a JSON object: %s", tool, err.Error())}
		}
		args = obj
	}
	return types.Action{Kind: types.ActionMcp, ToolName: tool, Arguments: args}, nil
}

func parseJSONObject(raw string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return obj, nil
}
