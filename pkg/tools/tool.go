// Package tools implements the Tool Dispatcher (C3): it turns a parsed
// Action into a concrete effect (run a command, touch a file, call an MCP
// server, ...) and renders the result text that goes back to the LLM as the
// next user turn.
//
// Every tool keeps the Name/Description/InputSchema/SideEffect/Execute shape
// regardless of how it is invoked. GoldBot never does LLM function-calling —
// actions arrive as already-parsed XML, not JSON tool-calls — so
// InputSchema has no function-calling role here. It is kept anyway as a
// human-readable parameter doc; no code outside this package reads it.
package tools

import "context"

// SideEffectType classifies a tool's impact on system state.
type SideEffectType int

const (
	SideEffectNone     SideEffectType = iota // ReadFile, SearchFiles
	SideEffectReadOnly                       // WebSearch
	SideEffectMutating                       // Shell, WriteFile, UpdateFile
	SideEffectNetwork                        // Mcp
	SideEffectBlocking                       // Question
	SideEffectSpawns                         // SubAgent
)

// ToolOutput is the result of a tool execution.
type ToolOutput struct {
	Content string // text content for the tool_result
	IsError bool   // when true, content is an error message
}

// Tool is the interface every concrete tool implements.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	SideEffect() SideEffectType
	Execute(ctx context.Context, input map[string]any) (ToolOutput, error)
}
