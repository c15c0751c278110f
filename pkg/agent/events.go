// Package agent implements the Agent Executor (C4): a turn-by-turn state
// machine that parses an LLM response into Actions (pkg/parser), dispatches
// at most one blocking tool per turn (pkg/tools), mediates a confirmation
// gate for risky shell commands (pkg/permission), and decides when to
// re-invoke the LLM. It owns a single *types.AppState per run and never
// shares it outside the goroutine that mutates it; every observable side
// effect is surfaced as an Event on a channel, mirroring the way the
// teacher's pkg/agent/loop.go drove its SDKMessage channel.
package agent

import "github.com/jg-phare/goat/pkg/types"

// EventKind discriminates the Event union the executor emits for the (out of
// scope) UI layer to render.
type EventKind string

const (
	EventUserTask          EventKind = "user_task"
	EventThinking          EventKind = "thinking"
	EventToolCall          EventKind = "tool_call"
	EventToolResult        EventKind = "tool_result"
	EventNeedsConfirmation EventKind = "needs_confirmation"
	EventQuestion          EventKind = "question"
	EventPlan              EventKind = "plan"
	EventTodo              EventKind = "todo"
	EventPhase             EventKind = "phase"
	EventSetMode           EventKind = "set_mode"
	EventFinal             EventKind = "final"
	EventParseError        EventKind = "parse_error"
	EventStatusPreview     EventKind = "status_preview"
)

// Event is one observable step the executor took. Only the fields relevant
// to Kind are populated. Rendering (TUI layout, markdown, tree views) is an
// external collaborator's job per spec §1 — this struct is the interface
// boundary, not a presentation model.
type Event struct {
	Kind EventKind

	Text     string // UserTask/Thinking/Plan/Phase/ParseError/StatusPreview text
	ToolName string // ToolCall/ToolResult
	Command  string // ToolCall/NeedsConfirmation
	Reason   string // NeedsConfirmation
	ExitCode int    // ToolResult
	Output   string // ToolResult

	Question *types.PendingQuestion // Question
	Todos    []types.TodoLine       // Todo
	Mode     types.AssistMode       // SetMode
	Summary  string                 // Final
}

// Emitter receives Events from a running Executor. Implementations must not
// block indefinitely — the executor is single-threaded and a slow Emitter
// stalls the whole loop, exactly as a full UI channel would in the teacher's
// design.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a plain function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

// ChanEmitter is the channel-backed Emitter a real UI consumes from, the
// same shape as the teacher's `chan types.SDKMessage`.
type ChanEmitter struct {
	C chan Event
}

// NewChanEmitter allocates a buffered channel emitter.
func NewChanEmitter(buffer int) *ChanEmitter {
	return &ChanEmitter{C: make(chan Event, buffer)}
}

func (e *ChanEmitter) Emit(ev Event) { e.C <- ev }
