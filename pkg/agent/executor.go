package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gocontext "github.com/jg-phare/goat/pkg/context"
	"github.com/jg-phare/goat/pkg/parser"
	"github.com/jg-phare/goat/pkg/permission"
	"github.com/jg-phare/goat/pkg/tools"
	"github.com/jg-phare/goat/pkg/types"
)

// ErrNotIdle is returned by StartTask when the executor is not in the Idle
// state (spec §4.4).
var ErrNotIdle = errors.New("executor: not idle")

// ErrNoPendingConfirm / ErrNoPendingQuestion guard the confirm/question
// transition methods against being called out of state.
var (
	ErrNoPendingConfirm  = errors.New("executor: no pending confirmation")
	ErrNoPendingQuestion = errors.New("executor: no pending question")
)

// parseErrorInstruction is the canned user message pushed after an
// unparseable response, naming the valid wire shapes (spec §7).
const parseErrorInstruction = `Your last response could not be parsed. Replies must match one of:
<thought>...</thought><tool>NAME</tool>...per-tool tags...
<thought>...</thought><final>summary</final>
<thought>...</thought><skill>name</skill>
<create_mcp>{...}</create_mcp>
Valid tool names: shell, explorer, phase, read, write, update, search, web_search, set_mode, plan, question, todo, sub_agent, mcp_<server>_<tool>.`

// SubAgentRunner executes a validated TaskGraph and returns the merged
// result text per the graph's OutputMerge policy. Implemented by
// pkg/subagent.
type SubAgentRunner interface {
	Run(ctx context.Context, graph *types.TaskGraph) (string, error)
}

// Config wires an Executor's collaborators.
type Config struct {
	Provider   Provider
	Dispatcher *tools.Dispatcher
	Compactor  *gocontext.Compactor
	SubAgents  SubAgentRunner
	Emit       Emitter

	ShowThinking bool
}

// Executor drives the Agent Executor (C4) state machine of spec §4.4 over a
// single *types.AppState. It is single-owner: every method must be called
// from the same goroutine (typically the UI's event loop), exactly as
// spec §9 requires of AppState itself.
type Executor struct {
	cfg   Config
	state *types.AppState

	lastPreview string
}

// NewExecutor creates an Executor with a fresh AppState seeded with the
// fixed System message (index 0, immutable after this point) and, when
// non-empty, the Assistant-context prefix (index 1, rewritten in place by
// later calls to SetContextPrefix).
func NewExecutor(cfg Config, systemPrompt string) *Executor {
	st := &types.AppState{
		Messages:   []types.Message{types.NewMessage(types.RoleSystem, systemPrompt)},
		AssistMode: types.ModeAgent,
	}
	return &Executor{cfg: cfg, state: st}
}

// State returns the live AppState. Callers must not mutate it directly.
func (e *Executor) State() *types.AppState { return e.state }

// SetContextPrefix rewrites index 1 (the fixed Assistant-context prefix) in
// place, inserting it if absent, per spec §3's Message invariant.
func (e *Executor) SetContextPrefix(content string) {
	msg := types.NewMessage(types.RoleAssistant, content)
	if len(e.state.Messages) >= 2 {
		e.state.Messages[1] = msg
		return
	}
	e.state.Messages = append(e.state.Messages, msg)
}

func (e *Executor) emit(ev Event) {
	if e.cfg.Emit != nil {
		e.cfg.Emit.Emit(ev)
	}
}

// StartTask transitions Idle -> LlmInFlight: it pushes the user's task,
// resets per-turn counters, and drives the loop until the executor reaches
// a state that needs external input (AwaitingConfirm/AwaitingQuestion) or
// Finished.
func (e *Executor) StartTask(ctx context.Context, task string) error {
	if !e.state.Idle() {
		return ErrNotIdle
	}
	e.state.Running = true
	e.state.StepsTaken = 0
	e.state.FinalSummary = nil
	e.state.Messages = append(e.state.Messages, types.NewMessage(types.RoleUser, task))
	e.emit(Event{Kind: EventUserTask, Text: task})
	return e.drive(ctx)
}

// drive repeatedly calls the LLM and dispatches its actions until the
// executor stops running or enters a state awaiting external input.
func (e *Executor) drive(ctx context.Context) error {
	for e.state.Running {
		if e.state.PendingConfirm != nil || e.state.PendingQuestion != nil {
			return nil
		}
		needsLLM, err := e.turn(ctx)
		if err != nil {
			return err
		}
		if !needsLLM {
			return nil
		}
	}
	return nil
}

// turn performs exactly one LLM call and dispatches the resulting actions,
// returning whether the loop should call the LLM again immediately.
func (e *Executor) turn(ctx context.Context) (bool, error) {
	e.compactIfNeeded()

	e.state.LLMCalling = true
	text, usage, err := e.callLLM(ctx)
	e.state.LLMCalling = false
	_ = usage

	if err != nil {
		if IsEmptyContent(err) {
			e.emit(Event{Kind: EventThinking, Text: "[LLM warning] empty response, retrying"})
			text, usage, err = e.callLLM(ctx)
			_ = usage
		}
		if err != nil {
			e.emit(Event{Kind: EventThinking, Text: "[LLM error] " + err.Error()})
			e.state.Running = false
			return false, nil
		}
	}

	e.state.StepsTaken++
	e.state.Messages = append(e.state.Messages, types.NewMessage(types.RoleAssistant, text))

	thought, actions, perr := parser.Parse(text)
	if perr != nil {
		e.emit(Event{Kind: EventParseError, Text: perr.Error()})
		e.state.Messages = append(e.state.Messages, types.NewMessage(types.RoleUser, parseErrorInstruction))
		return true, nil
	}
	if thought != "" {
		e.emit(Event{Kind: EventThinking, Text: thought})
	}

	return e.dispatchActions(ctx, actions), nil
}

func (e *Executor) callLLM(ctx context.Context) (string, types.BetaUsage, error) {
	var preview strings.Builder
	onDelta := func(delta string) { e.handlePreviewDelta(&preview, delta) }
	return e.cfg.Provider.ChatStream(ctx, e.state.Messages, e.cfg.ShowThinking, onDelta, onDelta)
}

func (e *Executor) handlePreviewDelta(buf *strings.Builder, delta string) {
	prev := e.lastPreview
	buf.WriteString(delta)
	cur := buf.String()
	if shouldRefreshPreview(prev, cur) {
		e.lastPreview = cur
		e.emit(Event{Kind: EventStatusPreview, Text: cur})
	}
}

// shouldRefreshPreview implements spec §4.4's streaming-preview refresh
// heuristic: refresh when the tail has shrunk, diverged from the previous
// preview, grown by >=24 chars, or ends in sentence-terminating punctuation.
func shouldRefreshPreview(prev, cur string) bool {
	if len(cur) < len(prev) {
		return true
	}
	if !strings.HasPrefix(cur, prev) {
		return true
	}
	if len(cur)-len(prev) >= 24 {
		return true
	}
	trimmed := strings.TrimRight(cur, " \t\n")
	if trimmed == "" {
		return false
	}
	r := []rune(trimmed)
	last := r[len(r)-1]
	switch last {
	case '.', '!', '?', ';', '。', '！', '？', '；':
		return true
	default:
		return false
	}
}

func (e *Executor) compactIfNeeded() {
	if e.cfg.Compactor == nil {
		return
	}
	if e.cfg.Compactor.ShouldCompact(e.state.Messages) {
		e.state.Messages = e.cfg.Compactor.Compact(e.state.Messages)
	}
}

// dispatchActions runs actions in document order, handling non-blocking
// ones inline and stopping at the first blocking one (spec §4.3's
// turn-termination rule). It returns whether the executor should call the
// LLM again immediately.
func (e *Executor) dispatchActions(ctx context.Context, actions []types.Action) bool {
	for _, action := range actions {
		if !action.Blocking() {
			e.handleNonBlocking(action)
			continue
		}
		return e.handleBlocking(ctx, action)
	}
	// Only non-blocking actions occurred (or none at all): still prompt
	// the model to continue.
	return true
}

func (e *Executor) handleNonBlocking(action types.Action) {
	switch action.Kind {
	case types.ActionPlan:
		e.emit(Event{Kind: EventPlan, Text: action.PlanContent})
	case types.ActionTodo:
		e.state.Todos = action.Items
		e.emit(Event{Kind: EventTodo, Todos: action.Items})
	case types.ActionSetMode:
		e.state.AssistMode = action.Mode
		e.emit(Event{Kind: EventSetMode, Mode: action.Mode})
	case types.ActionPhase:
		e.emit(Event{Kind: EventPhase, Text: action.PhaseText})
	}
}

func (e *Executor) handleBlocking(ctx context.Context, action types.Action) bool {
	switch action.Kind {
	case types.ActionQuestion:
		e.state.PendingQuestion = &types.PendingQuestion{Text: action.QuestionText, Options: action.Options}
		e.emit(Event{Kind: EventQuestion, Question: e.state.PendingQuestion})
		return false

	case types.ActionFinal:
		summary := action.Summary
		e.state.FinalSummary = &summary
		e.state.Running = false
		e.emit(Event{Kind: EventFinal, Summary: summary})
		return false

	case types.ActionShell:
		return e.handleShell(ctx, action)

	case types.ActionSubAgent:
		return e.handleSubAgent(ctx, action)

	default:
		return e.handleToolAction(ctx, action)
	}
}

func (e *Executor) handleShell(ctx context.Context, action types.Action) bool {
	decision, _, reason := permission.Decide(action.Command, e.state.AssistMode, e.state.GEActive)

	switch decision {
	case permission.DecisionBlocked:
		e.emit(Event{Kind: EventToolCall, ToolName: "Shell", Command: action.Command})
		const blockedMsg = "Command blocked by safety policy"
		e.emit(Event{Kind: EventToolResult, ToolName: "Shell", ExitCode: -1, Output: blockedMsg})
		e.pushToolResult(-1, blockedMsg)
		return true

	case permission.DecisionAwaitConfirm:
		e.state.PendingConfirm = &types.PendingConfirm{Command: action.Command}
		e.emit(Event{Kind: EventNeedsConfirmation, Command: action.Command, Reason: reason})
		return false

	case permission.DecisionAutoAccept:
		e.emit(Event{Kind: EventThinking, Text: "auto-accepted: " + action.Command})
		fallthrough

	default: // DecisionExecute
		e.runShell(ctx, action)
		return true
	}
}

func (e *Executor) runShell(ctx context.Context, action types.Action) {
	e.emit(Event{Kind: EventToolCall, ToolName: "Shell", Command: action.Command})
	out, err := e.cfg.Dispatcher.Dispatch(ctx, action)
	exitCode, body := toolResultParts(out, err)
	e.emit(Event{Kind: EventToolResult, ToolName: "Shell", ExitCode: exitCode, Output: body})
	e.pushToolResult(exitCode, body)
}

func (e *Executor) handleSubAgent(ctx context.Context, action types.Action) bool {
	if err := action.Graph.Validate(); err != nil {
		e.pushToolResult(-1, err.Error())
		return true
	}
	if e.cfg.SubAgents == nil {
		e.pushToolResult(-1, "sub_agent execution is not configured")
		return true
	}
	e.emit(Event{Kind: EventToolCall, ToolName: "SubAgent"})
	out, err := e.cfg.SubAgents.Run(ctx, action.Graph)
	if err != nil {
		e.emit(Event{Kind: EventToolResult, ToolName: "SubAgent", ExitCode: -1, Output: err.Error()})
		e.pushToolResult(-1, err.Error())
		return true
	}
	e.emit(Event{Kind: EventToolResult, ToolName: "SubAgent", ExitCode: 0, Output: out})
	e.pushToolResult(0, out)
	return true
}

func (e *Executor) handleToolAction(ctx context.Context, action types.Action) bool {
	name := toolLabel(action.Kind)
	e.emit(Event{Kind: EventToolCall, ToolName: name, Command: action.Command})
	out, err := e.cfg.Dispatcher.Dispatch(ctx, action)
	exitCode, body := toolResultParts(out, err)
	e.emit(Event{Kind: EventToolResult, ToolName: name, ExitCode: exitCode, Output: body})
	e.pushToolResult(exitCode, body)
	return true
}

func toolLabel(kind types.ActionKind) string {
	switch kind {
	case types.ActionExplorer:
		return "Explorer"
	case types.ActionReadFile:
		return "ReadFile"
	case types.ActionWriteFile:
		return "WriteFile"
	case types.ActionUpdateFile:
		return "UpdateFile"
	case types.ActionSearchFiles:
		return "SearchFiles"
	case types.ActionWebSearch:
		return "WebSearch"
	case types.ActionMcp:
		return "Mcp"
	case types.ActionCreateMcp:
		return "CreateMcp"
	case types.ActionSkill:
		return "Skill"
	default:
		return string(kind)
	}
}

// toolResultParts derives the (exit code, body) pair a dispatched tool
// reports. Shell output carries a literal "exit=N\n" prefix (per
// pkg/tools.ShellTool); every other tool, Explorer included (its output
// starts with a "$ cmd" line), reports 0 on success, -1 on IsError.
func toolResultParts(out tools.ToolOutput, err error) (int, string) {
	if err != nil {
		return -1, err.Error()
	}
	if code, rest, ok := splitExitPrefix(out.Content); ok {
		return code, rest
	}
	if out.IsError {
		return -1, out.Content
	}
	return 0, out.Content
}

func splitExitPrefix(content string) (int, string, bool) {
	const prefix = "exit="
	if !strings.HasPrefix(content, prefix) {
		return 0, "", false
	}
	nl := strings.IndexByte(content, '\n')
	if nl < 0 {
		return 0, "", false
	}
	var code int
	if _, err := fmt.Sscanf(content[:nl], "exit=%d", &code); err != nil {
		return 0, "", false
	}
	return code, content[nl+1:], true
}

// pushToolResult appends the synthetic user message the next LLM call
// observes, per spec §4.3's dispatcher contract.
func (e *Executor) pushToolResult(exitCode int, output string) {
	msg := fmt.Sprintf("Tool result (exit=%d):\n%s", exitCode, output)
	e.state.Messages = append(e.state.Messages, types.NewMessage(types.RoleUser, msg))
}

// --- Confirmation flow (spec §4.4 AwaitingConfirm transitions) ---

// ConfirmExecute runs the pending command and resumes the loop.
func (e *Executor) ConfirmExecute(ctx context.Context) error {
	if e.state.PendingConfirm == nil {
		return ErrNoPendingConfirm
	}
	cmd := e.state.PendingConfirm.Command
	e.state.PendingConfirm = nil
	e.runShell(ctx, types.Action{Kind: types.ActionShell, Command: cmd})
	return e.drive(ctx)
}

// ConfirmSkip synthesizes a "user chose to skip" tool result and resumes.
func (e *Executor) ConfirmSkip(ctx context.Context) error {
	if e.state.PendingConfirm == nil {
		return ErrNoPendingConfirm
	}
	cmd := e.state.PendingConfirm.Command
	e.state.PendingConfirm = nil
	e.pushToolResult(-1, "User chose to skip this command: "+cmd)
	return e.drive(ctx)
}

// ConfirmAbort ends the task immediately with an "aborted by user" summary.
func (e *Executor) ConfirmAbort() {
	e.state.PendingConfirm = nil
	e.state.PendingConfirmNote = false
	e.state.Running = false
	summary := "aborted by user"
	e.state.FinalSummary = &summary
	e.emit(Event{Kind: EventFinal, Summary: summary})
}

// BeginNote transitions AwaitingConfirm -> AwaitingNote: the user started
// typing instead of picking Execute/Skip/Abort.
func (e *Executor) BeginNote() error {
	if e.state.PendingConfirm == nil {
		return ErrNoPendingConfirm
	}
	e.state.PendingConfirmNote = true
	return nil
}

// ConfirmNote pushes the user's rejection note as a user message tagged per
// spec §4.4 and resumes the loop.
func (e *Executor) ConfirmNote(ctx context.Context, note string) error {
	if e.state.PendingConfirm == nil {
		return ErrNoPendingConfirm
	}
	e.state.PendingConfirm = nil
	e.state.PendingConfirmNote = false
	e.state.Messages = append(e.state.Messages, types.NewMessage(types.RoleUser,
		"User rejected the command, added instruction: "+note))
	return e.drive(ctx)
}

// AnswerQuestion pushes the user's selection and resumes the loop.
func (e *Executor) AnswerQuestion(ctx context.Context, answer string) error {
	if e.state.PendingQuestion == nil {
		return ErrNoPendingQuestion
	}
	e.state.PendingQuestion = nil
	e.state.Messages = append(e.state.Messages, types.NewMessage(types.RoleUser, "[回答]: "+answer))
	return e.drive(ctx)
}
