package types

// ActionKind discriminates the Action union produced by pkg/parser and
// consumed by pkg/tools.
type ActionKind string

const (
	ActionShell       ActionKind = "shell"
	ActionExplorer    ActionKind = "explorer"
	ActionReadFile    ActionKind = "read_file"
	ActionWriteFile   ActionKind = "write_file"
	ActionUpdateFile  ActionKind = "update_file"
	ActionSearchFiles ActionKind = "search_files"
	ActionWebSearch   ActionKind = "web_search"
	ActionMcp         ActionKind = "mcp"
	ActionSkill       ActionKind = "skill"
	ActionCreateMcp   ActionKind = "create_mcp"
	ActionQuestion    ActionKind = "question"
	ActionFinal       ActionKind = "final"
	ActionPlan        ActionKind = "plan"
	ActionTodo        ActionKind = "todo"
	ActionSetMode     ActionKind = "set_mode"
	ActionPhase       ActionKind = "phase"
	ActionSubAgent    ActionKind = "sub_agent"
)

// UserInputSentinel is substituted for any <option> body that embeds a
// <user_input> tag, flagging "let the user type their own answer" rather
// than a fixed choice.
const UserInputSentinel = "<user_input>"

// TodoStatus is the state of one Todo line item rendered in the sidebar
// (distinct from GE's ConsensusDoc TodoItem, which additionally tracks
// done_when predicates).
type TodoStatus string

const (
	TodoPending TodoStatus = "pending"
	TodoRunning TodoStatus = "running"
	TodoDone    TodoStatus = "done"
)

// TodoLine is one entry of a Todo action's item list.
type TodoLine struct {
	Label  string
	Status TodoStatus
}

// AssistMode is the user-facing execution posture, toggled by SetMode or the
// UI's accept-edits cycle key.
type AssistMode string

const (
	ModeAgent       AssistMode = "agent"
	ModeAcceptEdits AssistMode = "accept_edits"
	ModePlan        AssistMode = "plan"
)

// Cycle advances Agent -> AcceptEdits -> Plan -> Agent.
func (m AssistMode) Cycle() AssistMode {
	switch m {
	case ModeAgent:
		return ModeAcceptEdits
	case ModeAcceptEdits:
		return ModePlan
	default:
		return ModeAgent
	}
}

// Action is a single parsed unit of work from one LLM response. Exactly one
// ActionKind's payload fields are populated per the Kind discriminator;
// Blocking() reports whether the dispatcher must stop the in-turn action
// loop after executing it.
type Action struct {
	Kind ActionKind

	// ActionShell
	Command string

	// ActionExplorer
	Commands []string

	// ActionReadFile
	Path   string
	Offset *int
	Limit  *int

	// ActionWriteFile / ActionUpdateFile new content
	Content string

	// ActionUpdateFile
	LineStart int
	LineEnd   int
	NewString string

	// ActionSearchFiles
	Pattern     string
	SearchPath  string

	// ActionWebSearch
	Query string

	// ActionMcp
	ToolName  string
	Arguments map[string]any

	// ActionSkill
	SkillName string

	// ActionCreateMcp
	McpConfig map[string]any

	// ActionQuestion
	QuestionText string
	Options      []string

	// ActionFinal
	Summary string

	// ActionPlan
	PlanContent string

	// ActionTodo
	Items []TodoLine

	// ActionSetMode
	Mode AssistMode

	// ActionPhase
	PhaseText string

	// ActionSubAgent
	Graph *TaskGraph
}

// Blocking reports whether this action terminates the in-turn action loop
// (per spec §4.3's turn-termination rule). Plan/Todo/SetMode/Phase are the
// only non-blocking kinds.
func (a Action) Blocking() bool {
	switch a.Kind {
	case ActionPlan, ActionTodo, ActionSetMode, ActionPhase:
		return false
	default:
		return true
	}
}
