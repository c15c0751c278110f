package types

// PendingConfirm is a shell command awaiting user confirmation through the
// Safety Gate's AwaitingConfirm state.
type PendingConfirm struct {
	Command  string
	FileHint string // optional: path the command is expected to touch
}

// PendingQuestion is a <question> action awaiting a user answer.
type PendingQuestion struct {
	Text    string
	Options []string
}

// PasteChunk bridges a TUI input placeholder like "[Pasted text #3 +40
// lines]" to the real pasted text. Expansion happens exactly once, when the
// user submits the input line containing the placeholder.
type PasteChunk struct {
	Placeholder string
	FullText    string
}

// AtFileChunk bridges an "[@path]" placeholder to its resolved absolute
// path.
type AtFileChunk struct {
	Placeholder string
	AbsPath     string
}

// AppState owns everything the main loop mutates across turns. There is
// exactly one long-lived instance, touched only from the main loop goroutine
// — it is never shared across goroutines directly; cross-goroutine
// communication (GE, streaming) happens over channels that deliver events
// the loop folds back into AppState itself.
type AppState struct {
	Messages []Message

	Running     bool
	StepsTaken  int
	LLMCalling  bool

	PendingConfirm     *PendingConfirm
	PendingConfirmNote bool
	PendingQuestion    *PendingQuestion

	Todos      []TodoLine
	AssistMode AssistMode

	PasteChunks  []PasteChunk
	AtFileChunks []AtFileChunk

	FinalSummary *string

	GEActive bool
}

// Idle reports the Idle state per spec §4.4's guard.
func (s *AppState) Idle() bool {
	return !s.Running && s.PendingConfirm == nil && s.PendingQuestion == nil
}

// Finished reports the Finished state per spec §4.4's guard.
func (s *AppState) Finished() bool {
	return s.FinalSummary != nil && !s.Running
}
