package types

// TodoStatus values in action.go cover the sidebar Todo action; ConsensusDoc
// uses a simpler checked bool per spec §3, since GE's done_when predicates
// are the real source of truth for progress.

// Assist identifies which LLM-backed helper GE should prefer for a Todo.
type Assist string

const (
	AssistAuto   Assist = "auto"
	AssistClaude Assist = "claude"
	AssistCodex  Assist = "codex"
)

// ConsensusTodoItem is one checklist entry of a ConsensusDoc.
type ConsensusTodoItem struct {
	ID        string // "T001".."TNNN"
	Text      string
	Checked   bool
	DoneWhen  []string // "cmd:<shell>" or a free-form semantic claim
	Assist    Assist
}

// ConsensusDoc is GE's persisted state: a human-editable Markdown document
// with five sections. It round-trips through Parse/Render losslessly enough
// that an external edit (e.g. a user editing CONSENSUS.md by hand) survives
// a save cycle.
type ConsensusDoc struct {
	PurposeLines    []string
	RulesLines      []string
	Todos           []ConsensusTodoItem
	BotStatusLines  []string
	BotJournalLines []string
}

const (
	MaxBotStatusLines  = 80
	MaxBotJournalLines = 200
)

// FirstOpenTodoIndex returns the index of the first unchecked Todo in order,
// or -1 if every Todo is checked (or there are none).
func (d *ConsensusDoc) FirstOpenTodoIndex() int {
	for i, t := range d.Todos {
		if !t.Checked {
			return i
		}
	}
	return -1
}

// AllDone reports whether every Todo is checked (false for an empty list,
// mirroring "nothing has been verified yet").
func (d *ConsensusDoc) AllDone() bool {
	if len(d.Todos) == 0 {
		return false
	}
	for _, t := range d.Todos {
		if !t.Checked {
			return false
		}
	}
	return true
}

// MarkChecked flips the named Todo to checked, if present.
func (d *ConsensusDoc) MarkChecked(id string) {
	for i := range d.Todos {
		if d.Todos[i].ID == id {
			d.Todos[i].Checked = true
			return
		}
	}
}

// AppendStatus pushes a line onto BotStatusLines, trimming from the front
// once the line exceeds MaxBotStatusLines.
func (d *ConsensusDoc) AppendStatus(line string) {
	d.BotStatusLines = appendTrimFront(d.BotStatusLines, line, MaxBotStatusLines)
}

// AppendJournal pushes a line onto BotJournalLines, trimming from the front
// once the line exceeds MaxBotJournalLines.
func (d *ConsensusDoc) AppendJournal(line string) {
	d.BotJournalLines = appendTrimFront(d.BotJournalLines, line, MaxBotJournalLines)
}

func appendTrimFront(lines []string, line string, max int) []string {
	lines = append(lines, line)
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}
