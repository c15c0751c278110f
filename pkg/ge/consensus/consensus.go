// Package consensus implements the ConsensusDoc Markdown format that a
// Governed-Execution run reads and writes at the root of the working
// directory: CONSENSUS.md, the shared record of Purpose, Rules, Todos, Bot
// Status and Bot Journal sections that both the human and the GE subagent
// negotiate over.
package consensus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is CONSENSUS.md's name, fixed at the root of the GE working
// directory.
const FileName = "CONSENSUS.md"

const (
	purposeSection = "Purpose"
	rulesSection   = "Rules"
	todoSection    = "Todo"
	statusSection  = "Bot Status"
	journalSection = "Bot Journal"
)

// TodoItem is one Todo section entry.
type TodoItem struct {
	ID        string
	Text      string
	Checked   bool
	DoneWhen  []string
	Assist    string
}

// Doc is the parsed form of CONSENSUS.md.
type Doc struct {
	PurposeLines    []string
	RulesLines      []string
	Todos           []TodoItem
	BotStatusLines  []string
	BotJournalLines []string
}

// Parse reads text into a Doc, filling every section with its fallback
// default when absent, exactly as the original consensus/model.rs does so a
// freshly-created or partially-edited CONSENSUS.md is never invalid.
func Parse(text string) *Doc {
	sections := splitSections(text)

	purpose := trimTrailingBlank(sections[purposeSection])
	if allBlank(purpose) {
		purpose = []string{"- Define the shared goal."}
	}
	rules := trimTrailingBlank(sections[rulesSection])
	if allBlank(rules) {
		rules = []string{"- Keep edits scoped and test changes."}
	}
	status := trimTrailingBlank(sections[statusSection])
	if allBlank(status) {
		status = []string{"- Waiting for first run."}
	}

	doc := &Doc{
		PurposeLines:    purpose,
		RulesLines:      rules,
		Todos:           parseTodos(sections[todoSection]),
		BotStatusLines:  status,
		BotJournalLines: trimTrailingBlank(sections[journalSection]),
	}
	return doc
}

// trimTrailingBlank drops the blank separator line splitSections leaves at
// the end of every section's body (Render always follows a section with a
// blank line before the next "## " header), so Parse(doc.Render()) recovers
// the exact line slice doc had, not that slice plus a trailing "".
func trimTrailingBlank(lines []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[:end]
}

// Render serializes doc back into CONSENSUS.md's exact textual form.
func (d *Doc) Render() string {
	var b strings.Builder
	b.WriteString("# Consensus\n\n")

	b.WriteString("## " + purposeSection + "\n")
	b.WriteString(renderLines(d.PurposeLines, "- Define the shared goal."))
	b.WriteString("\n")

	b.WriteString("## " + rulesSection + "\n")
	b.WriteString(renderLines(d.RulesLines, "- Keep edits scoped and test changes."))
	b.WriteString("\n")

	b.WriteString("## " + todoSection + "\n")
	if len(d.Todos) == 0 {
		b.WriteString("- [ ] T001 Define initial todos\n")
		b.WriteString("  - done_when: Consensus Todo contains at least 5 clear tasks\n")
	} else {
		for _, t := range d.Todos {
			status := " "
			if t.Checked {
				status = "x"
			}
			id := strings.TrimSpace(t.ID)
			text := strings.TrimSpace(t.Text)
			if text == "" {
				fmt.Fprintf(&b, "- [%s] %s\n", status, id)
			} else {
				fmt.Fprintf(&b, "- [%s] %s %s\n", status, id, text)
			}
			if len(t.DoneWhen) == 0 {
				b.WriteString("  - done_when: Completed and verified\n")
			} else {
				for _, cond := range t.DoneWhen {
					fmt.Fprintf(&b, "  - done_when: %s\n", strings.TrimSpace(cond))
				}
			}
			if t.Assist != "" {
				fmt.Fprintf(&b, "  - assist: %s\n", strings.TrimSpace(t.Assist))
			}
		}
	}
	b.WriteString("\n")

	b.WriteString("## " + statusSection + "\n")
	b.WriteString(renderLines(d.BotStatusLines, "- Waiting for first run."))
	b.WriteString("\n")

	b.WriteString("## " + journalSection + "\n")
	b.WriteString(renderLines(d.BotJournalLines, "- (empty)"))

	return b.String()
}

// FirstOpenTodoIndex returns the index of the first unchecked todo, or -1.
func (d *Doc) FirstOpenTodoIndex() int {
	for i, t := range d.Todos {
		if !t.Checked {
			return i
		}
	}
	return -1
}

// AllDone reports whether every todo is checked (false for an empty list).
func (d *Doc) AllDone() bool {
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

// MarkChecked flips the named todo to checked, reporting whether it existed.
func (d *Doc) MarkChecked(id string) bool {
	for i := range d.Todos {
		if d.Todos[i].ID == id {
			d.Todos[i].Checked = true
			return true
		}
	}
	return false
}

// AppendStatus appends a Bot Status line, keeping at most the most recent 80.
func (d *Doc) AppendStatus(line string) {
	d.BotStatusLines = append(d.BotStatusLines, line)
	d.BotStatusLines = trimLines(d.BotStatusLines, 80)
}

// AppendJournal appends a Bot Journal line, keeping at most the most recent 200.
func (d *Doc) AppendJournal(line string) {
	d.BotJournalLines = append(d.BotJournalLines, line)
	d.BotJournalLines = trimLines(d.BotJournalLines, 200)
}

// Path returns the CONSENSUS.md path under cwd.
func Path(cwd string) string {
	return filepath.Join(cwd, FileName)
}

// Load reads and parses the consensus file at path.
func Load(path string) (*Doc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return Parse(string(raw)), nil
}

// Save renders doc and writes it to path, creating parent directories as
// needed.
func Save(path string, doc *Doc) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(doc.Render()), 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

// BuildFromInterview constructs the initial Doc from an interview's answers,
// seeding the fixed eight-todo fallback template used whenever the LLM
// cannot be consulted to tailor the Todo list to the stated purpose.
func BuildFromInterview(purpose, rules, scope string) *Doc {
	var purposeLines []string
	for _, line := range strings.Split(purpose, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			purposeLines = append(purposeLines, "- "+t)
		}
	}
	if t := strings.TrimSpace(scope); t != "" {
		purposeLines = append(purposeLines, "- Scope: "+t)
	}
	if len(purposeLines) == 0 {
		purposeLines = []string{"- Execute the shared plan continuously."}
	}

	var rulesLines []string
	for _, line := range strings.Split(rules, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			rulesLines = append(rulesLines, "- "+t)
		}
	}
	if len(rulesLines) == 0 {
		rulesLines = []string{
			"- Prefer small verifiable changes.",
			"- Keep user-visible behavior stable unless asked.",
		}
	}

	todos := []TodoItem{
		{ID: "T001", Text: "Create project folder and initialize repository scaffolding.", DoneWhen: []string{"cmd: ls"}, Assist: "claude"},
		{ID: "T002", Text: "Set up core build configuration and dependencies.", DoneWhen: []string{"cmd: git status --short"}, Assist: "auto"},
		{ID: "T003", Text: "Implement first minimal functional slice for the product.", DoneWhen: []string{"Completed and verified by Codex review"}, Assist: "auto"},
		{ID: "T004", Text: "Add user-facing interaction flow for the first slice.", DoneWhen: []string{"Completed and verified by Codex review"}, Assist: "auto"},
		{ID: "T005", Text: "Implement second functional slice and integrate with first.", DoneWhen: []string{"Completed and verified by Codex review"}, Assist: "auto"},
		{ID: "T006", Text: "Run project tests and fix failing checks.", DoneWhen: []string{"cmd: go build ./..."}, Assist: "codex"},
		{ID: "T007", Text: "Perform cross-platform smoke verification path.", DoneWhen: []string{"Completed and verified by Codex review"}, Assist: "codex"},
		{ID: "T008", Text: "Document final outcome and next follow-up actions.", DoneWhen: []string{"Consensus status and journal updated"}, Assist: "auto"},
	}

	return &Doc{
		PurposeLines:    purposeLines,
		RulesLines:      rulesLines,
		Todos:           todos,
		BotStatusLines:  []string{"- GE initialized and waiting for first execution."},
		BotJournalLines: nil,
	}
}

// ValidatePlannerGenerated reports whether a planner-produced Doc satisfies
// spec §4.6's consensus-builder validation: 8-12 todos, sequential
// T001..T00N ids, each with non-empty text and at least one done_when.
// A Doc failing this check must be discarded in favor of the deterministic
// template (BuildFromInterview).
func ValidatePlannerGenerated(doc *Doc) bool {
	n := len(doc.Todos)
	if n < 8 || n > 12 {
		return false
	}
	for i, t := range doc.Todos {
		if t.ID != fmt.Sprintf("T%03d", i+1) {
			return false
		}
		if strings.TrimSpace(t.Text) == "" {
			return false
		}
		if len(t.DoneWhen) == 0 {
			return false
		}
	}
	return true
}

func splitSections(text string) map[string][]string {
	sections := make(map[string][]string)
	var current string
	hasCurrent := false

	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(line, "## "); ok {
			key := strings.TrimSpace(rest)
			current = key
			hasCurrent = true
			if _, exists := sections[key]; !exists {
				sections[key] = nil
			}
			continue
		}
		if hasCurrent {
			sections[current] = append(sections[current], line)
		}
	}
	return sections
}

func parseTodos(lines []string) []TodoItem {
	var out []TodoItem
	i := 0
	for i < len(lines) {
		line := strings.TrimLeft(lines[i], " \t")
		var checked bool
		var rest string
		switch {
		case strings.HasPrefix(line, "- [ ] "):
			checked, rest = false, strings.TrimSpace(line[len("- [ ] "):])
		case strings.HasPrefix(line, "- [x] "):
			checked, rest = true, strings.TrimSpace(line[len("- [x] "):])
		case strings.HasPrefix(line, "- [X] "):
			checked, rest = true, strings.TrimSpace(line[len("- [X] "):])
		default:
			i++
			continue
		}

		id, text, _ := strings.Cut(rest, " ")
		id = strings.TrimSpace(id)
		text = strings.TrimSpace(text)
		if !looksLikeTodoID(id) {
			id = fmt.Sprintf("T%03d", len(out)+1)
		}

		var doneWhen []string
		var assist string
		i++

		for i < len(lines) {
			sub := strings.TrimLeft(lines[i], " \t")
			if strings.HasPrefix(sub, "- [ ] ") || strings.HasPrefix(sub, "- [x] ") ||
				strings.HasPrefix(sub, "- [X] ") || strings.HasPrefix(sub, "## ") {
				break
			}
			if v, ok := strings.CutPrefix(sub, "- done_when:"); ok {
				if v = strings.TrimSpace(v); v != "" {
					doneWhen = append(doneWhen, v)
				}
			} else if v, ok := strings.CutPrefix(sub, "- assist:"); ok {
				if v = strings.TrimSpace(v); v != "" {
					assist = v
				}
			}
			i++
		}

		out = append(out, TodoItem{
			ID:       id,
			Text:     text,
			Checked:  checked,
			DoneWhen: doneWhen,
			Assist:   assist,
		})
	}
	return out
}

func looksLikeTodoID(s string) bool {
	rest, ok := strings.CutPrefix(s, "T")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func renderLines(lines []string, fallback string) string {
	if allBlank(lines) {
		return fallback + "\n"
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}

func trimLines(lines []string, max int) []string {
	if len(lines) <= max {
		return lines
	}
	return lines[len(lines)-max:]
}

func allBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}
