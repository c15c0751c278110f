package ge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jg-phare/goat/pkg/ge/audit"
	"github.com/jg-phare/goat/pkg/ge/consensus"
	"github.com/jg-phare/goat/pkg/ge/interview"
	"github.com/jg-phare/goat/pkg/ge/pipeline"
	"github.com/jg-phare/goat/pkg/ge/worker"
)

// Engine implements worker.Runtime: it owns the interview state machine
// until a CONSENSUS.md exists, then drives the Executor-A/Reviewer-B todo
// pipeline one todo per Tick, exactly as spec §4.6 describes GeInterview
// transitioning into GeRun. It is the assembly point the rest of pkg/ge's
// independently-testable pieces (interview, consensus, pipeline, audit)
// were built to be wired into.
type Engine struct {
	cwd       string
	planner   *LLMPlanner
	execA     pipeline.Helper
	revB      pipeline.Helper
	runner    pipeline.CommandRunner
	interview *interview.State
	doc       *consensus.Doc
	log       *audit.Logger
	mode      worker.Mode

	// watcher watches the CONSENSUS.md directory for external edits (spec
	// §4.6: "file hash is tracked so external user edits trigger an
	// immediate re-run"). watchMu guards selfHash/externalEdit, which are
	// written from the watcher goroutine and read from Tick.
	watcher      *fsnotify.Watcher
	watchMu      sync.Mutex
	selfHash     [32]byte
	externalEdit bool
}

// NewEngine builds an Engine for one GE run rooted at cwd, loading an
// existing CONSENSUS.md if present (resuming GeRun) or starting a fresh
// interview otherwise.
func NewEngine(cwd string, execA, revB Chatter, runner pipeline.CommandRunner) *Engine {
	e := &Engine{
		cwd:     cwd,
		planner: &LLMPlanner{ExecA: execA, RevB: revB},
		execA:   &LLMHelper{Chatter: execA},
		revB:    &LLMHelper{Chatter: revB},
		runner:  runner,
	}
	if doc, err := consensus.Load(consensus.Path(cwd)); err == nil {
		e.doc = doc
		e.log = audit.NewLogger(consensus.Path(cwd))
		e.mode = worker.ModeGeRun
		e.noteSelfWrite(doc)
		e.startWatch()
	} else {
		e.interview = interview.New()
		e.mode = worker.ModeGeInterview
	}
	return e
}

// noteSelfWrite records the hash of the content we just wrote ourselves, so
// the watcher goroutine can tell our own saves apart from a human editing
// CONSENSUS.md by hand.
func (e *Engine) noteSelfWrite(doc *consensus.Doc) {
	e.watchMu.Lock()
	e.selfHash = sha256.Sum256([]byte(doc.Render()))
	e.watchMu.Unlock()
}

// saveDoc writes doc to CONSENSUS.md and records its hash as our own, so the
// write this call just performed is never mistaken for an external edit.
func (e *Engine) saveDoc(doc *consensus.Doc) error {
	if err := consensus.Save(consensus.Path(e.cwd), doc); err != nil {
		return err
	}
	e.noteSelfWrite(doc)
	return nil
}

// startWatch opens an fsnotify watch on the CONSENSUS.md directory. fsnotify
// watches directories rather than individual files because many editors
// replace a file on save (rename+create) instead of writing in place, which
// only shows up as directory-level events. Failure to start the watch is
// non-fatal — GE still runs, it just can't react to a hand-edited
// CONSENSUS.md until its next restart.
func (e *Engine) startWatch() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	if err := w.Add(e.cwd); err != nil {
		w.Close()
		return
	}
	e.watcher = w
	path := consensus.Path(e.cwd)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				raw, err := os.ReadFile(path)
				if err != nil {
					continue
				}
				hash := sha256.Sum256(raw)
				e.watchMu.Lock()
				if hash != e.selfHash {
					e.selfHash = hash
					e.externalEdit = true
				}
				e.watchMu.Unlock()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// stopWatch closes the fsnotify watcher, if one was started.
func (e *Engine) stopWatch() {
	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
}

// consumeExternalEdit reports and clears whether CONSENSUS.md changed on
// disk since our last write; the caller (Tick) does the reload.
func (e *Engine) consumeExternalEdit() bool {
	e.watchMu.Lock()
	edited := e.externalEdit
	e.externalEdit = false
	e.watchMu.Unlock()
	return edited
}

// Mode implements worker.Runtime.
func (e *Engine) Mode() worker.Mode { return e.mode }

// HandleInterviewReply implements worker.Runtime: it advances the interview
// state machine by one reply and, once complete, writes CONSENSUS.md and
// transitions into GeRun.
func (e *Engine) HandleInterviewReply(ctx context.Context, text string) (bool, []string, error) {
	if e.interview == nil {
		return false, nil, nil
	}
	result, err := e.interview.HandleReply(ctx, text, e.planner)
	if err != nil {
		return true, nil, err
	}
	if !result.Done {
		return true, []string{e.interview.NextPrompt()}, nil
	}

	e.doc = result.Doc
	path := consensus.Path(e.cwd)
	if err := e.saveDoc(e.doc); err != nil {
		return true, nil, fmt.Errorf("ge: save %s: %w", consensus.FileName, err)
	}
	e.log = audit.NewLogger(path)
	e.log.Write(audit.Record{Mode: worker.ModeGeInterview, Event: audit.EventConsensusGenerated, Status: audit.StatusSuccess, Summary: result.Source})
	e.mode = worker.ModeGeRun
	e.interview = nil
	e.startWatch()
	return true, []string{fmt.Sprintf("Consensus established (%s). Starting execution of %d todos.", result.Source, len(e.doc.Todos))}, nil
}

// ReplanTodos implements worker.Runtime: it asks the planner to regenerate
// the Todo list from the existing Purpose/Rules, keeps the checked todos, and
// appends the new ones with ids renumbered globally sequentially after them
// (spec's REDESIGN FLAGS decision, recorded in DESIGN.md).
func (e *Engine) ReplanTodos(ctx context.Context) ([]string, error) {
	if e.doc == nil {
		return nil, fmt.Errorf("ge: no active consensus document to replan")
	}
	purpose := joinLines(e.doc.PurposeLines)
	rules := joinLines(e.doc.RulesLines)
	newDoc, err := e.planner.BuildConsensus(ctx, purpose, rules, "", nil)
	if err != nil || newDoc == nil {
		return nil, fmt.Errorf("ge: replan failed: %w", err)
	}
	var todos []consensus.TodoItem
	for _, t := range e.doc.Todos {
		if t.Checked {
			todos = append(todos, t)
		}
	}
	for _, t := range newDoc.Todos {
		t.ID = fmt.Sprintf("T%03d", len(todos)+1)
		todos = append(todos, t)
	}
	e.doc.Todos = todos
	if err := e.saveDoc(e.doc); err != nil {
		return nil, err
	}
	e.log.Write(audit.Record{Mode: worker.ModeGeRun, Event: audit.EventTodoPlanGenerated, Status: audit.StatusSuccess, Summary: fmt.Sprintf("replanned %d todos", len(e.doc.Todos))})
	return []string{fmt.Sprintf("Replanned: %d todos.", len(e.doc.Todos))}, nil
}

// Tick implements worker.Runtime: runs exactly one todo through the
// Executor-A/Reviewer-B pipeline, or reports completion once every todo is
// checked.
func (e *Engine) Tick(ctx context.Context, emit func(string)) error {
	// Interview advances only through explicit commands
	// (HandleInterviewReply); Tick itself is the worker's continuous 120ms
	// poll and must stay silent there or it would re-announce the same
	// line every iteration.
	if e.mode == worker.ModeGeInterview {
		return nil
	}
	if e.consumeExternalEdit() {
		if doc, err := consensus.Load(consensus.Path(e.cwd)); err == nil {
			e.doc = doc
			if e.mode == worker.ModeGeIdle && !doc.AllDone() {
				e.mode = worker.ModeGeRun
			}
			emit("CONSENSUS.md changed on disk, reloaded and resuming.")
		}
	}
	if e.mode == worker.ModeGeIdle {
		return nil
	}
	if e.doc.AllDone() {
		e.mode = worker.ModeGeIdle
		emit("All todos complete.")
		return nil
	}
	idx := e.doc.FirstOpenTodoIndex()
	if idx < 0 {
		e.mode = worker.ModeGeIdle
		emit("All todos complete.")
		return nil
	}
	todo := e.doc.Todos[idx]
	result := pipeline.RunTodo(ctx, todo, e.doc, e.execA, e.revB, e.runner, e.log)
	if result.Checked {
		e.doc.MarkChecked(todo.ID)
		e.doc.AppendJournal(fmt.Sprintf("%s: %s", todo.ID, result.Summary))
		emit(fmt.Sprintf("%s checked: %s", todo.ID, result.Summary))
	} else if result.Deferred {
		e.doc.AppendStatus(fmt.Sprintf("%s deferred: %s", todo.ID, result.Summary))
		emit(fmt.Sprintf("%s deferred: %s", todo.ID, result.Summary))
	}
	return e.saveDoc(e.doc)
}

// Exit implements worker.Runtime.
func (e *Engine) Exit() []string {
	e.stopWatch()
	if e.doc == nil {
		return []string{"GE session ended before consensus was reached."}
	}
	done := 0
	for _, t := range e.doc.Todos {
		if t.Checked {
			done++
		}
	}
	return []string{fmt.Sprintf("GE session ended: %d/%d todos checked.", done, len(e.doc.Todos))}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
