// Package worker runs the Governed-Execution subagent as a dedicated
// goroutine communicating over command/event channels, grounded on the
// original consensus/subagent.rs's GeSubagent/run_worker shape (itself
// adapted here from a cross-thread-channel Rust actor to a Go goroutine,
// the same translation the teacher's pkg/teams applies to its
// one-goroutine-per-teammate pattern).
package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jg-phare/goat/pkg/ge/audit"
)

// RunHeartbeatInterval and HeartbeatPollInterval match spec §4.6's
// heartbeat contract exactly: a line every 3 minutes while GeRun is active,
// checked for early cancellation every 200ms.
const (
	RunHeartbeatInterval  = 3 * time.Minute
	HeartbeatPollInterval = 200 * time.Millisecond
	loopInterval          = 120 * time.Millisecond
)

// Mode mirrors audit.Mode, re-exported here so callers driving the worker
// don't need to import pkg/ge/audit just to read the current mode.
type Mode = audit.Mode

const (
	ModeNormal      = audit.ModeNormal
	ModeGeInterview = audit.ModeGeInterview
	ModeGeRun       = audit.ModeGeRun
	ModeGeIdle      = audit.ModeGeIdle
)

// Command is a request sent to the worker goroutine.
type Command struct {
	Kind CommandKind
	Text string // InterviewReply's payload
}

type CommandKind int

const (
	CmdInterviewReply CommandKind = iota
	CmdReplanTodos
	CmdExit
)

// EventKind enumerates what the worker reports back.
type EventKind int

const (
	EvtOutputLines EventKind = iota
	EvtModeChanged
	EvtExited
	EvtError
)

// Event is one message the worker emits.
type Event struct {
	Kind  EventKind
	Lines []string
	Mode  Mode
	Error string
}

// Runtime is the capability the worker goroutine drives each tick; Engine
// (built in the parent pkg/ge package) implements it, kept as an interface
// here so worker has zero dependency on the LLM/tooling wiring Engine needs.
type Runtime interface {
	Mode() Mode
	HandleInterviewReply(ctx context.Context, text string) (handled bool, lines []string, err error)
	ReplanTodos(ctx context.Context) (lines []string, err error)
	Tick(ctx context.Context, emit func(line string)) error
	Exit() []string
}

// Worker owns the command/event channels and cancellation flag for one GE
// run.
type Worker struct {
	cmdCh   chan Command
	evtCh   chan Event
	cancel  atomic.Bool
	runtime Runtime
}

// Start launches the worker goroutine over runtime, seeded with any lines
// produced by entering GE (e.g. the first interview question), and returns
// the Worker handle the caller uses to send commands and drain events.
func Start(ctx context.Context, runtime Runtime, initialLines []string) *Worker {
	w := &Worker{
		cmdCh:   make(chan Command, 16),
		evtCh:   make(chan Event, 64),
		runtime: runtime,
	}
	if len(initialLines) > 0 {
		w.evtCh <- Event{Kind: EvtOutputLines, Lines: initialLines}
	}
	w.evtCh <- Event{Kind: EvtModeChanged, Mode: runtime.Mode()}

	go w.run(ctx)
	return w
}

// Send enqueues a command; it never blocks the caller beyond the channel's
// buffer filling up.
func (w *Worker) Send(cmd Command) {
	w.cmdCh <- cmd
}

// HardExit requests immediate, cooperative cancellation: in-flight LLM/shell
// calls are expected to observe ctx.Done() or poll Cancelled() and stop at
// their next checkpoint.
func (w *Worker) HardExit() {
	w.cancel.Store(true)
	select {
	case w.cmdCh <- Command{Kind: CmdExit}:
	default:
	}
}

// Cancelled reports whether HardExit has been requested.
func (w *Worker) Cancelled() bool {
	return w.cancel.Load()
}

// Events returns the channel callers drain for worker output.
func (w *Worker) Events() <-chan Event {
	return w.evtCh
}

func (w *Worker) run(ctx context.Context) {
	lastMode := w.runtime.Mode()

	for {
		drained := w.drainCommands(ctx, &lastMode)
		if drained {
			return
		}

		var heartbeatStop atomic.Bool
		var heartbeatDone chan struct{}
		if w.runtime.Mode() == ModeGeRun {
			heartbeatDone = make(chan struct{})
			go w.runHeartbeat(&heartbeatStop, heartbeatDone)
		}

		tickErr := w.runtime.Tick(ctx, func(line string) {
			w.send(Event{Kind: EvtOutputLines, Lines: []string{line}})
		})

		if heartbeatDone != nil {
			heartbeatStop.Store(true)
			<-heartbeatDone
		}

		if tickErr != nil {
			w.send(Event{Kind: EvtError, Error: "GE tick failed: " + tickErr.Error()})
			w.send(Event{Kind: EvtExited})
			return
		}
		w.syncMode(&lastMode)

		select {
		case <-ctx.Done():
			return
		case <-time.After(loopInterval):
		}
	}
}

// drainCommands processes every currently-queued command, returning true if
// the worker should stop entirely (an Exit command was handled).
func (w *Worker) drainCommands(ctx context.Context, lastMode *Mode) bool {
	for {
		select {
		case cmd := <-w.cmdCh:
			if w.handleCommand(ctx, cmd, lastMode) {
				return true
			}
		default:
			return false
		}
	}
}

func (w *Worker) handleCommand(ctx context.Context, cmd Command, lastMode *Mode) bool {
	switch cmd.Kind {
	case CmdInterviewReply:
		handled, lines, err := w.runtime.HandleInterviewReply(ctx, cmd.Text)
		if err != nil {
			w.send(Event{Kind: EvtError, Error: "GE interview handling failed: " + err.Error()})
		} else if handled {
			w.sendLines(lines)
		}
	case CmdReplanTodos:
		lines, err := w.runtime.ReplanTodos(ctx)
		if err != nil {
			w.send(Event{Kind: EvtError, Error: "GE replan failed: " + err.Error()})
		} else {
			w.sendLines(lines)
		}
	case CmdExit:
		lines := w.runtime.Exit()
		w.sendLines(lines)
		w.send(Event{Kind: EvtModeChanged, Mode: ModeNormal})
		w.send(Event{Kind: EvtExited})
		return true
	}
	w.syncMode(lastMode)
	return false
}

func (w *Worker) runHeartbeat(stop *atomic.Bool, done chan struct{}) {
	defer close(done)
	for !stop.Load() {
		if waitOrStop(stop, RunHeartbeatInterval) {
			return
		}
		w.send(Event{Kind: EvtOutputLines, Lines: []string{
			"GE: Working on current todo... (heartbeat every 3 minutes)",
		}})
	}
}

func waitOrStop(stop *atomic.Bool, d time.Duration) bool {
	var waited time.Duration
	for waited < d {
		if stop.Load() {
			return true
		}
		step := HeartbeatPollInterval
		if remain := d - waited; remain < step {
			step = remain
		}
		time.Sleep(step)
		waited += step
	}
	return stop.Load()
}

func (w *Worker) syncMode(lastMode *Mode) {
	mode := w.runtime.Mode()
	if mode == *lastMode {
		return
	}
	*lastMode = mode
	w.send(Event{Kind: EvtModeChanged, Mode: mode})
}

func (w *Worker) sendLines(lines []string) {
	if len(lines) == 0 {
		return
	}
	w.send(Event{Kind: EvtOutputLines, Lines: lines})
}

func (w *Worker) send(e Event) {
	select {
	case w.evtCh <- e:
	default:
		// Event buffer full: drop rather than block the worker loop, matching
		// the original's fire-and-forget mpsc sends (`let _ = tx.send(...)`).
	}
}
