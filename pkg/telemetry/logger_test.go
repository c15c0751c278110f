package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jg-phare/goat/pkg/agent"
	geworker "github.com/jg-phare/goat/pkg/ge/worker"
)

func TestNewLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goldbot.log")
	log, err := NewLogger(path, "info")
	require.NoError(t, err)
	log.Info("hello")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
}

type recordingEmitter struct {
	events []agent.Event
}

func (r *recordingEmitter) Emit(e agent.Event) { r.events = append(r.events, e) }

func TestEmitterLogger_ForwardsToNext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goldbot.log")
	log, err := NewLogger(path, "info")
	require.NoError(t, err)
	next := &recordingEmitter{}
	wrapped := &EmitterLogger{Log: log, Next: next}

	wrapped.Emit(agent.Event{Kind: agent.EventToolCall, ToolName: "Shell", Command: "ls"})
	require.Len(t, next.events, 1)
	require.Equal(t, agent.EventToolCall, next.events[0].Kind)
}

func TestLogGEEvent_DoesNotPanicOnEveryKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goldbot.log")
	log, err := NewLogger(path, "info")
	require.NoError(t, err)

	for _, kind := range []geworker.EventKind{geworker.EvtOutputLines, geworker.EvtModeChanged, geworker.EvtExited, geworker.EvtError} {
		LogGEEvent(log, geworker.Event{Kind: kind, Mode: geworker.ModeGeRun})
	}
}
