// Package telemetry provides GoldBot's structured diagnostic logging: a
// zap logger (the pack's dominant structured-logging library, see
// None9527-NGOClaw's internal/infrastructure/logger and vanducng-goclaw's
// OTel wiring) wrapping the Agent Executor's Emitter so every state
// transition, tool dispatch, and Governed-Execution stage boundary gets a
// structured log line, without the executor itself needing to know a
// logger exists. The GE JSONL audit trail (pkg/ge/audit) stays hand-rolled
// against its own exact field contract; this logger is the human-facing
// diagnostic stream alongside it.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jg-phare/goat/pkg/agent"
	geworker "github.com/jg-phare/goat/pkg/ge/worker"
)

// NewLogger builds a zap logger writing structured JSON to path (or to
// stderr if path is ""), at the given level ("debug", "info", "warn",
// "error"; defaults to "info" for an unrecognized value).
func NewLogger(path, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if path != "" {
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	} else {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// EmitterLogger wraps an agent.Emitter, logging one structured line per
// Event before forwarding it unchanged to Next.
type EmitterLogger struct {
	Log  *zap.Logger
	Next agent.Emitter
}

// Emit implements agent.Emitter.
func (l *EmitterLogger) Emit(e agent.Event) {
	fields := []zap.Field{zap.String("kind", string(e.Kind))}
	switch e.Kind {
	case agent.EventToolCall:
		fields = append(fields, zap.String("tool", e.ToolName), zap.String("command", e.Command))
	case agent.EventToolResult:
		fields = append(fields, zap.String("tool", e.ToolName), zap.Int("exit_code", e.ExitCode))
	case agent.EventNeedsConfirmation:
		fields = append(fields, zap.String("command", e.Command), zap.String("reason", e.Reason))
	case agent.EventSetMode:
		fields = append(fields, zap.String("mode", string(e.Mode)))
	case agent.EventParseError:
		fields = append(fields, zap.String("detail", e.Text))
	}
	l.Log.Info("executor event", fields...)
	if l.Next != nil {
		l.Next.Emit(e)
	}
}

// LogGEEvent writes one structured line for a Governed-Execution worker
// event, the GE-stage-boundary counterpart to EmitterLogger's main-loop
// coverage.
func LogGEEvent(log *zap.Logger, e geworker.Event) {
	fields := []zap.Field{zap.String("kind", geEventKindName(e.Kind)), zap.String("mode", string(e.Mode))}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	log.Info("ge event", fields...)
}

func geEventKindName(k geworker.EventKind) string {
	switch k {
	case geworker.EvtOutputLines:
		return "output_lines"
	case geworker.EvtModeChanged:
		return "mode_changed"
	case geworker.EvtExited:
		return "exited"
	case geworker.EvtError:
		return "error"
	default:
		return "unknown"
	}
}
