package permission

import "github.com/jg-phare/goat/pkg/types"

// GateDecision is what the executor should do with a shell action after the
// Safety Gate has classified it.
type GateDecision int

const (
	// DecisionExecute: run it now, no user interaction needed.
	DecisionExecute GateDecision = iota
	// DecisionAutoAccept: risky, but the current mode auto-approves it.
	// The executor should still emit a "auto-accepted: …" Thinking event.
	DecisionAutoAccept
	// DecisionAwaitConfirm: enter AwaitingConfirm and wait for the user.
	DecisionAwaitConfirm
	// DecisionBlocked: refuse outright.
	DecisionBlocked
)

// Decide applies the spec §4.5 gate policy: Safe always executes; Confirm
// auto-accepts under AcceptEdits mode or while GE is driving the loop,
// otherwise it waits on the user; Block never runs.
func Decide(command string, mode types.AssistMode, geActive bool) (GateDecision, RiskLevel, string) {
	risk, reason := AssessCommand(command)

	switch risk {
	case RiskBlock:
		return DecisionBlocked, risk, reason
	case RiskConfirm:
		if mode == types.ModeAcceptEdits || geActive {
			return DecisionAutoAccept, risk, reason
		}
		return DecisionAwaitConfirm, risk, reason
	default:
		return DecisionExecute, risk, reason
	}
}
