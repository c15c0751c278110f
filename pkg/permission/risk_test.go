package permission

import (
	"testing"

	"github.com/jg-phare/goat/pkg/types"
)

func TestAssessCommandBlocksSudo(t *testing.T) {
	risk, _ := AssessCommand("sudo rm -rf /")
	if risk != RiskBlock {
		t.Fatalf("expected Block, got %v", risk)
	}
}

func TestAssessCommandBlocksForkBomb(t *testing.T) {
	risk, _ := AssessCommand(":(){ :|:& };:")
	if risk != RiskBlock {
		t.Fatalf("expected Block, got %v", risk)
	}
}

func TestAssessCommandConfirmsRedirect(t *testing.T) {
	risk, _ := AssessCommand("echo hi > out.txt")
	if risk != RiskConfirm {
		t.Fatalf("expected Confirm, got %v", risk)
	}
}

func TestAssessCommandConfirmsRemove(t *testing.T) {
	risk, _ := AssessCommand("rm -rf build/")
	if risk != RiskConfirm {
		t.Fatalf("expected Confirm, got %v", risk)
	}
}

func TestAssessCommandSafeForReadOnly(t *testing.T) {
	risk, _ := AssessCommand("ls -la pkg/")
	if risk != RiskSafe {
		t.Fatalf("expected Safe, got %v", risk)
	}
}

func TestDecideAutoAcceptsUnderAcceptEdits(t *testing.T) {
	decision, risk, _ := Decide("rm -rf build/", types.ModeAcceptEdits, false)
	if risk != RiskConfirm || decision != DecisionAutoAccept {
		t.Fatalf("expected auto-accept, got decision=%v risk=%v", decision, risk)
	}
}

func TestDecideAutoAcceptsUnderGE(t *testing.T) {
	decision, _, _ := Decide("rm -rf build/", types.ModeAgent, true)
	if decision != DecisionAutoAccept {
		t.Fatalf("expected auto-accept under GE, got %v", decision)
	}
}

func TestDecideAwaitsConfirmOtherwise(t *testing.T) {
	decision, _, _ := Decide("rm -rf build/", types.ModeAgent, false)
	if decision != DecisionAwaitConfirm {
		t.Fatalf("expected AwaitingConfirm, got %v", decision)
	}
}

func TestDecideBlocksSudoRegardlessOfMode(t *testing.T) {
	decision, _, _ := Decide("sudo reboot", types.ModeAcceptEdits, true)
	if decision != DecisionBlocked {
		t.Fatalf("expected Blocked, got %v", decision)
	}
}
