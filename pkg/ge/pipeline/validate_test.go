package pipeline

import (
	"context"
	"errors"
	"testing"
)

type stubRunner struct {
	script map[string]struct {
		code int
		out  string
		err  error
	}
	calls []string
}

func (s *stubRunner) Run(_ context.Context, command string) (int, string, error) {
	s.calls = append(s.calls, command)
	r, ok := s.script[command]
	if !ok {
		return 0, "", nil
	}
	return r.code, r.out, r.err
}

func TestValidateDoneWhen_NoConstraintsPasses(t *testing.T) {
	got := ValidateDoneWhen(context.Background(), nil, &stubRunner{})
	if got.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %+v", got)
	}
}

func TestValidateDoneWhen_SemanticClaimNotedNotRun(t *testing.T) {
	runner := &stubRunner{script: map[string]struct {
		code int
		out  string
		err  error
	}{}}
	got := ValidateDoneWhen(context.Background(), []string{"Completed and verified by Codex review"}, runner)
	if got.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %+v", got)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("semantic predicates must not run a command, got calls %v", runner.calls)
	}
}

func TestValidateDoneWhen_CmdPredicateRunsAndMustExitZero(t *testing.T) {
	runner := &stubRunner{script: map[string]struct {
		code int
		out  string
		err  error
	}{
		"ls": {code: 0, out: "file1\n"},
	}}
	got := ValidateDoneWhen(context.Background(), []string{"cmd:ls"}, runner)
	if got.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %+v", got)
	}
}

func TestValidateDoneWhen_CmdPredicateFailureStopsEarly(t *testing.T) {
	runner := &stubRunner{script: map[string]struct {
		code int
		out  string
		err  error
	}{
		"go build ./...": {code: 1, out: "compile error"},
	}}
	got := ValidateDoneWhen(context.Background(), []string{"cmd:go build ./...", "semantic: never reached"}, runner)
	if got.Outcome != OutcomeFailed || got.ExitCode != 1 {
		t.Fatalf("unexpected report: %+v", got)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected validation to stop at first failing predicate, calls=%v", runner.calls)
	}
}

func TestValidateDoneWhen_UnsafeCmdIsBlockedNotRun(t *testing.T) {
	runner := &stubRunner{}
	got := ValidateDoneWhen(context.Background(), []string{"cmd:sudo rm -rf /"}, runner)
	if got.Outcome != OutcomeBlockedSafety {
		t.Fatalf("expected blocked_safety, got %+v", got)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("unsafe command must never run, got calls %v", runner.calls)
	}
}

func TestSelfReview_FailsOutsideGitRepo(t *testing.T) {
	runner := &stubRunner{script: map[string]struct {
		code int
		out  string
		err  error
	}{
		"git rev-parse --is-inside-work-tree": {code: 128, out: "fatal: not a git repository"},
	}}
	got := SelfReview(context.Background(), runner)
	if got.Outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %+v", got)
	}
}

func TestSelfReview_Passes(t *testing.T) {
	runner := &stubRunner{script: map[string]struct {
		code int
		out  string
		err  error
	}{
		"git rev-parse --is-inside-work-tree": {code: 0, out: "true"},
		"git diff --check":                    {code: 0, out: ""},
		"git status --short":                  {code: 0, out: " M file.go"},
		"git diff --stat":                     {code: 0, out: "1 file changed"},
	}}
	got := SelfReview(context.Background(), runner)
	if got.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %+v", got)
	}
}

func TestCommitTodo_AddFailureShortCircuits(t *testing.T) {
	runner := &stubRunner{script: map[string]struct {
		code int
		out  string
		err  error
	}{
		"git add -A -- . ':(exclude)GE_LOG.jsonl'": {code: 0, out: "", err: errors.New("boom")},
	}}
	got := CommitTodo(context.Background(), runner, "T001", "do the thing")
	if got.Outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %+v", got)
	}
}

func TestCommitTodo_Success(t *testing.T) {
	runner := &stubRunner{script: map[string]struct {
		code int
		out  string
		err  error
	}{
		"git commit --allow-empty -m 'GE(T001): do the thing'": {code: 0, out: ""},
		"git show --stat --oneline --no-color -1":              {code: 0, out: "abc123 GE(T001): do the thing"},
	}}
	got := CommitTodo(context.Background(), runner, "T001", "do the thing")
	if got.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %+v", got)
	}
}
