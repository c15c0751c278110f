package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jg-phare/goat/pkg/permission"
)

// Outcome mirrors the original's ExecutorOutcome enum, recorded verbatim in
// every audit record's "status" field.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeFailed         Outcome = "failed"
	OutcomeBlockedConfirm Outcome = "blocked_confirm"
	OutcomeBlockedSafety  Outcome = "blocked_safety"
)

// ValidationReport is the result of running a Todo's done_when predicates,
// or of the post-commit self-review pass.
type ValidationReport struct {
	Outcome  Outcome
	Summary  string
	ExitCode int
}

// CommitReport is the result of the commit step.
type CommitReport struct {
	Outcome  Outcome
	Summary  string
	ExitCode int
}

// CommandRunner runs a shell command to completion, matching the
// {exit_code, output} shape evaluate.rs's run_command wraps around a
// subprocess. ShellRunner is the production implementation, backed by
// pkg/tools.ShellTool so GE's git plumbing goes through the same
// snapshot/output-capping path every other shell command does.
type CommandRunner interface {
	Run(ctx context.Context, command string) (exitCode int, output string, err error)
}

// ValidateDoneWhen runs every done_when predicate for a Todo. A "cmd:<shell>"
// predicate must classify Safe under the Safety Gate and exit 0; any other
// text is a semantic claim, recorded but not auto-verified. Ported verbatim
// from evaluate.rs's validate_done_when including its early-return-on-first-
// failure behavior.
func ValidateDoneWhen(ctx context.Context, doneWhen []string, runner CommandRunner) ValidationReport {
	if len(doneWhen) == 0 {
		return ValidationReport{Outcome: OutcomeSuccess, Summary: "No done_when constraints. Treated as pass.", ExitCode: 0}
	}

	var notes []string
	for _, cond := range doneWhen {
		trimmed := strings.TrimSpace(cond)
		cmd, isCmd := strings.CutPrefix(trimmed, "cmd:")
		if !isCmd {
			notes = append(notes, "semantic: "+trimmed)
			continue
		}
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			return ValidationReport{Outcome: OutcomeFailed, Summary: "Empty done_when command.", ExitCode: -1}
		}

		risk, reason := permission.AssessCommand(cmd)
		if risk != permission.RiskSafe {
			return ValidationReport{
				Outcome:  OutcomeBlockedSafety,
				Summary:  fmt.Sprintf("Blocked done_when command `%s`: %s", cmd, reason),
				ExitCode: -1,
			}
		}

		exitCode, output, err := runner.Run(ctx, cmd)
		if err != nil {
			return ValidationReport{
				Outcome:  OutcomeFailed,
				Summary:  fmt.Sprintf("failed to run done_when command `%s`: %s", cmd, err),
				ExitCode: -1,
			}
		}
		notes = append(notes, fmt.Sprintf("cmd `%s` => exit %d", cmd, exitCode))
		if exitCode != 0 {
			return ValidationReport{
				Outcome:  OutcomeFailed,
				Summary:  fmt.Sprintf("done_when command failed: `%s` | %s", cmd, truncate(output, 240)),
				ExitCode: exitCode,
			}
		}
	}

	return ValidationReport{Outcome: OutcomeSuccess, Summary: strings.Join(notes, " | "), ExitCode: 0}
}

// SelfReview runs the post-commit sanity checks evaluate.rs's self_review
// does: confirm the cwd is a git repository, confirm there are no unresolved
// merge-conflict markers, and report a status/diffstat summary.
func SelfReview(ctx context.Context, runner CommandRunner) ValidationReport {
	if code, out, err := runner.Run(ctx, "git rev-parse --is-inside-work-tree"); err != nil {
		return ValidationReport{Outcome: OutcomeFailed, Summary: fmt.Sprintf("failed to check git repository: %s", err), ExitCode: -1}
	} else if code != 0 {
		return ValidationReport{Outcome: OutcomeFailed, Summary: fmt.Sprintf("not a git repository: %s", truncate(out, 220)), ExitCode: code}
	}

	if code, out, err := runner.Run(ctx, "git diff --check"); err != nil {
		return ValidationReport{Outcome: OutcomeFailed, Summary: fmt.Sprintf("failed to run git diff --check: %s", err), ExitCode: -1}
	} else if code != 0 {
		return ValidationReport{Outcome: OutcomeFailed, Summary: fmt.Sprintf("git diff --check failed: %s", truncate(out, 260)), ExitCode: code}
	}

	status := "status unavailable"
	if _, out, err := runner.Run(ctx, "git status --short"); err == nil {
		status = truncate(out, 220)
	}
	diffstat := "diffstat unavailable"
	if _, out, err := runner.Run(ctx, "git diff --stat"); err == nil {
		diffstat = truncate(out, 220)
	}

	return ValidationReport{
		Outcome:  OutcomeSuccess,
		Summary:  fmt.Sprintf("status: %s | diff: %s", status, diffstat),
		ExitCode: 0,
	}
}

// CommitTodo stages every change (excluding the audit log itself) and
// commits it with a message derived from the Todo's id and text, matching
// evaluate.rs's commit_todo including its --allow-empty (a Todo whose
// done_when is purely semantic may have produced no file changes) and the
// excluded GE_LOG.jsonl pathspec.
func CommitTodo(ctx context.Context, runner CommandRunner, todoID, todoText string) CommitReport {
	if _, _, err := runner.Run(ctx, "git add -A -- . ':(exclude)GE_LOG.jsonl'"); err != nil {
		return CommitReport{Outcome: OutcomeFailed, Summary: fmt.Sprintf("git add failed: %s", err), ExitCode: -1}
	}

	msg := fmt.Sprintf("GE(%s): %s", todoID, shortenForCommit(todoText))
	commitCmd := fmt.Sprintf("git commit --allow-empty -m %s", shellSingleQuote(msg))
	code, out, err := runner.Run(ctx, commitCmd)
	if err != nil {
		return CommitReport{Outcome: OutcomeFailed, Summary: fmt.Sprintf("git commit failed to start: %s", err), ExitCode: -1}
	}
	if code != 0 {
		return CommitReport{Outcome: OutcomeFailed, Summary: fmt.Sprintf("git commit failed: %s", truncate(out, 280)), ExitCode: code}
	}

	summary := "commit created; show failed"
	if _, show, err := runner.Run(ctx, "git show --stat --oneline --no-color -1"); err == nil {
		summary = truncate(show, 320)
	}
	return CommitReport{Outcome: OutcomeSuccess, Summary: summary, ExitCode: 0}
}

// LatestCommitContext returns a short summary of HEAD, fed into the next
// Todo's Executor-A prompt as recent git context. ok is false if there is no
// usable commit (e.g. not a git repo yet).
func LatestCommitContext(ctx context.Context, runner CommandRunner) (summary string, ok bool) {
	code, out, err := runner.Run(ctx, "git show --stat --oneline --no-color -1")
	if err != nil || code != 0 {
		return "", false
	}
	return truncate(out, 500), true
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func shortenForCommit(s string) string {
	return truncate(strings.Join(strings.Fields(s), " "), 64)
}

func shellSingleQuote(s string) string {
	escaped := strings.ReplaceAll(s, "'", `'"'"'`)
	return "'" + escaped + "'"
}
