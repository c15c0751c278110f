package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jg-phare/goat/pkg/ge/audit"
	"github.com/jg-phare/goat/pkg/ge/consensus"
)

// Helper runs one Executor-A or Reviewer-B turn: a single prompt in, a
// single text response out. Both roles use the identical transport (an LLM
// call); only the system prompt differs, per spec's glossary entry for
// Executor-A/Reviewer-B. A non-nil err stands in for the original's
// non-zero subprocess exit — there is no real exit code for an API call.
type Helper interface {
	Run(ctx context.Context, systemPrompt, prompt string) (output string, err error)
}

// TodoResult is what RunTodo reports back to the caller (the GE worker
// loop), so it can update CONSENSUS.md and decide whether to advance,
// defer, or halt.
type TodoResult struct {
	Checked  bool
	Deferred bool
	Summary  string
}

// RunTodo drives the fixed Executor-A -> Reviewer-B -> validate -> commit
// pipeline for a single todo, matching spec §4.6's GeRun steps 1-5
// (including the Reviewer-B-as-fallback-executor step 4), logging every
// stage to audit and returning the outcome.
func RunTodo(
	ctx context.Context,
	todo consensus.TodoItem,
	doc *consensus.Doc,
	execA Helper,
	revB Helper,
	runner CommandRunner,
	log *audit.Logger,
) TodoResult {
	gitContext, _ := LatestCommitContext(ctx, runner)

	prompt := buildExecutorPrompt(doc, todo, gitContext)
	execOut, execErr := execA.Run(ctx, executorSystemPrompt, prompt)
	execExit := 0
	if execErr != nil {
		execExit = -1
		execOut = execErr.Error()
	}
	logExecRun(log, audit.EventClaudeExec, todo.ID, "claude", execOut, execExit)

	execDecision := ClaudeExecDecision(execOut, execExit)

	var reviewOut string
	var reviewExit int
	var usedFallback bool

	if execDecision.Pass {
		reviewOut, reviewExit = runReviewer(ctx, revB, reviewerSystemPrompt, prompt)
	} else {
		// Executor-A failed or was blocked: fall back to Reviewer-B running
		// the same combined executor+reviewer prompt, per spec step 4.
		usedFallback = true
		reviewOut, reviewExit = runReviewer(ctx, revB, combinedSystemPrompt, prompt)
	}
	logExecRun(log, audit.EventCodexExec, todo.ID, "codex", reviewOut, reviewExit)

	reviewDecision := CodexReviewDecision(reviewOut, reviewExit)
	if !reviewDecision.Pass {
		summary := fmt.Sprintf("review blocked (%s, fallback=%v): %s", reviewDecision.Reason, usedFallback, truncate(reviewOut, 240))
		log.Write(audit.Record{Mode: audit.ModeGeRun, Event: audit.EventTodoDeferred, TodoID: todo.ID, Status: audit.StatusBlockedConfirm, Summary: summary})
		return TodoResult{Deferred: true, Summary: summary}
	}

	validation := ValidateDoneWhen(ctx, todo.DoneWhen, runner)
	logValidation(log, todo.ID, validation)
	if validation.Outcome != OutcomeSuccess {
		log.Write(audit.Record{Mode: audit.ModeGeRun, Event: audit.EventTodoDeferred, TodoID: todo.ID, Status: toAuditStatus(validation.Outcome), Summary: validation.Summary})
		return TodoResult{Deferred: true, Summary: validation.Summary}
	}

	review := SelfReview(ctx, runner)
	log.Write(audit.Record{Mode: audit.ModeGeRun, Event: audit.EventSelfReview, TodoID: todo.ID, Status: toAuditStatus(review.Outcome), Summary: review.Summary, ExitCode: &review.ExitCode})
	if review.Outcome != OutcomeSuccess {
		return TodoResult{Deferred: true, Summary: review.Summary}
	}

	commit := CommitTodo(ctx, runner, todo.ID, todo.Text)
	log.Write(audit.Record{Mode: audit.ModeGeRun, Event: audit.EventGitCommit, TodoID: todo.ID, Status: toAuditStatus(commit.Outcome), Summary: commit.Summary, ExitCode: &commit.ExitCode})
	if commit.Outcome != OutcomeSuccess {
		return TodoResult{Deferred: true, Summary: commit.Summary}
	}

	log.Write(audit.Record{Mode: audit.ModeGeRun, Event: audit.EventTodoChecked, TodoID: todo.ID, Status: audit.StatusSuccess, Summary: commit.Summary})
	return TodoResult{Checked: true, Summary: commit.Summary}
}

func runReviewer(ctx context.Context, h Helper, systemPrompt, prompt string) (string, int) {
	out, err := h.Run(ctx, systemPrompt, prompt)
	if err != nil {
		return err.Error(), -1
	}
	return out, 0
}

func logExecRun(log *audit.Logger, event audit.EventKind, todoID, executor, output string, exitCode int) {
	log.Write(audit.Record{
		Mode:     audit.ModeGeRun,
		Event:    event,
		TodoID:   todoID,
		Executor: executor,
		Command:  "(llm turn)",
		ExitCode: &exitCode,
		Status:   exitStatus(exitCode),
		Summary:  output,
	})
}

func logValidation(log *audit.Logger, todoID string, v ValidationReport) {
	log.Write(audit.Record{
		Mode:     audit.ModeGeRun,
		Event:    audit.EventValidation,
		TodoID:   todoID,
		Status:   toAuditStatus(v.Outcome),
		Summary:  v.Summary,
		ExitCode: &v.ExitCode,
	})
}

func exitStatus(exitCode int) audit.Status {
	if exitCode == 0 {
		return audit.StatusSuccess
	}
	return audit.StatusFailed
}

func toAuditStatus(o Outcome) audit.Status {
	switch o {
	case OutcomeSuccess:
		return audit.StatusSuccess
	case OutcomeBlockedConfirm:
		return audit.StatusBlockedConfirm
	case OutcomeBlockedSafety:
		return audit.StatusBlockedSafety
	default:
		return audit.StatusFailed
	}
}

const executorSystemPrompt = `You are Executor-A, the implementation half of a Governed-Execution pipeline.
Make the smallest change that satisfies the current Todo's done_when conditions.
End your final message with exactly one line: "GE_EXEC_VERDICT: PASS" or "GE_EXEC_VERDICT: FAIL - <reason>".`

const reviewerSystemPrompt = `You are Reviewer-B, the independent review half of a Governed-Execution pipeline.
Inspect the Executor-A output and the repository state for defects, risks, or incomplete work.
End your final message with exactly one line: "GE_REVIEW_VERDICT: PASS" or "GE_REVIEW_VERDICT: BLOCKED - <reason>".`

const combinedSystemPrompt = `You are acting as both Executor-A and Reviewer-B because the first executor attempt failed or was blocked.
Implement the Todo yourself, then review your own work.
End your final message with exactly one line: "GE_REVIEW_VERDICT: PASS" or "GE_REVIEW_VERDICT: BLOCKED - <reason>".`

func buildExecutorPrompt(doc *consensus.Doc, todo consensus.TodoItem, gitContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Purpose:\n%s\n\n", strings.Join(doc.PurposeLines, "\n"))
	fmt.Fprintf(&b, "Rules:\n%s\n\n", strings.Join(doc.RulesLines, "\n"))
	fmt.Fprintf(&b, "Current Todo %s: %s\n", todo.ID, todo.Text)
	if len(todo.DoneWhen) > 0 {
		fmt.Fprintf(&b, "done_when:\n- %s\n", strings.Join(todo.DoneWhen, "\n- "))
	}
	if gitContext != "" {
		fmt.Fprintf(&b, "\nRecent git context:\n%s\n", gitContext)
	}
	return b.String()
}
