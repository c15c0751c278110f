// Package pipeline implements the Governed-Execution per-Todo pipeline:
// Executor-A, Reviewer-B, done_when validation, self-review and commit,
// grounded verbatim on the original consensus/evaluate.rs's verdict
// parsing and git plumbing.
package pipeline

import (
	"fmt"
	"strings"
)

// ExecDecision is claude_exec_decision's result.
type ExecDecision struct {
	Pass   bool
	Reason string
}

// ReviewDecision is codex_review_decision's result.
type ReviewDecision struct {
	Pass   bool
	Reason string
}

// ClaudeExecDecision parses Executor-A's output for a trailing
// "GE_EXEC_VERDICT: PASS|FAIL" line, matching evaluate.rs's
// claude_exec_decision exactly: non-zero exit is an immediate fail, and the
// most recent matching line (scanning from the end) wins.
func ClaudeExecDecision(output string, exitCode int) ExecDecision {
	if exitCode != 0 {
		return ExecDecision{Pass: false, Reason: fmt.Sprintf("non_zero_exit:%d", exitCode)}
	}
	relevant := relevantOutput(output)
	lines := strings.Split(relevant, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		rest, ok := strings.CutPrefix(t, "GE_EXEC_VERDICT:")
		if !ok {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(rest))
		if strings.HasPrefix(v, "pass") {
			return ExecDecision{Pass: true}
		}
		if strings.HasPrefix(v, "fail") {
			return ExecDecision{Pass: false, Reason: "explicit_exec_fail"}
		}
	}
	return ExecDecision{Pass: false, Reason: "missing_exec_verdict"}
}

// blockingTerms mirrors evaluate.rs's ambiguous-output blocking-term
// heuristic: used only when no explicit GE_REVIEW_VERDICT/GE_VERDICT line is
// present.
var blockingTerms = []string{
	"p0", "p1", "p2",
	"priority 0", "priority 1", "priority 2",
	"blocking issue", "blocking issues", "blocker",
	"阻塞问题", "阻塞项",
}

var passTerms = []string{
	"阻塞问题：无", "阻塞问题: 无", "无阻塞问题",
	"no blockers", "no blocker", "no blocking issues",
	"blockers: none", "blocking issues: none",
	"可判定完成", "can be considered complete",
}

// CodexReviewDecision parses Reviewer-B's output, matching evaluate.rs's
// codex_review_decision: an explicit GE_REVIEW_VERDICT/GE_VERDICT line wins;
// otherwise a set of known pass/blocking phrases is consulted; otherwise the
// output is rejected for lacking an explicit verdict (spec requires
// deterministic success detection).
func CodexReviewDecision(output string, exitCode int) ReviewDecision {
	if exitCode != 0 {
		return ReviewDecision{Pass: false, Reason: fmt.Sprintf("non_zero_exit:%d", exitCode)}
	}
	relevant := relevantOutput(output)

	if verdict, ok := extractReviewVerdict(relevant); ok {
		if verdict == "blocked" {
			return ReviewDecision{Pass: false, Reason: "explicit_verdict_blocked"}
		}
		return ReviewDecision{Pass: true}
	}

	lower := strings.ToLower(relevant)
	if hasAny(lower, passTerms) {
		return ReviewDecision{Pass: true}
	}
	if hasAny(lower, blockingTerms) {
		return ReviewDecision{Pass: false, Reason: "blocking_terms_detected"}
	}
	return ReviewDecision{Pass: false, Reason: "missing_explicit_verdict"}
}

func extractReviewVerdict(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		for _, prefix := range []string{"GE_REVIEW_VERDICT:", "GE_VERDICT:"} {
			rest, ok := strings.CutPrefix(t, prefix)
			if !ok {
				continue
			}
			v := strings.ToLower(strings.TrimSpace(rest))
			if strings.HasPrefix(v, "pass") {
				return "pass", true
			}
			if strings.HasPrefix(v, "blocked") {
				return "blocked", true
			}
		}
	}
	return "", false
}

func hasAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// relevantOutput strips a trailing "\nuser\n..." trailer some providers
// append (the prompt echoed back after the assistant's answer), mirroring
// evaluate.rs's codex_relevant_output so prompt-echoed blocking phrases
// ("Report blocking issues only.") never leak into verdict detection.
func relevantOutput(output string) string {
	if idx := strings.LastIndex(output, "\nuser\n"); idx >= 0 {
		return output[:idx]
	}
	return output
}
