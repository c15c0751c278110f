// Package permission implements the Safety Gate (C5): it classifies shell
// commands into Safe/Confirm/Block and decides, together with the current
// assist mode, whether a command runs immediately, needs user confirmation,
// or is refused outright.
package permission

import "strings"

// RiskLevel is the outcome of classifying a shell command.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskConfirm
	RiskBlock
)

func (r RiskLevel) String() string {
	switch r {
	case RiskSafe:
		return "safe"
	case RiskConfirm:
		return "confirm"
	case RiskBlock:
		return "block"
	default:
		return "unknown"
	}
}

// blockKeywords are substrings that make a command system-critical
// regardless of context. Ported verbatim from the keyword set GoldBot's
// ancestor used.
var blockKeywords = []string{"sudo", "format", "diskpart", ":(){"}

// confirmKeywords are substrings of commands that mutate state or the
// filesystem in ways worth a second look. Kept exactly as-is, including the
// leading/trailing spaces that scope "rm"/"mv"/"ren" to whole words.
var confirmKeywords = []string{" rm ", "rm -", "del ", "rmdir", "mv ", "ren ", ">", "curl ", "wget "}

// AssessCommand classifies a shell command and returns a short human-
// readable reason alongside the verdict.
func AssessCommand(command string) (RiskLevel, string) {
	lower := strings.ToLower(command)

	for _, kw := range blockKeywords {
		if strings.Contains(lower, kw) {
			return RiskBlock, "Blocked: system-critical command"
		}
	}

	for _, kw := range confirmKeywords {
		if strings.Contains(lower, kw) {
			return RiskConfirm, "Potentially destructive or mutating operation"
		}
	}

	return RiskSafe, "Read-only / low-risk"
}
