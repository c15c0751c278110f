// Package context bounds the conversation buffer: it decides when to
// compact, folds old turns into a one-line summary, and hands any completed
// (task, final) pairs found along the way to a long-term memory store.
package context

import (
	"fmt"
	"strings"

	"github.com/jg-phare/goat/pkg/parser"
	"github.com/jg-phare/goat/pkg/types"
)

// NoteStore is the long-term memory dependency the compactor derives notes
// into. pkg/memory.Store satisfies this.
type NoteStore interface {
	AppendNotes(notes []string) error
}

// Compactor implements the Context Store (C2) described in spec §4.2.
type Compactor struct {
	state types.CompactState
	notes NoteStore
}

// NewCompactor builds a Compactor with the given thresholds; when
// state.MaxBeforeCompaction is 0, the spec's tuned defaults are used instead.
func NewCompactor(state types.CompactState, notes NoteStore) *Compactor {
	if state.MaxBeforeCompaction == 0 {
		state = types.DefaultCompactState()
	}
	return &Compactor{state: state, notes: notes}
}

// ShouldCompact reports the trigger condition from spec §4.2: the buffer
// must exceed MaxBeforeCompaction, and there must still be enough messages
// left over (beyond KeepRecentAfter) to make compaction worthwhile.
func (c *Compactor) ShouldCompact(messages []types.Message) bool {
	n := len(messages)
	return n > c.state.MaxBeforeCompaction && n > c.state.KeepRecentAfter+1
}

const (
	skipPrefixToolResult  = "Tool result"
	skipPrefixParseError  = "Your last response could not be parsed"
	skipPrefixAlreadyDone = "[Context compacted]"
)

type summaryEntry struct {
	kind string // "user" or "final"
	text string
}

// Compact folds the older slice of messages into a single summary message,
// deriving any long-term notes it finds along the way. It is a no-op if the
// trigger condition no longer holds (e.g. called speculatively).
func (c *Compactor) Compact(messages []types.Message) []types.Message {
	n := len(messages)
	prefixEnd := min(n, 2)
	splitAt := n - c.state.KeepRecentAfter
	if splitAt <= 1 || splitAt <= prefixEnd {
		return messages
	}

	prefix := messages[:prefixEnd]
	older := messages[prefixEnd:splitAt]
	tail := messages[splitAt:]

	var entries []summaryEntry
	var lastUserTask string
	var newNotes []string

	for _, m := range older {
		switch m.Role {
		case types.RoleUser:
			if strings.HasPrefix(m.Content, skipPrefixToolResult) ||
				strings.HasPrefix(m.Content, skipPrefixParseError) ||
				strings.HasPrefix(m.Content, skipPrefixAlreadyDone) {
				continue
			}
			lastUserTask = m.Content
			entries = append(entries, summaryEntry{kind: "user", text: m.Content})
		case types.RoleAssistant:
			if final, ok := parser.ExtractLastTag(m.Content, "final"); ok {
				entries = append(entries, summaryEntry{kind: "final", text: final})
				if lastUserTask != "" {
					newNotes = append(newNotes, deriveNotes(lastUserTask, final)...)
				}
			}
		}
	}

	if c.notes != nil && len(newNotes) > 0 {
		_ = c.notes.AppendNotes(newNotes)
	}

	summary := summarizeEntries(entries, c.state.MaxSummaryItems)

	var compactedTail []types.Message
	if summary != "" {
		compactedTail = append(compactedTail, types.NewMessage(types.RoleUser, "[Context compacted]\n"+summary))
	}

	out := make([]types.Message, 0, prefixEnd+len(compactedTail)+len(tail))
	out = append(out, prefix...)
	out = append(out, compactedTail...)
	out = append(out, tail...)
	return out
}

// summarizeEntries keeps the newest maxItems entries, renders one line per
// entry truncated to 120 characters, newest-first then reversed back to
// chronological order, per spec §4.2 step 3.
func summarizeEntries(entries []summaryEntry, maxItems int) string {
	if len(entries) == 0 {
		return ""
	}
	start := 0
	if len(entries) > maxItems {
		start = len(entries) - maxItems
	}
	kept := entries[start:]

	lines := make([]string, len(kept))
	for i, e := range kept {
		lines[i] = "- " + e.kind + ": " + truncate(oneLine(e.text), 120)
	}
	return strings.Join(lines, "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// deriveNotes is the derivation rule Compact uses. SetNoteDeriver can
// replace it, so pkg/context doesn't need to import pkg/memory directly — it
// only needs NoteStore to append, and this pure function to derive.
// cmd/goldbot does not call SetNoteDeriver, so this default is what runs.
var deriveNotes = func(task, final string) []string {
	return []string{fmt.Sprintf("- %s → %s", truncate(oneLine(task), 100), truncate(oneLine(final), 160))}
}

// SetNoteDeriver replaces the derivation rule, for example with
// pkg/memory.DeriveNotes.
func SetNoteDeriver(fn func(task, final string) []string) {
	deriveNotes = fn
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
