package parser

import (
	"fmt"
	"strings"

	"github.com/jg-phare/goat/pkg/types"
)

// ParseError is returned for any malformed LLM response. Its message never
// echoes the raw response text, so a broken response can't feed itself back
// into the next prompt as noise.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "failed to parse model response: " + e.Reason
}

// toolCall is one <tool>name</tool> occurrence plus the text segment owned
// by it (everything up to the next <tool> opener, or end of string).
type toolCall struct {
	name string
	body string
}

// extractToolCalls walks the text collecting <tool>…</tool> occurrences with
// the same sibling-resync recovery rule as extractAllTags, additionally
// slicing out each call's parameter segment.
func extractToolCalls(text string) []toolCall {
	const open = "<tool>"
	const close = "</tool>"

	var out []toolCall
	pos := 0
	for {
		openIdx := indexFrom(text, open, pos)
		if openIdx < 0 {
			break
		}
		contentStart := openIdx + len(open)

		closeIdx := indexFrom(text, close, contentStart)
		if closeIdx < 0 {
			break
		}

		nextOpenIdx := indexFrom(text, open, contentStart)
		if nextOpenIdx >= 0 && nextOpenIdx < closeIdx {
			pos = nextOpenIdx
			continue
		}

		name := strings.TrimSpace(text[contentStart:closeIdx])
		bodyStart := closeIdx + len(close)
		bodyEnd := len(text)
		if n := indexFrom(text, open, bodyStart); n >= 0 {
			bodyEnd = n
		}
		out = append(out, toolCall{name: name, body: text[bodyStart:bodyEnd]})
		pos = bodyEnd
	}
	return out
}

// Parse tokenizes a single LLM response into (thought, actions). Precedence
// order per spec §4.1: <final> beats everything; then <skill>; then
// <create_mcp>; then the <tool> dispatch table; then a bare <command>
// fallback treated as Shell.
func Parse(text string) (string, []types.Action, error) {
	thought, _ := extractLastTag(text, "thought")

	if summary, ok := extractLastTag(text, "final"); ok {
		return thought, []types.Action{{Kind: types.ActionFinal, Summary: summary}}, nil
	}

	if name, ok := extractLastTag(text, "skill"); ok {
		return thought, []types.Action{{Kind: types.ActionSkill, SkillName: name}}, nil
	}

	if cfgRaw, ok := extractLastTag(text, "create_mcp"); ok {
		obj, err := parseJSONObject(cfgRaw)
		if err != nil {
			return thought, nil, &ParseError{Reason: "create_mcp: " + err.Error()}
		}
		return thought, []types.Action{{Kind: types.ActionCreateMcp, McpConfig: obj}}, nil
	}

	calls := extractToolCalls(text)
	if len(calls) > 0 {
		actions := make([]types.Action, 0, len(calls))
		for _, c := range calls {
			action, err := parseToolAction(c.name, c.body)
			if err != nil {
				return thought, nil, err
			}
			actions = append(actions, action)
		}
		return thought, actions, nil
	}

	if cmd, ok := extractLastTag(text, "command"); ok {
		return thought, []types.Action{{Kind: types.ActionShell, Command: cmd}}, nil
	}

	return thought, nil, &ParseError{Reason: "no <tool>, <final>, <skill>, <create_mcp> or bare <command> found"}
}

func missingTag(tool, tag string) error {
	return &ParseError{Reason: fmt.Sprintf("tool %q is missing required <%s>", tool, tag)}
}
