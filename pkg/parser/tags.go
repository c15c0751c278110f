// Package parser tokenizes a single LLM response string into an ordered
// sequence of typed Actions. It is a direct Go port of the tag-extraction
// algorithm GoldBot's Rust ancestor used (see react.rs), including the
// sibling-resync recovery rule that keeps a malformed opener from eating
// text that belongs to the next sibling tag.
package parser

import "strings"

// ExtractLastTag returns the rightmost closed occurrence of <tag>...</tag>,
// trimmed of surrounding whitespace. Exported for callers outside the
// parser (e.g. pkg/context, scanning historical assistant messages for a
// closed <final>) that need the same primitive without running a full
// Parse.
func ExtractLastTag(text, tag string) (string, bool) {
	return extractLastTag(text, tag)
}

// extractLastTag returns the rightmost closed occurrence of <tag>...</tag>,
// trimmed of surrounding whitespace.
func extractLastTag(text, tag string) (string, bool) {
	raw, ok := extractLastTagRaw(text, tag)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

// extractLastTagRaw finds the rightmost closed occurrence without trimming.
func extractLastTagRaw(text, tag string) (string, bool) {
	open := "<" + tag + ">"
	close := "</" + tag + ">"

	closeIdx := strings.LastIndex(text, close)
	if closeIdx < 0 {
		return "", false
	}
	head := text[:closeIdx]
	openIdx := strings.LastIndex(head, open)
	if openIdx < 0 {
		return "", false
	}
	return text[openIdx+len(open) : closeIdx], true
}

// extractLastTagPreserveBlock behaves like extractLastTag, but strips
// exactly one leading "\r\n" or "\n" and, only when that leading wrapper was
// present, one trailing "\r\n" or "\n" too. This keeps file/code content
// indentation intact instead of trimming it away.
func extractLastTagPreserveBlock(text, tag string) (string, bool) {
	raw, ok := extractLastTagRaw(text, tag)
	if !ok {
		return "", false
	}
	return preserveBlockTrim(raw), true
}

func preserveBlockTrim(raw string) string {
	strippedLeading := false
	switch {
	case strings.HasPrefix(raw, "\r\n"):
		raw = raw[2:]
		strippedLeading = true
	case strings.HasPrefix(raw, "\n"):
		raw = raw[1:]
		strippedLeading = true
	}
	if strippedLeading {
		switch {
		case strings.HasSuffix(raw, "\r\n"):
			raw = raw[:len(raw)-2]
		case strings.HasSuffix(raw, "\n"):
			raw = raw[:len(raw)-1]
		}
	}
	return raw
}

// extractAllTags returns every closed occurrence of <tag>...</tag> in
// document order, trimmed.
//
// Recovery rule (critical): when an opening <tag> is found and the *next*
// sibling <tag> opener starts before this one's matching closer, the opener
// is malformed (unclosed) — skip it and resync scanning at the next opener,
// rather than letting the content capture leak across the sibling boundary.
func extractAllTags(text, tag string) []string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"

	var out []string
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
			// This opener never closes before the next sibling starts.
			// Skip it and resync there instead of consuming across it.
			pos = nextOpenIdx
			continue
		}

		out = append(out, strings.TrimSpace(text[contentStart:closeIdx]))
		pos = closeIdx + len(close)
	}
	return out
}

func indexFrom(text, substr string, from int) int {
	if from > len(text) {
		return -1
	}
	idx := strings.Index(text[from:], substr)
	if idx < 0 {
		return -1
	}
	return from + idx
}
