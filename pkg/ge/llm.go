package ge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jg-phare/goat/pkg/ge/consensus"
	"github.com/jg-phare/goat/pkg/ge/interview"
)

// Chatter is the minimal one-shot LLM capability GE needs: a system prompt
// and a user prompt in, the model's full response text out. cmd/goldbot
// adapts pkg/agent.Provider's streaming ChatStream into this shape with a
// single accumulating callback, since GE's helpers never need incremental
// deltas the way the interactive main loop's streaming preview does.
type Chatter interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// LLMHelper implements pipeline.Helper over a Chatter.
type LLMHelper struct {
	Chatter      Chatter
	SystemPrompt string
}

// Run implements pipeline.Helper.
func (h *LLMHelper) Run(ctx context.Context, systemPrompt, prompt string) (string, error) {
	sp := systemPrompt
	if sp == "" {
		sp = h.SystemPrompt
	}
	return h.Chatter.Complete(ctx, sp, prompt)
}

// LLMPlanner implements interview.Planner, attempting Executor-A first and
// falling back to Reviewer-B on error or unparsable output, per spec §4.6
// step 2/4's "attempt Executor-A first, fall back to Reviewer-B" rule.
type LLMPlanner struct {
	ExecA Chatter
	RevB  Chatter
}

const clarifySystemPrompt = `You generate clarification questions for a Governed-Execution interview.
Given the stated purpose, rules and scope, respond with ONLY a JSON array of up to 8 objects,
each shaped {"prompt": "...", "options": ["...", "...", "..."]} with exactly 3 options.
Respond with an empty array [] if no further clarification is needed.`

const consensusSystemPrompt = `You build a Governed-Execution consensus plan.
Given the stated purpose, rules, scope and clarification answers, respond with ONLY a JSON object shaped
{"purpose_lines": ["..."], "rules_lines": ["..."], "todos": [{"id": "T001", "text": "...", "done_when": ["..."], "assist": "auto|claude|codex"}]}.
Produce between 8 and 12 todos with sequential ids T001..T00N, each with non-empty text and at least one done_when entry.`

// ClarifyQuestions implements interview.Planner.
func (p *LLMPlanner) ClarifyQuestions(ctx context.Context, purpose, rules, scope string, prevAnswers []string) ([]interview.ClarifyQuestion, error) {
	prompt := fmt.Sprintf("Purpose: %s\nRules: %s\nScope: %s\nPrevious answers: %s",
		purpose, rules, scope, strings.Join(prevAnswers, "; "))

	if out, err := p.ExecA.Complete(ctx, clarifySystemPrompt, prompt); err == nil {
		if qs, ok := parseClarifyJSON(out); ok {
			return qs, nil
		}
	}
	out, err := p.RevB.Complete(ctx, clarifySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	if qs, ok := parseClarifyJSON(out); ok {
		return qs, nil
	}
	return nil, fmt.Errorf("planner returned no parsable clarify questions")
}

// BuildConsensus implements interview.Planner.
func (p *LLMPlanner) BuildConsensus(ctx context.Context, purpose, rules, scope string, answers []string) (*consensus.Doc, error) {
	prompt := fmt.Sprintf("Purpose: %s\nRules: %s\nScope: %s\nClarification answers: %s",
		purpose, rules, scope, strings.Join(answers, "; "))

	if out, err := p.ExecA.Complete(ctx, consensusSystemPrompt, prompt); err == nil {
		if doc, ok := parseConsensusJSON(out); ok {
			return doc, nil
		}
	}
	out, err := p.RevB.Complete(ctx, consensusSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	if doc, ok := parseConsensusJSON(out); ok {
		return doc, nil
	}
	return nil, fmt.Errorf("planner returned no parsable consensus payload")
}

type clarifyPayload struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

func parseClarifyJSON(raw string) ([]interview.ClarifyQuestion, bool) {
	obj := extractJSONArray(raw)
	if obj == "" {
		return nil, false
	}
	var payloads []clarifyPayload
	if err := json.Unmarshal([]byte(obj), &payloads); err != nil {
		return nil, false
	}
	out := make([]interview.ClarifyQuestion, 0, len(payloads))
	for _, p := range payloads {
		if len(p.Options) != 3 {
			continue
		}
		out = append(out, interview.ClarifyQuestion{
			Prompt:  p.Prompt,
			Options: [3]string{p.Options[0], p.Options[1], p.Options[2]},
		})
	}
	return out, true
}

type consensusPayload struct {
	PurposeLines []string `json:"purpose_lines"`
	RulesLines   []string `json:"rules_lines"`
	Todos        []struct {
		ID       string   `json:"id"`
		Text     string   `json:"text"`
		DoneWhen []string `json:"done_when"`
		Assist   string   `json:"assist"`
	} `json:"todos"`
}

func parseConsensusJSON(raw string) (*consensus.Doc, bool) {
	obj := extractJSONObject(raw)
	if obj == "" {
		return nil, false
	}
	var payload consensusPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, false
	}
	doc := &consensus.Doc{
		PurposeLines: payload.PurposeLines,
		RulesLines:   payload.RulesLines,
	}
	for _, t := range payload.Todos {
		doc.Todos = append(doc.Todos, consensus.TodoItem{
			ID:       t.ID,
			Text:     t.Text,
			DoneWhen: t.DoneWhen,
			Assist:   t.Assist,
		})
	}
	if !consensus.ValidatePlannerGenerated(doc) {
		return nil, false
	}
	return doc, true
}

func extractJSONArray(raw string) string {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end < start {
		return ""
	}
	return raw[start : end+1]
}

func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return ""
	}
	return raw[start : end+1]
}
