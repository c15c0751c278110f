// Package interview implements the Governed-Execution clarification
// interview: Purpose -> Rules -> Scope -> Clarify, bounded to 4 rounds of at
// most 8 questions each, ending in either a planner-generated or
// template-fallback CONSENSUS.md, per spec §4.6.
package interview

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jg-phare/goat/pkg/ge/consensus"
)

// MaxClarifyRounds and MaxClarifyQuestionsPerRound bound the Clarify
// sub-state per spec §4.6.
const (
	MaxClarifyRounds            = 4
	MaxClarifyQuestionsPerRound = 8
)

// Step is the interview's current question.
type Step int

const (
	StepPurpose Step = iota
	StepRules
	StepScope
	StepClarify
)

// ClarifyQuestion is one planner-generated clarification question; spec
// requires exactly 3 options, the user may answer "1"/"2"/"3" or free text.
type ClarifyQuestion struct {
	Prompt  string
	Options [3]string
}

// Planner is the LLM-backed capability the interview needs at its two
// planning transitions. Callers should attempt Executor-A first and fall
// back to Reviewer-B on failure (spec step 2/4); that fallback composition
// happens in the caller, not here, so Planner itself stays a single call.
type Planner interface {
	ClarifyQuestions(ctx context.Context, purpose, rules, scope string, previousAnswers []string) ([]ClarifyQuestion, error)
	BuildConsensus(ctx context.Context, purpose, rules, scope string, answers []string) (*consensus.Doc, error)
}

// State is one in-progress interview.
type State struct {
	Step             Step
	Purpose          string
	Rules            string
	Scope            string
	ClarifyQuestions []ClarifyQuestion
	ClarifyAnswers   []string
	ClarifyIndex     int
	ClarifyRound     int
}

// New starts a fresh interview at Q1/3.
func New() *State {
	return &State{Step: StepPurpose}
}

// NeedsLongWait reports whether the next reply will trigger an LLM planner
// call, per the original's interview_needs_long_wait — callers use this to
// print a "Planning..." progress line before blocking.
func (s *State) NeedsLongWait() bool {
	switch s.Step {
	case StepScope:
		return true
	case StepClarify:
		return s.ClarifyIndex >= len(s.ClarifyQuestions)-1
	default:
		return false
	}
}

// NextPrompt returns the question to show the user next, or "" if the
// interview has produced its final consensus document.
func (s *State) NextPrompt() string {
	switch s.Step {
	case StepPurpose:
		return "GE Q1/3: What is the purpose/goal?"
	case StepRules:
		return "GE Q2/3: What rules must always be followed?"
	case StepScope:
		return "GE Q3/3: What are the scope boundaries?"
	case StepClarify:
		if s.ClarifyIndex < len(s.ClarifyQuestions) {
			q := s.ClarifyQuestions[s.ClarifyIndex]
			return fmt.Sprintf("%s\n  1) %s\n  2) %s\n  3) %s", q.Prompt, q.Options[0], q.Options[1], q.Options[2])
		}
		return ""
	default:
		return ""
	}
}

// Result is HandleReply's outcome once the interview concludes.
type Result struct {
	Done   bool
	Doc    *consensus.Doc
	Source string // "planner" or "template fallback"
}

// HandleReply advances the interview by one user answer. When the reply
// completes the interview, Result.Done is true and Result.Doc holds the
// generated (or template-fallback) CONSENSUS.md content.
func (s *State) HandleReply(ctx context.Context, text string, planner Planner) (Result, error) {
	text = strings.TrimSpace(text)

	switch s.Step {
	case StepPurpose:
		s.Purpose = text
		s.Step = StepRules
		return Result{}, nil

	case StepRules:
		s.Rules = text
		s.Step = StepScope
		return Result{}, nil

	case StepScope:
		s.Scope = text
		return s.startClarifyRound(ctx, planner)

	case StepClarify:
		if s.ClarifyIndex < len(s.ClarifyQuestions) {
			q := s.ClarifyQuestions[s.ClarifyIndex]
			s.ClarifyAnswers = append(s.ClarifyAnswers, resolveChoice(text, q))
			s.ClarifyIndex++
		}
		if s.ClarifyIndex < len(s.ClarifyQuestions) {
			return Result{}, nil
		}
		return s.startClarifyRound(ctx, planner)

	default:
		return Result{}, fmt.Errorf("interview already complete")
	}
}

// startClarifyRound either begins a new round of clarify questions (if
// planner has more to ask and the round budget allows) or finalizes the
// interview into a consensus document.
func (s *State) startClarifyRound(ctx context.Context, planner Planner) (Result, error) {
	s.Step = StepClarify

	if s.ClarifyRound < MaxClarifyRounds {
		qs, err := planner.ClarifyQuestions(ctx, s.Purpose, s.Rules, s.Scope, s.ClarifyAnswers)
		if err == nil && len(qs) > 0 {
			if len(qs) > MaxClarifyQuestionsPerRound {
				qs = qs[:MaxClarifyQuestionsPerRound]
			}
			s.ClarifyQuestions = qs
			s.ClarifyIndex = 0
			s.ClarifyRound++
			return Result{}, nil
		}
	}

	doc, err := planner.BuildConsensus(ctx, s.Purpose, s.Rules, s.Scope, s.ClarifyAnswers)
	if err != nil || doc == nil || !consensus.ValidatePlannerGenerated(doc) {
		return Result{
			Done:   true,
			Doc:    consensus.BuildFromInterview(s.Purpose, s.Rules, s.Scope),
			Source: "template fallback",
		}, nil
	}
	return Result{Done: true, Doc: doc, Source: "planner"}, nil
}

// resolveChoice maps a "1"/"2"/"3" reply to its option text; anything else
// (including an unrecognized number) is taken as a free-form custom answer.
func resolveChoice(text string, q ClarifyQuestion) string {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err == nil && n >= 1 && n <= 3 {
		return q.Options[n-1]
	}
	return text
}
