package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/jg-phare/goat/pkg/llm"
	"github.com/jg-phare/goat/pkg/types"
)

// Provider is the capability interface the executor requires from an LLM
// backend, matching spec §6's external contract verbatim:
//
//	chat_stream(messages, show_thinking, on_content_delta, on_thinking_delta)
//	  -> (full_text, usage)
//
// It is the only open-polymorphism point in the core (spec §9): everything
// else is a closed, tagged data model.
type Provider interface {
	ChatStream(
		ctx context.Context,
		messages []types.Message,
		showThinking bool,
		onContentDelta func(string),
		onThinkingDelta func(string),
	) (fullText string, usage types.BetaUsage, err error)
}

// LLMClient wraps a pkg/llm.Client into the Provider contract, splitting
// content and reasoning deltas into their own callbacks and diffing
// cumulative reasoning_content (MiniMax-style) down to incremental bytes so
// callers never have to special-case a provider's accumulation style —
// spec §9's REDESIGN FLAGS open question, resolved here.
type LLMClient struct {
	Client       llm.Client
	Config       llm.ClientConfig
	SystemPrompt string
}

// ChatStream implements Provider.
func (p *LLMClient) ChatStream(
	ctx context.Context,
	messages []types.Message,
	showThinking bool,
	onContentDelta func(string),
	onThinkingDelta func(string),
) (string, types.BetaUsage, error) {
	systemPrompt := p.SystemPrompt
	if len(messages) > 0 && messages[0].Role == types.RoleSystem {
		systemPrompt = messages[0].Content
	}
	chatMessages := toChatMessages(messages)
	req := llm.BuildCompletionRequest(p.Config, systemPrompt, chatMessages, nil, llm.LoopState{})

	stream, err := p.Client.Complete(ctx, req)
	if err != nil {
		return "", types.BetaUsage{}, err
	}

	var lastReasoning string
	resp, err := stream.AccumulateWithCallback(func(chunk *llm.StreamChunk) {
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != nil && *choice.Delta.Content != "" {
				if onContentDelta != nil {
					onContentDelta(*choice.Delta.Content)
				}
			}
			if choice.Delta.ReasoningContent == nil {
				continue
			}
			text := *choice.Delta.ReasoningContent
			if !showThinking {
				continue
			}
			if p.Config.ReasoningCumulative {
				delta := strings.TrimPrefix(text, lastReasoning)
				lastReasoning = text
				if delta != "" && onThinkingDelta != nil {
					onThinkingDelta(delta)
				}
				continue
			}
			if onThinkingDelta != nil && text != "" {
				onThinkingDelta(text)
			}
		}
	})
	if err != nil {
		return "", types.BetaUsage{}, err
	}

	fullText := extractText(resp)
	if strings.TrimSpace(fullText) == "" {
		return "", types.BetaUsage{}, errEmptyContent
	}
	return fullText, resp.Usage, nil
}

// errEmptyContent is the sentinel spec §7/§6 calls "API returned empty
// content" — the executor auto-retries once on this specific error.
var errEmptyContent = errors.New("API returned empty content")

// IsEmptyContent reports whether err is (or wraps) the empty-content
// sentinel, per spec §7's "empty choice content" retry policy.
func IsEmptyContent(err error) bool {
	return errors.Is(err, errEmptyContent)
}

func extractText(resp *llm.CompletionResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// toChatMessages drops System messages: BuildCompletionRequest prepends the
// resolved system prompt (messages[0] when it is a System message, else
// p.SystemPrompt) as the wire-level system message itself, so passing both
// would duplicate it.
func toChatMessages(messages []types.Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			continue
		}
		out = append(out, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
