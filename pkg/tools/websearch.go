package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	bochaSearchURL      = "https://api.bocha.cn/v1/web-search"
	webSearchMaxChars   = 8_000
	webSearchTimeout    = 20 * time.Second
	webSearchResultCount = 10
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchProvider performs a web search and returns ranked results plus an
// optional AI-generated summary.
type SearchProvider interface {
	Search(ctx context.Context, query string) (summary string, results []SearchResult, err error)
}

// StubSearchProvider reports that no provider is configured.
type StubSearchProvider struct{}

func (StubSearchProvider) Search(context.Context, string) (string, []SearchResult, error) {
	return "", nil, fmt.Errorf("web search not configured: set BOCHA_API_KEY")
}

// BochaSearchProvider calls Bocha's web-search API (spec's documented
// BOCHA_API_KEY-backed provider).
type BochaSearchProvider struct {
	APIKey     string
	HTTPClient *http.Client
	// BaseURL overrides bochaSearchURL; empty means use the real endpoint.
	BaseURL string
}

// NewBochaSearchProviderFromEnv builds a provider from BOCHA_API_KEY, or
// falls back to StubSearchProvider when unset.
func NewBochaSearchProviderFromEnv() SearchProvider {
	key := os.Getenv("BOCHA_API_KEY")
	if key == "" {
		return StubSearchProvider{}
	}
	return &BochaSearchProvider{APIKey: key}
}

func (p *BochaSearchProvider) Search(ctx context.Context, query string) (string, []SearchResult, error) {
	url := p.BaseURL
	if url == "" {
		url = bochaSearchURL
	}
	return p.searchAt(ctx, url, query)
}

func (p *BochaSearchProvider) searchAt(ctx context.Context, url, query string) (string, []SearchResult, error) {
	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: webSearchTimeout}
	}

	reqBody, _ := json.Marshal(map[string]any{
		"query":     query,
		"summary":   true,
		"freshness": "noLimit",
		"count":     webSearchResultCount,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("bocha request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("bocha API error %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Data struct {
			Summary  string `json:"summary"`
			WebPages struct {
				Value []struct {
					Name    string `json:"name"`
					URL     string `json:"url"`
					Snippet string `json:"snippet"`
				} `json:"value"`
			} `json:"webPages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", nil, fmt.Errorf("parse bocha response: %w", err)
	}

	var results []SearchResult
	for i, item := range parsed.Data.WebPages.Value {
		if i >= 5 {
			break
		}
		results = append(results, SearchResult{Title: item.Name, URL: item.URL, Snippet: item.Snippet})
	}
	return parsed.Data.Summary, results, nil
}

// WebSearchTool renders the top results of a SearchProvider query, with the
// AI summary (if any) first.
type WebSearchTool struct {
	Provider SearchProvider
}

func (w *WebSearchTool) Name() string        { return "WebSearch" }
func (w *WebSearchTool) Description() string { return "Searches the web and returns the top results with an optional summary." }
func (w *WebSearchTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	}
}
func (w *WebSearchTool) SideEffect() SideEffectType { return SideEffectReadOnly }

func (w *WebSearchTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	query, _ := input["query"].(string)
	if query == "" {
		return ToolOutput{Content: "Error: query is required", IsError: true}, nil
	}
	provider := w.Provider
	if provider == nil {
		provider = StubSearchProvider{}
	}

	summary, results, err := provider.Search(ctx, query)
	if err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error: %s", err), IsError: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for: %q\n\n", query)
	if summary != "" {
		b.WriteString("Summary:\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if len(results) > 0 {
		b.WriteString("Results:\n")
		for i, r := range results {
			fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n\n", i+1, r.Title, r.URL, r.Snippet)
		}
	}
	out := strings.TrimRight(b.String(), "\n")
	if len(out) > webSearchMaxChars {
		out = out[:webSearchMaxChars] + "\n...[truncated]"
	}
	return ToolOutput{Content: out}, nil
}
