package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStubSearchProvider_ReturnsConfigError(t *testing.T) {
	_, _, err := StubSearchProvider{}.Search(context.Background(), "query")
	if err == nil || !strings.Contains(err.Error(), "BOCHA_API_KEY") {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestWebSearchTool_MissingQuery(t *testing.T) {
	tool := &WebSearchTool{Provider: StubSearchProvider{}}
	out, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsError {
		t.Error("expected IsError for missing query")
	}
}

func TestWebSearchTool_DefaultsToStubWhenNoProvider(t *testing.T) {
	tool := &WebSearchTool{}
	out, err := tool.Execute(context.Background(), map[string]any{"query": "golang"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsError {
		t.Error("expected IsError from stub provider")
	}
}

type fakeProvider struct {
	summary string
	results []SearchResult
}

func (f fakeProvider) Search(context.Context, string) (string, []SearchResult, error) {
	return f.summary, f.results, nil
}

func TestWebSearchTool_RendersSummaryAndResults(t *testing.T) {
	tool := &WebSearchTool{Provider: fakeProvider{
		summary: "Go is a language.",
		results: []SearchResult{{Title: "Go", URL: "https://go.dev", Snippet: "The Go site"}},
	}}
	out, err := tool.Execute(context.Background(), map[string]any{"query": "golang"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Content, "Go is a language.") {
		t.Errorf("expected summary in output, got %q", out.Content)
	}
	if !strings.Contains(out.Content, "https://go.dev") {
		t.Errorf("expected result URL in output, got %q", out.Content)
	}
}

func TestBochaSearchProvider_ParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing/incorrect auth header: %q", r.Header.Get("Authorization"))
		}
		resp := map[string]any{
			"data": map[string]any{
				"summary": "a helpful summary",
				"webPages": map[string]any{
					"value": []map[string]any{
						{"name": "Result One", "url": "https://example.com/1", "snippet": "snippet one"},
					},
				},
			},
		}
		data, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer server.Close()

	provider := &BochaSearchProvider{APIKey: "test-key", HTTPClient: server.Client(), BaseURL: server.URL}
	summary, results, err := provider.Search(context.Background(), "query")
	if err != nil {
		t.Fatal(err)
	}
	if summary != "a helpful summary" {
		t.Errorf("summary = %q", summary)
	}
	if len(results) != 1 || results[0].Title != "Result One" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestNewBochaSearchProviderFromEnv(t *testing.T) {
	t.Setenv("BOCHA_API_KEY", "")
	if _, ok := NewBochaSearchProviderFromEnv().(StubSearchProvider); !ok {
		t.Error("expected StubSearchProvider when BOCHA_API_KEY unset")
	}

	t.Setenv("BOCHA_API_KEY", "abc123")
	if _, ok := NewBochaSearchProviderFromEnv().(*BochaSearchProvider); !ok {
		t.Error("expected BochaSearchProvider when BOCHA_API_KEY set")
	}
}
