package types

// McpServerConfig describes how to connect to one MCP server, as declared in
// the bot's config file or generated at runtime by a <create_mcp> action.
type McpServerConfig struct {
	Type string `json:"type"` // "stdio" | "sse" | "http"

	// stdio
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// sse/http
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}
