package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jg-phare/goat/pkg/types"
)

const mcpServersFilename = "mcp_servers.json"

// CreateMcpTool atomically adds (or overwrites) a server entry in
// ~/.goldbot/mcp_servers.json. It normalizes the incoming config into the
// canonical shape the config loader expects (command as a string array,
// explicit type/enabled) before writing — the same shape
// create_mcp_server produces.
type CreateMcpTool struct {
	// Reload is called with the newly-written server set so the caller can
	// hot-apply it via mcp.Client.SetServers. Optional.
	Reload func(ctx context.Context, servers map[string]types.McpServerConfig) error
}

func (c *CreateMcpTool) Name() string        { return "CreateMcp" }
func (c *CreateMcpTool) Description() string { return "Registers a new MCP server in ~/.goldbot/mcp_servers.json." }
func (c *CreateMcpTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":   map[string]any{"type": "string"},
			"config": map[string]any{"type": "object"},
		},
		"required": []string{"name", "config"},
	}
}
func (c *CreateMcpTool) SideEffect() SideEffectType { return SideEffectMutating }

func (c *CreateMcpTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	name, _ := input["name"].(string)
	config, _ := input["config"].(map[string]any)
	if strings.TrimSpace(name) == "" {
		return ToolOutput{Content: "Error: MCP server name must not be empty", IsError: true}, nil
	}
	if config == nil {
		return ToolOutput{Content: "Error: MCP server config must be a JSON object", IsError: true}, nil
	}
	if _, ok := config["command"]; !ok {
		if _, ok := config["url"]; !ok {
			return ToolOutput{Content: "Error: MCP server config requires a `command` or `url` field", IsError: true}, nil
		}
	}

	path := mcpServersFilePath()
	root, err := readMcpServersFile(path)
	if err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error reading %s: %s", path, err), IsError: true}, nil
	}

	spec := normalizeMcpSpec(config)
	container := mcpServersContainer(root)
	container[name] = spec

	if err := writeMcpServersFile(path, root); err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error writing %s: %s", path, err), IsError: true}, nil
	}

	if c.Reload != nil {
		servers, err := parseMcpServersFile(root)
		if err == nil {
			if err := c.Reload(ctx, servers); err != nil {
				return ToolOutput{Content: fmt.Sprintf("Wrote %s, but live reload failed: %s", path, err)}, nil
			}
		}
	}

	return ToolOutput{Content: fmt.Sprintf("Registered MCP server %q in %s", name, path)}, nil
}

func goldbotHomeDir() string {
	if dir := os.Getenv("GOLDBOT_MEMORY_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".goldbot")
	}
	return ".goldbot"
}

func mcpServersFilePath() string {
	if path := os.Getenv("GOLDBOT_MCP_SERVERS_FILE"); path != "" {
		return path
	}
	return filepath.Join(goldbotHomeDir(), mcpServersFilename)
}

func readMcpServersFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return map[string]any{}, nil
	}
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return map[string]any{}, nil
	}
	return root, nil
}

func writeMcpServersFile(path string, root map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// mcpServersContainer finds (or creates) the object that holds per-server
// entries, honoring the mcpServers/mcp wrapper keys some configs use.
func mcpServersContainer(root map[string]any) map[string]any {
	for _, key := range []string{"mcpServers", "mcp"} {
		if inner, ok := root[key].(map[string]any); ok {
			return inner
		}
	}
	return root
}

// normalizeMcpSpec brings a spec to the canonical on-disk shape: a spec
// without a url gets command/args merged into one command array and
// type=local; a url spec gets type=http when it has no type; every spec
// gets enabled=true.
func normalizeMcpSpec(config map[string]any) map[string]any {
	spec := make(map[string]any, len(config))
	for k, v := range config {
		spec[k] = v
	}
	delete(spec, "name")

	if _, hasURL := spec["url"]; !hasURL {
		var cmdParts []any
		switch c := spec["command"].(type) {
		case []any:
			cmdParts = append(cmdParts, c...)
		case string:
			if strings.TrimSpace(c) != "" {
				cmdParts = append(cmdParts, c)
			}
		}
		if extra, ok := spec["args"].([]any); ok {
			cmdParts = append(cmdParts, extra...)
		}
		delete(spec, "args")
		spec["command"] = cmdParts
		spec["type"] = "local"
	} else {
		if _, ok := spec["type"]; !ok {
			spec["type"] = "http"
		}
	}
	spec["enabled"] = true

	for _, key := range []string{"env", "headers"} {
		if m, ok := spec[key].(map[string]any); ok && len(m) == 0 {
			delete(spec, key)
		}
	}
	return spec
}

// parseMcpServersFile decodes the full on-disk config into the
// types.McpServerConfig map the MCP client's SetServers expects.
func parseMcpServersFile(root map[string]any) (map[string]types.McpServerConfig, error) {
	container := mcpServersContainer(root)
	data, err := json.Marshal(container)
	if err != nil {
		return nil, err
	}

	var raw map[string]struct {
		Type    string            `json:"type"`
		Command any               `json:"command"`
		Args    []string          `json:"args"`
		Env     map[string]string `json:"env"`
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers"`
		Enabled *bool             `json:"enabled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	servers := make(map[string]types.McpServerConfig, len(raw))
	for name, r := range raw {
		if r.Enabled != nil && !*r.Enabled {
			continue
		}
		cfg := types.McpServerConfig{
			Type:    r.Type,
			Args:    r.Args,
			Env:     r.Env,
			URL:     r.URL,
			Headers: r.Headers,
		}
		switch cmd := r.Command.(type) {
		case string:
			cfg.Command = cmd
		case []any:
			var parts []string
			for _, p := range cmd {
				if s, ok := p.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				cfg.Command = parts[0]
				cfg.Args = append(parts[1:], cfg.Args...)
			}
		}
		if cfg.Type == "" || cfg.Type == "local" {
			if cfg.URL != "" {
				cfg.Type = "http"
			} else {
				cfg.Type = "stdio"
			}
		}
		servers[name] = cfg
	}
	return servers, nil
}
