// Package config resolves GoldBot's startup configuration from environment
// variables, an optional .env file, and an optional goldbot.yaml project
// file, producing the collaborators cmd/goldbot wires into the Agent
// Executor: an llm.ClientConfig, the MCP server set, and the assorted
// workspace paths spec §6 names. It mirrors the teacher's own
// environment-driven pkg/llm/config.go, extended with the file-based
// layering (.env, YAML) the rest of the example pack uses for this concern.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jg-phare/goat/pkg/llm"
	"github.com/jg-phare/goat/pkg/types"
)

// Config is GoldBot's fully resolved startup configuration (spec §6's
// "Environment variables consumed" plus the project-file layer SPEC_FULL.md
// adds on top of it).
type Config struct {
	LLM llm.ClientConfig

	// MemoryDir overrides ~/.goldbot when GOLDBOT_MEMORY_DIR is set.
	MemoryDir string

	// McpServers is the merged server set: GOLDBOT_MCP_SERVERS (inline
	// JSON) takes precedence over GOLDBOT_MCP_SERVERS_FILE, which takes
	// precedence over goldbot.yaml's mcp_servers block.
	McpServers map[string]types.McpServerConfig

	// McpDiscoveryTimeout bounds how long startup waits for each MCP
	// server's tool-list handshake before giving up on that server.
	McpDiscoveryTimeout time.Duration

	// UseCodex selects the Codex backend for Governed-Execution's per-Todo
	// Reviewer-B role instead of sharing Executor-A's backend.
	UseCodex bool

	// BochaAPIKey configures tools.BochaSearchProvider when non-empty.
	BochaAPIKey string

	// Task auto-starts the executor with this text (GOLDBOT_TASK) instead
	// of waiting for interactive input.
	Task string

	// Headless means: exit after the first Final action. Load never sets
	// it; cmd/goldbot reads the -p CLI flag directly.
	Headless bool
}

// projectFile is goldbot.yaml's shape: a thin project-level layer beneath
// the environment variables, which always win when both are set.
type projectFile struct {
	LLM struct {
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"llm"`
	McpServers map[string]mcpServerYAML `yaml:"mcp_servers"`
}

type mcpServerYAML struct {
	Type    string            `yaml:"type"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

const (
	defaultMaxTokens          = 16384
	defaultMcpDiscoveryMillis = 5000
	projectFileName           = "goldbot.yaml"
)

// Load resolves Config from the process environment, an optional .env file
// at cwd, and an optional goldbot.yaml at cwd. Precedence, highest first:
// environment variables, .env entries, goldbot.yaml, built-in defaults.
func Load(cwd string) (Config, error) {
	// godotenv.Load populates process env for keys not already set, so an
	// already-exported shell variable always wins over the .env file.
	_ = godotenv.Load(filepath.Join(cwd, ".env"))

	proj, err := loadProjectFile(filepath.Join(cwd, projectFileName))
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", projectFileName, err)
	}

	cfg := Config{
		LLM: llm.ClientConfig{
			MaxTokens: defaultMaxTokens,
			Retry:     llm.DefaultRetryConfig(),
		},
		McpDiscoveryTimeout: defaultMcpDiscoveryMillis * time.Millisecond,
	}

	cfg.LLM.BaseURL = firstNonEmpty(os.Getenv("GOLDBOT_LLM_BASE_URL"), proj.LLM.BaseURL)
	cfg.LLM.APIKey = firstNonEmpty(os.Getenv("GOLDBOT_LLM_API_KEY"), os.Getenv("ANTHROPIC_API_KEY"), proj.LLM.APIKey)
	cfg.LLM.Model = firstNonEmpty(os.Getenv("GOLDBOT_LLM_MODEL"), proj.LLM.Model)
	if n, ok := envInt("GOLDBOT_LLM_MAX_TOKENS"); ok {
		cfg.LLM.MaxTokens = n
	} else if proj.LLM.MaxTokens > 0 {
		cfg.LLM.MaxTokens = proj.LLM.MaxTokens
	}
	if n, ok := envInt("GOLDBOT_LLM_THINKING_TOKENS"); ok {
		cfg.LLM.MaxThinkingTokens = n
	}

	cfg.MemoryDir = resolveMemoryDir()
	cfg.Task = os.Getenv("GOLDBOT_TASK")
	cfg.UseCodex = envBool("GOLDBOT_USE_CODEX")
	cfg.BochaAPIKey = os.Getenv("BOCHA_API_KEY")

	if ms, ok := envInt("GOLDBOT_MCP_DISCOVERY_TIMEOUT_MS"); ok {
		cfg.McpDiscoveryTimeout = time.Duration(ms) * time.Millisecond
	}

	servers, err := resolveMcpServers(proj)
	if err != nil {
		return Config{}, err
	}
	cfg.McpServers = servers

	return cfg, nil
}

// resolveMcpServers applies GOLDBOT_MCP_SERVERS (inline JSON), then
// GOLDBOT_MCP_SERVERS_FILE, over goldbot.yaml's mcp_servers block.
func resolveMcpServers(proj projectFile) (map[string]types.McpServerConfig, error) {
	servers := make(map[string]types.McpServerConfig, len(proj.McpServers))
	for name, s := range proj.McpServers {
		servers[name] = types.McpServerConfig{
			Type:    firstNonEmpty(s.Type, inferMcpType(s)),
			Command: s.Command,
			Args:    s.Args,
			Env:     s.Env,
			URL:     s.URL,
			Headers: s.Headers,
		}
	}

	if path := os.Getenv("GOLDBOT_MCP_SERVERS_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := mergeMcpServersJSON(servers, data); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if inline := os.Getenv("GOLDBOT_MCP_SERVERS"); inline != "" {
		if err := mergeMcpServersJSON(servers, []byte(inline)); err != nil {
			return nil, fmt.Errorf("config: parse GOLDBOT_MCP_SERVERS: %w", err)
		}
	}

	return servers, nil
}

// resolveMemoryDir mirrors tools.goldbotHomeDir's GOLDBOT_MEMORY_DIR
// override: when unset, GoldBot's home is ~/.goldbot, holding MEMORY.md,
// skills, and mcp_servers.json (spec §6's "Persisted state" list).
func resolveMemoryDir() string {
	if dir := os.Getenv("GOLDBOT_MEMORY_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".goldbot")
	}
	return ".goldbot"
}

func inferMcpType(s mcpServerYAML) string {
	if s.URL != "" {
		return "http"
	}
	return "stdio"
}

// mergeMcpServersJSON decodes a {"mcpServers": {...}} or flat {...} JSON
// document (the same shapes tools.CreateMcpTool writes) into dst, in place.
func mergeMcpServersJSON(dst map[string]types.McpServerConfig, data []byte) error {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}
	container := root
	for _, key := range []string{"mcpServers", "mcp"} {
		if inner, ok := root[key]; ok {
			var nested map[string]json.RawMessage
			if err := json.Unmarshal(inner, &nested); err == nil {
				container = nested
			}
			break
		}
	}

	for name, raw := range container {
		var entry struct {
			Type    string            `json:"type"`
			Command any               `json:"command"`
			Args    []string          `json:"args"`
			Env     map[string]string `json:"env"`
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers"`
			Enabled *bool             `json:"enabled"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("server %q: %w", name, err)
		}
		if entry.Enabled != nil && !*entry.Enabled {
			delete(dst, name)
			continue
		}
		cfg := types.McpServerConfig{
			Type:    entry.Type,
			Args:    entry.Args,
			Env:     entry.Env,
			URL:     entry.URL,
			Headers: entry.Headers,
		}
		switch cmd := entry.Command.(type) {
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
		if cfg.Type == "" {
			if cfg.URL != "" {
				cfg.Type = "http"
			} else {
				cfg.Type = "stdio"
			}
		}
		dst[name] = cfg
	}
	return nil
}

func loadProjectFile(path string) (projectFile, error) {
	var pf projectFile
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return pf, nil
	}
	if err != nil {
		return pf, err
	}
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return pf, err
	}
	return pf, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
