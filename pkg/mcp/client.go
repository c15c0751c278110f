package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jg-phare/goat/pkg/types"
)

// Client manages MCP server connections and maintains the action-name
// registry (mcp_<server>_<tool>) pkg/tools.McpDispatchTool calls into.
type Client struct {
	mu      sync.RWMutex
	servers map[string]*ServerConnection
	actions map[string]actionBinding // action name -> (server, tool)
	used    map[string]bool          // sanitized base names already assigned, for disambiguation
}

// actionBinding resolves an action name back to the server/tool pair it was
// discovered from.
type actionBinding struct {
	server string
	tool   ToolInfo
}

// NewClient creates a new, empty MCP client.
func NewClient() *Client {
	return &Client{
		servers: make(map[string]*ServerConnection),
		actions: make(map[string]actionBinding),
		used:    make(map[string]bool),
	}
}

// Connect establishes a connection to an MCP server and registers its tools.
func (c *Client) Connect(ctx context.Context, name string, config types.McpServerConfig) error {
	conn := newServerConnection(name, config)

	if err := conn.connect(ctx); err != nil {
		c.mu.Lock()
		c.servers[name] = conn // store even failed connections for status reporting
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.servers[name] = conn
	c.mu.Unlock()

	// Wire up a notification handler for tool list changes on transports that
	// accept one. StdioTransport and HTTPTransport do not, so over them a
	// server's tools/list_changed notification is not acted on.
	conn.mu.Lock()
	if nt, ok := conn.Transport.(interface {
		SetNotificationHandler(func(method string, params json.RawMessage))
	}); ok {
		serverName := name
		nt.SetNotificationHandler(func(method string, params json.RawMessage) {
			if method == "notifications/tools/list_changed" {
				c.handleToolListChanged(serverName)
			}
		})
	}
	conn.mu.Unlock()

	// Register tools in the registry
	c.registerTools(name, conn.Tools)

	return nil
}

// Disconnect removes a server connection and unregisters its tools.
func (c *Client) Disconnect(name string) error {
	c.mu.Lock()
	conn, ok := c.servers[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown server: %q", name)
	}
	delete(c.servers, name)
	c.mu.Unlock()

	c.unregisterActions(name)
	return conn.disconnect()
}

// Reconnect disconnects and reconnects a server.
func (c *Client) Reconnect(ctx context.Context, name string) error {
	c.mu.RLock()
	conn, ok := c.servers[name]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown server: %q", name)
	}

	config := conn.Config
	c.unregisterActions(name)
	conn.disconnect()

	// Reconnect
	return c.Connect(ctx, name, config)
}

// Toggle enables or disables a server. Disabled servers have their tools unregistered.
func (c *Client) Toggle(name string, enabled bool) error {
	c.mu.RLock()
	conn, ok := c.servers[name]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown server: %q", name)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.Enabled == enabled {
		return nil // no-op
	}
	conn.Enabled = enabled

	if !enabled {
		c.unregisterActions(name)
		conn.Status = StatusDisabled
	} else {
		conn.Status = StatusConnected
		c.registerTools(name, conn.Tools)
	}

	return nil
}

// SetServers performs a bulk update: adds new servers, removes old ones, keeps unchanged.
func (c *Client) SetServers(ctx context.Context, servers map[string]types.McpServerConfig) *SetServersResult {
	result := &SetServersResult{
		Errors: make(map[string]string),
	}

	c.mu.RLock()
	existing := make(map[string]bool)
	for name := range c.servers {
		existing[name] = true
	}
	c.mu.RUnlock()

	// Determine what to add and remove
	desired := make(map[string]bool)
	for name := range servers {
		desired[name] = true
	}

	// Remove servers not in desired set
	for name := range existing {
		if !desired[name] {
			if err := c.Disconnect(name); err != nil {
				result.Errors[name] = err.Error()
			} else {
				result.Removed = append(result.Removed, name)
			}
		}
	}

	// Add servers not in existing set
	for name, config := range servers {
		if !existing[name] {
			if err := c.Connect(ctx, name, config); err != nil {
				result.Errors[name] = err.Error()
			} else {
				result.Added = append(result.Added, name)
			}
		}
	}

	// Check for config changes on existing servers that are still in desired set
	for name, newConfig := range servers {
		if existing[name] {
			c.mu.RLock()
			conn := c.servers[name]
			c.mu.RUnlock()
			if conn != nil && !configEqual(conn.Config, newConfig) {
				// Config changed — reconnect with new config
				if err := c.Disconnect(name); err != nil {
					result.Errors[name] = err.Error()
					continue
				}
				if err := c.Connect(ctx, name, newConfig); err != nil {
					result.Errors[name] = err.Error()
				} else {
					result.Updated = append(result.Updated, name)
				}
			}
		}
	}

	return result
}

// Status returns the status of all server connections.
func (c *Client) Status() []ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statuses := make([]ServerStatus, 0, len(c.servers))
	for _, conn := range c.servers {
		statuses = append(statuses, conn.status())
	}
	return statuses
}

// ServerStatus returns the status of a specific server.
func (c *Client) ServerStatus(name string) (*ServerStatus, error) {
	c.mu.RLock()
	conn, ok := c.servers[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown server: %q", name)
	}

	s := conn.status()
	return &s, nil
}

// ListResources returns the resources a connected server advertised.
func (c *Client) ListResources(ctx context.Context, serverName string) ([]Resource, error) {
	c.mu.RLock()
	conn, ok := c.servers[serverName]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown server: %q", serverName)
	}

	conn.mu.Lock()
	resources := conn.Resources
	conn.mu.Unlock()
	return resources, nil
}

// ReadResource reads a single resource by URI.
func (c *Client) ReadResource(ctx context.Context, serverName, uri string) (ResourceContent, error) {
	c.mu.RLock()
	conn, ok := c.servers[serverName]
	c.mu.RUnlock()

	if !ok {
		return ResourceContent{}, fmt.Errorf("unknown server: %q", serverName)
	}

	result, err := conn.readResource(ctx, uri)
	if err != nil {
		return ResourceContent{}, err
	}
	if len(result.Contents) == 0 {
		return ResourceContent{URI: uri}, nil
	}
	return result.Contents[0], nil
}

// CallTool calls toolName on serverName directly (bypassing the action-name
// registry). If the transport reports a connection error, it attempts
// auto-reconnection with exponential backoff before retrying once.
func (c *Client) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (ToolResult, error) {
	c.mu.RLock()
	conn, ok := c.servers[serverName]
	c.mu.RUnlock()

	if !ok {
		return ToolResult{}, fmt.Errorf("unknown server: %q", serverName)
	}

	result, err := conn.callTool(ctx, toolName, args)
	if err != nil {
		if isTransportError(err) {
			if reconnErr := c.reconnectWithBackoff(ctx, serverName, 3); reconnErr == nil {
				c.mu.RLock()
				conn = c.servers[serverName]
				c.mu.RUnlock()
				result, err = conn.callTool(ctx, toolName, args)
				if err != nil {
					return ToolResult{}, err
				}
			} else {
				return ToolResult{}, fmt.Errorf("tool call failed and reconnect failed: %w", err)
			}
		} else {
			return ToolResult{}, err
		}
	}
	return *result, nil
}

// ActionName resolves a registered mcp_<server>_<tool> action name back to
// its (server, tool) pair.
func (c *Client) ActionName(actionName string) (server, tool string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.actions[actionName]
	if !ok {
		return "", "", false
	}
	return b.server, b.tool.Name, true
}

// CallAction calls an MCP tool by its registered action name.
func (c *Client) CallAction(ctx context.Context, actionName string, args map[string]any) (ToolResult, error) {
	server, tool, ok := c.ActionName(actionName)
	if !ok {
		return ToolResult{}, fmt.Errorf("unknown MCP action %q", actionName)
	}
	return c.CallTool(ctx, server, tool, args)
}

// ActionNames returns every currently-registered action name, sorted.
func (c *Client) ActionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.actions))
	for n := range c.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PromptDescription renders the "- action => server=... tool=..." lines the
// system prompt shows for each discovered MCP tool, capped at
// maxPromptTools entries with the remainder summarized in one line.
func (c *Client) PromptDescription() string {
	const maxPromptTools = 64
	names := c.ActionNames()

	var b strings.Builder
	shown := names
	if len(shown) > maxPromptTools {
		shown = shown[:maxPromptTools]
	}
	c.mu.RLock()
	for _, name := range shown {
		binding := c.actions[name]
		ro := "read/write"
		if binding.tool.Annotations != nil && binding.tool.Annotations.ReadOnly != nil && *binding.tool.Annotations.ReadOnly {
			ro = "read-only"
		}
		desc := binding.tool.Description
		if len(desc) > 140 {
			desc = desc[:140]
		}
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Fprintf(&b, "- %s => server=%q tool=%q (%s): %s\n", name, binding.server, binding.tool.Name, ro, desc)
	}
	c.mu.RUnlock()
	if len(names) > maxPromptTools {
		fmt.Fprintf(&b, "- ... %d more MCP tools omitted for brevity.\n", len(names)-maxPromptTools)
	}
	return b.String()
}

// Ping sends a health check ping to a connected MCP server.
// Returns nil if the server responds, or an error if unreachable.
func (c *Client) Ping(ctx context.Context, name string) error {
	c.mu.RLock()
	conn, ok := c.servers[name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown server: %q", name)
	}

	conn.mu.Lock()
	transport := conn.Transport
	conn.mu.Unlock()
	if transport == nil {
		return fmt.Errorf("not connected")
	}

	_, err := transport.Send(ctx, newRequest(conn.nextRequestID(), "ping", nil))
	return err
}

// Close disconnects all servers.
func (c *Client) Close() error {
	c.mu.Lock()
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	c.mu.Unlock()

	var errs []string
	for _, name := range names {
		if err := c.Disconnect(name); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// reconnectWithBackoff attempts to reconnect to a server with exponential backoff.
func (c *Client) reconnectWithBackoff(ctx context.Context, name string, maxAttempts int) error {
	backoff := 1 * time.Second
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := c.Reconnect(ctx, name)
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
	return fmt.Errorf("reconnect failed after %d attempts", maxAttempts)
}

// configEqual compares two McpServerConfig values for equality.
func configEqual(a, b types.McpServerConfig) bool {
	if a.Type != b.Type || a.Command != b.Command || a.URL != b.URL {
		return false
	}
	if len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	if len(a.Env) != len(b.Env) {
		return false
	}
	for k, v := range a.Env {
		if b.Env[k] != v {
			return false
		}
	}
	if len(a.Headers) != len(b.Headers) {
		return false
	}
	for k, v := range a.Headers {
		if b.Headers[k] != v {
			return false
		}
	}
	return true
}

// isTransportError checks if an error indicates a transport-level failure
// (disconnection, write error, etc.) as opposed to an application-level error.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "not connected") ||
		strings.Contains(msg, "transport closed") ||
		strings.Contains(msg, "write to stdin") ||
		strings.Contains(msg, "connection lost") ||
		strings.Contains(msg, "broken pipe")
}

// handleToolListChanged re-fetches and re-registers tools when a server
// sends a notifications/tools/list_changed notification.
func (c *Client) handleToolListChanged(name string) {
	c.mu.RLock()
	conn, ok := c.servers[name]
	c.mu.RUnlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn.mu.Lock()
	transport := conn.Transport
	conn.mu.Unlock()
	if transport == nil {
		return
	}

	discovered, err := conn.listTools(ctx)
	if err != nil {
		return // keep old tools
	}

	// Re-register tools atomically
	c.unregisterActions(name)
	conn.mu.Lock()
	conn.Tools = discovered
	conn.mu.Unlock()
	c.registerTools(name, discovered)
}

// uniqueActionName builds the mcp_<server>_<tool> action name, appending a
// numeric suffix on collision. Ported from original_source's
// unique_action_name/sanitize_token.
func uniqueActionName(serverName, toolName string, used map[string]bool) string {
	base := "mcp_" + sanitizeToken(serverName) + "_" + sanitizeToken(toolName)
	if !used[base] {
		used[base] = true
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

// sanitizeToken lowercases input and collapses runs of non-alphanumeric
// characters into single underscores, trimming leading/trailing underscores.
func sanitizeToken(input string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(input) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
		} else if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	trimmed := strings.Trim(b.String(), "_")
	if trimmed == "" {
		return "tool"
	}
	return trimmed
}

// registerTools assigns each discovered tool a unique mcp_<server>_<tool>
// action name (disambiguated with a numeric suffix on collision) and adds it
// to the action registry, ported from original_source's unique_action_name.
func (c *Client) registerTools(serverName string, mcpTools []ToolInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range mcpTools {
		name := uniqueActionName(serverName, t.Name, c.used)
		c.actions[name] = actionBinding{server: serverName, tool: t}
	}
}

// unregisterActions drops every action name bound to serverName and frees
// those names for reuse.
func (c *Client) unregisterActions(serverName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, b := range c.actions {
		if b.server == serverName {
			delete(c.actions, name)
			delete(c.used, name)
		}
	}
}
