package subagent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jg-phare/goat/pkg/types"
)

// rolePrompts are the preset system-prompt fragments a TaskNode can select
// by name via its Role field, mirroring BuiltInAgents' persona presets but
// scoped to GoldBot's sub_agent DAG (spec §3's TaskNode.role) rather than
// the interactive `/agents` picker this package originally served.
var rolePrompts = map[string]string{
	"researcher": "You are a research specialist. Investigate the given task thoroughly and report findings concisely.",
	"coder":      "You are an implementation specialist. Write or modify code to satisfy the given task.",
	"reviewer":   "You are a critical reviewer. Identify defects, risks, and missing cases in the given material.",
	"planner":    "You are a planning specialist. Decompose the given task into a concrete, ordered plan.",
	"tester":     "You are a testing specialist. Determine whether the given task's output actually satisfies its goal.",
}

// RolePrompt returns the preset prompt for a TaskNode role, or "" if role is
// empty or unrecognized.
func RolePrompt(role string) string {
	return rolePrompts[strings.ToLower(role)]
}

// NodeRunner invokes a single sub-agent turn: given the resolved system
// prompt and task text (already merged with upstream outputs per the
// node's InputMerge policy), it runs that sub-agent to completion and
// returns its final text.
type NodeRunner interface {
	RunNode(ctx context.Context, node types.TaskNode, systemPrompt, task string) (string, error)
}

// GraphRunner schedules a TaskGraph's nodes as goroutines gated by a
// dependency-count barrier: a node starts exactly when every node it
// depends on has completed, the same fan-out/fan-in shape the teacher uses
// to start teammates, adapted from process spawn to in-process goroutines
// since TaskGraph nodes are short-lived LLM calls, not long-running
// processes.
type GraphRunner struct {
	Runner      NodeRunner
	DefaultRole string
}

// nodeResult holds one node's outcome for input-merge purposes.
type nodeResult struct {
	text string
	err  error
}

// Run executes graph and merges the designated output nodes' results per
// graph.OutputMerge. graph must already be Validate()-clean; Run itself
// re-validates defensively since a caller could hand it an unvalidated
// graph directly.
func (r *GraphRunner) Run(ctx context.Context, graph *types.TaskGraph) (string, error) {
	if err := graph.Validate(); err != nil {
		return "", err
	}

	byID := make(map[string]types.TaskNode, len(graph.Nodes))
	for _, n := range graph.Nodes {
		byID[n.ID] = n
	}

	var mu sync.Mutex
	results := make(map[string]nodeResult, len(graph.Nodes))
	done := make(map[string]chan struct{}, len(graph.Nodes))
	for _, n := range graph.Nodes {
		done[n.ID] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for _, n := range graph.Nodes {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done[n.ID])

			// Wait for every upstream dependency to finish first.
			for _, dep := range n.DependsOn {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					mu.Lock()
					results[n.ID] = nodeResult{err: ctx.Err()}
					mu.Unlock()
					return
				}
			}

			mu.Lock()
			var upstream []nodeResult
			for _, dep := range n.DependsOn {
				upstream = append(upstream, results[dep])
			}
			mu.Unlock()

			for _, u := range upstream {
				if u.err != nil {
					mu.Lock()
					results[n.ID] = nodeResult{err: fmt.Errorf("upstream dependency failed: %w", u.err)}
					mu.Unlock()
					return
				}
			}

			task := mergeInput(n, upstream)
			sysPrompt := n.SystemPrompt
			if sysPrompt == "" {
				sysPrompt = RolePrompt(n.Role)
			}

			text, err := r.Runner.RunNode(ctx, n, sysPrompt, task)
			mu.Lock()
			results[n.ID] = nodeResult{text: text, err: err}
			mu.Unlock()
		}()
	}
	wg.Wait()

	outputNodes := graph.OutputNodes
	if len(outputNodes) == 0 {
		outputNodes = graph.Leaves()
	}

	var outputs []nodeResult
	for _, id := range outputNodes {
		res, ok := results[id]
		if !ok {
			return "", fmt.Errorf("output node %q did not run", id)
		}
		if res.err != nil {
			return "", fmt.Errorf("node %q failed: %w", id, res.err)
		}
		outputs = append(outputs, res)
	}

	return mergeOutput(graph.OutputMerge, outputs), nil
}

// mergeInput combines a node's own task with its upstream results per its
// InputMerge policy.
func mergeInput(n types.TaskNode, upstream []nodeResult) string {
	if len(upstream) == 0 {
		return n.Task
	}
	switch n.InputMerge {
	case types.InputMergeStructured:
		var b strings.Builder
		b.WriteString(n.Task)
		b.WriteString("\n\nUpstream results:\n")
		for i, u := range upstream {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, u.text)
		}
		return b.String()
	default: // Concat
		var parts []string
		for _, u := range upstream {
			parts = append(parts, u.text)
		}
		parts = append(parts, n.Task)
		return strings.Join(parts, "\n\n")
	}
}

// mergeOutput combines the designated output nodes' results per the
// graph's OutputMerge policy.
func mergeOutput(mode types.OutputMerge, outputs []nodeResult) string {
	switch mode {
	case types.OutputMergeFirst:
		if len(outputs) == 0 {
			return ""
		}
		return outputs[0].text
	case types.OutputMergeConcat:
		var parts []string
		for _, o := range outputs {
			parts = append(parts, o.text)
		}
		return strings.Join(parts, "")
	default: // All
		var parts []string
		for _, o := range outputs {
			parts = append(parts, o.text)
		}
		return strings.Join(parts, "\n\n---\n\n")
	}
}
