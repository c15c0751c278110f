// Command goldbot is the single binary spec §6 describes: it assembles the
// Agent Executor (C4) and its collaborators (Context Store, Tool
// Dispatcher, Safety Gate, Governed-Execution subagent), then drives one
// task to completion, either interactively over stdin/stdout or headlessly
// (-p) for scripted use. Flag parsing uses cobra, the CLI library
// vanducng-goclaw and None9527-NGOClaw both build their entrypoints on,
// replacing the teacher's ad hoc flag handling in its own deleted
// cmd/example/main.go.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jg-phare/goat/pkg/agent"
	cfgpkg "github.com/jg-phare/goat/pkg/config"
	gocontext "github.com/jg-phare/goat/pkg/context"
	"github.com/jg-phare/goat/pkg/ge"
	"github.com/jg-phare/goat/pkg/ge/pipeline"
	geworker "github.com/jg-phare/goat/pkg/ge/worker"
	"github.com/jg-phare/goat/pkg/llm"
	"github.com/jg-phare/goat/pkg/mcp"
	"github.com/jg-phare/goat/pkg/memory"
	"github.com/jg-phare/goat/pkg/prompt"
	"github.com/jg-phare/goat/pkg/session"
	"github.com/jg-phare/goat/pkg/subagent"
	"github.com/jg-phare/goat/pkg/telemetry"
	"github.com/jg-phare/goat/pkg/tools"
	"github.com/jg-phare/goat/pkg/types"
)

func main() {
	var headless bool

	root := &cobra.Command{
		Use:   "goldbot [task]",
		Short: "GoldBot: an autonomous terminal shell operator",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.Join(args, " ")
			return run(cmd.Context(), task, headless)
		},
	}
	root.Flags().BoolVarP(&headless, "print", "p", false, "headless: run one task and exit after the first <final>")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "goldbot:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, task string, headless bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	cfg, err := cfgpkg.Load(cwd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if task == "" {
		task = cfg.Task
	}

	logPath := os.Getenv("GOLDBOT_LOG_PATH")
	logLevel := os.Getenv("GOLDBOT_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger, err := telemetry.NewLogger(logPath, logLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	memStore := memory.NewStore(cfg.MemoryDir)
	notes, err := memStore.Notes()
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}

	sessionStore := session.NewStore(session.DefaultBaseDir())
	go func() {
		if _, err := session.Cleanup(session.DefaultBaseDir(), session.CleanupConfig{}); err != nil {
			fmt.Fprintf(os.Stderr, "goldbot: session cleanup: %v\n", err)
		}
	}()

	var sessionID string
	var resumedMessages []types.Message
	if prev, err := sessionStore.LoadLatest(cwd); err == nil {
		sessionID = prev.Metadata.ID
		resumedMessages = prev.Messages
	} else {
		sessionID = uuid.NewString()
		if err := sessionStore.Create(session.SessionMetadata{ID: sessionID, CWD: cwd, CreatedAt: time.Now(), UpdatedAt: time.Now()}); err != nil {
			fmt.Fprintf(os.Stderr, "goldbot: create session: %v\n", err)
		}
	}

	mcpClient := mcp.NewClient()
	discoverCtx, cancel := context.WithTimeout(ctx, cfg.McpDiscoveryTimeout)
	setResult := mcpClient.SetServers(discoverCtx, cfg.McpServers)
	cancel()
	for name, reason := range setResult.Errors {
		fmt.Fprintf(os.Stderr, "goldbot: mcp server %q failed to connect: %s\n", name, reason)
	}

	searchProvider := tools.NewBochaSearchProviderFromEnv()
	mcpReload := func(ctx context.Context, servers map[string]types.McpServerConfig) error {
		res := mcpClient.SetServers(ctx, servers)
		if len(res.Errors) > 0 {
			return fmt.Errorf("mcp reload errors: %v", res.Errors)
		}
		return nil
	}
	dispatcher := tools.NewDispatcher(cwd, mcpClient, searchProvider, mcpReload)

	llmClient := llm.NewClient(cfg.LLM)
	systemPrompt := prompt.SystemPrompt()
	provider := &agent.LLMClient{Client: llmClient, Config: cfg.LLM, SystemPrompt: systemPrompt}

	compactor := gocontext.NewCompactor(types.DefaultCompactState(), memStore)

	graphRunner := &subagent.GraphRunner{Runner: &providerNodeRunner{provider: provider, cwd: cwd}, DefaultRole: "coder"}

	emitCh := agent.NewChanEmitter(64)
	emitter := &telemetry.EmitterLogger{Log: logger, Next: emitCh}

	executor := agent.NewExecutor(agent.Config{
		Provider:     provider,
		Dispatcher:   dispatcher,
		Compactor:    compactor,
		SubAgents:    graphRunner,
		Emit:         emitter,
		ShowThinking: !headless,
	}, systemPrompt)

	executor.SetContextPrefix(buildContextPrefix(cwd, notes, mcpClient))

	// Resumed turns start at index 2: index 0 (system prompt) and index 1
	// (Assistant-context prefix) are always regenerated fresh for this run.
	if len(resumedMessages) > 2 {
		executor.State().Messages = append(executor.State().Messages, resumedMessages[2:]...)
	}
	saveSession := func() {
		if err := sessionStore.SaveMessages(sessionID, executor.State().Messages); err != nil {
			fmt.Fprintf(os.Stderr, "goldbot: save session: %v\n", err)
		}
	}
	defer saveSession()

	go printEvents(emitCh.C, headless)

	if strings.HasPrefix(strings.TrimSpace(task), "GE ") {
		return runGE(ctx, cwd, cfg, provider, task, headless)
	}

	if task == "" {
		return runInteractive(ctx, executor, cwd, cfg, provider, saveSession)
	}

	if err := executor.StartTask(ctx, task); err != nil {
		return err
	}
	saveSession()
	if headless {
		return nil
	}
	return driveInteractiveConfirmLoop(ctx, executor, saveSession)
}

// providerNodeRunner bridges agent.Provider into subagent.NodeRunner for
// one TaskGraph node: a single non-streaming turn against the resolved
// system prompt and task text.
type providerNodeRunner struct {
	provider agent.Provider
	cwd      string
}

// RunNode wraps GraphRunner's already-resolved systemPrompt (node.SystemPrompt
// or the node's role preset, per taskgraph.go's mergeInput/Run) with the
// sub-agent environment section; systemPrompt is passed as the rolePrompt
// fallback so AssembleSubAgentPrompt's own node.SystemPrompt-over-role
// precedence still applies rather than being bypassed.
func (r *providerNodeRunner) RunNode(ctx context.Context, node types.TaskNode, systemPrompt, task string) (string, error) {
	sp := prompt.AssembleSubAgentPrompt(node, systemPrompt, r.cwd)
	messages := []types.Message{
		types.NewMessage(types.RoleSystem, sp),
		types.NewMessage(types.RoleUser, task),
	}
	text, _, err := r.provider.ChatStream(ctx, messages, false, nil, nil)
	return text, err
}

// chatterAdapter bridges agent.Provider into ge.Chatter's one-shot
// (systemPrompt, prompt) -> text contract.
type chatterAdapter struct {
	provider agent.Provider
}

func (c chatterAdapter) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	messages := []types.Message{
		types.NewMessage(types.RoleSystem, systemPrompt),
		types.NewMessage(types.RoleUser, prompt),
	}
	text, _, err := c.provider.ChatStream(ctx, messages, false, nil, nil)
	return text, err
}

// codexReviewerProvider builds Reviewer-B's LLM client against a Codex
// model instead of the default Executor-A model, per GOLDBOT_USE_CODEX
// (spec §6's env surface); GOLDBOT_CODEX_MODEL overrides the model name,
// routed through the same LiteLLM base URL/key as the rest of cfg.LLM.
func codexReviewerProvider(cfg cfgpkg.Config) agent.Provider {
	codexCfg := cfg.LLM
	codexCfg.Model = firstNonEmpty(os.Getenv("GOLDBOT_CODEX_MODEL"), "openai/gpt-5-codex")
	return &agent.LLMClient{Client: llm.NewClient(codexCfg), Config: codexCfg, SystemPrompt: prompt.SystemPrompt()}
}

func buildContextPrefix(cwd string, notes []string, mcpClient *mcp.Client) string {
	agentsMD := prompt.LoadAgentsMD(cwd)

	var ruleBodies []string
	if rules, err := prompt.LoadRules(filepath.Join(cwd, ".goldbot", "rules")); err == nil {
		for _, r := range rules {
			ruleBodies = append(ruleBodies, r.Content)
		}
	}

	var skillSummaries []prompt.SkillSummary
	for _, s := range tools.DiscoverSkills(cwd) {
		skillSummaries = append(skillSummaries, prompt.SkillSummary{Name: s.Name, Description: s.Description})
	}

	var mcpNames []string
	for _, s := range mcpClient.Status() {
		mcpNames = append(mcpNames, s.Name)
	}

	return prompt.ContextPrefix(prompt.Config{
		CWD:         cwd,
		OS:          runtime.GOOS,
		Shell:       firstNonEmpty(os.Getenv("SHELL"), "/bin/sh"),
		GitBranch:   gitBranch(cwd),
		MemoryNotes: notes,
		AgentsMD:    agentsMD,
		Rules:       ruleBodies,
		Skills:      skillSummaries,
		McpServers:  mcpNames,
	})
}

func gitBranch(cwd string) string {
	out, err := exec.Command("git", "-C", cwd, "rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// printEvents renders the executor's Event stream to stdout. Rendering is
// intentionally plain text: a TUI layer is an external collaborator, out of
// this binary's scope (spec §1).
func printEvents(events <-chan agent.Event, headless bool) {
	for e := range events {
		switch e.Kind {
		case agent.EventThinking:
			if !headless {
				fmt.Print(e.Text)
			}
		case agent.EventToolCall:
			fmt.Printf("\n> %s: %s\n", e.ToolName, e.Command)
		case agent.EventToolResult:
			fmt.Printf("  [exit %d] %s\n", e.ExitCode, truncateForConsole(e.Output))
		case agent.EventNeedsConfirmation:
			fmt.Printf("\nConfirm? %s\n  %s\n[execute/skip/abort/note]: ", e.Command, e.Reason)
		case agent.EventQuestion:
			fmt.Printf("\n%s\n", e.Question.Text)
			for i, opt := range e.Question.Options {
				fmt.Printf("  %d) %s\n", i+1, opt)
			}
		case agent.EventPlan:
			fmt.Printf("\n[plan] %s\n", e.Text)
		case agent.EventPhase:
			fmt.Printf("\n[phase] %s\n", e.Text)
		case agent.EventParseError:
			fmt.Printf("\n[parse error] %s\n", e.Text)
		case agent.EventFinal:
			fmt.Printf("\n\n%s\n", e.Summary)
		}
	}
}

func truncateForConsole(s string) string {
	const max = 400
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}

// driveInteractiveConfirmLoop reads stdin lines for as long as the executor
// is waiting on a confirmation or a question, forwarding each line to the
// matching Executor method.
func driveInteractiveConfirmLoop(ctx context.Context, executor *agent.Executor, saveSession func()) error {
	reader := bufio.NewReader(os.Stdin)
	for {
		st := executor.State()
		if st.Finished() || st.Idle() {
			return nil
		}
		line, err := readLine(reader)
		if err != nil {
			return err
		}
		if err := handleInteractiveLine(ctx, executor, line); err != nil {
			fmt.Fprintln(os.Stderr, "goldbot:", err)
		}
		saveSession()
	}
}

func handleInteractiveLine(ctx context.Context, executor *agent.Executor, line string) error {
	st := executor.State()
	switch {
	case st.PendingConfirm != nil:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "execute", "e", "":
			return executor.ConfirmExecute(ctx)
		case "skip", "s":
			return executor.ConfirmSkip(ctx)
		case "abort", "a":
			executor.ConfirmAbort()
			return nil
		default:
			return executor.ConfirmNote(ctx, line)
		}
	case st.PendingQuestion != nil:
		return executor.AnswerQuestion(ctx, line)
	default:
		return executor.StartTask(ctx, line)
	}
}

// runInteractive starts an interactive session with no initial task: it
// reads the first line from stdin as the task, then defers to the same
// confirm/question loop StartTask uses afterward.
func runInteractive(ctx context.Context, executor *agent.Executor, cwd string, cfg cfgpkg.Config, provider agent.Provider, saveSession func()) error {
	fmt.Print("> ")
	reader := bufio.NewReader(os.Stdin)
	line, err := readLine(reader)
	if err != nil {
		return err
	}
	if strings.HasPrefix(strings.TrimSpace(line), "GE ") {
		return runGE(ctx, cwd, cfg, provider, line, false)
	}
	if err := executor.StartTask(ctx, line); err != nil {
		return err
	}
	saveSession()
	return driveInteractiveConfirmLoop(ctx, executor, saveSession)
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// runGE drives a Governed-Execution session end to end: the interview over
// stdin/stdout, then the unattended Executor-A/Reviewer-B todo pipeline,
// printing every worker event until the session exits (spec §4.6).
func runGE(ctx context.Context, cwd string, cfg cfgpkg.Config, provider agent.Provider, firstLine string, headless bool) error {
	execChatter := chatterAdapter{provider: provider}
	revChatter := execChatter
	if cfg.UseCodex {
		revChatter = chatterAdapter{provider: codexReviewerProvider(cfg)}
	}
	runner := pipeline.NewShellRunner(cwd)
	engine := ge.NewEngine(cwd, execChatter, revChatter, runner)

	logger, _ := telemetry.NewLogger("", "info")

	// Engine.mode is mutated by the worker goroutine (HandleInterviewReply/
	// Tick run there); read it here exactly once, before starting the
	// worker, and track every later transition only through the
	// EvtModeChanged events the worker goroutine publishes — never by
	// calling engine.Mode() again from this goroutine.
	initialMode := engine.Mode()
	var modeState atomic.Value
	modeState.Store(initialMode)

	var initial []string
	switch initialMode {
	case geworker.ModeGeInterview:
		initial = []string{"Entering Governed-Execution. Answer each prompt, or Ctrl-D to stop."}
	case geworker.ModeGeRun:
		initial = []string{fmt.Sprintf("Resuming Governed-Execution with an existing %s.", "CONSENSUS.md")}
	}
	w := geworker.Start(ctx, engine, initial)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range w.Events() {
			if logger != nil {
				telemetry.LogGEEvent(logger, e)
			}
			if e.Kind == geworker.EvtModeChanged {
				modeState.Store(e.Mode)
			}
			for _, line := range e.Lines {
				fmt.Println(line)
			}
			if e.Kind == geworker.EvtExited {
				return
			}
		}
	}()

	if initialMode == geworker.ModeGeInterview {
		reader := bufio.NewReader(os.Stdin)
		first := strings.TrimSpace(strings.TrimPrefix(firstLine, "GE "))
		if first != "" {
			w.Send(geworker.Command{Kind: geworker.CmdInterviewReply, Text: first})
		}
		for modeState.Load().(geworker.Mode) == geworker.ModeGeInterview {
			line, err := readLine(reader)
			if err != nil {
				w.HardExit()
				break
			}
			w.Send(geworker.Command{Kind: geworker.CmdInterviewReply, Text: line})
			time.Sleep(150 * time.Millisecond)
		}
	}

	if headless {
		w.Send(geworker.Command{Kind: geworker.CmdExit})
	} else {
		go readGECommands(&modeState, w)
	}
	<-done
	return nil
}

// readGECommands lets the user type "exit" to end an unattended
// Governed-Execution run, or "replan" to regenerate the Todo list, once the
// interview is behind it and the pipeline is ticking on its own.
func readGECommands(modeState *atomic.Value, w *geworker.Worker) {
	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := readLine(reader)
		if err != nil {
			w.HardExit()
			return
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "exit", "quit":
			w.Send(geworker.Command{Kind: geworker.CmdExit})
			return
		case "replan":
			w.Send(geworker.Command{Kind: geworker.CmdReplanTodos})
		}
	}
}
