package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Subloop/Subloop/internal/approval"
	"github.com/Subloop/Subloop/internal/bus"
	"github.com/Subloop/Subloop/internal/config"
	"github.com/Subloop/Subloop/internal/policy"
	"github.com/Subloop/Subloop/internal/provider"
	"github.com/Subloop/Subloop/internal/scheduler"
	"github.com/Subloop/Subloop/internal/subagent"
	"github.com/Subloop/Subloop/internal/termination"
	"github.com/Subloop/Subloop/internal/timeline"
	"github.com/Subloop/Subloop/internal/tools"
	"github.com/Subloop/Subloop/internal/trace"
)

var (
	runTools      string
	runUnattended bool
	runMaxTurns   int
	runTimeoutMin int
	runVars       []string
	runVerbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a bounded sub-agent scope",
	Long: "Runs one sub-agent scope: the model is called in a loop, tool calls\n" +
		"are gated by the confirmation policy, and the run stops when a\n" +
		"termination limit fires.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScope(cmd.Context(), args[0])
	},
}

func init() {
	runCmd.Flags().StringVar(&runTools, "tools", "", "comma-separated tool allow-list (default: all registered tools)")
	runCmd.Flags().BoolVar(&runUnattended, "unattended", false, "auto-approve every tool call")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "override the configured turn limit")
	runCmd.Flags().IntVar(&runTimeoutMin, "timeout", 0, "override the configured timeout (minutes)")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "initial scope variable as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "debug logging")
}

func runScope(parent context.Context, prompt string) error {
	level := slog.LevelInfo
	if runVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	printHeader("")

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The timeline is audit-only; a broken database degrades to no audit
	// rather than refusing to run.
	var tl *timeline.Service
	if cfg.Paths.TimelineDB != "" {
		tl, err = timeline.NewService(cfg.Paths.TimelineDB)
		if err != nil {
			logger.Warn("Timeline disabled", "path", cfg.Paths.TimelineDB, "error", err)
			tl = nil
		} else {
			defer tl.Close()
		}
	}
	var approvalRec approval.Recorder
	var callRec scheduler.Recorder
	var decisionRec scheduler.DecisionRecorder
	var turnRec subagent.TurnRecorder
	if tl != nil {
		approvalRec = tl
		callRec = tl
		decisionRec = tl
		turnRec = tl
	}

	prefs := policy.NewPrefStore(cfg.Paths.Prefs, cfg.Approval.Preferences)
	engine := policy.NewEngine(runUnattended || cfg.Approval.Unattended, prefs)

	registry := tools.NewRegistry()
	registry.Register(tools.NewReadFileTool())
	registry.Register(tools.NewListDirTool())
	registry.Register(tools.NewWriteFileTool(func() string { return cfg.Paths.Workspace }))
	registry.Register(tools.NewExecTool(2*time.Minute, cfg.Paths.Workspace))

	allowed := registry.Names()
	if runTools != "" {
		allowed = allowed[:0]
		for _, name := range strings.Split(runTools, ",") {
			if name = strings.TrimSpace(name); name != "" {
				allowed = append(allowed, name)
			}
		}
	}

	defs := make([]provider.ToolDefinition, 0)
	for _, d := range registry.Definitions(allowed) {
		defs = append(defs, provider.ToolDefinition(d))
	}
	client, err := provider.Resolve(cfg.Model, defs)
	if err != nil {
		return err
	}

	mgr := approval.NewManager(approvalRec)

	// Approval prompts travel over the message bus: the scheduler publishes,
	// the terminal renderer subscribes, and decisions flow back through the
	// decision channel to the manager.
	msgBus := bus.NewMessageBus()
	reader := bufio.NewReader(os.Stdin)
	msgBus.Subscribe(func(msg *bus.PromptMessage) {
		msgBus.PublishDecision(&bus.DecisionMessage{
			ApprovalID: msg.ApprovalID,
			Outcome:    promptOnTerminal(reader, msg),
		})
	})
	go msgBus.DispatchPrompts(ctx)
	go pumpDecisions(ctx, msgBus, mgr)

	var sink trace.Sink
	if cfg.Trace.Enabled {
		ks := trace.NewKafkaSink(cfg.Trace.Brokers, cfg.Trace.Topic)
		defer ks.Close()
		sink = ks
	}

	store := subagent.NewRunStore(cfg.Paths.RunState)

	constraints := subagent.Constraints{
		Timeout:    time.Duration(cfg.Limits.TimeoutMinutes) * time.Minute,
		MaxTurns:   cfg.Limits.MaxTurns,
		MaxMemory:  uint64(cfg.Limits.MaxMemoryMB) * 1024 * 1024,
		MaxCPUTime: time.Duration(cfg.Limits.MaxCPUMinutes) * time.Minute,
	}
	if runMaxTurns > 0 {
		constraints.MaxTurns = runMaxTurns
	}
	if runTimeoutMin > 0 {
		constraints.Timeout = time.Duration(runTimeoutMin) * time.Minute
	}

	initial, err := parseVars(runVars)
	if err != nil {
		return err
	}

	// The scheduler needs the scope ID, which only exists after scope
	// initialization. Build the executor in two phases around it.
	controller := termination.NewController(logger)
	boot := subagent.NewExecutor(subagent.Options{
		Client:      client,
		Termination: controller,
		Store:       store,
		Logger:      logger,
	})
	scope, err := boot.InitializeScope(subagent.Config{
		Prompt:       prompt,
		AllowedTools: allowed,
		Constraints:  constraints,
	}, initial)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Registry:        registry,
		Policy:          engine,
		Approvals:       mgr,
		Prompt:          publishPrompt(msgBus),
		ApprovalTimeout: time.Duration(cfg.Approval.TimeoutSeconds) * time.Second,
		Recorder:        callRec,
		Decisions:       decisionRec,
		ScopeID:         scope.ID,
	})

	exec := subagent.NewExecutor(subagent.Options{
		Client:      client,
		Scheduler:   sched,
		Termination: controller,
		Store:       store,
		Sink:        sink,
		Turns:       turnRec,
		Logger:      logger,
	})

	go func() {
		<-ctx.Done()
		sched.AbortAll()
	}()

	result := exec.Execute(ctx, scope)
	printResult(result)
	return nil
}

// publishPrompt adapts the scheduler's approval callback onto the bus.
func publishPrompt(b *bus.MessageBus) func(*approval.Request) {
	return func(req *approval.Request) {
		b.PublishPrompt(&bus.PromptMessage{
			ApprovalID:  req.ApprovalID,
			Tool:        req.Tool,
			Description: req.Description,
			Arguments:   req.Arguments,
		})
	}
}

// pumpDecisions forwards bus decisions to the approval manager until the
// context ends.
func pumpDecisions(ctx context.Context, b *bus.MessageBus, mgr *approval.Manager) {
	for {
		msg, err := b.ConsumeDecision(ctx)
		if err != nil {
			return
		}
		_ = mgr.Respond(msg.ApprovalID, msg.Outcome)
	}
}

// promptOnTerminal renders one approval prompt and reads the decision from
// stdin. "y" approves once, "a" approves and remembers, anything else
// denies; "approve:<id>" style replies are accepted too.
func promptOnTerminal(reader *bufio.Reader, msg *bus.PromptMessage) approval.Outcome {
	fmt.Println()
	fmt.Println(color.YellowString("Tool wants to run: %s", msg.Tool))
	if msg.Description != "" {
		fmt.Println("  " + msg.Description)
	}
	if len(msg.Arguments) > 0 {
		args, _ := json.MarshalIndent(msg.Arguments, "  ", "  ")
		fmt.Println("  " + string(args))
	}
	fmt.Print("Approve? [y]es / [a]lways / [n]o: ")

	line, err := reader.ReadString('\n')
	if err != nil {
		return approval.OutcomeDeny
	}
	line = strings.TrimSpace(line)

	if dec, err := bus.ParseDecision(line); err == nil && dec.ApprovalID == msg.ApprovalID {
		return dec.Outcome
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return approval.OutcomeApprove
	case "a", "always":
		return approval.OutcomeApproveAlways
	default:
		return approval.OutcomeDeny
	}
}

func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed --var %q, want key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func printResult(result *subagent.ExecutionResult) {
	fmt.Println()
	status := color.GreenString(result.Termination.Status)
	if result.Termination.Status != "SUCCESS" {
		status = color.RedString(result.Termination.Status)
	}
	fmt.Printf("Run %s finished: %s (%s after %d turns, %s)\n",
		result.ScopeID, status, result.Termination.Reason,
		result.Termination.TurnsExecuted,
		result.Termination.ExecutionDuration.Round(time.Millisecond),
	)
	if len(result.EmittedVariables) > 0 {
		fmt.Println(color.CyanString("Emitted variables:"))
		out, _ := json.MarshalIndent(result.EmittedVariables, "", "  ")
		fmt.Println(string(out))
	}
}
