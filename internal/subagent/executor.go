package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Subloop/Subloop/internal/normalize"
	"github.com/Subloop/Subloop/internal/scheduler"
	"github.com/Subloop/Subloop/internal/termination"
	"github.com/Subloop/Subloop/internal/trace"
)

// Client sends one prompt to the model backend and returns the decoded
// provider payload. The executor never interprets the payload itself;
// normalization owns that.
type Client interface {
	SendTurn(ctx context.Context, prompt string) (map[string]any, error)
}

// toolResultKeyPrefix namespaces tool results folded into the scope's
// variable map so a tool cannot clobber caller-provided variables.
const toolResultKeyPrefix = "tool:"

// TerminationSummary reports how and when a run stopped.
type TerminationSummary struct {
	Reason            string        `json:"reason"`
	ExecutionDuration time.Duration `json:"execution_duration"`
	Status            string        `json:"status"` // SUCCESS or ERROR
	TurnsExecuted     int           `json:"turns_executed"`
}

// ExecutionResult is the final outcome of a scope run. Execute always
// produces one; failures are reported inside it, never as a bare error.
type ExecutionResult struct {
	ScopeID          string              `json:"scope_id"`
	EmittedVariables map[string]Emission `json:"emitted_variables"`
	Termination      TerminationSummary  `json:"termination"`
	Metadata         map[string]any      `json:"execution_metadata"`
	FinalContext     map[string]any      `json:"final_context"`
}

// TurnRecorder persists executed turns for audit. Best-effort.
type TurnRecorder interface {
	RecordTurn(scopeID string, turn int, prompt, response, model string, durationMs int64) error
}

// Options wires an executor. Client, Scheduler, and Termination are
// required; Store, Sink, and Turns are optional.
type Options struct {
	Client      Client
	Scheduler   *scheduler.Scheduler
	Termination *termination.Controller
	Store       *RunStore
	Sink        trace.Sink
	Turns       TurnRecorder
	Logger      *slog.Logger
}

// Executor runs sub-agent scopes to completion.
type Executor struct {
	opts Options
	log  *slog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(opts Options) *Executor {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Executor{opts: opts, log: log}
}

// InitializeScope validates the config, registers a termination monitor,
// and returns a pending scope ready for Execute.
func (e *Executor) InitializeScope(cfg Config, initial map[string]any) (*Scope, error) {
	scope, err := newScope(cfg, initial)
	if err != nil {
		return nil, err
	}
	e.opts.Termination.Register(scope.ID, termination.Limits{
		Timeout:    scope.Config.Constraints.Timeout,
		MaxTurns:   scope.Config.Constraints.MaxTurns,
		MaxMemory:  scope.Config.Constraints.MaxMemory,
		MaxCPUTime: scope.Config.Constraints.MaxCPUTime,
	}, scope.Config.Constraints.Conditions)

	if e.opts.Store != nil {
		e.opts.Store.Register(scope)
	}
	e.log.Info("Scope initialized", "scope", scope.ID, "max_turns", scope.Config.Constraints.MaxTurns, "timeout", scope.Config.Constraints.Timeout)
	return scope, nil
}

// EmitVariable records an output variable on the scope, stamped with the
// current turn, and mirrors it into the working variable map so later
// turns can reference it.
func (e *Executor) EmitVariable(scope *Scope, name string, value any) {
	scope.Emitted[name] = Emission{
		Value:     value,
		Turn:      scope.Turns,
		EmittedAt: time.Now(),
	}
	scope.Variables[name] = value
}

// Execute drives the turn loop until a termination condition fires, then
// finalizes. It always returns a result; turn-level failures become an
// ERROR termination rather than a returned error.
func (e *Executor) Execute(ctx context.Context, scope *Scope) *ExecutionResult {
	start := time.Now()
	scope.Status = StatusRunning
	if e.opts.Store != nil {
		e.opts.Store.MarkRunning(scope.ID)
	}

	var stop *termination.Condition
	retryPrompt := ""

	for {
		if cond := e.opts.Termination.Terminated(scope.ID); cond != nil {
			stop = cond
			break
		}
		if cond := e.opts.Termination.Check(ctx, scope.snapshot()); cond != nil {
			stop = cond
			break
		}
		if err := ctx.Err(); err != nil {
			stop = &termination.Condition{
				Type:      termination.ReasonForced,
				Reason:    fmt.Sprintf("run aborted: %v", err),
				Timestamp: time.Now(),
			}
			break
		}

		scope.Turns++
		prompt := retryPrompt
		if prompt == "" {
			prompt = substitute(scope.Config.Prompt, scope.Variables)
		}
		retryPrompt = ""

		resp, cond := e.runTurn(ctx, scope, prompt)
		if cond != nil {
			stop = cond
			break
		}
		if resp.ParseError {
			// The diagnostic becomes the next prompt so the model can
			// correct itself.
			retryPrompt = resp.Content
		}

		scope.History = append(scope.History, TurnRecord{
			Turn:      scope.Turns,
			Prompt:    prompt,
			Response:  resp.Content,
			Timestamp: time.Now(),
		})
		if usage, err := termination.SampleUsage(ctx); err == nil {
			scope.Resources = usage
		}
	}

	return e.finalize(scope, stop, time.Since(start))
}

// runTurn performs one model call plus any tool executions. A non-nil
// condition is fatal for the scope.
func (e *Executor) runTurn(ctx context.Context, scope *Scope, prompt string) (resp *normalize.Response, stop *termination.Condition) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Turn panicked", "scope", scope.ID, "turn", scope.Turns, "panic", r)
			stop = errorCondition(fmt.Sprintf("turn %d panicked: %v", scope.Turns, r))
		}
	}()

	turnStart := time.Now()
	raw, err := e.opts.Client.SendTurn(ctx, prompt)
	if err != nil {
		return nil, errorCondition(fmt.Sprintf("model call failed on turn %d: %v", scope.Turns, err))
	}
	resp = normalize.Normalize(raw)
	e.publishSpan(ctx, trace.Span{
		ScopeID:    scope.ID,
		Kind:       trace.KindLLM,
		Name:       resp.Model,
		Turn:       scope.Turns,
		DurationMs: time.Since(turnStart).Milliseconds(),
		Timestamp:  time.Now().UnixMilli(),
	})
	e.accumulateUsage(scope, resp.Usage)
	if e.opts.Turns != nil {
		if err := e.opts.Turns.RecordTurn(scope.ID, scope.Turns, prompt, resp.Content, resp.Model, time.Since(turnStart).Milliseconds()); err != nil {
			e.log.Warn("Turn audit record failed", "scope", scope.ID, "turn", scope.Turns, "error", err)
		}
	}

	if len(resp.ToolCalls) == 0 {
		return resp, nil
	}

	// A tool outside the allow-list fails the scope, not just the call.
	for _, tc := range resp.ToolCalls {
		if !scope.toolAllowed(tc.Name) {
			return nil, errorCondition(fmt.Sprintf("tool not permitted in this scope: %s", tc.Name))
		}
	}

	reqs := make([]scheduler.Request, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		args, err := tc.ArgumentsMap()
		if err != nil {
			// Malformed arguments fail that call alone; siblings proceed.
			scope.Variables[toolResultKeyPrefix+tc.Name] = map[string]any{
				"success": false,
				"error":   err.Error(),
			}
			continue
		}
		reqs = append(reqs, scheduler.Request{CallID: tc.ID, Name: tc.Name, Args: args})
	}

	calls := e.opts.Scheduler.Schedule(ctx, reqs, nil)
	for _, call := range calls {
		entry := map[string]any{
			"success": call.Status == scheduler.StatusSuccess,
		}
		if call.Result != nil {
			entry["data"] = call.Result.Data
		}
		if call.Error != "" {
			entry["error"] = call.Error
		}
		scope.Variables[toolResultKeyPrefix+call.Request.Name] = entry

		e.publishSpan(ctx, trace.Span{
			ScopeID:    scope.ID,
			Kind:       trace.KindTool,
			Name:       call.Request.Name,
			Turn:       scope.Turns,
			Status:     string(call.Status),
			DurationMs: call.DurationMs,
			Timestamp:  time.Now().UnixMilli(),
		})
	}
	return resp, nil
}

// finalize builds the result and tears the scope down. Monitor
// deregistration and the COMPLETED status apply even on error.
func (e *Executor) finalize(scope *Scope, stop *termination.Condition, elapsed time.Duration) *ExecutionResult {
	reason := string(termination.ReasonError)
	detail := "terminated without condition"
	if stop != nil {
		reason = string(stop.Type)
		detail = stop.Reason
	}
	// A forced stop means the run was killed, not that it reached its goal.
	status := "SUCCESS"
	if stop == nil || stop.Type == termination.ReasonError || stop.Type == termination.ReasonForced {
		status = "ERROR"
	}

	e.opts.Termination.Deregister(scope.ID)
	scope.Status = StatusCompleted
	if e.opts.Store != nil {
		e.opts.Store.MarkFinished(scope.ID, status, reason, scope.Turns)
	}

	finalContext := make(map[string]any, len(scope.Variables))
	for k, v := range scope.Variables {
		finalContext[k] = v
	}
	emitted := make(map[string]Emission, len(scope.Emitted))
	for k, v := range scope.Emitted {
		emitted[k] = v
	}

	e.log.Info("Scope finished", "scope", scope.ID, "reason", reason, "status", status, "turns", scope.Turns, "duration", elapsed)
	return &ExecutionResult{
		ScopeID:          scope.ID,
		EmittedVariables: emitted,
		Termination: TerminationSummary{
			Reason:            reason,
			ExecutionDuration: elapsed,
			Status:            status,
			TurnsExecuted:     scope.Turns,
		},
		Metadata: map[string]any{
			"detail":     detail,
			"tokens_in":  scope.TokensIn,
			"tokens_out": scope.TokensOut,
			"history":    len(scope.History),
		},
		FinalContext: finalContext,
	}
}

func (e *Executor) publishSpan(ctx context.Context, span trace.Span) {
	if e.opts.Sink == nil {
		return
	}
	e.opts.Sink.Publish(ctx, span)
}

// accumulateUsage reads the OpenAI usage keys, falling back to the Gemini
// usageMetadata names.
func (e *Executor) accumulateUsage(scope *Scope, usage map[string]any) {
	in := intFromAny(usage["prompt_tokens"])
	if in == 0 {
		in = intFromAny(usage["promptTokenCount"])
	}
	out := intFromAny(usage["completion_tokens"])
	if out == 0 {
		out = intFromAny(usage["candidatesTokenCount"])
	}
	scope.TokensIn += in
	scope.TokensOut += out
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func errorCondition(reason string) *termination.Condition {
	return &termination.Condition{
		Type:      termination.ReasonError,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}
