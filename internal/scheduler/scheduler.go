// Package scheduler manages the lifecycle of tool calls requested by the
// model: validation against the registry, confirmation gating, execution,
// and batch-completion signaling.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Subloop/Subloop/internal/approval"
	"github.com/Subloop/Subloop/internal/policy"
	"github.com/Subloop/Subloop/internal/tools"
)

// Status is the per-call state. Terminal statuses permit no further
// transitions; a second attempt to set one is a no-op.
type Status string

const (
	StatusValidating       Status = "validating"
	StatusScheduled        Status = "scheduled"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusExecuting        Status = "executing"
	StatusSuccess          Status = "success"
	StatusError            Status = "error"
	StatusCancelled        Status = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// Request is one tool call to schedule. CallID is unique within a batch.
type Request struct {
	CallID string
	Name   string
	Args   map[string]any
}

// Call is the scheduler's mutable record for one request. It is owned
// exclusively by the scheduler until it reaches a terminal status, after
// which it is immutable.
type Call struct {
	Request      Request
	Tool         tools.Tool
	Status       Status
	Result       *tools.Result
	Error        string
	Confirmation *tools.Confirmation
	StartedAt    time.Time
	DurationMs   int64

	// done is the per-call resolve/reject callback used by the legacy
	// single-call submission path.
	done func(*Call)
}

// Recorder persists terminal call outcomes for audit. Best-effort.
type Recorder interface {
	RecordToolCall(scopeID, callID, tool, status string, durationMs int64, detail string) error
}

// DecisionRecorder persists confirmation-policy evaluations. Best-effort.
type DecisionRecorder interface {
	RecordPolicyDecision(scopeID, tool, verdict, reason string) error
}

// Options wires the scheduler's collaborators. Registry is required; the
// rest may be nil (nil Policy means every call defers to its tool, nil
// Approvals means confirmation requests are denied).
type Options struct {
	Registry  *tools.Registry
	Policy    *policy.Engine
	Approvals *approval.Manager
	// Prompt surfaces an approval request to the user. Called after the
	// request is registered and before the scheduler blocks on it.
	Prompt func(*approval.Request)
	// ApprovalTimeout bounds the awaiting_approval suspension. Zero means
	// 60 seconds.
	ApprovalTimeout time.Duration
	Recorder        Recorder
	Decisions       DecisionRecorder
	ScopeID         string
}

// Scheduler runs tool-call batches for one scope. Batches are processed
// one at a time; individual calls within a batch run iteratively.
type Scheduler struct {
	opts Options

	mu      sync.Mutex
	tracked []*Call
	abort   context.CancelFunc

	// stateMu guards call status transitions; AbortAll may race the
	// batch goroutine.
	stateMu sync.Mutex
}

// New creates a scheduler.
func New(opts Options) *Scheduler {
	if opts.ApprovalTimeout <= 0 {
		opts.ApprovalTimeout = 60 * time.Second
	}
	return &Scheduler{opts: opts}
}

// Schedule processes a batch of requests to joint completion and returns
// the terminal calls. onComplete, when non-nil, fires exactly once with
// every call in a terminal status; afterwards the tracked set is cleared
// so the scheduler is ready for the next batch.
func (s *Scheduler) Schedule(ctx context.Context, reqs []Request, onComplete func([]*Call)) []*Call {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	calls := make([]*Call, 0, len(reqs))
	for _, req := range reqs {
		calls = append(calls, &Call{Request: req, Status: StatusValidating})
	}

	s.mu.Lock()
	s.tracked = calls
	s.abort = cancel
	s.mu.Unlock()

	for _, call := range calls {
		s.resolveGate(batchCtx, call)
	}
	s.runScheduled(batchCtx, calls)

	s.mu.Lock()
	s.tracked = nil
	s.abort = nil
	s.mu.Unlock()

	if onComplete != nil {
		onComplete(calls)
	}
	return calls
}

// ScheduleCall is the legacy single-call path, modeled as a batch of size
// one with the resolve/reject attached to that call. A cancelled call is
// reported as an error.
func (s *Scheduler) ScheduleCall(ctx context.Context, req Request) (*tools.Result, error) {
	var result *tools.Result
	var callErr error

	call := &Call{Request: req, Status: StatusValidating}
	call.done = func(c *Call) {
		switch c.Status {
		case StatusSuccess, StatusError:
			result = c.Result
			if result == nil {
				result = tools.Fail(c.Error)
			}
		case StatusCancelled:
			callErr = fmt.Errorf("tool call %s cancelled", c.Request.CallID)
		}
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.tracked = []*Call{call}
	s.abort = cancel
	s.mu.Unlock()

	s.resolveGate(batchCtx, call)
	s.runScheduled(batchCtx, []*Call{call})

	s.mu.Lock()
	s.tracked = nil
	s.abort = nil
	s.mu.Unlock()

	return result, callErr
}

// AbortAll clears pending calls outright. Calls awaiting approval or not
// yet picked up are cancelled; an in-flight execution is not forcibly
// killed, it only stops being tracked once it returns.
func (s *Scheduler) AbortAll() {
	s.mu.Lock()
	tracked := s.tracked
	cancel := s.abort
	s.mu.Unlock()

	for _, call := range tracked {
		switch s.status(call) {
		case StatusValidating, StatusScheduled, StatusAwaitingApproval:
			s.setStatus(call, StatusCancelled)
		}
	}
	if cancel != nil {
		cancel()
	}
}

// resolveGate takes one call from validating to scheduled, cancelled, or
// error by applying the confirmation policy precedence.
func (s *Scheduler) resolveGate(ctx context.Context, call *Call) {
	name := call.Request.Name

	tool, ok := s.opts.Registry.Get(name)
	if !ok {
		s.failCall(call, fmt.Sprintf("tool not found: %s", name))
		return
	}
	call.Tool = tool

	if s.status(call) != StatusValidating {
		return
	}

	var verdict policy.Verdict = policy.VerdictAsk
	var reason string
	if s.opts.Policy != nil {
		d := s.opts.Policy.Evaluate(name)
		verdict, reason = d.Verdict, d.Reason
		if s.opts.Decisions != nil {
			_ = s.opts.Decisions.RecordPolicyDecision(s.opts.ScopeID, name, string(verdict), reason)
		}
	}

	switch verdict {
	case policy.VerdictAutoApprove:
		s.setStatus(call, StatusScheduled)
		return
	case policy.VerdictDeny:
		s.failCall(call, fmt.Sprintf("tool %s denied: %s", name, reason))
		return
	}

	conf, err := tool.ShouldConfirm(ctx, call.Request.Args)
	if err != nil {
		s.failCall(call, fmt.Sprintf("confirmation check failed for %s: %v", name, err))
		return
	}
	if conf == nil {
		s.setStatus(call, StatusScheduled)
		return
	}

	call.Confirmation = conf
	s.setStatus(call, StatusAwaitingApproval)
	s.awaitApproval(ctx, call, conf)
}

// awaitApproval blocks on the user decision. The wait is bounded by the
// approval timeout and by the batch's cancellation signal.
func (s *Scheduler) awaitApproval(ctx context.Context, call *Call, conf *tools.Confirmation) {
	if s.opts.Approvals == nil {
		s.setStatus(call, StatusCancelled)
		return
	}

	req := &approval.Request{
		ScopeID:     s.opts.ScopeID,
		CallID:      call.Request.CallID,
		Tool:        call.Request.Name,
		Description: conf.Description,
		Arguments:   call.Request.Args,
	}
	id := s.opts.Approvals.Create(req)
	if s.opts.Prompt != nil {
		s.opts.Prompt(req)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.ApprovalTimeout)
	defer cancel()

	outcome, err := s.opts.Approvals.Wait(waitCtx, id)
	if err != nil {
		slog.Warn("Approval wait ended without decision", "id", id, "tool", call.Request.Name, "error", err)
		s.setStatus(call, StatusCancelled)
		return
	}

	switch outcome {
	case approval.OutcomeApproveAlways:
		if s.opts.Policy != nil {
			if err := s.opts.Policy.RememberAllow(call.Request.Name); err != nil {
				slog.Warn("Failed to persist allow preference", "tool", call.Request.Name, "error", err)
			}
		}
		s.setStatus(call, StatusScheduled)
	case approval.OutcomeApprove:
		s.setStatus(call, StatusScheduled)
	default:
		s.setStatus(call, StatusCancelled)
	}
}

// runScheduled executes every call currently in scheduled status. Failures
// are captured per call; sibling calls proceed independently.
func (s *Scheduler) runScheduled(ctx context.Context, calls []*Call) {
	for _, call := range calls {
		if s.status(call) != StatusScheduled {
			continue
		}
		if ctx.Err() != nil {
			s.setStatus(call, StatusCancelled)
			continue
		}

		s.setStatus(call, StatusExecuting)
		call.StartedAt = time.Now()

		result, err := call.Tool.Execute(ctx, call.Request.Args)
		call.DurationMs = time.Since(call.StartedAt).Milliseconds()

		if err != nil {
			call.Result = tools.Fail(err.Error())
			call.Error = err.Error()
			s.setStatus(call, StatusError)
			continue
		}
		call.Result = result
		if result == nil || !result.Success {
			if result != nil {
				call.Error = result.Error
			}
			s.setStatus(call, StatusError)
			continue
		}
		s.setStatus(call, StatusSuccess)
	}
}

// failCall records a structured error outcome for one call.
func (s *Scheduler) failCall(call *Call, msg string) {
	call.Result = tools.Fail(msg)
	call.Error = msg
	s.setStatus(call, StatusError)
}

func (s *Scheduler) status(call *Call) Status {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return call.Status
}

// setStatus transitions a call, enforcing that terminal states are final.
func (s *Scheduler) setStatus(call *Call, status Status) {
	s.stateMu.Lock()
	if call.Status.Terminal() {
		s.stateMu.Unlock()
		return
	}
	call.Status = status
	s.stateMu.Unlock()
	if !status.Terminal() {
		return
	}
	if s.opts.Recorder != nil {
		detail := call.Error
		if detail == "" && call.Result != nil {
			detail = call.Result.Data
		}
		_ = s.opts.Recorder.RecordToolCall(
			s.opts.ScopeID, call.Request.CallID, call.Request.Name,
			string(status), call.DurationMs, detail,
		)
	}
	if call.done != nil {
		call.done(call)
	}
}
