// Package termination decides, turn by turn, whether a sub-agent scope
// should stop. It keeps its own per-scope bookkeeping so a restarted
// turn loop cannot reset elapsed time or check counts.
package termination

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Reason classifies why a scope stopped.
type Reason string

const (
	ReasonTimeout       Reason = "TIMEOUT"
	ReasonMaxTurns      Reason = "MAX_TURNS"
	ReasonResourceLimit Reason = "RESOURCE_LIMIT"
	ReasonGoal          Reason = "GOAL"
	ReasonVariable      Reason = "VARIABLE"
	ReasonOutput        Reason = "OUTPUT"
	ReasonCustom        Reason = "CUSTOM"
	ReasonError         Reason = "ERROR"
	ReasonForced        Reason = "FORCED"
)

// Usage is a point-in-time resource reading for the running process.
type Usage struct {
	MemoryBytes uint64
	CPUTime     time.Duration
}

// Snapshot is the read-only view of a scope that conditions evaluate
// against. The turn loop owns the underlying state; checks never mutate it.
type Snapshot struct {
	ScopeID   string
	Turns     int
	Variables map[string]any
	Emitted   map[string]any
	Resources Usage
}

// Limits are the hard caps registered alongside a scope.
type Limits struct {
	Timeout    time.Duration
	MaxTurns   int
	MaxMemory  uint64
	MaxCPUTime time.Duration
}

// Condition is one stop rule. Built-in limit checks never use Evaluate;
// custom conditions supply it and may fail, which counts as met with
// type ERROR.
type Condition struct {
	Type      Reason
	Reason    string
	Evaluate  func(ctx context.Context, snap Snapshot) (bool, error)
	Timestamp time.Time
}

// monitor is the controller's private record for one active scope.
type monitor struct {
	scopeID    string
	limits     Limits
	conditions []Condition
	startTime  time.Time
	checkCount int
	lastCheck  time.Time
	terminated *Condition
}

// Controller tracks active scopes and evaluates their stop conditions.
type Controller struct {
	mu       sync.Mutex
	monitors map[string]*monitor
	log      *slog.Logger
}

// NewController creates an empty controller. Logger may be nil.
func NewController(log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		monitors: make(map[string]*monitor),
		log:      log,
	}
}

// Register starts monitoring a scope. Re-registering an ID replaces the
// previous monitor, including its start time.
func (c *Controller) Register(scopeID string, limits Limits, conds []Condition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.monitors[scopeID] = &monitor{
		scopeID:    scopeID,
		limits:     limits,
		conditions: conds,
		startTime:  time.Now(),
	}
}

// Check evaluates the stop rules for one scope in precedence order:
// timeout, then turn cap, then resource caps, then custom conditions in
// registration order. Nil means keep going. An unregistered or already
// terminated scope always yields nil.
func (c *Controller) Check(ctx context.Context, snap Snapshot) *Condition {
	c.mu.Lock()
	mon, ok := c.monitors[snap.ScopeID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	if mon.terminated != nil {
		c.mu.Unlock()
		return nil
	}
	mon.checkCount++
	mon.lastCheck = time.Now()
	elapsed := time.Since(mon.startTime)
	limits := mon.limits
	conds := mon.conditions
	c.mu.Unlock()

	if cond := c.checkLimits(snap, limits, elapsed); cond != nil {
		c.markTerminated(snap.ScopeID, cond)
		return cond
	}

	for i := range conds {
		met, condType, reason := evalCondition(ctx, &conds[i], snap)
		if !met {
			continue
		}
		cond := &Condition{Type: condType, Reason: reason, Timestamp: time.Now()}
		c.markTerminated(snap.ScopeID, cond)
		return cond
	}
	return nil
}

func (c *Controller) checkLimits(snap Snapshot, limits Limits, elapsed time.Duration) *Condition {
	if limits.Timeout > 0 && elapsed >= limits.Timeout {
		return &Condition{
			Type:      ReasonTimeout,
			Reason:    fmt.Sprintf("execution time %s exceeded limit %s", elapsed.Round(time.Millisecond), limits.Timeout),
			Timestamp: time.Now(),
		}
	}
	if limits.MaxTurns > 0 && snap.Turns >= limits.MaxTurns {
		return &Condition{
			Type:      ReasonMaxTurns,
			Reason:    fmt.Sprintf("turn count %d reached limit %d", snap.Turns, limits.MaxTurns),
			Timestamp: time.Now(),
		}
	}
	if limits.MaxMemory > 0 && snap.Resources.MemoryBytes > limits.MaxMemory {
		return &Condition{
			Type:      ReasonResourceLimit,
			Reason:    fmt.Sprintf("memory usage %d exceeded limit %d", snap.Resources.MemoryBytes, limits.MaxMemory),
			Timestamp: time.Now(),
		}
	}
	if limits.MaxCPUTime > 0 && snap.Resources.CPUTime > limits.MaxCPUTime {
		return &Condition{
			Type:      ReasonResourceLimit,
			Reason:    fmt.Sprintf("cpu time %s exceeded limit %s", snap.Resources.CPUTime, limits.MaxCPUTime),
			Timestamp: time.Now(),
		}
	}
	return nil
}

// evalCondition runs one custom predicate. A predicate that errors or
// panics counts as met with type ERROR so a broken condition stops the
// run instead of looping forever.
func evalCondition(ctx context.Context, cond *Condition, snap Snapshot) (met bool, condType Reason, reason string) {
	defer func() {
		if r := recover(); r != nil {
			met = true
			condType = ReasonError
			reason = fmt.Sprintf("condition panicked: %v", r)
		}
	}()

	if cond.Evaluate == nil {
		return false, "", ""
	}
	ok, err := cond.Evaluate(ctx, snap)
	if err != nil {
		return true, ReasonError, fmt.Sprintf("condition failed: %v", err)
	}
	if !ok {
		return false, "", ""
	}
	return true, cond.Type, cond.Reason
}

// Terminate forcibly stops a scope from outside the turn loop. The
// monitor goes inert: subsequent checks return nil until cleanup. The
// returned condition is nil when the scope is unknown.
func (c *Controller) Terminate(scopeID, reason string) *Condition {
	c.mu.Lock()
	defer c.mu.Unlock()
	mon, ok := c.monitors[scopeID]
	if !ok {
		return nil
	}
	cond := &Condition{Type: ReasonForced, Reason: reason, Timestamp: time.Now()}
	mon.terminated = cond
	c.log.Info("Scope forcibly terminated", "scope", scopeID, "reason", reason)
	return cond
}

// Terminated returns the condition a scope was stopped with, if any.
func (c *Controller) Terminated(scopeID string) *Condition {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mon, ok := c.monitors[scopeID]; ok {
		return mon.terminated
	}
	return nil
}

// Deregister drops a scope's monitor entirely.
func (c *Controller) Deregister(scopeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.monitors, scopeID)
}

// Cleanup prunes monitors already marked terminated.
func (c *Controller) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pruned := 0
	for id, mon := range c.monitors {
		if mon.terminated != nil {
			delete(c.monitors, id)
			pruned++
		}
	}
	return pruned
}

// CheckCount reports how many times a scope has been checked.
func (c *Controller) CheckCount(scopeID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mon, ok := c.monitors[scopeID]; ok {
		return mon.checkCount
	}
	return 0
}

func (c *Controller) markTerminated(scopeID string, cond *Condition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mon, ok := c.monitors[scopeID]; ok && mon.terminated == nil {
		mon.terminated = cond
	}
}
