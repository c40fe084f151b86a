// Package subagent drives bounded agent runs: one scope per run, a turn
// loop that calls the model, schedules tool calls, and stops when the
// termination controller says so.
package subagent

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/Subloop/Subloop/internal/termination"
)

// Default constraints applied when the caller leaves a field zero.
const (
	DefaultTimeout    = 15 * time.Minute
	DefaultMaxTurns   = 50
	DefaultMaxMemory  = 100 * 1024 * 1024
	DefaultMaxCPUTime = 5 * time.Minute
)

// Constraints bound one scope's execution. Zero fields take defaults
// field by field.
type Constraints struct {
	Timeout    time.Duration
	MaxTurns   int
	MaxMemory  uint64
	MaxCPUTime time.Duration
	Conditions []termination.Condition
}

func (c Constraints) withDefaults() Constraints {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.MaxMemory == 0 {
		c.MaxMemory = DefaultMaxMemory
	}
	if c.MaxCPUTime <= 0 {
		c.MaxCPUTime = DefaultMaxCPUTime
	}
	return c
}

// Config describes a sub-agent run. AllowedTools must be an explicit
// list; nil means the caller forgot to decide and is rejected. An empty
// list is valid and permits no tools.
type Config struct {
	Prompt       string
	AllowedTools []string
	Constraints  Constraints
}

// Scope statuses.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
)

// TurnRecord is one entry in a scope's execution history.
type TurnRecord struct {
	Turn      int       `json:"turn"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Emission is an output variable produced by the scope, stamped with the
// turn it was emitted on.
type Emission struct {
	Value     any       `json:"value"`
	Turn      int       `json:"turn"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Scope is the mutable state of one sub-agent run. It is owned by the
// executing goroutine; termination checks read it through snapshots.
type Scope struct {
	ID        string
	Config    Config
	Variables map[string]any
	History   []TurnRecord
	Turns     int
	Emitted   map[string]Emission
	Resources termination.Usage
	Status    string

	// TokensIn/TokensOut accumulate usage reported by the model across
	// turns.
	TokensIn  int
	TokensOut int
}

// newScope validates the config and builds a pending scope.
func newScope(cfg Config, initial map[string]any) (*Scope, error) {
	if cfg.Prompt == "" {
		return nil, fmt.Errorf("scope config requires a non-empty prompt")
	}
	if cfg.AllowedTools == nil {
		return nil, fmt.Errorf("scope config requires an explicit tool allow-list")
	}
	cfg.Constraints = cfg.Constraints.withDefaults()

	vars := make(map[string]any, len(initial))
	for k, v := range initial {
		vars[k] = v
	}
	return &Scope{
		ID:        uuid.NewString(),
		Config:    cfg,
		Variables: vars,
		Emitted:   make(map[string]Emission),
		Status:    StatusPending,
	}, nil
}

// toolAllowed reports whether the scope's allow-list contains name.
func (s *Scope) toolAllowed(name string) bool {
	for _, t := range s.Config.AllowedTools {
		if t == name {
			return true
		}
	}
	return false
}

// snapshot builds the read-only view termination conditions evaluate
// against.
func (s *Scope) snapshot() termination.Snapshot {
	emitted := make(map[string]any, len(s.Emitted))
	for name, e := range s.Emitted {
		emitted[name] = e.Value
	}
	return termination.Snapshot{
		ScopeID:   s.ID,
		Turns:     s.Turns,
		Variables: s.Variables,
		Emitted:   emitted,
		Resources: s.Resources,
	}
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// substitute replaces {{name}} placeholders with scope variable values.
// Unknown placeholders are left untouched so the model sees what was
// asked for.
func substitute(template string, vars map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return fmt.Sprintf("%v", v)
		}
		return match
	})
}
