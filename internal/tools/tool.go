// Package tools provides the tool contract, the registry, and the builtin
// tools available to agent scopes.
package tools

import (
	"context"
	"sync"
)

// Result is the outcome of one tool execution. Success distinguishes a tool
// that ran and failed from one that ran and produced data; schedulers and
// the agent loop branch on it.
type Result struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok builds a successful result.
func Ok(data string) *Result {
	return &Result{Success: true, Data: data}
}

// Fail builds a failed result with a user-facing message.
func Fail(msg string) *Result {
	return &Result{Success: false, Error: msg}
}

// Confirmation describes a pending execution that needs a user decision
// before it may proceed.
type Confirmation struct {
	Tool        string         `json:"tool"`
	Description string         `json:"description"`
	Args        map[string]any `json:"args"`
}

// Tool is the contract every agent tool implements.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// ShouldConfirm reports whether this execution needs user confirmation.
	// A nil Confirmation means the tool may run without prompting.
	ShouldConfirm(ctx context.Context, args map[string]any) (*Confirmation, error)
	// Execute runs the tool. The context carries the cancellation signal;
	// tools own responsiveness to it. Tool-level failures go into the
	// Result, not the error.
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Registry manages tool registration and lookup. Lookups are read-mostly
// and safe for concurrent use; registration is expected at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name. A missing tool is a normal branch for
// callers, not an error.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	return result
}

// Definitions returns tool definitions in OpenAI function format, filtered
// to the given allow-list. A nil allow-list includes every tool.
func (r *Registry) Definitions(allowed []string) []map[string]any {
	allowSet := map[string]bool{}
	for _, name := range allowed {
		allowSet[name] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]map[string]any, 0, len(r.tools))
	for name, tool := range r.tools {
		if allowed != nil && !allowSet[name] {
			continue
		}
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return result
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
