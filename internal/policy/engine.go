// Package policy decides whether a tool call may run without asking the
// user. It implements the confirmation precedence: unattended mode first,
// then the stored per-tool preference, then the tool's own say.
package policy

import (
	"time"
)

// Verdict is the outcome of a policy evaluation.
type Verdict string

const (
	// VerdictAutoApprove schedules the call without a prompt.
	VerdictAutoApprove Verdict = "auto_approve"
	// VerdictDeny rejects the call with an error result and no prompt.
	VerdictDeny Verdict = "deny"
	// VerdictAsk defers to the tool's ShouldConfirm capability.
	VerdictAsk Verdict = "ask"
)

// Decision carries a verdict plus the reason it was reached, for audit.
type Decision struct {
	Verdict Verdict
	Reason  string
	Ts      time.Time
}

// Engine evaluates the confirmation policy for a tool call.
type Engine struct {
	// Unattended bypasses all confirmation when true.
	Unattended bool
	// Prefs holds per-tool stored preferences. May be nil.
	Prefs *PrefStore
}

// NewEngine creates a policy engine.
func NewEngine(unattended bool, prefs *PrefStore) *Engine {
	return &Engine{Unattended: unattended, Prefs: prefs}
}

// Evaluate applies the precedence order for one tool name.
func (e *Engine) Evaluate(toolName string) Decision {
	d := Decision{Ts: time.Now()}

	if e.Unattended {
		d.Verdict = VerdictAutoApprove
		d.Reason = "unattended_mode"
		return d
	}

	if e.Prefs != nil {
		if pref, ok := e.Prefs.Get(toolName); ok {
			switch pref {
			case PrefAllow:
				d.Verdict = VerdictAutoApprove
				d.Reason = "preference_allow"
				return d
			case PrefDeny:
				d.Verdict = VerdictDeny
				d.Reason = "preference_deny"
				return d
			}
		}
	}

	d.Verdict = VerdictAsk
	d.Reason = "tool_decides"
	return d
}

// RememberAllow persists an "always allow" decision for a tool.
func (e *Engine) RememberAllow(toolName string) error {
	if e.Prefs == nil {
		return nil
	}
	return e.Prefs.Set(toolName, PrefAllow)
}
