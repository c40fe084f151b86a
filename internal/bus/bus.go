// Package bus provides the async message bus between the scheduler core
// and approval front-ends (the CLI today). Prompts flow out to whoever
// renders them; decision replies flow back as compact strings.
package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Subloop/Subloop/internal/approval"
)

// PromptMessage asks a front-end to surface one approval request.
type PromptMessage struct {
	ApprovalID  string         `json:"approval_id"`
	Tool        string         `json:"tool"`
	Description string         `json:"description"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// DecisionMessage carries the user's answer back to the core.
type DecisionMessage struct {
	ApprovalID string           `json:"approval_id"`
	Outcome    approval.Outcome `json:"outcome"`
}

// ParseDecision decodes a reply of the form "approve:<id>", "always:<id>",
// or "deny:<id>".
func ParseDecision(reply string) (DecisionMessage, error) {
	verb, id, ok := strings.Cut(strings.TrimSpace(reply), ":")
	if !ok || id == "" {
		return DecisionMessage{}, fmt.Errorf("malformed decision reply: %q", reply)
	}
	switch verb {
	case "approve":
		return DecisionMessage{ApprovalID: id, Outcome: approval.OutcomeApprove}, nil
	case "always":
		return DecisionMessage{ApprovalID: id, Outcome: approval.OutcomeApproveAlways}, nil
	case "deny":
		return DecisionMessage{ApprovalID: id, Outcome: approval.OutcomeDeny}, nil
	default:
		return DecisionMessage{}, fmt.Errorf("unknown decision verb: %q", verb)
	}
}

// MessageBus decouples approval front-ends from the scheduler core.
type MessageBus struct {
	prompts   chan *PromptMessage
	decisions chan *DecisionMessage
	subs      []func(*PromptMessage)
	mu        sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		prompts:   make(chan *PromptMessage, 100),
		decisions: make(chan *DecisionMessage, 100),
	}
}

// PublishPrompt sends an approval prompt toward the front-ends.
func (b *MessageBus) PublishPrompt(msg *PromptMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.prompts <- msg
}

// Subscribe registers a callback for approval prompts.
func (b *MessageBus) Subscribe(callback func(*PromptMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, callback)
}

// DispatchPrompts runs the prompt dispatcher. This should be run as a
// goroutine.
func (b *MessageBus) DispatchPrompts(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.prompts:
			b.mu.RLock()
			callbacks := append(make([]func(*PromptMessage), 0, len(b.subs)), b.subs...)
			b.mu.RUnlock()
			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// PublishDecision sends a user decision back to the core.
func (b *MessageBus) PublishDecision(msg *DecisionMessage) {
	b.decisions <- msg
}

// ConsumeDecision blocks until a decision is available or the context is
// cancelled.
func (b *MessageBus) ConsumeDecision(ctx context.Context) (*DecisionMessage, error) {
	select {
	case msg := <-b.decisions:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
