// Package approval provides the interactive confirmation gate for tool
// calls that need a user decision before executing.
package approval

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Outcome is a user's answer to a confirmation prompt.
type Outcome string

const (
	// OutcomeApprove runs the call once.
	OutcomeApprove Outcome = "approve"
	// OutcomeApproveAlways runs the call and persists an allow preference.
	OutcomeApproveAlways Outcome = "approve_always"
	// OutcomeDeny cancels the call.
	OutcomeDeny Outcome = "deny"
)

// Request represents a pending approval for a tool call.
type Request struct {
	ApprovalID  string         `json:"approval_id"`
	ScopeID     string         `json:"scope_id"`
	CallID      string         `json:"call_id"`
	Tool        string         `json:"tool"`
	Description string         `json:"description"`
	Arguments   map[string]any `json:"arguments"`
	Status      string         `json:"status"` // pending, approved, denied, cancelled
	CreatedAt   time.Time      `json:"created_at"`
}

// Recorder persists approval lifecycle events. Recording is best-effort;
// failures never block the decision path.
type Recorder interface {
	RecordApprovalRequest(id, scopeID, callID, tool, argsJSON string) error
	RecordApprovalStatus(id, status string) error
}

// Manager handles approval lifecycle: create, wait, respond.
type Manager struct {
	mu       sync.Mutex
	pending  map[string]chan Outcome
	recorder Recorder
}

// NewManager creates an approval manager. Recorder may be nil.
func NewManager(rec Recorder) *Manager {
	return &Manager{
		pending:  make(map[string]chan Outcome),
		recorder: rec,
	}
}

// Create registers a new approval request and returns its ID.
func (m *Manager) Create(req *Request) string {
	id := newApprovalID()
	req.ApprovalID = id
	req.Status = "pending"
	req.CreatedAt = time.Now()

	ch := make(chan Outcome, 1)
	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()

	if m.recorder != nil {
		argsJSON, _ := json.Marshal(req.Arguments)
		_ = m.recorder.RecordApprovalRequest(id, req.ScopeID, req.CallID, req.Tool, string(argsJSON))
	}
	return id
}

// Wait blocks until the approval is responded to or the context expires.
// Context expiry (cancellation or timeout) reports OutcomeDeny along with
// the context error.
func (m *Manager) Wait(ctx context.Context, id string) (Outcome, error) {
	m.mu.Lock()
	ch, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return OutcomeDeny, fmt.Errorf("no pending approval: %s", id)
	}

	select {
	case outcome := <-ch:
		m.cleanup(id)
		status := "denied"
		if outcome == OutcomeApprove || outcome == OutcomeApproveAlways {
			status = "approved"
		}
		if m.recorder != nil {
			_ = m.recorder.RecordApprovalStatus(id, status)
		}
		return outcome, nil
	case <-ctx.Done():
		m.cleanup(id)
		if m.recorder != nil {
			_ = m.recorder.RecordApprovalStatus(id, "cancelled")
		}
		return OutcomeDeny, ctx.Err()
	}
}

// Respond delivers a decision for a pending request.
func (m *Manager) Respond(id string, outcome Outcome) error {
	m.mu.Lock()
	ch, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending approval: %s", id)
	}

	// Non-blocking send (channel is buffered with size 1)
	select {
	case ch <- outcome:
	default:
	}
	return nil
}

// PendingCount returns the number of unresolved approvals.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manager) cleanup(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

func newApprovalID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("appr-%d", time.Now().UnixNano())
}
