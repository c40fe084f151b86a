// Package timeline persists an audit trail of scope execution: LLM turns,
// tool-call outcomes, approval requests, and policy decisions. Everything
// is best-effort; recording failures are reported to callers who then
// decide to log and move on.
package timeline

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the audit database at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for existing dbs (no-op if column exists).
	_, _ = db.Exec(`ALTER TABLE turns ADD COLUMN model TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE tool_calls ADD COLUMN detail TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE approval_requests ADD COLUMN responded_at DATETIME`)

	return &Service{db: db}, nil
}

func (s *Service) Close() error {
	return s.db.Close()
}

// RecordTurn persists one LLM turn.
func (s *Service) RecordTurn(scopeID string, turn int, prompt, response, model string, durationMs int64) error {
	_, err := s.db.Exec(`
		INSERT INTO turns (scope_id, turn, prompt, response, model, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		scopeID, turn, prompt, response, model, durationMs,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// RecordToolCall persists a terminal tool-call outcome.
func (s *Service) RecordToolCall(scopeID, callID, tool, status string, durationMs int64, detail string) error {
	_, err := s.db.Exec(`
		INSERT INTO tool_calls (scope_id, call_id, tool, status, duration_ms, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		scopeID, callID, tool, status, durationMs, detail,
	)
	if err != nil {
		return fmt.Errorf("record tool call: %w", err)
	}
	return nil
}

// RecordApprovalRequest persists a new pending approval.
func (s *Service) RecordApprovalRequest(id, scopeID, callID, tool, argsJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO approval_requests (approval_id, scope_id, call_id, tool, arguments, status)
		VALUES (?, ?, ?, ?, ?, 'pending')`,
		id, scopeID, callID, tool, argsJSON,
	)
	if err != nil {
		return fmt.Errorf("record approval request: %w", err)
	}
	return nil
}

// RecordApprovalStatus updates an approval's final status and stamps the
// response time.
func (s *Service) RecordApprovalStatus(id, status string) error {
	_, err := s.db.Exec(`
		UPDATE approval_requests SET status = ?, responded_at = ? WHERE approval_id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record approval status: %w", err)
	}
	return nil
}

// RecordPolicyDecision persists one confirmation-policy evaluation.
func (s *Service) RecordPolicyDecision(scopeID, tool, verdict, reason string) error {
	_, err := s.db.Exec(`
		INSERT INTO policy_decisions (scope_id, tool, verdict, reason)
		VALUES (?, ?, ?, ?)`,
		scopeID, tool, verdict, reason,
	)
	if err != nil {
		return fmt.Errorf("record policy decision: %w", err)
	}
	return nil
}

// Turns returns a scope's turns ordered by turn number.
func (s *Service) Turns(scopeID string) ([]TurnRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, scope_id, turn, prompt, response, model, duration_ms, created_at
		FROM turns WHERE scope_id = ? ORDER BY turn ASC`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var r TurnRecord
		if err := rows.Scan(&r.ID, &r.ScopeID, &r.Turn, &r.Prompt, &r.Response, &r.Model, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ToolCalls returns a scope's tool-call outcomes in insertion order.
func (s *Service) ToolCalls(scopeID string) ([]ToolCallRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, scope_id, call_id, tool, status, duration_ms, detail, created_at
		FROM tool_calls WHERE scope_id = ? ORDER BY id ASC`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("query tool calls: %w", err)
	}
	defer rows.Close()

	var out []ToolCallRecord
	for rows.Next() {
		var r ToolCallRecord
		if err := rows.Scan(&r.ID, &r.ScopeID, &r.CallID, &r.Tool, &r.Status, &r.DurationMs, &r.Detail, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Approvals returns a scope's approval requests in insertion order.
func (s *Service) Approvals(scopeID string) ([]ApprovalRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, approval_id, scope_id, call_id, tool, arguments, status, created_at, responded_at
		FROM approval_requests WHERE scope_id = ? ORDER BY id ASC`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	var out []ApprovalRecord
	for rows.Next() {
		var r ApprovalRecord
		if err := rows.Scan(&r.ID, &r.ApprovalID, &r.ScopeID, &r.CallID, &r.Tool, &r.Arguments, &r.Status, &r.CreatedAt, &r.RespondedAt); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PolicyDecisions returns a scope's policy decisions in insertion order.
func (s *Service) PolicyDecisions(scopeID string) ([]PolicyRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, scope_id, tool, verdict, reason, created_at
		FROM policy_decisions WHERE scope_id = ? ORDER BY id ASC`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("query policy decisions: %w", err)
	}
	defer rows.Close()

	var out []PolicyRecord
	for rows.Next() {
		var r PolicyRecord
		if err := rows.Scan(&r.ID, &r.ScopeID, &r.Tool, &r.Verdict, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy decision: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
