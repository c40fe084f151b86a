package timeline

import "time"

// TurnRecord is one persisted LLM turn within a scope.
type TurnRecord struct {
	ID         int64     `json:"id"`
	ScopeID    string    `json:"scope_id"`
	Turn       int       `json:"turn"`
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response"`
	Model      string    `json:"model"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToolCallRecord is one persisted tool-call outcome.
type ToolCallRecord struct {
	ID         int64     `json:"id"`
	ScopeID    string    `json:"scope_id"`
	CallID     string    `json:"call_id"`
	Tool       string    `json:"tool"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApprovalRecord is one persisted approval request with its final status.
type ApprovalRecord struct {
	ID          int64      `json:"id"`
	ApprovalID  string     `json:"approval_id"`
	ScopeID     string     `json:"scope_id"`
	CallID      string     `json:"call_id"`
	Tool        string     `json:"tool"`
	Arguments   string     `json:"arguments"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// PolicyRecord is one persisted confirmation-policy decision.
type PolicyRecord struct {
	ID        int64     `json:"id"`
	ScopeID   string    `json:"scope_id"`
	Tool      string    `json:"tool"`
	Verdict   string    `json:"verdict"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Schema creates the audit tables. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scope_id TEXT NOT NULL,
	turn INTEGER NOT NULL,
	prompt TEXT,
	response TEXT,
	model TEXT DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_scope ON turns(scope_id);

CREATE TABLE IF NOT EXISTS tool_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scope_id TEXT NOT NULL,
	call_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	status TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	detail TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_scope ON tool_calls(scope_id);

CREATE TABLE IF NOT EXISTS approval_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	approval_id TEXT UNIQUE NOT NULL,
	scope_id TEXT,
	call_id TEXT,
	tool TEXT NOT NULL,
	arguments TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	responded_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_approval_status ON approval_requests(status);
CREATE INDEX IF NOT EXISTS idx_approval_id ON approval_requests(approval_id);

CREATE TABLE IF NOT EXISTS policy_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scope_id TEXT,
	tool TEXT NOT NULL,
	verdict TEXT NOT NULL,
	reason TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_policy_scope ON policy_decisions(scope_id);
`
