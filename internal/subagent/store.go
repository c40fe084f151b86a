package subagent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// RunRecord is the persisted summary of one scope run.
type RunRecord struct {
	RunID     string     `json:"run_id"`
	Prompt    string     `json:"prompt"`
	Status    string     `json:"status"` // accepted, running, SUCCESS, ERROR, failed
	Reason    string     `json:"reason,omitempty"`
	Turns     int        `json:"turns"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// RunStore snapshots scope runs to a JSON state file so a restart does
// not silently lose what was in flight. Persistence is best-effort.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*RunRecord
	path string
}

// NewRunStore loads the store at path. Runs left unfinished by a crash
// are marked failed on load. Empty path disables persistence.
func NewRunStore(path string) *RunStore {
	s := &RunStore{
		runs: make(map[string]*RunRecord),
		path: path,
	}
	s.restore()
	return s
}

func (s *RunStore) restore() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var persisted []RunRecord
	if err := json.Unmarshal(data, &persisted); err != nil {
		return
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range persisted {
		rec := persisted[i]
		if rec.EndedAt == nil {
			// The process was restarted; mark in-flight runs as failed.
			rec.Status = "failed"
			rec.Reason = "process restarted before run completion"
			rec.EndedAt = &now
		}
		s.runs[rec.RunID] = &rec
	}
	s.persistLocked()
}

// Register records a freshly initialized scope.
func (s *RunStore) Register(scope *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[scope.ID] = &RunRecord{
		RunID:     scope.ID,
		Prompt:    scope.Config.Prompt,
		Status:    "accepted",
		CreatedAt: time.Now(),
	}
	s.persistLocked()
}

// MarkRunning stamps the run's start time.
func (s *RunStore) MarkRunning(runID string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.runs[runID]; ok {
		rec.Status = "running"
		rec.StartedAt = &now
		s.persistLocked()
	}
}

// MarkFinished records the terminal status and reason for a run.
func (s *RunStore) MarkFinished(runID, status, reason string, turns int) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.runs[runID]; ok {
		rec.Status = status
		rec.Reason = reason
		rec.Turns = turns
		rec.EndedAt = &now
		s.persistLocked()
	}
}

// Runs returns all records ordered oldest first.
func (s *RunStore) Runs() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns one record by run id.
func (s *RunStore) Get(runID string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.runs[runID]; ok {
		return *rec, true
	}
	return RunRecord{}, false
}

func (s *RunStore) persistLocked() {
	if s.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return
	}
	snapshot := make([]RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		snapshot = append(snapshot, *rec)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt)
	})
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return
	}
	_ = os.Rename(tmp, s.path)
}
