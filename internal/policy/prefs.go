package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Preference is a stored per-tool confirmation preference.
type Preference string

const (
	PrefAllow   Preference = "allow"
	PrefConfirm Preference = "confirm"
	PrefDeny    Preference = "deny"
)

// PrefStore holds per-tool preferences, seeded from configuration and
// overlaid with decisions persisted at runtime ("always allow").
type PrefStore struct {
	mu    sync.RWMutex
	path  string
	prefs map[string]Preference
}

// NewPrefStore creates a store seeded with the given map. When path is
// non-empty, previously persisted preferences are loaded on top of the
// seed and later Set calls are written back to disk.
func NewPrefStore(path string, seed map[string]string) *PrefStore {
	s := &PrefStore{
		path:  path,
		prefs: make(map[string]Preference),
	}
	for tool, p := range seed {
		switch Preference(p) {
		case PrefAllow, PrefConfirm, PrefDeny:
			s.prefs[tool] = Preference(p)
		}
	}
	s.load()
	return s
}

func (s *PrefStore) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var persisted map[string]Preference
	if err := json.Unmarshal(data, &persisted); err != nil {
		return
	}
	for tool, p := range persisted {
		s.prefs[tool] = p
	}
}

// Get returns the stored preference for a tool.
func (s *PrefStore) Get(tool string) (Preference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[tool]
	return p, ok
}

// Set stores a preference and persists the store when backed by a file.
func (s *PrefStore) Set(tool string, p Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[tool] = p
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	data, err := json.MarshalIndent(s.prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return os.Rename(tmp, s.path)
}
