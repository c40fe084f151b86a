package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Provider != "openai" || cfg.Limits.MaxTurns != 50 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"model":{"provider":"gemini","name":"gemini-2.0-flash"},"limits":{"maxTurns":5}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Provider != "gemini" || cfg.Model.Name != "gemini-2.0-flash" {
		t.Fatalf("model = %+v", cfg.Model)
	}
	if cfg.Limits.MaxTurns != 5 {
		t.Fatalf("max turns = %d", cfg.Limits.MaxTurns)
	}
	// Untouched sections keep their defaults.
	if cfg.Approval.TimeoutSeconds != 60 {
		t.Fatalf("approval = %+v", cfg.Approval)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"model":{"name":"from-file"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SUBLOOP_MODEL_NAME", "from-env")
	t.Setenv("SUBLOOP_APPROVAL_UNATTENDED", "true")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Name != "from-env" {
		t.Fatalf("model name = %s", cfg.Model.Name)
	}
	if !cfg.Approval.Unattended {
		t.Fatal("unattended override not applied")
	}
}

func TestMalformedFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfigPathHonorsExplicitEnv(t *testing.T) {
	t.Setenv("SUBLOOP_CONFIG", "/etc/subloop/config.json")
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if path != "/etc/subloop/config.json" {
		t.Fatalf("path = %s", path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := DefaultConfig()
	cfg.Model.Name = "saved-model"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Model.Name != "saved-model" {
		t.Fatalf("model = %s", loaded.Model.Name)
	}
}

func TestExpandPathsOnLoad(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Paths.RunState) == 0 || cfg.Paths.RunState[0] == '~' {
		t.Fatalf("run state not expanded: %s", cfg.Paths.RunState)
	}
}
