package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".subloop"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path of the config file. SUBLOOP_CONFIG overrides
// the location entirely; SUBLOOP_HOME relocates the default directory.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("SUBLOOP_CONFIG")); explicit != "" {
		return ExpandPath(explicit)
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("SUBLOOP_HOME")); h != "" {
		return ExpandPath(h)
	}
	return os.UserHomeDir()
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load reads the config file at the default location, then applies
// SUBLOOP_* environment overrides. A missing file is not an error; the
// defaults apply.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config file at path over the defaults, then applies
// environment overrides section by section.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := expandPaths(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := envconfig.Process("SUBLOOP_PATHS", &cfg.Paths); err != nil {
		return fmt.Errorf("env overrides (paths): %w", err)
	}
	if err := envconfig.Process("SUBLOOP_MODEL", &cfg.Model); err != nil {
		return fmt.Errorf("env overrides (model): %w", err)
	}
	if err := envconfig.Process("SUBLOOP_APPROVAL", &cfg.Approval); err != nil {
		return fmt.Errorf("env overrides (approval): %w", err)
	}
	if err := envconfig.Process("SUBLOOP_LIMITS", &cfg.Limits); err != nil {
		return fmt.Errorf("env overrides (limits): %w", err)
	}
	if err := envconfig.Process("SUBLOOP_TRACE", &cfg.Trace); err != nil {
		return fmt.Errorf("env overrides (trace): %w", err)
	}
	return nil
}

func expandPaths(cfg *Config) error {
	for _, p := range []*string{
		&cfg.Paths.Workspace,
		&cfg.Paths.RunState,
		&cfg.Paths.Prefs,
		&cfg.Paths.TimelineDB,
	} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Save writes the config as indented JSON, creating the directory if
// needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
