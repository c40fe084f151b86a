// Package config defines the application configuration: a JSON file with
// grouped sections, overridable per section through SUBLOOP_* environment
// variables.
package config

// ModelConfig selects and parameterizes the model backend.
type ModelConfig struct {
	Provider    string  `json:"provider" envconfig:"PROVIDER"` // "openai" or "gemini"
	Name        string  `json:"name" envconfig:"NAME"`
	APIKey      string  `json:"apiKey" envconfig:"API_KEY"`
	APIBase     string  `json:"apiBase" envconfig:"API_BASE"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// PathsConfig locates on-disk state.
type PathsConfig struct {
	Workspace  string `json:"workspace" envconfig:"WORKSPACE"`
	RunState   string `json:"runState" envconfig:"RUN_STATE"`
	Prefs      string `json:"prefs" envconfig:"PREFS"`
	TimelineDB string `json:"timelineDb" envconfig:"TIMELINE_DB"`
}

// ApprovalConfig governs the confirmation gate.
type ApprovalConfig struct {
	// Unattended auto-approves every tool call; for headless runs only.
	Unattended     bool              `json:"unattended" envconfig:"UNATTENDED"`
	TimeoutSeconds int               `json:"timeoutSeconds" envconfig:"TIMEOUT_SECONDS"`
	Preferences    map[string]string `json:"preferences"` // tool -> allow|confirm|deny
}

// LimitsConfig sets default scope constraints. Zero fields fall back to
// the executor's built-in defaults.
type LimitsConfig struct {
	TimeoutMinutes int `json:"timeoutMinutes" envconfig:"TIMEOUT_MINUTES"`
	MaxTurns       int `json:"maxTurns" envconfig:"MAX_TURNS"`
	MaxMemoryMB    int `json:"maxMemoryMb" envconfig:"MAX_MEMORY_MB"`
	MaxCPUMinutes  int `json:"maxCpuMinutes" envconfig:"MAX_CPU_MINUTES"`
}

// TraceConfig enables span publishing to Kafka.
type TraceConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// Config is the root configuration.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Model    ModelConfig    `json:"model"`
	Approval ApprovalConfig `json:"approval"`
	Limits   LimitsConfig   `json:"limits"`
	Trace    TraceConfig    `json:"trace"`
}

// DefaultConfig returns the baseline configuration before file and env
// overrides.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Workspace:  "~/subloop",
			RunState:   "~/.subloop/runs.json",
			Prefs:      "~/.subloop/tool_prefs.json",
			TimelineDB: "~/.subloop/timeline.db",
		},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o-mini",
			APIBase:     "",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Approval: ApprovalConfig{
			Unattended:     false,
			TimeoutSeconds: 60,
			Preferences:    map[string]string{},
		},
		Limits: LimitsConfig{
			TimeoutMinutes: 15,
			MaxTurns:       50,
			MaxMemoryMB:    100,
			MaxCPUMinutes:  5,
		},
		Trace: TraceConfig{
			Enabled: false,
			Brokers: "localhost:9092",
			Topic:   "subloop.spans",
		},
	}
}
