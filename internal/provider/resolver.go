package provider

import (
	"fmt"

	"github.com/Subloop/Subloop/internal/config"
)

// Resolve builds the client selected by the model config. Tools are the
// definitions advertised to backends with structured tool calling.
func Resolve(cfg config.ModelConfig, tools []ToolDefinition) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.APIBase, cfg.Name, cfg.MaxTokens, cfg.Temperature, tools), nil
	case "gemini":
		return NewGeminiClient(cfg.APIKey, cfg.APIBase, cfg.Name), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
}
