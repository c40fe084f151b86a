package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient talks to OpenAI-compatible chat completion endpoints
// (OpenAI, OpenRouter, local gateways).
type OpenAIClient struct {
	apiKey      string
	apiBase     string
	model       string
	maxTokens   int
	temperature float64
	tools       []ToolDefinition
	httpClient  *http.Client
}

// NewOpenAIClient creates a client. Empty apiBase targets the OpenAI API.
func NewOpenAIClient(apiKey, apiBase, model string, maxTokens int, temperature float64, tools []ToolDefinition) *OpenAIClient {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		apiKey:      apiKey,
		apiBase:     strings.TrimSuffix(apiBase, "/"),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		tools:       tools,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *OpenAIClient) DefaultModel() string {
	return c.model
}

// SendTurn posts one chat completion request and returns the decoded
// response body.
func (c *OpenAIClient) SendTurn(ctx context.Context, prompt string) (map[string]any, error) {
	body := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	if c.maxTokens > 0 {
		body["max_tokens"] = c.maxTokens
	}
	if c.temperature > 0 {
		body["temperature"] = c.temperature
	}
	if len(c.tools) > 0 {
		body["tools"] = c.tools
		body["tool_choice"] = "auto"
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload, nil
}
