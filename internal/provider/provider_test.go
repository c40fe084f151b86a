package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Subloop/Subloop/internal/config"
)

func TestOpenAIClientReturnsRawPayload(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}],"usage":{"prompt_tokens":3}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "test-model", 100, 0.5, nil)
	payload, err := c.SendTurn(context.Background(), "hello")
	if err != nil {
		t.Fatalf("send turn: %v", err)
	}

	if gotPath != "/chat/completions" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth = %s", gotAuth)
	}
	if gotBody["model"] != "test-model" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	// The payload comes back undigested for the normalizer.
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) != 1 {
		t.Fatalf("payload = %+v", payload)
	}
	usage, ok := payload["usage"].(map[string]any)
	if !ok || usage["prompt_tokens"] != float64(3) {
		t.Fatalf("usage = %+v", payload["usage"])
	}
}

func TestOpenAIClientSendsTools(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	tools := []ToolDefinition{
		{"type": "function", "function": map[string]any{"name": "read_file"}},
	}
	c := NewOpenAIClient("k", srv.URL, "m", 0, 0, tools)
	if _, err := c.SendTurn(context.Background(), "x"); err != nil {
		t.Fatalf("send turn: %v", err)
	}

	if _, ok := gotBody["tools"].([]any); !ok {
		t.Fatalf("tools missing from request: %+v", gotBody)
	}
	if gotBody["tool_choice"] != "auto" {
		t.Fatalf("tool_choice = %v", gotBody["tool_choice"])
	}
}

func TestOpenAIClientNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", srv.URL, "m", 0, 0, nil)
	if _, err := c.SendTurn(context.Background(), "x"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestGeminiClientBuildsGenerateContentRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", srv.URL, "gemini-2.0-flash")
	payload, err := c.SendTurn(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("send turn: %v", err)
	}

	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotKey != "g-key" {
		t.Fatalf("key = %s", gotKey)
	}
	contents, ok := gotBody["contents"].([]any)
	if !ok || len(contents) != 1 {
		t.Fatalf("contents = %+v", gotBody)
	}
	if _, ok := payload["candidates"].([]any); !ok {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestResolveSelectsClient(t *testing.T) {
	c, err := Resolve(config.ModelConfig{Provider: "openai", Name: "m1"}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Fatalf("client = %T", c)
	}

	c, err = Resolve(config.ModelConfig{Provider: "gemini", Name: "m2"}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := c.(*GeminiClient); !ok {
		t.Fatalf("client = %T", c)
	}

	if _, err := Resolve(config.ModelConfig{Provider: "unknown"}, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestResolveDefaultsToOpenAI(t *testing.T) {
	c, err := Resolve(config.ModelConfig{}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Fatalf("client = %T", c)
	}
}
