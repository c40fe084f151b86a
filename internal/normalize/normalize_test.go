package normalize

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return m
}

func TestOpenAIContentPassesThrough(t *testing.T) {
	raw := decode(t, `{"choices":[{"message":{"role":"assistant","content":"hello there"}}],"model":"gpt-4o"}`)
	resp := Normalize(raw)
	if resp.Content != "hello there" {
		t.Fatalf("content = %q", resp.Content)
	}
	if resp.Display != "hello there" {
		t.Fatalf("display = %q", resp.Display)
	}
	if resp.ParseError {
		t.Fatal("unexpected parse error")
	}
	if resp.Model != "gpt-4o" {
		t.Fatalf("model = %q", resp.Model)
	}
}

func TestOpenAIToolCalls(t *testing.T) {
	raw := decode(t, `{"choices":[{"message":{"content":"","tool_calls":[
		{"id":"call_1","function":{"name":"read_file","arguments":"{\"path\":\"a.txt\"}"}},
		{"id":"call_2","function":{"name":"list_dir","arguments":"{}"}}
	]}}]}`)
	resp := Normalize(raw)
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "call_1" || resp.ToolCalls[0].Name != "read_file" {
		t.Fatalf("unexpected first call: %+v", resp.ToolCalls[0])
	}
	args, err := resp.ToolCalls[0].ArgumentsMap()
	if err != nil {
		t.Fatalf("arguments map: %v", err)
	}
	if args["path"] != "a.txt" {
		t.Fatalf("args = %v", args)
	}
	if resp.ParseError {
		t.Fatal("tool-call-only response must not be a parse error")
	}
}

func TestLegacyFunctionCallSynthesized(t *testing.T) {
	raw := decode(t, `{"choices":[{"message":{"content":"","function_call":{"name":"search","arguments":"{\"q\":\"x\"}"}}}]}`)
	resp := Normalize(raw)
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Name != "search" {
		t.Fatalf("name = %q", resp.ToolCalls[0].Name)
	}
	if resp.ToolCalls[0].ID == "" {
		t.Fatal("legacy call needs a synthesized id")
	}
}

func TestEmptyResponseBecomesDiagnostic(t *testing.T) {
	for _, payload := range []string{
		`{"choices":[{"message":{"content":""}}]}`,
		`{"choices":[{"message":{"content":"   \n\t"}}]}`,
		`{"choices":[]}`,
		`{}`,
	} {
		resp := Normalize(decode(t, payload))
		if !resp.ParseError {
			t.Fatalf("payload %s: expected parse error", payload)
		}
		if strings.TrimSpace(resp.Content) == "" {
			t.Fatalf("payload %s: diagnostic content must be non-empty", payload)
		}
	}
}

func TestGeminiTextAndFunctionCall(t *testing.T) {
	raw := decode(t, `{"candidates":[{"content":{"parts":[
		{"text":"hi"},
		{"functionCall":{"name":"foo","args":{"x":1}}}
	]}}]}`)
	resp := Normalize(raw)
	if resp.Content != "hi" {
		t.Fatalf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "gemini_foo_0" {
		t.Fatalf("id = %q", tc.ID)
	}
	if tc.Arguments != `{"x":1}` {
		t.Fatalf("arguments = %q", tc.Arguments)
	}
}

func TestGeminiMultipleTextPartsJoinedByNewline(t *testing.T) {
	raw := decode(t, `{"candidates":[{"content":{"parts":[{"text":"one"},{"text":"two"}]}}]}`)
	resp := Normalize(raw)
	if resp.Content != "one\ntwo" {
		t.Fatalf("content = %q", resp.Content)
	}
}

func TestResponsesAPIShape(t *testing.T) {
	raw := decode(t, `{"output":[{"content":[{"type":"output_text","text":"part one "},{"type":"output_text","text":"part two"}]}]}`)
	resp := Normalize(raw)
	if resp.Content != "part one part two" {
		t.Fatalf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 0 {
		t.Fatal("responses shape must not extract tool calls")
	}
}

func TestAlreadyNormalizedPassthrough(t *testing.T) {
	raw := decode(t, `{"content":"done","display":"done (pretty)","model":"m1"}`)
	resp := Normalize(raw)
	if resp.Content != "done" || resp.Display != "done (pretty)" {
		t.Fatalf("content/display = %q / %q", resp.Content, resp.Display)
	}
}

func TestInlineFallbackExtractsToolCall(t *testing.T) {
	content := "I will read the file.\n```json\n{\"name\":\"foo\",\"arguments\":{}}\n```\nDone."
	raw := map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	}
	resp := Normalize(raw)
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 synthesized tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "foo" {
		t.Fatalf("name = %q", tc.Name)
	}
	if !strings.HasPrefix(tc.ID, "fallback_") {
		t.Fatalf("id = %q", tc.ID)
	}
	if strings.Contains(resp.Content, "```") {
		t.Fatalf("fenced block not stripped: %q", resp.Content)
	}
	if !strings.Contains(resp.Content, "I will read the file.") {
		t.Fatalf("prose lost: %q", resp.Content)
	}
}

func TestInlineFallbackWrappedToolCall(t *testing.T) {
	content := "```json\n{\"tool_call\":{\"name\":\"bar\",\"arguments\":{\"k\":\"v\"}}}\n```"
	raw := map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	}
	resp := Normalize(raw)
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "bar" {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	args, err := resp.ToolCalls[0].ArgumentsMap()
	if err != nil || args["k"] != "v" {
		t.Fatalf("args = %v, err = %v", args, err)
	}
}

func TestInlineFallbackStripsThinkSegments(t *testing.T) {
	content := "<think>should I call foo? yes</think>```json\n{\"name\":\"foo\",\"arguments\":{}}\n```"
	raw := map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	}
	resp := Normalize(raw)
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if strings.Contains(resp.Content, "<think>") {
		t.Fatalf("think segment not stripped: %q", resp.Content)
	}
}

func TestInlineFallbackParseFailure(t *testing.T) {
	content := "```json\nnot json at all {{{\n```"
	raw := map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	}
	resp := Normalize(raw)
	if !resp.ParseError {
		t.Fatal("expected parse error")
	}
	if resp.Content != RetryInstructionMessage {
		t.Fatalf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 0 {
		t.Fatalf("no tool calls expected, got %d", len(resp.ToolCalls))
	}
}

func TestProseWithoutFenceIsUntouched(t *testing.T) {
	raw := decode(t, `{"choices":[{"message":{"content":"just an ordinary answer"}}]}`)
	resp := Normalize(raw)
	if resp.ParseError {
		t.Fatal("unexpected parse error")
	}
	if resp.Content != "just an ordinary answer" {
		t.Fatalf("content = %q", resp.Content)
	}
}

func TestProvenanceAttached(t *testing.T) {
	raw := decode(t, `{"choices":[{"message":{"content":"ok"}}],"errorCode":"rate_limited","errorMetadata":{"retry_after":3}}`)
	resp := Normalize(raw)
	if resp.Raw == nil {
		t.Fatal("raw payload not attached")
	}
	if resp.ProviderMetadata["original_response"] == nil {
		t.Fatal("provider metadata missing original response")
	}
	if resp.ErrorCode != "rate_limited" {
		t.Fatalf("error code = %q", resp.ErrorCode)
	}
	if resp.ErrorMeta["retry_after"] == nil {
		t.Fatal("error metadata missing")
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := decode(t, `{"candidates":[{"content":{"parts":[{"text":"hi"},{"functionCall":{"name":"foo","args":{"x":1}}}]}}]}`)
	a := Normalize(raw)
	b := Normalize(raw)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("normalize is not pure:\n%+v\n%+v", a, b)
	}
}
