// Package normalize converts provider-specific chat payloads into one
// canonical response shape. It is a pure function over decoded JSON: it
// never returns an error and never panics; malformed input degrades to an
// error-shaped response that the agent loop can feed back to the model.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EmptyResponseMessage replaces a reply that carried neither text nor tool
// calls. An empty reply would make the turn loop spin on a no-op, so it is
// treated as an error condition in its own right.
const EmptyResponseMessage = "Empty response not allowed - the model returned no content and no tool calls. Please provide a text answer or call a tool."

// ToolCall is a single tool invocation requested by the model. Arguments is
// the JSON-encoded argument object, matching the OpenAI wire shape.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ArgumentsMap decodes the JSON-encoded arguments into a map.
func (tc ToolCall) ArgumentsMap() (map[string]any, error) {
	if strings.TrimSpace(tc.Arguments) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return nil, fmt.Errorf("decode tool call arguments: %w", err)
	}
	return args, nil
}

// Response is the canonical form of one model reply.
type Response struct {
	Content   string
	Display   string
	ToolCalls []ToolCall
	Model     string
	Usage     map[string]any
	// ParseError marks replies that were malformed or empty and were
	// replaced with a diagnostic message.
	ParseError bool
	ErrorCode  string
	ErrorMeta  map[string]any
	// Raw is the original payload, kept for audit and replay.
	Raw              map[string]any
	ProviderMetadata map[string]any
}

// Normalize converts a decoded provider payload into a Response.
//
// Detection order (first match wins, shapes can overlap):
//  1. already-normalized: raw.content is a string, no choices/candidates
//  2. Gemini: raw.candidates is a non-empty array
//  3. Responses API: raw.output[0].content is an array
//  4. OpenAI chat completions (fallback): raw.choices[0].message
func Normalize(raw map[string]any) *Response {
	resp := detect(raw)

	if strings.TrimSpace(resp.Content) == "" && len(resp.ToolCalls) == 0 {
		resp.Content = EmptyResponseMessage
		resp.Display = EmptyResponseMessage
		resp.ParseError = true
	}

	resp.Raw = raw
	resp.ProviderMetadata = map[string]any{"original_response": raw}
	if ec, ok := raw["errorCode"].(string); ok {
		resp.ErrorCode = ec
	}
	if em, ok := raw["errorMetadata"].(map[string]any); ok {
		resp.ErrorMeta = em
	}
	return resp
}

func detect(raw map[string]any) *Response {
	if raw == nil {
		return &Response{}
	}

	if content, ok := raw["content"].(string); ok {
		if _, hasChoices := raw["choices"]; !hasChoices {
			if _, hasCandidates := raw["candidates"]; !hasCandidates {
				return normalizePassthrough(raw, content)
			}
		}
	}

	if cands, ok := raw["candidates"].([]any); ok && len(cands) > 0 {
		return normalizeGemini(raw, cands)
	}

	if out, ok := raw["output"].([]any); ok && len(out) > 0 {
		if first, ok := out[0].(map[string]any); ok {
			if parts, ok := first["content"].([]any); ok {
				return normalizeResponsesAPI(raw, parts)
			}
		}
	}

	return normalizeOpenAI(raw)
}

// normalizePassthrough handles payloads that already carry the canonical
// fields, e.g. replayed or pre-normalized responses.
func normalizePassthrough(raw map[string]any, content string) *Response {
	resp := &Response{Content: content, Display: content}
	if display, ok := raw["display"].(string); ok && display != "" {
		resp.Display = display
	}
	if calls, ok := raw["toolCalls"].([]any); ok {
		for _, c := range calls {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			tc := ToolCall{}
			if id, ok := m["callId"].(string); ok {
				tc.ID = id
			} else if id, ok := m["id"].(string); ok {
				tc.ID = id
			}
			tc.Name, _ = m["name"].(string)
			tc.Arguments = encodeArguments(m["arguments"])
			if tc.Name != "" {
				resp.ToolCalls = append(resp.ToolCalls, tc)
			}
		}
	}
	resp.Model, _ = raw["model"].(string)
	resp.Usage, _ = raw["usage"].(map[string]any)
	return resp
}

// normalizeGemini reads the candidates/content/parts shape. Text parts are
// joined by newline; each functionCall part becomes a tool call with a
// synthesized id gemini_<name>_<ordinal>.
func normalizeGemini(raw map[string]any, cands []any) *Response {
	resp := &Response{}
	resp.Model, _ = raw["model"].(string)
	resp.Usage, _ = raw["usageMetadata"].(map[string]any)

	var parts []any
	for _, c := range cands {
		cand, ok := c.(map[string]any)
		if !ok {
			continue
		}
		content, ok := cand["content"].(map[string]any)
		if !ok {
			continue
		}
		if p, ok := content["parts"].([]any); ok {
			parts = p
			break
		}
	}

	var texts []string
	ordinal := 0
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := part["text"].(string); ok && text != "" {
			texts = append(texts, text)
		}
		if fc, ok := part["functionCall"].(map[string]any); ok {
			name, _ := fc["name"].(string)
			if name == "" {
				continue
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("gemini_%s_%d", name, ordinal),
				Name:      name,
				Arguments: encodeArguments(fc["args"]),
			})
			ordinal++
		}
	}
	resp.Content = strings.Join(texts, "\n")
	resp.Display = resp.Content
	return resp
}

// normalizeResponsesAPI concatenates the text fields of output[0].content.
// This shape carries no tool calls.
func normalizeResponsesAPI(raw map[string]any, parts []any) *Response {
	resp := &Response{}
	resp.Model, _ = raw["model"].(string)
	resp.Usage, _ = raw["usage"].(map[string]any)

	var sb strings.Builder
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := part["text"].(string); ok {
			sb.WriteString(text)
		}
	}
	resp.Content = sb.String()
	resp.Display = resp.Content
	return resp
}

// normalizeOpenAI reads choices[0].message. Tool calls come from
// message.tool_calls, or are synthesized from a legacy function_call. When
// neither is present, the content is scanned for an inline fenced tool call.
func normalizeOpenAI(raw map[string]any) *Response {
	resp := &Response{}
	resp.Model, _ = raw["model"].(string)
	resp.Usage, _ = raw["usage"].(map[string]any)

	var message map[string]any
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			message, _ = choice["message"].(map[string]any)
		}
	}
	if message == nil {
		return resp
	}

	if content, ok := message["content"].(string); ok {
		resp.Content = content
	}
	resp.Display = resp.Content

	if calls, ok := message["tool_calls"].([]any); ok {
		for _, c := range calls {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			tc := ToolCall{}
			tc.ID, _ = m["id"].(string)
			if fn, ok := m["function"].(map[string]any); ok {
				tc.Name, _ = fn["name"].(string)
				tc.Arguments = encodeArguments(fn["arguments"])
			}
			if tc.Name != "" {
				resp.ToolCalls = append(resp.ToolCalls, tc)
			}
		}
	} else if fc, ok := message["function_call"].(map[string]any); ok {
		// Legacy single-function shape.
		if name, ok := fc["name"].(string); ok && name != "" {
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        "legacy_" + name,
				Name:      name,
				Arguments: encodeArguments(fc["arguments"]),
			})
		}
	}

	if len(resp.ToolCalls) == 0 {
		applyInlineFallback(resp)
	}
	return resp
}

// encodeArguments renders tool-call arguments as a JSON object string
// regardless of whether the provider sent them encoded or structured.
func encodeArguments(v any) string {
	switch args := v.(type) {
	case nil:
		return "{}"
	case string:
		if strings.TrimSpace(args) == "" {
			return "{}"
		}
		return args
	default:
		b, err := json.Marshal(args)
		if err != nil {
			return "{}"
		}
		return string(b)
	}
}
