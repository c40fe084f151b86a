package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RetryInstructionMessage is fed back to the model when an inline tool call
// could not be parsed. It becomes the next turn's context and steers the
// model toward emitting valid JSON.
const RetryInstructionMessage = "Your tool call could not be parsed. Reply again with a single ```json fenced block containing a valid JSON object with \"name\" and \"arguments\" fields."

// thinkRe matches <think>...</think> reasoning blocks (including multiline).
var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>\s*`)

// fenceRe captures the body of the first ```json fenced block.
var fenceRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// applyInlineFallback scans the response content for a tool call the model
// embedded as fenced JSON instead of using structured tool calling. On a
// successful parse it synthesizes a single tool call and strips the block
// from the content; on a failed parse it replaces the content with a retry
// instruction and flags the response as a parse error. Content without a
// fenced block is left untouched.
func applyInlineFallback(resp *Response) {
	stripped := thinkRe.ReplaceAllString(resp.Content, "")

	loc := fenceRe.FindStringSubmatchIndex(stripped)
	if loc == nil {
		return
	}
	block := stripped[loc[2]:loc[3]]

	call, ok := parseInlineToolCall(block)
	if !ok {
		resp.Content = RetryInstructionMessage
		resp.Display = RetryInstructionMessage
		resp.ParseError = true
		return
	}

	remainder := strings.TrimSpace(stripped[:loc[0]] + stripped[loc[1]:])
	resp.Content = remainder
	resp.Display = remainder
	resp.ToolCalls = append(resp.ToolCalls, call)
}

// parseInlineToolCall decodes a fenced JSON body into a tool call. The
// object may be {tool_call: {name, arguments}} or a bare {name, arguments};
// the name may also appear under a "function" alias.
func parseInlineToolCall(block string) (ToolCall, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(block), &obj); err != nil {
		if err := json.Unmarshal([]byte(RepairJSON(block)), &obj); err != nil {
			return ToolCall{}, false
		}
	}

	if inner, ok := obj["tool_call"].(map[string]any); ok {
		obj = inner
	}

	name, _ := obj["name"].(string)
	if name == "" {
		name, _ = obj["function"].(string)
	}
	if name == "" {
		return ToolCall{}, false
	}

	return ToolCall{
		ID:        fmt.Sprintf("fallback_%d", time.Now().UnixMilli()),
		Name:      name,
		Arguments: encodeArguments(obj["arguments"]),
	}, true
}
