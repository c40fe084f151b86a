package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// DenyPatterns contains regex patterns for commands that are refused
// outright, before any confirmation prompt.
var DenyPatterns = []string{
	`\brm\s+(-[rf]+\s+)*[/~]`,
	`\brm\s+-rf\b`,
	`\bdd\b.*\bof=/dev/`,
	`\bmkfs\b`,
	`>\s*/dev/`,
	`\bshutdown\b`,
	`\breboot\b`,
	`\b:(){ :|:& };:\b`,
}

// ExecTool executes shell commands. Every run requires confirmation; the
// deny list rejects destructive commands without prompting at all.
type ExecTool struct {
	Timeout     time.Duration
	WorkDir     string
	denyRegexes []*regexp.Regexp
}

// NewExecTool creates an ExecTool. A zero timeout defaults to 60s.
func NewExecTool(timeout time.Duration, workDir string) *ExecTool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	denyRegexes := make([]*regexp.Regexp, 0, len(DenyPatterns))
	for _, pattern := range DenyPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			denyRegexes = append(denyRegexes, re)
		}
	}
	return &ExecTool{
		Timeout:     timeout,
		WorkDir:     workDir,
		denyRegexes: denyRegexes,
	}
}

func (t *ExecTool) Name() string { return "exec" }

func (t *ExecTool) Description() string {
	return "Execute a shell command and return its combined output."
}

func (t *ExecTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) ShouldConfirm(_ context.Context, args map[string]any) (*Confirmation, error) {
	command := GetString(args, "command", "")
	if t.isDenied(command) {
		return nil, fmt.Errorf("command matches deny pattern: %s", command)
	}
	return &Confirmation{
		Tool:        t.Name(),
		Description: fmt.Sprintf("Run shell command: %s", command),
		Args:        args,
	}, nil
}

func (t *ExecTool) isDenied(command string) bool {
	for _, re := range t.denyRegexes {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

func (t *ExecTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	command := strings.TrimSpace(GetString(params, "command", ""))
	if command == "" {
		return Fail("command is required"), nil
	}
	if t.isDenied(command) {
		return Fail("command blocked by safety policy"), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if t.WorkDir != "" {
		cmd.Dir = t.WorkDir
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return Fail(fmt.Sprintf("command timed out after %s", t.Timeout)), nil
	}
	if err != nil {
		return Fail(fmt.Sprintf("command failed: %v\n%s", err, out.String())), nil
	}
	return Ok(out.String()), nil
}
