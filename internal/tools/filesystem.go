package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

// ReadFileTool reads the contents of a file. Read-only, never confirms.
type ReadFileTool struct{}

func NewReadFileTool() *ReadFileTool { return &ReadFileTool{} }

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file at the specified path."
}

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the file to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) ShouldConfirm(_ context.Context, _ map[string]any) (*Confirmation, error) {
	return nil, nil
}

func (t *ReadFileTool) Execute(_ context.Context, params map[string]any) (*Result, error) {
	path := GetString(params, "path", "")
	if path == "" {
		return Fail("path is required"), nil
	}
	path = expandPath(path)

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Fail(fmt.Sprintf("file not found: %s", path)), nil
		}
		if os.IsPermission(err) {
			return Fail(fmt.Sprintf("permission denied: %s", path)), nil
		}
		return Fail(fmt.Sprintf("read file: %v", err)), nil
	}
	return Ok(string(content)), nil
}

// ListDirTool lists a directory. Read-only, never confirms.
type ListDirTool struct{}

func NewListDirTool() *ListDirTool { return &ListDirTool{} }

func (t *ListDirTool) Name() string { return "list_dir" }

func (t *ListDirTool) Description() string {
	return "List the entries of a directory at the specified path."
}

func (t *ListDirTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the directory to list",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ListDirTool) ShouldConfirm(_ context.Context, _ map[string]any) (*Confirmation, error) {
	return nil, nil
}

func (t *ListDirTool) Execute(_ context.Context, params map[string]any) (*Result, error) {
	path := GetString(params, "path", ".")
	path = expandPath(path)

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Fail(fmt.Sprintf("directory not found: %s", path)), nil
		}
		return Fail(fmt.Sprintf("list dir: %v", err)), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return Ok(strings.Join(names, "\n")), nil
}

// WriteFileTool writes content to a file. Writes require confirmation and
// are restricted to the configured root when one is set.
type WriteFileTool struct {
	root func() string
}

func NewWriteFileTool(root func() string) *WriteFileTool {
	return &WriteFileTool{root: root}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Write content to a file at the specified path. Creates parent directories if needed."
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the file to write",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write to the file",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) ShouldConfirm(_ context.Context, args map[string]any) (*Confirmation, error) {
	return &Confirmation{
		Tool:        t.Name(),
		Description: fmt.Sprintf("Write %d bytes to %s", len(GetString(args, "content", "")), GetString(args, "path", "")),
		Args:        args,
	}, nil
}

func (t *WriteFileTool) Execute(_ context.Context, params map[string]any) (*Result, error) {
	path := GetString(params, "path", "")
	content := GetString(params, "content", "")
	if path == "" {
		return Fail("path is required"), nil
	}
	path = expandPath(path)

	root := ""
	if t.root != nil {
		root = t.root()
	}
	if root != "" && !isWithin(root, path) {
		return Fail("path outside workspace root"), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Fail(fmt.Sprintf("create directory: %v", err)), nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Fail(fmt.Sprintf("write file: %v", err)), nil
	}
	return Ok(fmt.Sprintf("wrote %d bytes to %s", len(content), path)), nil
}

// isWithin reports whether path resolves inside root.
func isWithin(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
