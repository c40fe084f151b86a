package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("nope"); ok {
		t.Fatal("expected missing tool")
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(NewReadFileTool())
	tool, ok := r.Get("read_file")
	if !ok {
		t.Fatal("read_file not found")
	}
	if tool.Name() != "read_file" {
		t.Fatalf("name = %q", tool.Name())
	}
}

func TestDefinitionsFilteredByAllowList(t *testing.T) {
	r := NewRegistry()
	r.Register(NewReadFileTool())
	r.Register(NewListDirTool())
	defs := r.Definitions([]string{"read_file"})
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	fn := defs[0]["function"].(map[string]any)
	if fn["name"] != "read_file" {
		t.Fatalf("name = %v", fn["name"])
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := NewReadFileTool().Execute(context.Background(), map[string]any{"path": path})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || res.Data != "hello" {
		t.Fatalf("result = %+v", res)
	}
}

func TestReadFileNotFound(t *testing.T) {
	res, err := NewReadFileTool().Execute(context.Background(), map[string]any{"path": "/no/such/file"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(res.Error, "not found") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestReadFileNeverConfirms(t *testing.T) {
	c, err := NewReadFileTool().ShouldConfirm(context.Background(), map[string]any{"path": "x"})
	if err != nil || c != nil {
		t.Fatalf("read_file must not confirm, got %+v, %v", c, err)
	}
}

func TestWriteFileConfirmsAndRespectsRoot(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(func() string { return dir })

	c, err := tool.ShouldConfirm(context.Background(), map[string]any{"path": "x", "content": "y"})
	if err != nil || c == nil {
		t.Fatalf("write_file must confirm, got %+v, %v", c, err)
	}

	res, err := tool.Execute(context.Background(), map[string]any{
		"path": filepath.Join(dir, "out.txt"), "content": "data",
	})
	if err != nil || !res.Success {
		t.Fatalf("write inside root failed: %+v, %v", res, err)
	}

	res, err = tool.Execute(context.Background(), map[string]any{
		"path": "/tmp/outside-root-test.txt", "content": "data",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success {
		t.Fatal("write outside root must fail")
	}
}

func TestExecDenyPatternRefusesConfirmation(t *testing.T) {
	tool := NewExecTool(0, "")
	if _, err := tool.ShouldConfirm(context.Background(), map[string]any{"command": "rm -rf /"}); err == nil {
		t.Fatal("expected deny pattern error")
	}
}

func TestExecRunsCommand(t *testing.T) {
	tool := NewExecTool(0, "")
	res, err := tool.Execute(context.Background(), map[string]any{"command": "echo orchestrated"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || !strings.Contains(res.Data, "orchestrated") {
		t.Fatalf("result = %+v", res)
	}
}

func TestParamHelpers(t *testing.T) {
	params := map[string]any{"s": "v", "n": float64(7), "b": true}
	if GetString(params, "s", "") != "v" {
		t.Fatal("GetString")
	}
	if GetInt(params, "n", 0) != 7 {
		t.Fatal("GetInt float64")
	}
	if GetInt(params, "missing", 3) != 3 {
		t.Fatal("GetInt default")
	}
	if !GetBool(params, "b", false) {
		t.Fatal("GetBool")
	}
}
