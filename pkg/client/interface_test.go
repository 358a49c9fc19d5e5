package client

import (
	"context"
	"errors"
	"testing"
)

func TestRequestTools(t *testing.T) {
	req := Request{Tools: []Tool{ToolWebSearch, "code"}}

	if !req.HasTool(ToolWebSearch) {
		t.Error("expected web search tool")
	}

	stripped := req.WithoutTool(ToolWebSearch)
	if stripped.HasTool(ToolWebSearch) {
		t.Error("web search tool should be removed")
	}
	if len(stripped.Tools) != 1 || stripped.Tools[0] != "code" {
		t.Errorf("unexpected tools after strip: %v", stripped.Tools)
	}
	if len(req.Tools) != 2 {
		t.Error("WithoutTool must not modify the original request")
	}
}

func TestCheckTools(t *testing.T) {
	if err := CheckTools(Request{}); err != nil {
		t.Errorf("no tools should pass: %v", err)
	}
	if err := CheckTools(Request{Tools: []Tool{ToolWebSearch}}, ToolWebSearch); err != nil {
		t.Errorf("supported tool should pass: %v", err)
	}
	err := CheckTools(Request{Tools: []Tool{ToolWebSearch}})
	if !errors.Is(err, ErrToolUnsupported) {
		t.Errorf("expected ErrToolUnsupported, got %v", err)
	}
}

func TestGeneratorFunc(t *testing.T) {
	var g Generator = GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		return "echo:" + req.Prompt, nil
	})
	out, err := g.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "echo:hi" {
		t.Errorf("got %q", out)
	}
}
