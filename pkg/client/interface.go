package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/menta2k/rx-reader/pkg/types"
)

// Tool is a capability a request asks the model to use
type Tool string

const (
	// ToolWebSearch lets the model consult web search results
	ToolWebSearch Tool = "web_search"
)

// ErrToolUnsupported is returned by backends asked for a capability they cannot provide
var ErrToolUnsupported = errors.New("tool not supported by backend")

// Request is a single generation request
type Request struct {
	Prompt      string
	Image       *types.Image
	Tools       []Tool
	Temperature float64
	// SearchQueries are the queries run when ToolWebSearch is declared
	SearchQueries []string
}

// HasTool reports whether the request declares the given tool
func (r Request) HasTool(tool Tool) bool {
	for _, t := range r.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// WithoutTool returns a copy of the request with the given tool removed
func (r Request) WithoutTool(tool Tool) Request {
	tools := make([]Tool, 0, len(r.Tools))
	for _, t := range r.Tools {
		if t != tool {
			tools = append(tools, t)
		}
	}
	r.Tools = tools
	return r
}

// Generator produces a text response for a prompt, an optional image and a tool set
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f(ctx, req)
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// CheckTools fails with ErrToolUnsupported if the request declares any tool
// outside the supported set
func CheckTools(req Request, supported ...Tool) error {
	for _, t := range req.Tools {
		ok := false
		for _, s := range supported {
			if t == s {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrToolUnsupported, t)
		}
	}
	return nil
}
