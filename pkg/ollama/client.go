package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/rx-reader/pkg/client"
)

// DefaultURL is the address of a local Ollama server
const DefaultURL = "http://localhost:11434"

// DefaultModel is a vision model that reads handwriting reasonably well
const DefaultModel = "qwen2.5vl:7b"

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL, model string, timeout time.Duration) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", ollamaURL)
	}

	// Drop any path like /api/chat, the SDK adds its own
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: timeout,
	}, nil
}

// Model returns the model name used for every request
func (c *Client) Model() string {
	return c.model
}

// Generate sends one non-streaming chat request and returns the reply text
func (c *Client) Generate(ctx context.Context, req client.Request) (string, error) {
	if err := client.CheckTools(req); err != nil {
		return "", err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg := api.Message{
		Role:    "user",
		Content: req.Prompt,
	}
	if req.Image != nil && len(req.Image.Data) > 0 {
		msg.Images = []api.ImageData{api.ImageData(req.Image.Data)}
	}

	streamFalse := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: []api.Message{msg},
		Stream:   &streamFalse,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}

	var responseContent string
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		responseContent += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}

	if responseContent == "" {
		return "", fmt.Errorf("empty response from ollama")
	}

	return responseContent, nil
}

var _ client.Generator = (*Client)(nil)
