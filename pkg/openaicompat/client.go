// Package openaicompat talks to any OpenAI-compatible chat completions endpoint:
// Gemini's OpenAI endpoint, OpenRouter, or a local llama.cpp server.
package openaicompat

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/menta2k/rx-reader/pkg/client"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel   = "gemini-2.0-flash"
)

// Config holds configuration for the client
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client // optional (tests)
}

// Client implements client.Generator over the chat completions API
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a new client. SDK retries are disabled; a failed call is
// reported to the caller as-is.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}

	return &Client{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Model returns the model name used for every request
func (c *Client) Model() string {
	return c.model
}

// Generate sends a single user message, with the image attached as a data URL
// content part when present
func (c *Client) Generate(ctx context.Context, req client.Request) (string, error) {
	if err := client.CheckTools(req); err != nil {
		return "", err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var message openai.ChatCompletionMessageParamUnion
	if req.Image != nil && len(req.Image.Data) > 0 {
		mime := req.Image.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts := []openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image.Data),
			}),
		}
		message = openai.UserMessage(parts)
	} else {
		message = openai.UserMessage(req.Prompt)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{message},
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response from %s", c.model)
	}
	return content, nil
}

var _ client.Generator = (*Client)(nil)
