// Package openai implements the provider boundary against any
// OpenAI-compatible chat-completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kokoro-ai/kokoro/provider"
)

// maxResponseSize is the maximum response body size (10 MB).
// Protects against OOM from malformed or huge responses.
const maxResponseSize = 10 * 1024 * 1024

// Client is an OpenAI-compatible chat-completions adapter.
type Client struct {
	config Config
	http   *http.Client
}

// Compile-time interface guard.
var _ provider.Provider = (*Client)(nil)

// NewClient creates a Client from the given configuration.
// It fails with provider.ErrNoAPIKey when no key is configured.
func NewClient(cfg Config) (*Client, error) {
	cfg.defaults()
	if cfg.APIKey == "" {
		return nil, provider.ErrNoAPIKey
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.parsedTimeout()},
	}, nil
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string {
	return c.config.Model
}

// Complete sends a chat-completions request and returns the normalized
// response. A response without an assistant message fails with
// provider.ErrProtocol.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	cr := chatRequest{
		Model:    model,
		Messages: toMessages(req.Messages),
		Stream:   req.Stream,
	}
	if len(req.Tools) > 0 {
		cr.Tools = toTools(req.Tools)
	}

	body, statusCode, err := c.doPost(ctx, "/chat/completions", cr)
	if err != nil {
		return provider.CompletionResponse{}, err
	}

	if httpErr := mapHTTPError(statusCode, body); httpErr != nil {
		return provider.CompletionResponse{}, httpErr
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("%w: %v", provider.ErrProtocol, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return provider.CompletionResponse{}, fmt.Errorf("%w: no assistant message in response", provider.ErrProtocol)
	}

	return fromResponse(&resp, body), nil
}

// doPost sends an authenticated POST request and returns the response
// body and status code. The body is limited to maxResponseSize bytes.
func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := c.config.BaseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("openai: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("openai: read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}
