// Package openai implements harvest.Completer for OpenAI-compatible chat
// completion APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/harvest"
)

// Defaults used when the corresponding options are unset.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 4 << 20

// Ensure Completer implements harvest.Completer at compile time.
var _ harvest.Completer = (*Completer)(nil)

// Completer sends prompts to a chat completion endpoint.
type Completer struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// Option configures a Completer.
type Option func(*Completer)

// WithBaseURL sets the API base URL, e.g. "https://api.openai.com/v1".
func WithBaseURL(u string) Option {
	return func(c *Completer) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *Completer) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Completer) {
		c.httpClient = client
	}
}

// NewCompleter creates a new Completer authenticating with apiKey.
func NewCompleter(apiKey string, opts ...Option) *Completer {
	c := &Completer{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a single prompt and returns the first choice's content.
func (c *Completer) Complete(ctx context.Context, req harvest.CompletionRequest) (string, error) {
	if req.Prompt == "" {
		return "", harvest.Errorf(harvest.EINVALID, "prompt required")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	body := chatRequest{Model: model, Temperature: 0.2}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read chat completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parse chat completion response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", harvest.Errorf(harvest.EINTERNAL, "model returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// apiError describes a non-200 response, preferring the provider's message.
func apiError(statusCode int, body []byte) error {
	msg := http.StatusText(statusCode)
	var errResp chatErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	return fmt.Errorf("chat completion returned %d: %s", statusCode, msg)
}
