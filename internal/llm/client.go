// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/atelier/internal/apperr"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client produces a completion for a message list. A single call is made per
// invocation; callers decide what to do on failure.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// HTTPError is returned when the provider answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llm: provider returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets callers match provider failures with apperr.ErrUpstream.
func (e *HTTPError) Unwrap() error { return apperr.ErrUpstream }

// Config configures an OpenAI client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAI implements Client against {BaseURL}/chat/completions.
type OpenAI struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOpenAI builds a client. httpClient may be nil.
func NewOpenAI(cfg Config, httpClient *http.Client) (*OpenAI, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("llm: base url required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("llm: model required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

// Model returns the configured model name.
func (c *OpenAI) Model() string { return c.model }

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete implements Client.
func (c *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(chatRequest{Model: c.model, Messages: messages}); err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w: %w", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llm: decode response: %w: %w", apperr.ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llm: %w: response has no choices", apperr.ErrUpstream)
	}
	return out.Choices[0].Message.Content, nil
}
