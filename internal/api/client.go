package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/starford/atelier/internal/assistant"
)

// Client calls a running Atelier server.
type Client struct {
	baseURL    string
	token      string
	owner      string
	httpClient *http.Client
}

// NewClient creates a client for the API mounted at baseURL (for example
// "http://localhost:8080/api"). token and owner may be empty.
func NewClient(baseURL, token, owner string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		owner:      owner,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Chat sends one chat turn.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (assistant.ChatResponse, error) {
	var resp assistant.ChatResponse
	err := c.post(ctx, "/chat", req, &resp)
	return resp, err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("api: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.owner != "" {
		req.Header.Set(OwnerHeader, c.owner)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e errResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return fmt.Errorf("api: %s: status %d", path, resp.StatusCode)
		}
		return fmt.Errorf("api: %s: status %d: %s", path, resp.StatusCode, e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}
