// Package ai is the client for the AI collaborator's message-style API:
// ranked operation suggestions, free-text completion and summarization.
// The collaborator's model internals are out of scope here; failures
// surface as transport errors for the caller to degrade on.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fabricpulse/dashboard/internal/metrics"
)

const (
	defaultRequestTimeout = 60 * time.Second
	maxErrorBodyBytes     = 1 << 20
)

// Suggestion is one ranked operation suggestion from the collaborator.
type Suggestion struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Completer is the surface the analytics engine needs from the AI
// collaborator. Implementations must be safe for concurrent use.
type Completer interface {
	SuggestOperations(ctx context.Context, contextText, query string) ([]Suggestion, error)
	Completion(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Summarize(ctx context.Context, text, length string) (string, error)
}

// Client implements Completer over the collaborator's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new AI collaborator client.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

type suggestRequest struct {
	Context string `json:"context"`
	Query   string `json:"query"`
}

type suggestResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// SuggestOperations asks the collaborator for ranked operation suggestions.
func (c *Client) SuggestOperations(ctx context.Context, contextText, query string) ([]Suggestion, error) {
	var resp suggestResponse
	if err := c.post(ctx, "/api/ai/suggest_ops", suggestRequest{Context: contextText, Query: query}, &resp); err != nil {
		metrics.AIRequestsTotal.WithLabelValues("suggest_ops", "err").Inc()
		return nil, err
	}
	metrics.AIRequestsTotal.WithLabelValues("suggest_ops", "ok").Inc()
	return resp.Suggestions, nil
}

type completionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

type completionResponse struct {
	Text string `json:"text"`
}

// Completion asks the collaborator for a free-text completion.
func (c *Client) Completion(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	var resp completionResponse
	req := completionRequest{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature}
	if err := c.post(ctx, "/api/ai/completion", req, &resp); err != nil {
		metrics.AIRequestsTotal.WithLabelValues("completion", "err").Inc()
		return "", err
	}
	metrics.AIRequestsTotal.WithLabelValues("completion", "ok").Inc()
	return resp.Text, nil
}

type summarizeRequest struct {
	Text   string `json:"text"`
	Length string `json:"length"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize asks the collaborator to summarize text. Length is one of
// "short", "medium" or "long".
func (c *Client) Summarize(ctx context.Context, text, length string) (string, error) {
	var resp summarizeResponse
	if err := c.post(ctx, "/api/ai/summarize", summarizeRequest{Text: text, Length: length}, &resp); err != nil {
		metrics.AIRequestsTotal.WithLabelValues("summarize", "err").Inc()
		return "", err
	}
	metrics.AIRequestsTotal.WithLabelValues("summarize", "ok").Inc()
	return resp.Summary, nil
}

func (c *Client) post(ctx context.Context, endpoint string, reqBody, out any) error {
	b, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("ai %s http %d: %s", endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
