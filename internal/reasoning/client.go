/*
Package reasoning implements the gateway to the external free-text reasoning
service over an OpenAI-compatible chat completions API.

Each Complete call performs exactly one service call. The only retry is a
single transport-level re-send on idempotent network errors (the request
never reached the service); HTTP-level failures are classified and returned
as-is.
*/
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/winnow/internal/logging"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/ports"
)

const defaultTimeout = 60 * time.Second

// Client calls the reasoning service. It implements ports.Reasoner.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger configures a logger for request telemetry.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient validates the configuration once, up front. Missing credentials
// or endpoint are a fatal domain.ErrConfiguration, not a per-request error.
func NewClient(baseURL, apiKey, model string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: missing base URL", domain.ErrConfiguration)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key", domain.ErrConfiguration)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: missing model name", domain.ErrConfiguration)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete performs one reasoning call and returns the raw response text.
func (c *Client) Complete(ctx context.Context, systemInstruction, userPrompt string, params ports.SamplingParams) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: userPrompt},
		},
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	started := time.Now()
	resp, err := c.send(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	c.logger.Debug("reasoning call finished",
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if err := classifyStatus(resp.StatusCode); err != nil {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("reasoning service error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("reasoning service returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// send issues the HTTP request, retrying once on network errors where the
// request provably never reached the service.
func (c *Client) send(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryableTransportError(err) {
			break
		}
		c.logger.Warn("reasoning transport error, retrying once", "err", err)
	}
	return nil, fmt.Errorf("reasoning request failed: %w", lastErr)
}

func retryableTransportError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Dial failures never reached the service, so a re-send is safe.
		return opErr.Op == "dial"
	}
	return false
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrUnauthorized
	case status >= 200 && status < 300:
		return nil
	default:
		return fmt.Errorf("reasoning service returned status %d", status)
	}
}
