package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"studio/internal/logger"
)

const (
	// DefaultModel is the Claude model used for generation.
	DefaultModel = "claude-sonnet-4-20250514"
	// DefaultMaxTokens caps the completion length.
	DefaultMaxTokens = 4096
	// DefaultTimeout bounds one completion call.
	DefaultTimeout = 120 * time.Second
)

// ErrMissingAPIKey is returned by NewClient when no API key is configured.
var ErrMissingAPIKey = errors.New("anthropic API key is required. Set ANTHROPIC_API_KEY")

// ErrTimeout is returned when a completion does not finish within the deadline.
var ErrTimeout = errors.New("completion timed out")

// TimeoutError carries the deadline a completion exceeded. It matches ErrTimeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("completion timed out after %s", e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// APIError carries a non-2xx answer from the model API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic API returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	APIKey     string
	Model      string
	MaxTokens  int64
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Completion is the model's answer to one prompt.
type Completion struct {
	Text       string // Text of the first content block, empty when absent
	Raw        string // Raw response body, kept for diagnostics
	Model      string
	StopReason string
}

// Client sends single-turn prompts to Claude. Calls are never retried.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// NewClient creates a client from opts, filling unset values with defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	c := &Client{
		client:    anthropic.NewClient(reqOpts...),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c, nil
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single user message.
func (c *Client) Complete(ctx context.Context, prompt string) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Warn("Completion timed out", "model", c.model, "timeout", c.timeout.String())
			return nil, &TimeoutError{After: c.timeout}
		}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.StatusCode, Body: apiErr.RawJSON()}
		}
		return nil, fmt.Errorf("failed to call anthropic API: %w", err)
	}

	out := &Completion{
		Raw:        msg.RawJSON(),
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
	}
	if len(msg.Content) > 0 && msg.Content[0].Type == "text" {
		out.Text = msg.Content[0].Text
	}

	logger.Debug("Completion finished",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"stop_reason", out.StopReason,
	)
	return out, nil
}
