// Package transport talks to the remote memory chat service over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"memchat/internal/conversation"
)

const (
	// DefaultTimeout bounds every round trip.
	DefaultTimeout = 30 * time.Second

	chatPath   = "/api/chat"
	healthPath = "/health"

	maxBodyBytes = 4 << 20
)

type chatRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id"`
}

type chatResponse struct {
	Response          *string `json:"response"`
	SessionID         *string `json:"session_id"`
	ConversationCount *int    `json:"conversation_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc for requests, keeping its Transport and
// Jar. The copy's Timeout is replaced by the client's timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			clone := *hc
			c.http = &clone
		}
	}
}

// WithTimeout sets the per-request budget. Values below one second are raised
// to one second.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = max(time.Second, d)
	}
}

// Client implements conversation.Transport for POST {base}/api/chat.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

var _ conversation.Transport = (*Client)(nil)

// New returns a Client for the service at baseURL, e.g. http://127.0.0.1:5000.
func New(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("transport: empty base URL")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("transport: base URL %q must start with http:// or https://", baseURL)
	}
	c := &Client{
		base:    base,
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Timeout = c.timeout
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.base
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Send performs one chat exchange. It never retries.
func (c *Client) Send(ctx context.Context, message string, sessionToken *string) (conversation.Reply, error) {
	buf, err := json.Marshal(chatRequest{Message: message, SessionID: sessionToken})
	if err != nil {
		return conversation.Reply{}, &conversation.TransportError{Kind: conversation.FailureProtocol, Err: err}
	}
	payload, err := c.do(ctx, http.MethodPost, chatPath, buf)
	if err != nil {
		return conversation.Reply{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return conversation.Reply{}, &conversation.TransportError{
			Kind: conversation.FailureProtocol,
			Err:  fmt.Errorf("chat returned non-json payload: %w", err),
		}
	}
	if parsed.Response == nil {
		return conversation.Reply{}, &conversation.TransportError{
			Kind: conversation.FailureProtocol,
			Err:  errors.New("chat response missing \"response\" field"),
		}
	}
	reply := conversation.Reply{
		Text:          *parsed.Response,
		ExchangeCount: parsed.ConversationCount,
	}
	if parsed.SessionID != nil && strings.TrimSpace(*parsed.SessionID) != "" {
		reply.SessionToken = parsed.SessionID
	}
	return reply, nil
}

// Health probes GET {base}/health.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, healthPath, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, &conversation.TransportError{Kind: conversation.FailureProtocol, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyDoError(ctx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyDoError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &conversation.TransportError{
			Kind:       conversation.FailureStatus,
			StatusCode: resp.StatusCode,
			Err:        statusDetail(payload),
		}
	}
	return payload, nil
}

func classifyDoError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &conversation.TransportError{Kind: conversation.FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &conversation.TransportError{Kind: conversation.FailureTimeout, Err: err}
	}
	return &conversation.TransportError{Kind: conversation.FailureNetwork, Err: err}
}

func statusDetail(payload []byte) error {
	var parsed errorResponse
	if err := json.Unmarshal(payload, &parsed); err == nil && strings.TrimSpace(parsed.Error) != "" {
		return errors.New(parsed.Error)
	}
	text := strings.Join(strings.Fields(string(payload)), " ")
	if text == "" {
		return nil
	}
	if len(text) > 240 {
		text = text[:237] + "..."
	}
	return errors.New(text)
}
