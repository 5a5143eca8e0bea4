package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/acehq/aceauth/pkg/idx"
	"github.com/acehq/aceauth/pkg/tokenstore"
)

// Transport performs an API request and decodes the payload into out, or
// returns an error. The controller consumes it as a black box so tests can
// script responses and ordering.
type Transport interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// envelope is the generic {success, data, error} wrapper the backend puts
// around every response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client is the default Transport: it attaches the bearer token and session
// cookies, unwraps the response envelope, and turns failures into errors the
// classifier understands.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     *tokenstore.Store
	Logger     *slog.Logger
}

// NewClient creates a transport against baseURL. The cookie jar carries the
// backend's session cookies alongside the bearer token.
func NewClient(baseURL string, tokens *tokenstore.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	jar, _ := cookiejar.New(nil)

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Jar:     jar,
		},
		Tokens: tokens,
		Logger: logger,
	}
}

// Do implements Transport.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	reqID := idx.New()
	logger := c.Logger.With(
		slog.String("req_id", reqID.String()),
		slog.String("method", method),
		slog.String("path", path),
	)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Request-Id", reqID.String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Tokens != nil {
		if token := c.Tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logger.Debug("request failed before reaching the server", slog.String("error", err.Error()))
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("network error: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
		logger.Debug("request rejected", slog.Int("status", resp.StatusCode))
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("network error: malformed response envelope")
	}
	if !env.Success {
		if env.Error != "" {
			return fmt.Errorf("%s", env.Error)
		}
		return fmt.Errorf("request failed")
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	return nil
}

// errorMessage extracts the server's error string from a failure body, which
// is usually the same envelope with success=false.
func errorMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != "" {
		return env.Error
	}

	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
