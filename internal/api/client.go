// ABOUTME: HTTP client for the durable REST collaborator
// ABOUTME: Adds the bearer credential to every call and decodes JSON responses

package api

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

	"github.com/tidwall/gjson"

	"github.com/2389/tutorchat/internal/credential"
)

// ErrNoCredential is returned without contacting the service when no
// bearer credential is stored.
var ErrNoCredential = errors.New("no stored credential")

// TokenSource supplies the bearer credential for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 or 403 response.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
}

// Client communicates with the tutoring platform's REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

// New creates a client for baseURL. A zero timeout leaves the transport's
// own timeouts in charge. Pass nil logger for default.
func New(baseURL string, tokens TokenSource, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger.With("component", "api"),
	}
}

// do sends one request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if errors.Is(err, credential.ErrNotFound) {
		return ErrNoCredential
	}
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: parsing response: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts the service's error text from a JSON error body.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, field := range []string{"message", "error"} {
		if v := gjson.GetBytes(body, field); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
