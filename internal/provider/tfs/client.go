package tfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/exova-dev/bmx-tfs/internal/model"
)

// Client is a thin HTTP client for the TFS REST API. It handles Basic
// authentication (PAT or domain credentials), JSON marshaling, and
// automatic retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	username   string
	secret     string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a TFS HTTP client from a connection configuration
// and its secret. In system mode the secret is a personal access token
// sent as the Basic password with an empty username (the TFS PAT
// convention). In explicit mode the username is prefixed with the
// domain when one is configured.
func NewClient(cfg model.ConnectionConfig, secret string) *Client {
	username := ""
	if cfg.CredentialMode == model.CredentialModeExplicit {
		username = cfg.Username
		if cfg.Domain != "" {
			username = cfg.Domain + `\` + cfg.Username
		}
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: username,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
}

// BaseURL returns the server root URL the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases the client's idle transport connections. A client is
// scoped to a single operation and must not be reused after Close.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, path, "", nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, "application/json", body, result)
}

// Patch performs an HTTP PATCH request with a JSON-Patch body, as the
// work item update endpoints require.
func (c *Client) Patch(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(
		ctx, http.MethodPatch, path, "application/json-patch+json",
		body, result,
	)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	contentType string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Rebuild the body reader on retries since it was consumed.
		if attempt > 0 && body != nil {
			data, _ := json.Marshal(body)
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(
			ctx, method, url, bodyReader,
		)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.SetBasicAuth(c.username, c.secret)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf(
				"rate limited (429) on %s %s", method, path,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf(
				"authentication failed (401): check your credentials "+
					"for %s", c.baseURL,
			)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var tfsErr ErrorResponse
			if json.Unmarshal(respBody, &tfsErr) == nil && tfsErr.Message != "" {
				return fmt.Errorf(
					"tfs API error (%d) on %s %s: %s",
					resp.StatusCode, method, path, tfsErr.Message,
				)
			}
			return fmt.Errorf(
				"unexpected status %d on %s %s: %s",
				resp.StatusCode, method, path, string(respBody),
			)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w",
				method, path, err,
			)
		}

		return nil
	}

	return fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries, lastErr,
	)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

// Session is a scoped, authenticated handle to the TFS server. It is
// exclusively owned by the operation that created it and must be closed
// on every exit path; sessions are never cached or shared across calls.
type Session struct {
	client *Client

	// AuthenticatedUser is the display name the server reported for
	// the session's identity.
	AuthenticatedUser string
}

// Connect authenticates against the server and returns a Session. A
// single authentication failure is surfaced as the connection error;
// there is no retry at connect time.
func Connect(
	ctx context.Context,
	cfg model.ConnectionConfig,
	secret string,
) (*Session, error) {
	client := NewClient(cfg, secret)

	var data ConnectionData
	if err := client.Get(ctx, "/_apis/connectionData", &data); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to %s: %w", cfg.BaseURL, err)
	}

	return &Session{
		client:            client,
		AuthenticatedUser: data.AuthenticatedUser.ProviderDisplayName,
	}, nil
}

// Close releases the session's transport resources.
func (s *Session) Close() {
	s.client.Close()
}
