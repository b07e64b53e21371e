// Package memoryapi is the HTTP client for the remote memory and retrieval API.
package memoryapi

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
)

// DefaultBaseURL is the hosted memory API.
const DefaultBaseURL = "https://api.reflex.dev"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 * 1024

// ErrNotConfigured is returned when no access token is available.
var ErrNotConfigured = errors.New("memory api credentials not configured")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("memory api returned status %d: %s", e.StatusCode, e.Message)
}

// ClientConfig holds configuration for the memory API client.
type ClientConfig struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// AccessToken is sent as a bearer token. An empty token leaves the
	// client unconfigured.
	AccessToken string

	// UserID is attached to requests that carry a user.
	UserID string

	// HTTPClient overrides the default client. Request deadlines come from
	// the caller's context.
	HTTPClient *http.Client
}

// Client talks to the memory API.
type Client struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
}

// NewClient creates a client. It never fails; an unconfigured client returns
// ErrNotConfigured from every call.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.AccessToken,
		userID:     cfg.UserID,
		httpClient: httpClient,
	}
}

// Configured reports whether the client has an access token.
func (c *Client) Configured() bool {
	return c.token != ""
}

// UserID returns the user the client acts for.
func (c *Client) UserID() string {
	return c.userID
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Capture records an exchange.
func (c *Client) Capture(ctx context.Context, req CaptureRequest) (*CaptureResponse, error) {
	if req.UserID == "" {
		req.UserID = c.userID
	}
	if req.PatternsRetrieved == nil {
		req.PatternsRetrieved = []string{}
	}
	if req.PatternsApplied == nil {
		req.PatternsApplied = []string{}
	}

	out := &CaptureResponse{}
	if err := c.post(ctx, CapturePath, req, out); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return out, nil
}

// Retrieve fetches patterns for a query.
func (c *Client) Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResponse, error) {
	if req.UserID == "" {
		req.UserID = c.userID
	}

	out := &RetrieveResponse{}
	if err := c.post(ctx, RetrievePath, req, out); err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return out, nil
}

// ForgePattern persists a new pattern.
func (c *Client) ForgePattern(ctx context.Context, req ForgeRequest) (*ForgeResponse, error) {
	if req.UserID == "" {
		req.UserID = c.userID
	}

	out := &ForgeResponse{}
	if err := c.post(ctx, PatternsPath, req, out); err != nil {
		return nil, fmt.Errorf("forge pattern: %w", err)
	}
	return out, nil
}

// LogReflex sends the per-turn analytics summary.
func (c *Client) LogReflex(ctx context.Context, event ReflexLogEvent) error {
	if event.UserID == "" {
		event.UserID = c.userID
	}

	if err := c.post(ctx, ReflexLogPath, event, nil); err != nil {
		return fmt.Errorf("reflex log: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(raw))
	var er ErrorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
