// Package actionkit is a Go client for the action kit REST API.
package actionkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout applies to clients built without an http.Client.
// Bridging and paid requests can take a while, so it is generous.
const DefaultHTTPTimeout = 2 * time.Minute

// Client calls the action kit API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Network identifies the chain the server's wallet is bound to.
type Network struct {
	ProtocolFamily string `json:"protocol_family"`
	NetworkID      string `json:"network_id"`
	ChainID        string `json:"chain_id"`
}

// Action describes one invocable action.
type Action struct {
	Name        string          `json:"name"`
	Provider    string          `json:"provider"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// ActionList is the response of ListActions.
type ActionList struct {
	Network Network  `json:"network"`
	Actions []Action `json:"actions"`
}

// Invocation is one audited call.
type Invocation struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Provider  string         `json:"provider,omitempty"`
	Network   string         `json:"network"`
	Args      map[string]any `json:"args,omitempty"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Outcome   string         `json:"outcome"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// FieldError names one rejected argument.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non 2xx answer.
type APIError struct {
	StatusCode int
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Fields     []FieldError `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("actionkit api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("actionkit api error (%d): %s", e.StatusCode, e.Message)
}

// NotFound reports whether err is an unknown or inactive action.
func NotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// NewClient builds a client for rawURL. A nil httpClient gets
// DefaultHTTPTimeout.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q needs a scheme and host", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ListActions returns the actions active on the server's network.
func (c *Client) ListActions(ctx context.Context) (ActionList, error) {
	var out ActionList
	err := c.do(ctx, http.MethodGet, "/api/v1/actions", nil, nil, &out)
	return out, err
}

// Invoke runs name with args and returns the result string. Failures of
// the action itself are part of the result, not an error.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	var out struct {
		Result string `json:"result"`
	}
	endpoint := "/api/v1/actions/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodPost, endpoint, nil, map[string]any{"args": args}, &out); err != nil {
		return "", err
	}
	return out.Result, nil
}

// Invocations returns up to limit recent invocations, newest first.
func (c *Client) Invocations(ctx context.Context, limit int) ([]Invocation, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Invocations []Invocation `json:"invocations"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/invocations", query, nil, &out)
	return out.Invocations, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	u := c.baseURL.ResolveReference(&url.URL{Path: path.Join(c.baseURL.Path, endpoint), RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &struct {
			Error *APIError `json:"error"`
		}{Error: apiErr})
	}
	if apiErr.Message == "" {
		apiErr.Message = string(bytes.TrimSpace(data))
	}
	return apiErr
}
