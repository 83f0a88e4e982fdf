// Package dashboard is a terminal client for the link API: an HTTP client,
// an in-memory board of rows and a poller that keeps click counters fresh.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Link is a link as returned by the API.
type Link struct {
	Code        string     `json:"code"`
	URL         string     `json:"url"`
	Clicks      int64      `json:"clicks"`
	CreatedAt   time.Time  `json:"created_at"`
	LastClicked *time.Time `json:"last_clicked"`
	ShortURL    string     `json:"short_url"`
}

// Counter is one element of the counters view.
type Counter struct {
	Code        string     `json:"code"`
	Clicks      int64      `json:"clicks"`
	LastClicked *time.Time `json:"last_clicked"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to a tinylink server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL. A nil httpClient
// gets one with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// List returns every link, newest first.
func (c *Client) List(ctx context.Context) ([]Link, error) {
	var out []Link
	if err := c.do(ctx, http.MethodGet, "/api/links", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Counters returns the click counters of every link, newest first.
func (c *Client) Counters(ctx context.Context) ([]Counter, error) {
	var out []Counter
	if err := c.do(ctx, http.MethodGet, "/api/links?view=counters", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one link.
func (c *Client) Get(ctx context.Context, code string) (Link, error) {
	var out Link
	err := c.do(ctx, http.MethodGet, "/api/links/"+url.PathEscape(code), nil, &out)
	return out, err
}

// Create shortens target. An empty code lets the server pick one.
func (c *Client) Create(ctx context.Context, target, code string) (Link, error) {
	body := struct {
		URL  string `json:"url"`
		Code string `json:"code,omitempty"`
	}{URL: target, Code: code}

	var out Link
	err := c.do(ctx, http.MethodPost, "/api/links", body, &out)
	return out, err
}

// Delete removes a link.
func (c *Client) Delete(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodDelete, "/api/links/"+url.PathEscape(code), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
