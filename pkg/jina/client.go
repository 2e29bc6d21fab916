// Package jina is a client for the Jina Reader API, used as the last-resort
// scraper when a site blocks direct fetches.
package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the public Reader endpoint.
const DefaultBaseURL = "https://r.jina.ai"

// DefaultRemoveSelector drops page chrome before Reader extracts text.
const DefaultRemoveSelector = "nav, header, footer, aside, form"

const (
	maxBodyBytes  = 4 << 20
	maxErrorBytes = 512
)

// Client defines the Jina Reader operations.
type Client interface {
	// Read fetches targetURL through Reader and returns its text content.
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
}

// ReadResponse is the parsed Reader response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the extracted page.
type ReadData struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Content string    `json:"content"`
	Usage   ReadUsage `json:"usage"`
}

// ReadUsage tracks token consumption.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// APIError is returned for non-200 responses. Body is truncated.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jina: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Reader endpoint. Empty keeps the default.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithReturnFormat selects the content format ("text" or "markdown").
func WithReturnFormat(format string) Option {
	return func(c *httpClient) {
		c.format = format
	}
}

// WithRemoveSelector sets the CSS selector Reader strips before extraction.
// Empty disables stripping.
func WithRemoveSelector(selector string) Option {
	return func(c *httpClient) {
		c.removeSelector = selector
	}
}

// WithPageTimeout asks Reader to give up loading the target after d.
func WithPageTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.pageTimeout = d
	}
}

type httpClient struct {
	apiKey         string
	baseURL        string
	format         string
	removeSelector string
	pageTimeout    time.Duration
	http           *http.Client
}

// NewClient creates a Reader client. apiKey may be empty for the
// unauthenticated tier.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:         apiKey,
		baseURL:        DefaultBaseURL,
		format:         "text",
		removeSelector: DefaultRemoveSelector,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read makes a single attempt. Callers guard it with a circuit breaker
// instead of retrying.
func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create request")
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Return-Format", c.format)
	req.Header.Set("X-Retain-Images", "none")
	if c.removeSelector != "" {
		req.Header.Set("X-Remove-Selector", c.removeSelector)
	}
	if c.pageTimeout > 0 {
		req.Header.Set("X-Timeout", strconv.Itoa(int(c.pageTimeout.Seconds())))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "jina: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBytes {
			body = body[:maxErrorBytes]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result ReadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}
	return &result, nil
}
