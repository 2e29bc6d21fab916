// Package fetcher performs rate-limited HTTP GETs against target sites and
// returns decoded response bodies.
package fetcher

import (
	"context"
	"net/http"
)

// Response is a fully read, decompressed HTTP response.
type Response struct {
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher defines the interface for retrieving remote documents.
type Fetcher interface {
	// Get fetches the URL and returns the decoded response. Non-2xx statuses
	// are returned as responses, not errors.
	Get(ctx context.Context, url string) (*Response, error)
}
