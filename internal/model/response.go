package model

// Error codes embedded in degraded responses.
const (
	ErrCodeFetchFailed      = "fetch_failed"
	ErrCodeModelError       = "model_error"
	ErrCodeModelUnavailable = "model_unavailable"
	ErrCodeInternal         = "internal_error"
)

// Source is a cited page.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ErrorInfo carries diagnostic detail for operators. It never replaces the
// human-readable answer.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the payload returned to callers and stored in the answer cache.
type Response struct {
	Answer  string     `json:"answer"`
	Sources []Source   `json:"sources"`
	Model   string     `json:"model,omitempty"`
	Preset  Preset     `json:"preset,omitempty"`
	Cached  bool       `json:"cached,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// Degraded reports whether the response substitutes a fallback message for
// the intended answer.
func (r *Response) Degraded() bool {
	return r.Error != nil
}

// SourcesFromURLs builds title-less sources from a URL list. The result is
// never nil so it encodes as an empty JSON array.
func SourcesFromURLs(urls []string) []Source {
	out := make([]Source, 0, len(urls))
	for _, u := range urls {
		out = append(out, Source{URL: u})
	}
	return out
}
