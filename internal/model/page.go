package model

// RetrievedPage is a page fetched and stripped for a single request. It is
// discarded once the prompt has been built.
type RetrievedPage struct {
	URL        string `json:"url"` // final URL after fallback variants and redirects
	Title      string `json:"title"`
	Text       string `json:"text"`
	StatusCode int    `json:"status_code"`
	Source     string `json:"source"` // scraper that produced the page, e.g. "local_http", "jina"
}

// Citation converts the page into a response source entry.
func (p RetrievedPage) Citation() Source {
	return Source{URL: p.URL, Title: p.Title}
}
