package scrape

import (
	"context"

	"github.com/sells-group/siteqa/internal/model"
)

// Result holds a scraped page with the scraper that produced it.
type Result struct {
	Page   model.RetrievedPage
	Source string // e.g. "local_http", "jina"
}

// Scraper fetches a single URL and returns its stripped text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
