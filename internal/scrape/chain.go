// Package scrape fetches candidate pages and reduces them to bounded plain
// text for prompting.
package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/siteqa/internal/model"
)

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	PathMatcher *PathMatcher
	scrapers    []Scraper
}

// NewChain creates a Chain with the given path matcher and scrapers.
// Scrapers are tried in order; the first successful result is returned.
func NewChain(matcher *PathMatcher, scrapers ...Scraper) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{
		PathMatcher: matcher,
		scrapers:    scrapers,
	}
}

// Scrape tries each scraper in order for a single URL.
// Returns the first successful result, or an error if all fail.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if c.PathMatcher.IsExcluded(targetURL) {
		return nil, eris.Errorf("scrape: url excluded by path matcher: %s", targetURL)
	}

	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		result, err := s.Scrape(ctx, targetURL)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
}

// attempter is implemented by scrapers that may fetch more than once per
// Scrape call.
type attempter interface {
	Attempts() int
}

// PageBudget returns a page deadline long enough for every scraper in the
// chain to make all of its fetches, each bounded by fetchTimeout.
func (c *Chain) PageBudget(fetchTimeout time.Duration) time.Duration {
	if fetchTimeout <= 0 {
		return 0
	}
	attempts := 0
	for _, s := range c.scrapers {
		if a, ok := s.(attempter); ok {
			attempts += max(a.Attempts(), 1)
			continue
		}
		attempts++
	}
	return time.Duration(max(attempts, 1)) * fetchTimeout
}

// FetchResult is the outcome of fetching one requested URL. Exactly one of
// Page and Err is set.
type FetchResult struct {
	URL  string
	Page *model.RetrievedPage
	Err  error
}

// OK reports whether the fetch produced a page.
func (r FetchResult) OK() bool { return r.Page != nil }

// FetchAll scrapes urls concurrently with at most maxConcurrent in flight.
// Each URL gets its own pageTimeout (zero means no extra bound), and one
// URL failing or timing out never cancels the others. The timeout covers
// the whole walk over variants and scrapers; see PageBudget. Results keep the
// order of urls.
func (c *Chain) FetchAll(ctx context.Context, urls []string, maxConcurrent int, pageTimeout time.Duration) []FetchResult {
	results := make([]FetchResult, len(urls))
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrent)

	for i, u := range urls {
		g.Go(func() error {
			pageCtx := ctx
			if pageTimeout > 0 {
				var cancel context.CancelFunc
				pageCtx, cancel = context.WithTimeout(ctx, pageTimeout)
				defer cancel()
			}

			res, err := c.Scrape(pageCtx, u)
			if err != nil {
				zap.L().Debug("scrape: page failed", zap.String("url", u), zap.Error(err))
				results[i] = FetchResult{URL: u, Err: err}
				return nil
			}
			page := res.Page
			results[i] = FetchResult{URL: u, Page: &page}
			return nil
		})
	}

	_ = g.Wait()

	return results
}

// Pages returns the successful pages from results, in order.
func Pages(results []FetchResult) []model.RetrievedPage {
	var pages []model.RetrievedPage
	for _, r := range results {
		if r.OK() {
			pages = append(pages, *r.Page)
		}
	}
	return pages
}
