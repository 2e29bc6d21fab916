package scrape

import (
	"context"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siteqa/internal/fetcher"
	"github.com/sells-group/siteqa/internal/model"
)

// Defaults for LocalScraper.
const (
	DefaultMaxChars = 4000
	DefaultMinChars = 50
)

// ErrThinContent is returned when a page strips down to almost nothing.
var ErrThinContent = eris.New("scrape: page text too short")

// LocalScraper fetches HTML directly, detects blocks and converts the body
// to plain text. It walks the URL variants of each target until one yields
// usable text.
type LocalScraper struct {
	fetcher  fetcher.Fetcher
	maxChars int
	minChars int
}

// LocalOption configures a LocalScraper.
type LocalOption func(*LocalScraper)

// WithMaxChars caps the stripped text per page.
func WithMaxChars(n int) LocalOption {
	return func(l *LocalScraper) {
		if n > 0 {
			l.maxChars = n
		}
	}
}

// WithMinChars sets the stripped-text length below which a page counts as a
// failure.
func WithMinChars(n int) LocalOption {
	return func(l *LocalScraper) {
		if n > 0 {
			l.minChars = n
		}
	}
}

// NewLocalScraper creates a LocalScraper backed by f.
func NewLocalScraper(f fetcher.Fetcher, opts ...LocalOption) *LocalScraper {
	l := &LocalScraper{
		fetcher:  f,
		maxChars: DefaultMaxChars,
		minChars: DefaultMinChars,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Attempts is the most fetches one Scrape call makes.
func (l *LocalScraper) Attempts() int { return MaxURLVariants }

// Scrape tries each URL variant in order and returns the first page with
// enough text.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	var lastErr error
	for _, variant := range URLVariants(targetURL) {
		page, err := l.scrapeOne(ctx, variant)
		if err == nil {
			return &Result{Page: *page, Source: l.Name()}, nil
		}
		lastErr = err
		zap.L().Debug("local_http: variant failed",
			zap.String("url", variant),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, eris.Wrapf(lastErr, "local_http: all variants failed for %s", targetURL)
}

func (l *LocalScraper) scrapeOne(ctx context.Context, targetURL string) (*model.RetrievedPage, error) {
	resp, err := l.fetcher.Get(ctx, targetURL)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}

	if blocked, blockType := DetectBlock(resp.StatusCode, resp.Header, resp.Body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}

	if !resp.OK() {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	markup := string(resp.Body)
	text := StripHTML(markup)
	if utf8.RuneCountInString(text) < l.minChars {
		return nil, ErrThinContent
	}

	return &model.RetrievedPage{
		URL:        resp.URL,
		Title:      ExtractTitle(markup),
		Text:       Truncate(text, l.maxChars),
		StatusCode: resp.StatusCode,
		Source:     l.Name(),
	}, nil
}
