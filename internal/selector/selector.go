// Package selector chooses which pages of a site to read for a question.
package selector

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siteqa/internal/model"
)

// Strategy names a URL selection policy.
type Strategy string

const (
	// StrategyPreset uses only the preset path table.
	StrategyPreset Strategy = "preset"
	// StrategySitemap uses sitemap discovery plus keyword scoring.
	StrategySitemap Strategy = "sitemap"
	// StrategyHybrid puts preset paths first, then scored sitemap candidates.
	StrategyHybrid Strategy = "hybrid"
)

// DefaultMaxURLs caps the URLs returned per question.
const DefaultMaxURLs = 5

// fallbackPaths are used when every strategy comes up empty.
var fallbackPaths = []string{"/", "/about/", "/contact/", "/services/"}

// ParseStrategy parses a strategy name; empty means hybrid.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyHybrid:
		return StrategyHybrid, nil
	case StrategyPreset:
		return StrategyPreset, nil
	case StrategySitemap:
		return StrategySitemap, nil
	}
	return "", eris.Errorf("selector: unknown strategy %q", s)
}

// Selector produces candidate page URLs for a question.
type Selector struct {
	discoverer *Discoverer
	presets    PresetPaths
	strategy   Strategy
	maxURLs    int
}

// Option configures a Selector.
type Option func(*Selector)

// WithPresetPaths replaces the preset path table.
func WithPresetPaths(p PresetPaths) Option {
	return func(s *Selector) {
		if len(p) > 0 {
			s.presets = p
		}
	}
}

// WithStrategy sets the selection strategy.
func WithStrategy(st Strategy) Option {
	return func(s *Selector) {
		if st != "" {
			s.strategy = st
		}
	}
}

// WithMaxURLs caps the number of URLs returned.
func WithMaxURLs(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxURLs = n
		}
	}
}

// New creates a Selector. The discoverer may be nil, in which case sitemap
// strategies fall back to preset and fallback paths.
func New(d *Discoverer, opts ...Option) *Selector {
	s := &Selector{
		discoverer: d,
		presets:    DefaultPresetPaths(),
		strategy:   StrategyHybrid,
		maxURLs:    DefaultMaxURLs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy returns the configured strategy.
func (s *Selector) Strategy() Strategy { return s.strategy }

// Select returns an ordered, de-duplicated, non-empty list of absolute URLs
// under base (already normalized) for the question and resolved preset.
func (s *Selector) Select(ctx context.Context, question, base string, preset model.Preset) []string {
	var urls []string

	if s.strategy == StrategyPreset || s.strategy == StrategyHybrid {
		for _, p := range s.presets[preset] {
			urls = append(urls, joinPath(base, p))
		}
	}

	if (s.strategy == StrategySitemap || s.strategy == StrategyHybrid) && s.discoverer != nil {
		candidates, err := s.discoverer.Discover(ctx, base)
		if err != nil {
			zap.L().Debug("selector: sitemap discovery failed", zap.String("base", base), zap.Error(err))
		}
		urls = append(urls, Rank(candidates, question, s.maxURLs+len(urls))...)
	}

	urls = dedupe(urls, s.maxURLs)
	if len(urls) == 0 {
		for _, p := range fallbackPaths {
			urls = append(urls, joinPath(base, p))
		}
		urls = dedupe(urls, s.maxURLs)
	}
	return urls
}

// dedupe drops repeated URLs, comparing them with fragments removed and the
// trailing slash ignored, and truncates to limit.
func dedupe(urls []string, limit int) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		key := strings.TrimSuffix(stripFragment(u), "/")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func stripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// NormalizeBaseURL adds a missing scheme (https), lower-cases the host,
// drops any query or fragment and trims trailing slashes.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("selector: empty base url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrap(err, "selector: parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.Errorf("selector: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", eris.Errorf("selector: base url %q has no host", raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String(), nil
}
