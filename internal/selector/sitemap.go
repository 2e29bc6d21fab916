package selector

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/sells-group/siteqa/internal/fetcher"
	"github.com/sells-group/siteqa/internal/scrape"
)

// Sitemap discovery limits.
const (
	DefaultMaxChildSitemaps = 10
	DefaultMaxCandidates    = 800
)

// ErrNoSitemap is returned when no sitemap yields any usable URL.
var ErrNoSitemap = eris.New("selector: no reachable sitemap")

// sitemapEntry matches both <sitemap> (index) and <url> (urlset) elements.
type sitemapEntry struct {
	XMLName xml.Name
	Loc     string `xml:"loc"`
}

// Discoverer finds candidate page URLs from a site's sitemaps.
type Discoverer struct {
	fetcher       fetcher.Fetcher
	matcher       *scrape.PathMatcher
	maxChildren   int
	maxCandidates int
}

// NewDiscoverer creates a Discoverer. Non-positive limits use the defaults.
func NewDiscoverer(f fetcher.Fetcher, matcher *scrape.PathMatcher, maxChildren, maxCandidates int) *Discoverer {
	if matcher == nil {
		matcher = scrape.NewPathMatcher(nil)
	}
	if maxChildren <= 0 {
		maxChildren = DefaultMaxChildSitemaps
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Discoverer{
		fetcher:       f,
		matcher:       matcher,
		maxChildren:   maxChildren,
		maxCandidates: maxCandidates,
	}
}

// Discover returns same-site HTML page URLs listed in the sitemaps of base,
// a normalized base URL. Sitemaps declared in robots.txt are read first;
// /sitemap.xml and /sitemap_index.xml are tried only when those yield
// nothing. Sitemap indexes are followed up to the child limit.
func (d *Discoverer) Discover(ctx context.Context, base string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		return nil, eris.Errorf("selector: invalid base url %q", base)
	}

	c := &collector{
		host:  siteHost(baseURL.Hostname()),
		max:   d.maxCandidates,
		seen:  make(map[string]bool),
		match: d.matcher,
	}

	seeds := [][]string{
		d.robotsSitemaps(ctx, base),
		{base + "/sitemap.xml", base + "/sitemap_index.xml"},
	}
	visited := make(map[string]bool)
	children := 0

	for _, group := range seeds {
		queue := append([]string(nil), group...)
		for len(queue) > 0 && !c.full() {
			sm := queue[0]
			queue = queue[1:]
			if visited[sm] {
				continue
			}
			visited[sm] = true

			locs, childMaps, err := d.readSitemap(ctx, sm)
			if err != nil {
				zap.L().Debug("selector: sitemap unavailable", zap.String("sitemap", sm), zap.Error(err))
				continue
			}
			for _, loc := range locs {
				c.add(loc)
			}
			for _, child := range childMaps {
				if children >= d.maxChildren {
					break
				}
				if !visited[child] {
					children++
					queue = append(queue, child)
				}
			}
		}
		if len(c.urls) > 0 {
			break
		}
	}

	if len(c.urls) == 0 {
		return nil, ErrNoSitemap
	}
	zap.L().Debug("selector: sitemap candidates",
		zap.String("base", base),
		zap.Int("count", len(c.urls)),
		zap.Int("child_sitemaps", children),
	)
	return c.urls, nil
}

// robotsSitemaps returns the Sitemap: directives of base/robots.txt.
func (d *Discoverer) robotsSitemaps(ctx context.Context, base string) []string {
	resp, err := d.fetcher.Get(ctx, base+"/robots.txt")
	if err != nil {
		return nil
	}
	if !resp.OK() {
		return nil
	}
	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		zap.L().Debug("selector: parse robots.txt", zap.String("base", base), zap.Error(err))
		return nil
	}
	return robots.Sitemaps
}

// readSitemap fetches one sitemap and splits its entries into page URLs and
// child sitemap URLs.
func (d *Discoverer) readSitemap(ctx context.Context, sitemapURL string) (locs, children []string, err error) {
	resp, err := d.fetcher.Get(ctx, sitemapURL)
	if err != nil {
		return nil, nil, eris.Wrap(err, "selector: fetch sitemap")
	}
	if !resp.OK() {
		return nil, nil, eris.Errorf("selector: sitemap status %d", resp.StatusCode)
	}
	return parseSitemap(ctx, resp.Body)
}

func parseSitemap(ctx context.Context, body []byte) (locs, children []string, err error) {
	entries, errCh := fetcher.StreamXML[sitemapEntry](ctx, bytes.NewReader(body), "sitemap", "url")
	for e := range entries {
		loc := strings.TrimSpace(e.Loc)
		if loc == "" {
			continue
		}
		if e.XMLName.Local == "sitemap" {
			children = append(children, loc)
		} else {
			locs = append(locs, loc)
		}
	}
	for e := range errCh {
		err = e
	}
	if err != nil && len(locs) == 0 && len(children) == 0 {
		return nil, nil, eris.Wrap(err, "selector: parse sitemap")
	}
	return locs, children, nil
}

// collector filters and de-duplicates sitemap URLs up to a cap.
type collector struct {
	host  string
	max   int
	seen  map[string]bool
	urls  []string
	match *scrape.PathMatcher
}

func (c *collector) full() bool { return len(c.urls) >= c.max }

func (c *collector) add(raw string) {
	if c.full() {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return
	}
	if siteHost(u.Hostname()) != c.host {
		return
	}
	u.Fragment = ""
	u.RawFragment = ""
	clean := u.String()
	if c.seen[clean] || c.match.IsExcluded(clean) {
		return
	}
	c.seen[clean] = true
	c.urls = append(c.urls, clean)
}

// siteHost lower-cases a host and drops a leading "www." so both spellings
// compare equal.
func siteHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
