package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip non-HTML assets that cannot ground an answer.
var defaultExcludePatterns = []string{
	"*.pdf", "*.doc", "*.docx", "*.xls", "*.xlsx", "*.ppt", "*.pptx",
	"*.jpg", "*.jpeg", "*.png", "*.gif", "*.svg", "*.webp", "*.ico", "*.bmp",
	"*.zip", "*.gz", "*.tar", "*.rar", "*.7z",
	"*.mp3", "*.mp4", "*.mov", "*.avi", "*.webm", "*.wav",
	"*.css", "*.js", "*.json", "*.xml", "*.rss", "*.txt",
	"/wp-json/*", "/feed/*", "/cdn-cgi/*",
}

// PathMatcher filters URLs based on glob-style path patterns.
// Uses path.Match for glob matching, plus a segmented match so "/feed/*"
// matches multi-level paths and "*.pdf" matches a suffix at any depth.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns (e.g. "/feed/*", "*.pdf").
// Falls back to default patterns if none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &PathMatcher{patterns: patterns}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded checks whether a URL matches any exclude pattern. Unparseable
// URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	urlPath := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(strings.ToLower(pattern), urlPath) {
			return true
		}
	}
	return false
}

// matchSegmented performs glob matching where "/feed/*" matches both
// "/feed/a" and "/feed/a/b/c", and "*.pdf" matches "/files/2024/report.pdf".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}

	if strings.HasPrefix(pattern, "*.") && !strings.Contains(pattern[1:], "*") {
		return strings.HasSuffix(urlPath, pattern[1:])
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}

	return false
}
