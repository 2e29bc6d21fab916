package scrape

import (
	"net/url"
	"strings"
)

// MaxURLVariants is the most variants URLVariants returns for one URL.
const MaxURLVariants = 4

// URLVariants returns the spellings of rawURL to try, in order: the original,
// the trailing slash toggled, the "www." host prefix toggled, and both
// toggled. Duplicates are removed. An unparseable URL yields only itself.
func URLVariants(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return []string{rawURL}
	}

	slash := toggleSlash(*u)
	www := toggleWWW(*u)
	both := toggleWWW(slash)

	out := make([]string, 0, 4)
	seen := make(map[string]bool, 4)
	for _, v := range []string{rawURL, slash.String(), www.String(), both.String()} {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func toggleSlash(u url.URL) url.URL {
	switch {
	case u.Path == "" || u.Path == "/":
		if u.Path == "" {
			u.Path = "/"
		} else {
			u.Path = ""
		}
	case strings.HasSuffix(u.Path, "/"):
		u.Path = strings.TrimSuffix(u.Path, "/")
	default:
		u.Path += "/"
	}
	u.RawPath = ""
	return u
}

func toggleWWW(u url.URL) url.URL {
	host := u.Host
	if strings.HasPrefix(strings.ToLower(host), "www.") {
		u.Host = host[len("www."):]
	} else {
		u.Host = "www." + host
	}
	return u
}
