package scrape

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	scriptRe   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?(?:</script\s*>|\z)`)
	styleRe    = regexp.MustCompile(`(?is)<style\b[^>]*>.*?(?:</style\s*>|\z)`)
	noscriptRe = regexp.MustCompile(`(?is)<noscript\b[^>]*>.*?(?:</noscript\s*>|\z)`)
	commentRe  = regexp.MustCompile(`(?s)<!--.*?(?:-->|\z)`)
	blockTagRe = regexp.MustCompile(`(?i)</?(?:address|article|aside|blockquote|br|dd|div|dl|dt|fieldset|figcaption|figure|footer|form|h[1-6]|header|hr|li|main|nav|ol|p|pre|section|table|td|th|tr|ul)\b[^>]*>`)
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	spaceRe    = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRe  = regexp.MustCompile(`\s*\n\s*`)
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// StripHTML converts markup to plain text. Script, style and noscript
// blocks are dropped with their content (an unclosed block runs to the end
// of input), block-level tags become line breaks, other tags become spaces,
// entities are decoded and whitespace is collapsed.
//
// StripHTML never fails and never returns more bytes than it was given.
func StripHTML(markup string) string {
	s := scriptRe.ReplaceAllString(markup, "")
	s = styleRe.ReplaceAllString(s, "")
	s = noscriptRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")
	s = blockTagRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = newlineRe.ReplaceAllString(s, "\n")
	s = strings.TrimSpace(s)
	// A handful of named entities (&nGt;, &nLt;) decode to more bytes than
	// they occupy.
	if len(s) > len(markup) {
		s = strings.ToValidUTF8(capBytes(s, len(markup)), "")
	}
	return s
}

// capBytes cuts s to at most n bytes on a rune boundary.
func capBytes(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ExtractTitle pulls the text of the first <title> element.
func ExtractTitle(markup string) string {
	m := titleRe.FindStringSubmatch(markup)
	if len(m) < 2 {
		return ""
	}
	title := html.UnescapeString(tagRe.ReplaceAllString(m[1], " "))
	return strings.Join(strings.Fields(title), " ")
}

// Truncate caps s at maxChars characters without splitting a UTF-8
// sequence. A non-positive cap disables truncation.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
