package selector

import (
	"regexp"
	"sort"
	"strings"
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// stopwords are dropped from question tokens before scoring.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "you": true,
	"your": true, "what": true, "which": true, "who": true, "how": true,
	"does": true, "with": true, "that": true, "this": true, "from": true,
	"have": true, "has": true, "can": true, "our": true, "their": true,
	"they": true, "any": true, "not": true, "but": true, "its": true,
	"why": true, "when": true, "where": true, "there": true, "offer": true,
}

// contentSignals mark URLs that tend to hold substantive prose.
var contentSignals = []string{"insight", "blog", "case", "resource", "news"}

// Tokenize splits a question into distinct lower-case alphanumeric tokens
// of at least three characters, minus stop words, in first-seen order.
func Tokenize(question string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(question), -1) {
		if len(tok) < 3 || stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Score rates a candidate URL against question tokens: 3 per token found
// in the URL, 1 for a content-signal segment and 1 for the trailing-slash
// form.
func Score(rawURL string, tokens []string) int {
	lower := strings.ToLower(rawURL)
	score := 0
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			score += 3
		}
	}
	for _, sig := range contentSignals {
		if strings.Contains(lower, sig) {
			score++
			break
		}
	}
	if strings.HasSuffix(lower, "/") {
		score++
	}
	return score
}

// Rank orders candidates by descending score, preserving input order among
// equal scores, and returns at most limit URLs.
func Rank(candidates []string, question string, limit int) []string {
	tokens := Tokenize(question)
	type scored struct {
		url   string
		score int
	}
	items := make([]scored, len(candidates))
	for i, c := range candidates {
		items[i] = scored{url: c, score: Score(c, tokens)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]string, limit)
	for i := range out {
		out[i] = items[i].url
	}
	return out
}
