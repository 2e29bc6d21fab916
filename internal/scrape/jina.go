package scrape

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siteqa/internal/model"
	"github.com/sells-group/siteqa/internal/resilience"
	"github.com/sells-group/siteqa/pkg/jina"
)

// errJinaFallback marks a Jina response that carried no usable content.
var errJinaFallback = eris.New("jina: response needs fallback")

// JinaAdapter wraps a Jina Reader client as a Scraper behind a circuit
// breaker. While the breaker is open the adapter reports that it supports
// nothing, so the chain skips it.
type JinaAdapter struct {
	client   jina.Client
	breaker  *resilience.CircuitBreaker
	maxChars int
}

// NewJinaAdapter creates a JinaAdapter. A nil breaker gets a default one.
func NewJinaAdapter(client jina.Client, breaker *resilience.CircuitBreaker, maxChars int) *JinaAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.BreakerConfig(3, 60))
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &JinaAdapter{client: client, breaker: breaker, maxChars: maxChars}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape fetches a URL via Jina Reader and validates the response.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.Call(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, errJinaFallback
		}
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "jina: scrape")
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &Result{
		Page: model.RetrievedPage{
			URL:        pageURL,
			Title:      resp.Data.Title,
			Text:       Truncate(strings.TrimSpace(resp.Data.Content), j.maxChars),
			StatusCode: 200,
			Source:     j.Name(),
		},
		Source: j.Name(),
	}, nil
}

// needsFallback checks whether a Jina response contains usable content.
// Returns true if the page is blocked, empty or a challenge interstitial.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}

	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if utf8.RuneCountInString(content) < DefaultMinChars {
		return true
	}

	lower := strings.ToLower(content)
	challengeSignatures := []string{
		"checking your browser",
		"enable javascript",
		"please enable cookies",
		"access denied",
		"403 forbidden",
		"just a moment",
		"attention required",
	}
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}

	return false
}
