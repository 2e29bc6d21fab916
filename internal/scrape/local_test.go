package scrape

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteqa/internal/fetcher"
)

const acmeAbout = `<html><head><title>About Acme</title></head>
<body><h1>About us</h1><p>Acme has built precision anvils for roadrunner enthusiasts since 1949.</p></body></html>`

func testFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: "test-agent",
		Timeout:   2 * time.Second,
		HostRate:  1000,
		HostBurst: 1000,
	})
}

func TestLocalScraper_CleanHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(acmeAbout))
	}))
	defer srv.Close()

	s := NewLocalScraper(testFetcher())
	result, err := s.Scrape(context.Background(), srv.URL+"/about/")
	require.NoError(t, err)
	assert.Equal(t, "local_http", result.Source)
	assert.Equal(t, "About Acme", result.Page.Title)
	assert.Equal(t, srv.URL+"/about/", result.Page.URL)
	assert.Equal(t, 200, result.Page.StatusCode)
	assert.Contains(t, result.Page.Text, "precision anvils")
	assert.NotContains(t, result.Page.Text, "<p>")
}

func TestLocalScraper_FallsBackToSlashVariant(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path != "/about" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(acmeAbout))
	}))
	defer srv.Close()

	s := NewLocalScraper(testFetcher())
	result, err := s.Scrape(context.Background(), srv.URL+"/about/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/about", result.Page.URL)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/about/", "/about"}, paths)
}

func TestLocalScraper_ThinContentMovesOn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			_, _ = w.Write([]byte("<html><body>Hi</body></html>"))
			return
		}
		_, _ = w.Write([]byte(acmeAbout))
	}))
	defer srv.Close()

	s := NewLocalScraper(testFetcher())
	result, err := s.Scrape(context.Background(), srv.URL+"/team/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/team", result.Page.URL)
}

func TestLocalScraper_AllVariantsFail(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewLocalScraper(testFetcher())
	_, err := s.Scrape(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all variants failed")
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}

func TestLocalScraper_Cloudflare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cf-Ray", "abc123")
		w.WriteHeader(403)
		_, _ = w.Write([]byte(`<html><body>Access denied</body></html>`))
	}))
	defer srv.Close()

	s := NewLocalScraper(testFetcher())
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestLocalScraper_TruncatesText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>" + strings.Repeat("anvil ", 2000) + "</p>"))
	}))
	defer srv.Close()

	s := NewLocalScraper(testFetcher(), WithMaxChars(100))
	result, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, result.Page.Text, 100)
}

func TestLocalScraper_Metadata(t *testing.T) {
	s := NewLocalScraper(testFetcher(), WithMinChars(10), WithMaxChars(-1))
	assert.Equal(t, "local_http", s.Name())
	assert.True(t, s.Supports("https://anything.com"))
	assert.Equal(t, 10, s.minChars)
	assert.Equal(t, DefaultMaxChars, s.maxChars)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestChain_FetchAll_HungHostFallsThroughToWWW(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		seen = append(seen, r.URL.String())
		mu.Unlock()
		if r.URL.Hostname() == "acme.test" {
			<-r.Context().Done()
			return nil, r.Context().Err()
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/html"}},
			Body:       io.NopCloser(strings.NewReader(acmeAbout)),
			Request:    r,
		}, nil
	})

	fetchTimeout := 150 * time.Millisecond
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:   fetchTimeout,
		HostRate:  1000,
		HostBurst: 1000,
		Transport: rt,
	})
	chain := NewChain(nil, NewLocalScraper(f))

	results := chain.FetchAll(context.Background(), []string{"https://acme.test/about/"}, 5, chain.PageBudget(fetchTimeout))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.True(t, results[0].OK())
	assert.Equal(t, "https://www.acme.test/about/", results[0].Page.URL)
	assert.Contains(t, results[0].Page.Text, "precision anvils")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"https://acme.test/about/",
		"https://acme.test/about",
		"https://www.acme.test/about/",
	}, seen)
}

func TestChain_PageBudget(t *testing.T) {
	local := NewLocalScraper(testFetcher())
	fallback := &stubScraper{name: "fallback", supports: true}

	assert.Equal(t, 4*time.Second, NewChain(nil, local).PageBudget(time.Second))
	assert.Equal(t, 5*time.Second, NewChain(nil, local, fallback).PageBudget(time.Second))
	assert.Equal(t, time.Second, NewChain(nil).PageBudget(time.Second))
	assert.Zero(t, NewChain(nil, local).PageBudget(0))
}
