package selector

import (
	"context"
	"net/http"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siteqa/internal/fetcher"
)

// fakeFetcher serves canned bodies by URL; unknown URLs get a 404.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	called []string
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, errs: map[string]error{}}
}

func (f *fakeFetcher) Get(_ context.Context, url string) (*fetcher.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return &fetcher.Response{URL: url, StatusCode: http.StatusNotFound, Header: http.Header{}}, nil
	}
	return &fetcher.Response{URL: url, StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}, nil
}

func (f *fakeFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.called...)
}

var errNetwork = eris.New("dial tcp: connection refused")
