package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteqa/internal/answer"
	"github.com/sells-group/siteqa/internal/model"
	"github.com/sells-group/siteqa/internal/resilience"
)

type fakeAsker struct {
	resp  *model.Response
	err   error
	panic bool
	got   *model.Request
}

func (f *fakeAsker) Ask(_ context.Context, req model.Request) (*model.Response, error) {
	if f.panic {
		panic("boom")
	}
	f.got = &req
	if f.err != nil {
		return nil, f.err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return f.resp, nil
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorInfo {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestAsk_OK(t *testing.T) {
	asker := &fakeAsker{resp: &model.Response{
		Answer:  "Acme builds anvils. [1]",
		Sources: []model.Source{{URL: "https://acme.com/", Title: "Acme"}},
		Model:   "gemini-2.0-flash",
		Preset:  model.PresetCore,
	}}
	h := NewRouter(asker, nil)

	rec := do(t, h, http.MethodPost, "/api/ask",
		`{"question":"What does Acme build?","siteBaseUrl":"acme.com","preset":"core","model":"gemini-2.0-flash"}`,
		map[string]string{"Content-Type": "application/json", "Origin": "https://example.org"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Acme builds anvils. [1]", got["answer"])
	assert.Equal(t, "gemini-2.0-flash", got["model"])
	assert.Equal(t, "core", got["preset"])
	assert.NotContains(t, got, "error")
	assert.NotContains(t, got, "cached")
	sources := got["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, map[string]any{"url": "https://acme.com/", "title": "Acme"}, sources[0])

	require.NotNil(t, asker.got)
	assert.Equal(t, "acme.com", asker.got.SiteBaseURL)
	assert.Equal(t, "core", asker.got.Preset)
}

func TestAsk_DegradedIs200(t *testing.T) {
	asker := &fakeAsker{resp: &model.Response{
		Answer:  answer.FetchFailedAnswer,
		Sources: []model.Source{},
		Error:   &model.ErrorInfo{Code: model.ErrCodeFetchFailed, Message: "timeout"},
	}}
	rec := do(t, NewRouter(asker, nil), http.MethodPost, "/api/ask", `{"question":"q","siteBaseUrl":"acme.com"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Error)
	assert.Equal(t, model.ErrCodeFetchFailed, got.Error.Code)
	assert.Equal(t, `[]`, string(mustField(t, rec.Body.Bytes(), "sources")))
}

func mustField(t *testing.T, body []byte, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return m[key]
}

func TestAsk_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"malformed json", `{"question":`, "request body must be a JSON object"},
		{"empty body", ``, "request body is empty"},
		{"wrong type", `["a"]`, "request body must be a JSON object"},
		{"missing question", `{"siteBaseUrl":"acme.com"}`, "question is required"},
		{"blank base", `{"question":"q","siteBaseUrl":"  "}`, "siteBaseUrl is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, NewRouter(&fakeAsker{}, nil), http.MethodPost, "/api/ask", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, CodeInvalidRequest, e.Code)
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

func TestAsk_NotConfigured(t *testing.T) {
	rec := do(t, NewRouter(&fakeAsker{err: answer.ErrNotConfigured}, nil), http.MethodPost, "/api/ask",
		`{"question":"q","siteBaseUrl":"acme.com"}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeNotConfigured, decodeError(t, rec).Code)
}

func TestAsk_PanicRecovered(t *testing.T) {
	rec := do(t, NewRouter(&fakeAsker{panic: true}, nil), http.MethodPost, "/api/ask",
		`{"question":"q","siteBaseUrl":"acme.com"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPreflight(t *testing.T) {
	h := NewRouter(&fakeAsker{}, nil)

	rec := do(t, h, http.MethodOptions, "/api/ask", "", map[string]string{
		"Origin":                         "https://example.org",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Content-Type",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Content-Type")

	// Plain OPTIONS without CORS request headers.
	rec = do(t, h, http.MethodOptions, "/api/ask", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewRouter(&fakeAsker{}, nil)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(t, h, method, "/api/ask", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, CodeMethodNotAllowed, decodeError(t, rec).Code)
	}
}

func TestNotFound(t *testing.T) {
	rec := do(t, NewRouter(&fakeAsker{}, nil), http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Code)
}

func TestHealth(t *testing.T) {
	breakers := resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	breakers.Get("jina")
	rec := do(t, NewRouter(&fakeAsker{}, breakers), http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]string{"jina": "closed"}, body.Breakers)
}

func TestHealth_NoBreakers(t *testing.T) {
	rec := do(t, NewRouter(&fakeAsker{}, nil), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	h := NewRouter(&fakeAsker{}, nil)

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	rec = do(t, h, http.MethodGet, "/health", "", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
