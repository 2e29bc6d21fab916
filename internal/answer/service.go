// Package answer runs the question-answering flow: validate, consult the
// cache, select and fetch pages, prompt the model and trim the answer.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/siteqa/internal/cache"
	"github.com/sells-group/siteqa/internal/llm"
	"github.com/sells-group/siteqa/internal/model"
	"github.com/sells-group/siteqa/internal/prompt"
	"github.com/sells-group/siteqa/internal/resilience"
	"github.com/sells-group/siteqa/internal/scrape"
	"github.com/sells-group/siteqa/internal/selector"
)

// User-facing fallback answers.
const (
	FetchFailedAnswer = "Sorry, we couldn't fetch any content from that website right now. Please check the address and try again."
	FallbackAnswer    = "Sorry, we couldn't put together an answer right now. Please try again in a moment."
	TruncationMarker  = "…"
)

// ErrNotConfigured is returned when no model credential is available.
var ErrNotConfigured = eris.New("answer: model provider is not configured")

// URLSelector picks candidate page URLs for a question.
type URLSelector interface {
	Select(ctx context.Context, question, base string, preset model.Preset) []string
}

// PageFetcher retrieves pages concurrently, one result per URL.
type PageFetcher interface {
	FetchAll(ctx context.Context, urls []string, maxConcurrent int, pageTimeout time.Duration) []scrape.FetchResult
}

// Config holds the tunables of the answer flow.
type Config struct {
	DefaultModel   string
	Temperature    float64
	MaxTokens      int
	MaxConcurrent  int
	PageTimeout    time.Duration
	RequestTimeout time.Duration
	Prompt         prompt.Options
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		Temperature:    llm.DefaultTemperature,
		MaxTokens:      llm.DefaultMaxTokens,
		MaxConcurrent:  5,
		PageTimeout:    10 * time.Second,
		RequestTimeout: 60 * time.Second,
		Prompt:         prompt.DefaultOptions(),
	}
}

// Service answers questions about websites.
type Service struct {
	cfg       Config
	selector  URLSelector
	pages     PageFetcher
	generator llm.Generator
	cache     cache.Cache
	group     singleflight.Group
}

// New creates a Service. A nil generator makes every Ask fail with
// ErrNotConfigured; a nil cache disables caching.
func New(cfg Config, sel URLSelector, pages PageFetcher, gen llm.Generator, c cache.Cache) *Service {
	d := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = d.MaxTokens
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = d.MaxConcurrent
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = d.PageTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	if cfg.Prompt.MaxWords <= 0 {
		cfg.Prompt.MaxWords = d.Prompt.MaxWords
	}
	return &Service{cfg: cfg, selector: sel, pages: pages, generator: gen, cache: c}
}

// resolved is a request after normalization.
type resolved struct {
	question string
	base     string
	preset   model.Preset
	model    string
	key      string
}

// Ask answers req. It returns an error only for invalid input
// (*model.ValidationError) or a missing credential (ErrNotConfigured);
// every other failure is reported inside a degraded Response.
func (s *Service) Ask(ctx context.Context, req model.Request) (*model.Response, error) {
	r, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	if s.generator == nil {
		return nil, ErrNotConfigured
	}

	log := zap.L().With(
		zap.String("base", r.base),
		zap.String("preset", string(r.preset)),
		zap.String("model", r.model),
	)

	if cached := s.lookup(ctx, r.key); cached != nil {
		log.Info("answer: cache hit")
		cached.Cached = true
		return cached, nil
	}

	v, _, shared := s.group.Do(r.key, func() (any, error) {
		// Detached so one caller going away does not fail the others.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
		defer cancel()
		return s.run(runCtx, log, r), nil
	})
	if shared {
		log.Debug("answer: joined in-flight request")
	}

	resp := *v.(*model.Response)
	return &resp, nil
}

func (s *Service) resolve(req model.Request) (resolved, error) {
	if err := req.Validate(); err != nil {
		return resolved{}, err
	}

	base, err := selector.NormalizeBaseURL(req.SiteBaseURL)
	if err != nil {
		return resolved{}, &model.ValidationError{Field: "siteBaseUrl", Message: "siteBaseUrl is not a valid http(s) URL"}
	}

	// Validate already accepted the preset.
	preset, _ := model.ParsePreset(req.Preset)
	if preset == "" {
		preset = selector.DetectPreset(req.Question)
	}

	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = s.cfg.DefaultModel
	}

	question := strings.TrimSpace(req.Question)
	return resolved{
		question: question,
		base:     base,
		preset:   preset,
		model:    modelID,
		key:      cache.Key(question, base, preset, modelID),
	}, nil
}

func (s *Service) lookup(ctx context.Context, key string) *model.Response {
	if s.cache == nil {
		return nil
	}
	resp, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("answer: cache get failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return resp
}

func (s *Service) store(ctx context.Context, key string, resp *model.Response) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, resp); err != nil {
		zap.L().Warn("answer: cache set failed", zap.Error(err))
	}
}

// run performs selection through trimming. It never returns nil and never
// panics.
func (s *Service) run(ctx context.Context, log *zap.Logger, r resolved) (resp *model.Response) {
	var attempted []string
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("answer: recovered from panic", zap.Any("panic", rec), zap.Stack("stack"))
			resp = s.degraded(r, model.SourcesFromURLs(attempted), model.ErrCodeInternal, fmt.Sprintf("panic: %v", rec))
		}
	}()

	start := time.Now()
	attempted = s.selector.Select(ctx, r.question, r.base, r.preset)
	log.Debug("answer: selected urls", zap.Strings("urls", attempted))

	results := s.pages.FetchAll(ctx, attempted, s.cfg.MaxConcurrent, s.cfg.PageTimeout)
	pages := scrape.Pages(results)
	if len(pages) == 0 {
		msg := "no page could be fetched"
		if err := firstError(results); err != nil {
			msg = err.Error()
		}
		log.Warn("answer: no pages fetched", zap.Int("attempted", len(attempted)), zap.String("first_error", msg))
		return s.degradedAnswer(r, FetchFailedAnswer, model.SourcesFromURLs(attempted), model.ErrCodeFetchFailed, msg)
	}

	sources := citations(pages)
	text := prompt.Build(r.question, r.preset, pages, s.cfg.Prompt)

	res, err := s.generator.Generate(ctx, llm.Request{
		Prompt:      text,
		Model:       r.model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		code := errorCode(err)
		log.Error("answer: generation failed", zap.String("code", code), zap.Error(err))
		return s.degraded(r, sources, code, err.Error())
	}

	modelID := r.model
	if res.Model != "" {
		modelID = res.Model
	}
	resp = &model.Response{
		Answer:  TrimWords(res.Text, s.cfg.Prompt.MaxWords),
		Sources: sources,
		Model:   modelID,
		Preset:  r.preset,
	}
	s.store(ctx, r.key, resp)

	log.Info("answer: answered",
		zap.Int("pages", len(pages)),
		zap.Int("attempted", len(attempted)),
		zap.Int("input_tokens", res.InputTokens),
		zap.Int("output_tokens", res.OutputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp
}

func (s *Service) degraded(r resolved, sources []model.Source, code, msg string) *model.Response {
	return s.degradedAnswer(r, FallbackAnswer, sources, code, msg)
}

func (s *Service) degradedAnswer(r resolved, answer string, sources []model.Source, code, msg string) *model.Response {
	if sources == nil {
		sources = []model.Source{}
	}
	return &model.Response{
		Answer:  answer,
		Sources: sources,
		Model:   r.model,
		Preset:  r.preset,
		Error:   &model.ErrorInfo{Code: code, Message: msg},
	}
}

// errorCode maps a generation failure to a response error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), llm.IsRetryable(err):
		return model.ErrCodeModelUnavailable
	case errors.Is(err, llm.ErrEmptyResponse), llm.StatusCode(err) != 0:
		return model.ErrCodeModelError
	default:
		return model.ErrCodeInternal
	}
}

func citations(pages []model.RetrievedPage) []model.Source {
	out := make([]model.Source, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Citation())
	}
	return out
}

func firstError(results []scrape.FetchResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// TrimWords cuts text after maxWords words and appends TruncationMarker.
// A word is a whitespace-separated token holding a letter or digit, so
// bullet dashes do not count. Whitespace, including line breaks between
// bullets, is kept up to the cut. Text within the limit is returned
// trimmed but otherwise unchanged.
func TrimWords(text string, maxWords int) string {
	text = strings.TrimSpace(text)
	if maxWords <= 0 {
		return text
	}

	words := 0
	counted := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			if counted && words == maxWords && hasWord(text[i:]) {
				return strings.TrimRightFunc(text[:i], isTrimmable) + TruncationMarker
			}
			counted = false
			continue
		}
		if !counted && isWordRune(r) {
			counted = true
			words++
		}
	}
	return text
}

// CountWords counts words the way TrimWords does.
func CountWords(text string) int {
	n := 0
	for _, tok := range strings.Fields(text) {
		if hasWord(tok) {
			n++
		}
	}
	return n
}

func hasWord(s string) bool {
	return strings.IndexFunc(s, isWordRune) >= 0
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(",;:-", r)
}
