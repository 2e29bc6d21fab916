package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/siteqa/internal/answer"
	"github.com/sells-group/siteqa/internal/cache"
	"github.com/sells-group/siteqa/internal/config"
	"github.com/sells-group/siteqa/internal/fetcher"
	"github.com/sells-group/siteqa/internal/llm"
	"github.com/sells-group/siteqa/internal/prompt"
	"github.com/sells-group/siteqa/internal/resilience"
	"github.com/sells-group/siteqa/internal/scrape"
	"github.com/sells-group/siteqa/internal/selector"
	"github.com/sells-group/siteqa/pkg/anthropic"
	"github.com/sells-group/siteqa/pkg/gemini"
	"github.com/sells-group/siteqa/pkg/jina"
)

// appEnv holds the wired components shared by the serve/ask/urls commands.
type appEnv struct {
	Answer   *answer.Service
	Selector *selector.Selector
	Pages    *scrape.Chain
	Breakers *resilience.ServiceBreakers
	redis    goredis.UniversalClient // nil unless cache.driver is redis
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
}

// initEnv builds every component from c. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	env := &appEnv{
		Breakers: resilience.NewServiceBreakers(resilience.BreakerConfig(c.Jina.BreakerThreshold, c.Jina.BreakerResetSecs)),
	}

	pageFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.Fetch.UserAgent,
		Timeout:      time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		HostRate:     rate.Limit(c.Fetch.HostRate),
		HostBurst:    c.Fetch.HostBurst,
	})
	matcher := scrape.NewPathMatcher(nil)

	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(pageFetcher,
			scrape.WithMaxChars(c.Fetch.MaxChars),
			scrape.WithMinChars(c.Fetch.MinChars),
		),
	}
	if c.Jina.Key != "" {
		jinaClient := jina.NewClient(c.Jina.Key,
			jina.WithBaseURL(c.Jina.BaseURL),
			jina.WithPageTimeout(time.Duration(c.Fetch.TimeoutSecs)*time.Second),
		)
		scrapers = append(scrapers, scrape.NewJinaAdapter(jinaClient, env.Breakers.Get("jina"), c.Fetch.MaxChars))
		zap.L().Info("jina reader fallback enabled")
	} else {
		zap.L().Debug("SITEQA_JINA_KEY not set, Jina reader fallback disabled")
	}
	env.Pages = scrape.NewChain(matcher, scrapers...)

	sel, err := buildSelector(c, pageFetcher, matcher)
	if err != nil {
		return nil, err
	}
	env.Selector = sel

	gen := buildGenerator(c, env.Breakers)

	answerCache, redisClient := buildCache(ctx, c)
	env.redis = redisClient

	env.Answer = answer.New(answer.Config{
		DefaultModel:   c.DefaultModel(),
		Temperature:    c.LLM.Temperature,
		MaxTokens:      c.LLM.MaxTokens,
		MaxConcurrent:  c.Fetch.MaxConcurrent,
		PageTimeout:    env.Pages.PageBudget(time.Duration(c.Fetch.TimeoutSecs) * time.Second),
		RequestTimeout: time.Duration(c.LLM.RequestTimeoutSecs) * time.Second,
		Prompt: prompt.Options{
			MaxWords:       c.Prompt.MaxWords,
			Bullets:        c.Prompt.Bullets,
			ExcerptCap:     c.Prompt.ExcerptCap,
			FallbackPhrase: c.Prompt.FallbackPhrase,
		},
	}, env.Selector, env.Pages, gen, answerCache)

	return env, nil
}

func buildSelector(c *config.Config, f fetcher.Fetcher, matcher *scrape.PathMatcher) (*selector.Selector, error) {
	strategy, err := selector.ParseStrategy(c.Selector.Strategy)
	if err != nil {
		return nil, err
	}

	presets := selector.DefaultPresetPaths()
	if c.Selector.PresetsFile != "" {
		presets, err = selector.LoadPresetPaths(c.Selector.PresetsFile)
		if err != nil {
			return nil, err
		}
		zap.L().Info("loaded preset paths", zap.String("file", c.Selector.PresetsFile))
	}

	disc := selector.NewDiscoverer(f, matcher, c.Selector.MaxChildSitemaps, c.Selector.MaxCandidates)
	return selector.New(disc,
		selector.WithPresetPaths(presets),
		selector.WithStrategy(strategy),
		selector.WithMaxURLs(c.Selector.MaxURLs),
	), nil
}

// buildGenerator returns nil when the selected provider has no credential.
// The model call is wrapped in the retry policy and an "llm" breaker that
// is registered in breakers.
func buildGenerator(c *config.Config, breakers *resilience.ServiceBreakers) llm.Generator {
	if !c.HasCredential() {
		zap.L().Warn("model provider key not set, questions will be rejected", zap.String("provider", c.LLM.Provider))
		return nil
	}

	var base llm.Generator
	switch c.LLM.Provider {
	case config.ProviderAnthropic:
		var opts []anthropic.Option
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(c.Anthropic.BaseURL))
		}
		base = llm.NewAnthropic(anthropic.NewClient(c.Anthropic.Key, opts...))
	default:
		base = newGemini(c)
	}

	policy := llm.DefaultRetryPolicy()
	if c.LLM.RetryAttempts > 0 {
		policy.MaxAttempts = c.LLM.RetryAttempts
	}
	if c.LLM.RetryBackoffMs > 0 {
		policy.InitialBackoff = time.Duration(c.LLM.RetryBackoffMs) * time.Millisecond
		policy.MaxBackoff = 2 * policy.InitialBackoff
	}
	if c.LLM.RetryJitter >= 0 {
		policy.JitterFraction = c.LLM.RetryJitter
	}

	breaker := llm.NewBreaker(c.LLM.BreakerThreshold, time.Duration(c.LLM.BreakerResetSecs)*time.Second)
	breakers.Add("llm", breaker)

	return llm.WithRetry(base, policy, breaker)
}

func newGemini(c *config.Config) *llm.Gemini {
	client := gemini.NewClient(c.Gemini.Key, gemini.WithBaseURL(c.Gemini.BaseURL))
	var opts []llm.GeminiOption
	if c.Gemini.Discover {
		opts = append(opts, llm.WithDiscovery(c.Gemini.PreferredModels))
	}
	return llm.NewGemini(client, opts...)
}

// buildCache returns the answer cache and, for the redis driver, the client
// to close. An unreachable Redis is logged; its errors count as misses.
func buildCache(ctx context.Context, c *config.Config) (cache.Cache, goredis.UniversalClient) {
	ttl := c.Cache.TTL()
	if c.Cache.Driver != "redis" {
		return cache.NewMemory(ttl), nil
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    []string{c.Redis.Addr},
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("redis unreachable, cache lookups will miss", zap.String("addr", c.Redis.Addr), zap.Error(eris.Wrap(err, "redis ping")))
	} else {
		zap.L().Info("redis answer cache enabled", zap.String("addr", c.Redis.Addr))
	}
	return cache.NewRedis(client, c.Redis.Prefix, ttl), client
}
