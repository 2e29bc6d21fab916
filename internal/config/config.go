package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Selector  SelectorConfig  `yaml:"selector" mapstructure:"selector"`
	Prompt    PromptConfig    `yaml:"prompt" mapstructure:"prompt"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                int `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs     int `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs    int `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	ShutdownTimeoutSecs int `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LLMConfig selects the provider and shapes generation, retry and breaker.
type LLMConfig struct {
	Provider           string  `yaml:"provider" mapstructure:"provider"`
	Temperature        float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens          int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	RetryAttempts      int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs     int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryJitter        float64 `yaml:"retry_jitter" mapstructure:"retry_jitter"`
	BreakerThreshold   int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs   int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key             string   `yaml:"key" mapstructure:"key"`
	BaseURL         string   `yaml:"base_url" mapstructure:"base_url"`
	Model           string   `yaml:"model" mapstructure:"model"`
	Discover        bool     `yaml:"discover" mapstructure:"discover"`
	PreferredModels []string `yaml:"preferred_models" mapstructure:"preferred_models"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina AI Reader settings. The reader fallback is only
// wired when Key is set.
type JinaConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// FetchConfig configures page retrieval.
type FetchConfig struct {
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	MaxChars      int     `yaml:"max_chars" mapstructure:"max_chars"`
	MinChars      int     `yaml:"min_chars" mapstructure:"min_chars"`
	MaxBodyBytes  int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HostRate      float64 `yaml:"host_rate" mapstructure:"host_rate"`
	HostBurst     int     `yaml:"host_burst" mapstructure:"host_burst"`
}

// SelectorConfig configures URL selection.
type SelectorConfig struct {
	Strategy         string `yaml:"strategy" mapstructure:"strategy"`
	MaxURLs          int    `yaml:"max_urls" mapstructure:"max_urls"`
	PresetsFile      string `yaml:"presets_file" mapstructure:"presets_file"`
	MaxChildSitemaps int    `yaml:"max_child_sitemaps" mapstructure:"max_child_sitemaps"`
	MaxCandidates    int    `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// PromptConfig shapes the generation prompt.
type PromptConfig struct {
	MaxWords       int    `yaml:"max_words" mapstructure:"max_words"`
	Bullets        int    `yaml:"bullets" mapstructure:"bullets"`
	ExcerptCap     int    `yaml:"excerpt_cap" mapstructure:"excerpt_cap"`
	FallbackPhrase string `yaml:"fallback_phrase" mapstructure:"fallback_phrase"`
}

// CacheConfig selects the answer cache backend.
type CacheConfig struct {
	Driver  string `yaml:"driver" mapstructure:"driver"`
	TTLSecs int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// RedisConfig configures the shared cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// Provider names accepted by llm.provider.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// DefaultModel returns the configured model of the selected provider.
func (c *Config) DefaultModel() string {
	if c.LLM.Provider == ProviderAnthropic {
		return c.Anthropic.Model
	}
	return c.Gemini.Model
}

// HasCredential reports whether the selected provider has an API key.
func (c *Config) HasCredential() bool {
	if c.LLM.Provider == ProviderAnthropic {
		return c.Anthropic.Key != ""
	}
	return c.Gemini.Key != ""
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITEQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional provider variables, checked after the prefixed ones.
	_ = v.BindEnv("gemini.key", "SITEQA_GEMINI_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("gemini.model", "SITEQA_GEMINI_MODEL", "GEMINI_MODEL")
	_ = v.BindEnv("anthropic.key", "SITEQA_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("jina.key", "SITEQA_JINA_KEY", "JINA_API_KEY")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 90)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 256)
	v.SetDefault("llm.request_timeout_secs", 60)
	v.SetDefault("llm.retry_attempts", 2)
	v.SetDefault("llm.retry_backoff_ms", 1000)
	v.SetDefault("llm.retry_jitter", 0.1)
	v.SetDefault("llm.breaker_threshold", 5)
	v.SetDefault("llm.breaker_reset_secs", 30)
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.discover", true)
	v.SetDefault("gemini.preferred_models", []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash", "gemini-2.5-pro", "gemini-1.5-pro"})
	v.SetDefault("anthropic.model", "claude-haiku-4-5")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.breaker_threshold", 3)
	v.SetDefault("jina.breaker_reset_secs", 60)
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.max_concurrent", 5)
	v.SetDefault("fetch.max_chars", 4000)
	v.SetDefault("fetch.min_chars", 50)
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("fetch.host_rate", 5.0)
	v.SetDefault("fetch.host_burst", 5)
	v.SetDefault("selector.strategy", "hybrid")
	v.SetDefault("selector.max_urls", 5)
	v.SetDefault("selector.max_child_sitemaps", 10)
	v.SetDefault("selector.max_candidates", 800)
	v.SetDefault("prompt.max_words", 100)
	v.SetDefault("prompt.bullets", 5)
	v.SetDefault("prompt.excerpt_cap", 10000)
	v.SetDefault("prompt.fallback_phrase", "Not stated on the provided pages.")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl_secs", 600)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "siteqa:answer:")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Modes: "serve", "ask",
// "urls", "models".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "ask":
		errs = append(errs, c.validateLLM()...)
		errs = append(errs, c.validateRetrieval()...)
		errs = append(errs, c.validateCache()...)
		if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	case "urls":
		errs = append(errs, c.validateRetrieval()...)
	case "models":
		if c.Gemini.Key == "" {
			errs = append(errs, "gemini.key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateLLM() []string {
	var errs []string
	if c.LLM.Provider != ProviderGemini && c.LLM.Provider != ProviderAnthropic {
		errs = append(errs, fmt.Sprintf("llm.provider must be %q or %q", ProviderGemini, ProviderAnthropic))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, "llm.max_tokens must be > 0")
	}
	if c.LLM.RetryAttempts < 1 {
		errs = append(errs, "llm.retry_attempts must be >= 1")
	}
	if c.Prompt.MaxWords <= 0 {
		errs = append(errs, "prompt.max_words must be > 0")
	}
	return errs
}

func (c *Config) validateRetrieval() []string {
	var errs []string
	switch c.Selector.Strategy {
	case "preset", "sitemap", "hybrid":
	default:
		errs = append(errs, "selector.strategy must be one of preset, sitemap, hybrid")
	}
	if c.Selector.MaxURLs < 1 || c.Selector.MaxURLs > 20 {
		errs = append(errs, "selector.max_urls must be between 1 and 20")
	}
	if c.Fetch.MaxConcurrent < 1 || c.Fetch.MaxConcurrent > 50 {
		errs = append(errs, "fetch.max_concurrent must be between 1 and 50")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	return errs
}

func (c *Config) validateCache() []string {
	var errs []string
	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required when cache.driver is redis")
		}
	default:
		errs = append(errs, "cache.driver must be memory or redis")
	}
	if c.Cache.TTLSecs <= 0 {
		errs = append(errs, "cache.ttl_secs must be > 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
