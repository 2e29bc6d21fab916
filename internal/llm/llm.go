// Package llm adapts the generative-text providers to one Generator
// interface and classifies their failures for the retry policy.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siteqa/internal/resilience"
)

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Generation defaults.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 256
)

// ErrEmptyResponse is returned when the provider answered but no text could
// be extracted. It is never retried.
var ErrEmptyResponse = eris.New("llm: empty response")

// Request is one generation call.
type Request struct {
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Result is the extracted text and bookkeeping of a generation call.
type Result struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator produces text for a prompt.
type Generator interface {
	Provider() string
	Generate(ctx context.Context, req Request) (*Result, error)
}

// APIError is a non-2xx provider response.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// classify wraps a provider failure. Retryable statuses (408, 429, 5xx) and
// transient network errors come back as *resilience.TransientError; other
// statuses stay permanent.
func classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	if status == 0 {
		if resilience.IsTransient(err) {
			return resilience.NewTransientError(err, 0)
		}
		return err
	}
	apiErr := &APIError{Provider: provider, StatusCode: status, Err: err}
	if resilience.RetryableStatus(status) {
		return resilience.NewTransientError(apiErr, status)
	}
	return apiErr
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var te *resilience.TransientError
	return errors.As(err, &te)
}

// StatusCode returns the provider HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var te *resilience.TransientError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// DefaultRetryPolicy is two attempts with about one second between them.
func DefaultRetryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		ShouldRetry:    IsRetryable,
		OnRetry:        resilience.RetryLogger("llm", "generate"),
	}
}

// NewBreaker returns a circuit breaker that only counts retryable failures.
func NewBreaker(failureThreshold int, resetTimeout time.Duration) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: failureThreshold,
		ResetTimeout:     resetTimeout,
		ShouldTrip:       IsRetryable,
	})
}
