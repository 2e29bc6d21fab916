package llm

import (
	"context"

	"github.com/sells-group/siteqa/internal/resilience"
)

// Retrying wraps a Generator with a retry policy and an optional circuit
// breaker. The breaker sees one outcome per request, after retries.
type Retrying struct {
	next    Generator
	policy  resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
}

// WithRetry wraps next. A nil breaker disables the breaker.
func WithRetry(next Generator, policy resilience.RetryPolicy, breaker *resilience.CircuitBreaker) *Retrying {
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = IsRetryable
	}
	return &Retrying{next: next, policy: policy, breaker: breaker}
}

func (r *Retrying) Provider() string { return r.next.Provider() }

// Generate runs the wrapped call. While the breaker is open it returns
// resilience.ErrCircuitOpen without calling the provider.
func (r *Retrying) Generate(ctx context.Context, req Request) (*Result, error) {
	call := func(ctx context.Context) (*Result, error) {
		return resilience.Retry(ctx, r.policy, func(ctx context.Context) (*Result, error) {
			return r.next.Generate(ctx, req)
		})
	}
	if r.breaker == nil {
		return call(ctx)
	}
	return resilience.Call(ctx, r.breaker, call)
}
