package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errDown = errors.New("down")

func fail(context.Context) (int, error) { return 0, errDown }
func succeed(context.Context) (int, error) { return 1, nil }

// testBreaker returns a breaker with a controllable clock.
func testBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: threshold, ResetTimeout: reset})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = Call(ctx, cb, fail)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v before threshold", cb.State())
	}
	_, _ = Call(ctx, cb, fail)
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	_, err := Call(ctx, cb, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker: err = %v, called = %v", err, called)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := testBreaker(2, time.Minute)
	ctx := context.Background()

	_, _ = Call(ctx, cb, fail)
	_, _ = Call(ctx, cb, succeed)
	_, _ = Call(ctx, cb, fail)
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
}

func TestBreaker_ProbeClosesOnSuccess(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	ctx := context.Background()

	_, _ = Call(ctx, cb, fail)
	*now = now.Add(time.Minute)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open after reset timeout", cb.State())
	}

	if _, err := Call(ctx, cb, succeed); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	ctx := context.Background()

	_, _ = Call(ctx, cb, fail)
	*now = now.Add(time.Minute)
	_, _ = Call(ctx, cb, fail)

	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	*now = now.Add(30 * time.Second)
	if _, err := Call(ctx, cb, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen before the new timeout", err)
	}
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	ctx := context.Background()

	_, _ = Call(ctx, cb, fail)
	*now = now.Add(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Call(ctx, cb, func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()

	<-started
	if _, err := Call(ctx, cb, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe: err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	wg.Wait()

	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestBreaker_ShouldTripFilters(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ShouldTrip:       IsTransient,
	})
	ctx := context.Background()

	_, _ = Call(ctx, cb, fail)
	if cb.State() != CircuitClosed {
		t.Fatalf("permanent error tripped the breaker")
	}
	_, _ = Call(ctx, cb, func(context.Context) (int, error) {
		return 0, NewTransientError(errDown, 503)
	})
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
}

func TestBreakerConfig(t *testing.T) {
	cfg := BreakerConfig(0, 0)
	if cfg.FailureThreshold != 5 || cfg.ResetTimeout != 30*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
	cfg = BreakerConfig(3, 60)
	if cfg.FailureThreshold != 3 || cfg.ResetTimeout != time.Minute {
		t.Errorf("overrides = %+v", cfg)
	}
}

func TestCircuitState_String(t *testing.T) {
	for state, want := range map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}

func TestServiceBreakers(t *testing.T) {
	sb := NewServiceBreakers(BreakerConfig(1, 60))

	jina := sb.Get("jina")
	if sb.Get("jina") != jina {
		t.Fatal("Get should return the same breaker")
	}

	llm := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 5})
	sb.Add("llm", llm)
	if sb.Get("llm") != llm {
		t.Fatal("Add should register the given breaker")
	}

	_, _ = Call(context.Background(), jina, fail)
	states := sb.States()
	if len(states) != 2 || states["jina"] != CircuitOpen || states["llm"] != CircuitClosed {
		t.Errorf("States() = %v", states)
	}
}
