package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2,
	}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(2), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || got != "ok" || calls != 1 {
		t.Fatalf("got %q, %v after %d calls", got, err, calls)
	}
}

func TestRetry_RetriesTransient(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy(2)
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	got, err := Retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, NewTransientError(errors.New("503"), 503)
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(retried) != 1 || retried[0] != 1 {
		t.Errorf("OnRetry attempts = %v, want [1]", retried)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	last := NewTransientError(errors.New("still down"), 503)
	_, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		return 0, last
	})
	if !errors.Is(err, last) {
		t.Fatalf("err = %v, want last error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_PermanentErrorStops(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("401 unauthorized")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err = %v after %d calls, want 1 call", err, calls)
	}
}

func TestRetry_CustomPredicate(t *testing.T) {
	calls := 0
	p := fastPolicy(2)
	p.ShouldRetry = func(err error) bool { return err.Error() == "again" }

	_, _ = Retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("again")
	})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, p, func(context.Context) (int, error) {
			calls++
			return 0, NewTransientError(errors.New("busy"), 429)
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retry did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 2}

	if got := p.Backoff(1); got != time.Second {
		t.Errorf("Backoff(1) = %v", got)
	}
	if got := p.Backoff(2); got != 2*time.Second {
		t.Errorf("Backoff(2) = %v", got)
	}
	if got := p.Backoff(5); got != 3*time.Second {
		t.Errorf("Backoff(5) = %v, want capped 3s", got)
	}

	p.JitterFraction = 0.1
	for range 50 {
		got := p.Backoff(1)
		if got < 900*time.Millisecond || got > 1100*time.Millisecond {
			t.Fatalf("jittered Backoff(1) = %v outside ±10%%", got)
		}
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	if p.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", p.MaxAttempts)
	}
	if p.ShouldRetry == nil {
		t.Error("ShouldRetry should default to IsTransient")
	}
	if p.Multiplier != 1 || p.MaxBackoff != p.InitialBackoff {
		t.Errorf("unexpected defaults %+v", p)
	}
}
