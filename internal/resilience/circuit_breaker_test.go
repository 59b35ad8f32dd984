package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeClock lets tests move past the reset timeout without sleeping
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker("test", maxFailures, time.Second)
	cb.now = clock.now
	return cb, clock
}

func failingCall(ctx context.Context) error { return errors.New("provider down") }
func okCall(ctx context.Context) error      { return nil }

func TestCircuitBreaker_StateClosed(t *testing.T) {
	cb, _ := newTestBreaker(3)

	if cb.GetState() != StateClosed {
		t.Errorf("Expected initial state to be Closed, got %s", cb.GetState())
	}
	if !cb.allowRequest() {
		t.Error("Expected to allow request in Closed state")
	}
}

func TestCircuitBreaker_OpenAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.RecordResult(false)
	cb.RecordResult(false)
	if cb.GetState() != StateClosed {
		t.Error("Expected state to still be Closed after 2 failures")
	}

	cb.RecordResult(false)
	if cb.GetState() != StateOpen {
		t.Error("Expected state to be Open after 3 failures")
	}
	if cb.allowRequest() {
		t.Error("Expected to not allow request in Open state")
	}
}

func TestCircuitBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(2)

	cb.RecordResult(false)
	cb.RecordResult(true)
	cb.RecordResult(false)

	if cb.GetState() != StateClosed {
		t.Error("Expected non-consecutive failures to keep the circuit Closed")
	}
}

func TestCircuitBreaker_HalfOpenTrialCall(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordResult(false)

	if cb.allowRequest() {
		t.Fatal("Expected request to be rejected before reset timeout")
	}

	clock.advance(2 * time.Second)

	if !cb.allowRequest() {
		t.Fatal("Expected a trial call to be allowed after reset timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Errorf("Expected HalfOpen, got %s", cb.GetState())
	}
	if cb.allowRequest() {
		t.Error("Expected a second concurrent trial call to be rejected")
	}
}

func TestCircuitBreaker_CloseAfterSuccessfulTrial(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordResult(false)
	clock.advance(2 * time.Second)

	if err := cb.Call(context.Background(), okCall); err != nil {
		t.Fatalf("Expected the trial call to succeed, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected Closed after a successful trial call, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OpenAfterFailedTrial(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordResult(false)
	clock.advance(2 * time.Second)

	if err := cb.Call(context.Background(), failingCall); err == nil {
		t.Fatal("Expected trial call error")
	}
	if cb.GetState() != StateOpen {
		t.Errorf("Expected Open after a failed trial call, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_Call(t *testing.T) {
	cb, _ := newTestBreaker(3)

	if err := cb.Call(context.Background(), okCall); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := cb.Call(context.Background(), failingCall); err == nil {
		t.Error("Expected error from failed call")
	}
}

func TestCircuitBreaker_CallOpenFailsFast(t *testing.T) {
	cb, _ := newTestBreaker(1)
	cb.RecordResult(false)

	called := false
	err := cb.Call(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected provider not to be called while circuit is open")
	}
}

func TestCircuitBreaker_CanceledContextNotCounted(t *testing.T) {
	cb, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())

	err := cb.Call(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected cancellation not to open the circuit, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_GetStats(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.RecordResult(true)
	cb.RecordResult(true)
	cb.RecordResult(false)

	state, requestCount, failureCount, failureRate := cb.GetStats()

	if state != StateClosed {
		t.Errorf("Expected state Closed, got %s", state)
	}
	if requestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", requestCount)
	}
	if failureCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failureCount)
	}
	if failureRate < 33.0 || failureRate > 34.0 {
		t.Errorf("Expected failure rate around 33.33%%, got %.2f%%", failureRate)
	}
}

func TestCircuitBreaker_HealthCheck(t *testing.T) {
	cb, clock := newTestBreaker(1)

	if ok, err := cb.HealthCheck(context.Background()); !ok || err != nil {
		t.Errorf("Expected healthy closed breaker, got %v, %v", ok, err)
	}

	cb.RecordResult(false)
	ok, err := cb.HealthCheck(context.Background())
	if ok || !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected unhealthy open breaker, got %v, %v", ok, err)
	}
	if err != nil && !strings.Contains(err.Error(), "1 of 1 requests failed") {
		t.Errorf("Expected failure stats in %q", err)
	}

	// Cool-down over: the next call is let through, so the dependency is ready again
	clock.advance(2 * time.Second)
	if ok, err := cb.HealthCheck(context.Background()); !ok || err != nil {
		t.Errorf("Expected healthy breaker after the reset timeout, got %v, %v", ok, err)
	}
	if cb.GetState() != StateOpen {
		t.Errorf("Expected HealthCheck not to change state, got %s", cb.GetState())
	}
}
