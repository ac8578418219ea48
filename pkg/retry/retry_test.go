package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 2 {
		t.Fatalf("expected errFlaky after 2 calls, got %v after %d", err, calls)
	}
}

func TestPermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return Permanent(errFlaky)
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if !errors.Is(err, errFlaky) || !IsPermanent(err) {
		t.Fatalf("expected permanent errFlaky, got %v", err)
	}
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}
}

func TestRetryableErrorsFilter(t *testing.T) {
	other := errors.New("other")
	calls := 0
	cfg := fastConfig(4)
	cfg.RetryableErrors = []error{errFlaky}

	err := Do(context.Background(), cfg, func() error {
		calls++
		return other
	})
	if !errors.Is(err, other) || calls != 1 {
		t.Fatalf("expected other after 1 call, got %v after %d", err, calls)
	}
}

func TestDoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(3), func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

