package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/kbukum/flowkit/errors"
)

// flaky fails with err until it has been called failures times.
type flaky struct {
	failures int
	err      error
	calls    int
}

func (f *flaky) call() (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, f.err
	}
	return f.calls, nil
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestRetry(t *testing.T) {
	refused := apperrors.ConnectionFailed("broker", errors.New("refused"))
	tests := []struct {
		name      string
		cfg       RetryConfig
		fn        *flaky
		wantCalls int
		wantErr   error
	}{
		{"first attempt", fastRetry(3), &flaky{}, 1, nil},
		{"recovers", fastRetry(3), &flaky{failures: 2, err: refused}, 3, nil},
		{"exhausted", fastRetry(3), &flaky{failures: 5, err: refused}, 3, refused},
		{"permanent app error", fastRetry(3), &flaky{failures: 5, err: apperrors.InvalidConfig("bad")}, 1, nil},
		{"plain error retried", fastRetry(2), &flaky{failures: 5, err: errors.New("eof")}, 2, nil},
		{
			"custom filter",
			RetryConfig{MaxAttempts: 4, InitialBackoff: time.Millisecond, RetryIf: func(error) bool { return false }},
			&flaky{failures: 5, err: refused},
			1,
			refused,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Retry(context.Background(), tt.cfg, tt.fn.call)
			if tt.fn.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", tt.fn.calls, tt.wantCalls)
			}
			if tt.fn.calls <= tt.fn.failures {
				if err == nil {
					t.Fatal("expected an error")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				if got != 0 {
					t.Errorf("result = %d on failure", got)
				}
				return
			}
			if err != nil || got != tt.wantCalls {
				t.Errorf("got %d, %v", got, err)
			}
		})
	}
}

func TestRetry_StopsOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	fn := &flaky{failures: 100, err: errors.New("down")}

	_, err := Retry(ctx, RetryConfig{MaxAttempts: 100, InitialBackoff: 20 * time.Millisecond}, fn.call)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if fn.calls > 3 {
		t.Errorf("kept retrying past the deadline: %d calls", fn.calls)
	}
}

func TestRetry_OnRetryReportsBackoff(t *testing.T) {
	type retry struct {
		attempt int
		backoff time.Duration
	}
	var seen []retry
	cfg := fastRetry(3)
	cfg.BackoffFactor = 2
	cfg.OnRetry = func(attempt int, _ error, backoff time.Duration) {
		seen = append(seen, retry{attempt, backoff})
	}

	_, _ = Retry(context.Background(), cfg, (&flaky{failures: 3, err: errors.New("x")}).call)

	want := []retry{{1, time.Millisecond}, {2, 2 * time.Millisecond}}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Errorf("OnRetry calls = %v, want %v", seen, want)
	}
}

func TestRetryFunc(t *testing.T) {
	fn := &flaky{failures: 1, err: apperrors.ServiceUnavailable("redis")}
	err := RetryFunc(context.Background(), fastRetry(3), func() error {
		_, err := fn.call()
		return err
	})
	if err != nil || fn.calls != 2 {
		t.Errorf("got %v after %d calls", err, fn.calls)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain", errors.New("x"), true},
		{"canceled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("setup: %w", context.DeadlineExceeded), false},
		{"unavailable", apperrors.ServiceUnavailable("kafka"), true},
		{"timeout", apperrors.Timeout("dial"), true},
		{"not found", apperrors.NotFound("component", "x"), false},
		{"invalid input", apperrors.InvalidInput("key", "empty"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 50 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, BackoffFactor: 3}
	want := []time.Duration{50 * time.Millisecond, 150 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := calculateBackoff(i+1, cfg); got != w {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}

	cfg.Jitter = 0.5
	for range 50 {
		got := calculateBackoff(2, cfg)
		if got < 75*time.Millisecond || got > 225*time.Millisecond {
			t.Fatalf("jittered backoff %v outside [75ms, 225ms]", got)
		}
	}
}
