package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	flaky := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("rate limited")
		}
		return "[]", nil
	})

	got, err := WithRetry(flaky, 3, time.Millisecond, nil).Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "[]" || calls != 3 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	failing := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", errors.New("boom")
	})

	_, err := WithRetry(failing, 2, time.Millisecond, nil).Complete(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped boom error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_ZeroAttemptsIsPassthrough(t *testing.T) {
	c := CompleterFunc(func(ctx context.Context, prompt string) (string, error) { return prompt, nil })
	if _, ok := WithRetry(c, 0, time.Second, nil).(CompleterFunc); !ok {
		t.Fatalf("expected the original completer back")
	}
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	failing := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		cancel()
		return "", errors.New("boom")
	})
	_, err := WithRetry(failing, 5, time.Hour, nil).Complete(ctx, "p")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
