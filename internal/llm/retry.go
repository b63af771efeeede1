package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type retryCompleter struct {
	next     Completer
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// WithRetry wraps c so failed calls are retried up to attempts more times,
// waiting backoff*n before the n-th retry. attempts <= 0 returns c unchanged.
func WithRetry(c Completer, attempts int, backoff time.Duration, logger *slog.Logger) Completer {
	if attempts <= 0 {
		return c
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryCompleter{next: c, attempts: attempts, backoff: backoff, logger: logger}
}

func (r *retryCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for try := 0; try <= r.attempts; try++ {
		if try > 0 {
			wait := r.backoff * time.Duration(try)
			r.logger.Warn("llm.retry", "attempt", try, "wait_ms", wait.Milliseconds(), "error", lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}
		out, err := r.next.Complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d attempts: %w", r.attempts+1, lastErr)
}
