package notify

import (
	"context"
	"errors"
	"time"

	"courier-dispatch/internal/logx"
)

type counter interface {
	Inc()
}

// RetryConfig describes the retry behavior of RetryingNotifier.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingNotifier retries transient publish failures with exponential
// backoff before giving up. Events are fire-and-forget at the engine level,
// so exhausting the attempts ends in a logged error, nothing more.
type RetryingNotifier struct {
	next    Notifier
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingNotifier checks that next is not nil and returns a RetryingNotifier.
func NewRetryingNotifier(next Notifier, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingNotifier {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	return &RetryingNotifier{next: next, logger: logger, retries: retries, cfg: cfg}
}

// Notify implements Notifier with bounded retries.
func (n *RetryingNotifier) Notify(ctx context.Context, e Event) error {
	var lastErr error
	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		err := n.next.Notify(ctx, e)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == n.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(n.cfg.BaseDelay, n.cfg.MaxDelay, attempt)
		if n.retries != nil {
			n.retries.Inc()
		}
		n.logger.Warn("notifier retry",
			logx.String("event", e.Type),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return lastErr
}

// isRetryable reports whether the publish failure is worth another attempt.
// Context cancellation is permanent; broker errors are assumed transient.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// backoff computes the retry delay.
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
