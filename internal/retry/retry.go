package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/practiva/aigate/pkg/models"
)

// DefaultMaxAttempts is the default retry cap. Some flows disable retry
// entirely; see Options.
const DefaultMaxAttempts = 3

// MaxRetryDelay caps every computed delay, retry-after hints included.
const MaxRetryDelay = 8 * time.Second

// baseDelays holds the per-code starting delay. Only retryable codes have
// an entry; the values are tunable constants, not invariants.
var baseDelays = map[models.ErrorCode]time.Duration{
	models.ErrInferenceError:   1 * time.Second,
	models.ErrInferenceTimeout: 2 * time.Second,
	models.ErrRateLimited:      5 * time.Second,
}

// Retryable reports whether the code is worth retrying. Quota exhaustion
// needs a reset window, not a retry, so it is excluded along with the whole
// client-error family.
func Retryable(code models.ErrorCode) bool {
	_, ok := baseDelays[code]
	return ok
}

// Delay computes the backoff before retry attempt n (0-based): the code's
// base delay doubled per attempt, floored by the backend's retry-after hint,
// capped at MaxRetryDelay.
func Delay(code models.ErrorCode, attempt int, retryAfterSec int) time.Duration {
	base, ok := baseDelays[code]
	if !ok {
		base = 1 * time.Second
	}
	d := base << attempt
	if hint := time.Duration(retryAfterSec) * time.Second; hint > d {
		d = hint
	}
	if d > MaxRetryDelay {
		d = MaxRetryDelay
	}
	return d
}

// Options tunes a retried call.
type Options struct {
	// MaxAttempts is the total number of tries (first call included).
	// Zero means DefaultMaxAttempts; 1 disables retry.
	MaxAttempts int

	// OnRetry is invoked before each backoff sleep with the upcoming
	// attempt number (1-based) and the computed delay, so callers can
	// surface "retrying…" feedback.
	OnRetry func(attempt int, delay time.Duration)

	// Sleep replaces the timed suspension, letting tests run without real
	// timers. Nil uses a context-aware time.After wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NoRetry disables automatic retry for a call.
var NoRetry = Options{MaxAttempts: 1}

// Do runs op, retrying retryable AIErrors with exponential backoff until it
// succeeds or the attempt cap is hit. Non-retryable errors fail immediately
// with no delay. After exhausting retries the last error is returned
// unchanged.
func Do(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = waitFor
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		var aiErr *models.AIError
		if !errors.As(lastErr, &aiErr) || !Retryable(aiErr.Code) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := Delay(aiErr.Code, attempt, aiErr.RetryAfterSec)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, delay)
		}
		log.Debug().
			Str("code", string(aiErr.Code)).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying AI request")
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// waitFor suspends for d or until the context is cancelled.
func waitFor(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
