package detect

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/snapkeeper/snapkeeper/internal/logging"
)

// Retrying wraps a Detector with bounded retries. Analyzer backends fail
// transiently, so a failed attempt is retried with exponential backoff up to
// MaxRetries additional attempts. Context cancellation stops the loop.
type Retrying struct {
	next       Detector
	maxRetries uint64
	baseDelay  time.Duration
	logger     logging.Logger
}

func NewRetrying(next Detector, maxRetries uint64, baseDelay time.Duration, logger logging.Logger) *Retrying {
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	return &Retrying{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger.With("module", "detect_retry"),
	}
}

func (r *Retrying) Detect(ctx context.Context, key string) ([]Label, error) {
	var labels []Label

	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.baseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var attemptErr error
		labels, attemptErr = r.next.Detect(ctx, key)
		if attemptErr != nil {
			r.logger.Warn(ctx, "detection attempt failed", "key", key, "error", attemptErr)
			return retry.RetryableError(attemptErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return labels, nil
}
