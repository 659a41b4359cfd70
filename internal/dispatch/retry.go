package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// newBackOff returns the per-batch retry schedule: BackoffInitial, doubling,
// capped at BackoffMax, no jitter, at most MaxAttempts-1 waits.
func newBackOff(ctx context.Context, p ports.DispatchPolicy) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.BackoffInitial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.BackoffMax,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// classifyWithRetry calls the classifier until it succeeds or the attempt
// budget is spent. Every classifier error is retryable; a context error ends
// the loop early.
func (d *Dispatcher) classifyWithRetry(ctx context.Context, batch *domain.Batch) ([]domain.Outcome, int, error) {
	var (
		attempts int
		outcomes []domain.Outcome
	)

	op := func() error {
		attempts++
		out, err := d.classifier.ClassifyBatch(ctx, batch.Records)
		if err != nil {
			return err
		}
		if len(out) != batch.Len() {
			return fmt.Errorf("classifier returned %d outcomes for %d records", len(out), batch.Len())
		}
		outcomes = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		d.obs.LogError("batch_dispatch_retry", err,
			ports.Field{Key: "batch_id", Value: batch.ID},
			ports.Field{Key: "attempt", Value: attempts},
			ports.Field{Key: "backoff", Value: wait.String()})
	}

	if err := backoff.RetryNotify(op, newBackOff(ctx, d.policy), notify); err != nil {
		return nil, attempts, fmt.Errorf("batch %s failed after %d attempts: %w", batch.ID, attempts, err)
	}
	return outcomes, attempts, nil
}
