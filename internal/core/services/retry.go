package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/core/domain"

	"github.com/cenkalti/backoff/v5"
)

// retrier re-runs an operation on transient storage errors
type retrier struct {
	attempts uint
	initial  time.Duration
	log      *slog.Logger
}

func newRetrier(attempts uint, log *slog.Logger) *retrier {
	if attempts == 0 {
		attempts = 1
	}
	return &retrier{attempts: attempts, initial: 50 * time.Millisecond, log: log}
}

// do runs fn until it succeeds, fails permanently, or attempts run out
func (r *retrier) do(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = time.Second

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		if repositories.IsTransient(err) {
			r.log.Warn("transient storage error",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.attempts))

	if err != nil && repositories.IsTransient(err) {
		r.log.Error("storage retries exhausted", slog.String("op", op), slog.String("error", err.Error()))
		return fmt.Errorf("%w: %s: %v", domain.ErrTransientStorage, op, err)
	}
	return err
}
