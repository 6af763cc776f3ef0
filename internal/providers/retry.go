package providers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/config"
)

// Executor runs downstream provider calls under a per-attempt timeout with
// classified-failure retry and linearly growing backoff. It holds no
// shared state, so unrelated calls run fully concurrently.
type Executor struct {
	// Service names the provider for logs and error wrapping.
	Service string
	// Timeout bounds each individual attempt. Zero disables the bound.
	Timeout time.Duration
	// RetryAttempts is the number of additional attempts beyond the
	// first, so total attempts = RetryAttempts+1.
	RetryAttempts int
	// RetryDelay is the base backoff; the delay before attempt n (n>=2)
	// is RetryDelay*(n-1).
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// NewExecutor builds an executor from a provider's configuration.
func NewExecutor(service string, cfg config.ProviderConfig, log *zap.Logger) *Executor {
	return &Executor{
		Service:       service,
		Timeout:       cfg.TimeoutDuration(),
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelayDuration(),
		Logger:        log.Named(service + "-executor"),
	}
}

// ExecuteWithRetry runs fn until it succeeds, fails permanently, or the
// retry budget is exhausted. A permanent failure returns the original
// error unmodified with zero delay; exhaustion returns a
// ServiceUnavailableError wrapping the last error. A per-attempt timeout
// consumes retry budget and backs off exactly like a retryable failure.
//
// When an attempt times out, the in-flight call is abandoned: its eventual
// completion is discarded rather than treated as a late success.
func ExecuteWithRetry[T any](ctx context.Context, ex *Executor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := ex.RetryAttempts + 1
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			delay := time.Duration(n-1) * ex.RetryDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, &ServiceUnavailableError{Service: ex.Service, Op: op, Err: ctx.Err()}
			}
		}

		result, err := runAttempt(ctx, ex.Timeout, op, fn)
		if err == nil {
			if n > 1 {
				ex.Logger.Info("operation recovered",
					zap.String("op", op), zap.Int("attempt", n))
			}
			attemptsTotal.WithLabelValues(ex.Service, op, "success").Inc()
			return result, nil
		}

		class := Classify(err)
		attemptsTotal.WithLabelValues(ex.Service, op, class.String()).Inc()
		if class == ClassPermanent {
			ex.Logger.Warn("operation failed permanently",
				zap.String("op", op), zap.Int("attempt", n), zap.Error(err))
			return zero, unwrapClassified(err)
		}

		lastErr = err
		ex.Logger.Warn("operation attempt failed",
			zap.String("op", op),
			zap.Int("attempt", n),
			zap.Int("max_attempts", attempts),
			zap.String("class", class.String()),
			zap.Error(err))
	}

	exhaustionsTotal.WithLabelValues(ex.Service, op).Inc()
	ex.Logger.Error("operation retry budget exhausted",
		zap.String("op", op), zap.Int("attempts", attempts), zap.Error(lastErr))
	return zero, &ServiceUnavailableError{Service: ex.Service, Op: op, Err: unwrapClassified(lastErr)}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	// Buffered so an abandoned attempt can still complete and be
	// garbage-collected instead of leaking its goroutine.
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(attemptCtx)
		done <- outcome{value, err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-attemptCtx.Done():
		var zero T
		return zero, Classified(ClassTimeout,
			fmt.Errorf("%s: attempt deadline exceeded: %w", op, attemptCtx.Err()))
	}
}

// unwrapClassified strips the taxonomy tag so callers see the provider's
// original error.
func unwrapClassified(err error) error {
	if tagged, ok := err.(*ClassifiedError); ok {
		return tagged.Err
	}
	return err
}
