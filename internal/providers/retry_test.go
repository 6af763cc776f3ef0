package providers_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/providers"
)

func newTestExecutor(attempts int, delay time.Duration) *providers.Executor {
	return &providers.Executor{
		Service:       "test",
		Timeout:       time.Second,
		RetryAttempts: attempts,
		RetryDelay:    delay,
		Logger:        zap.NewNop(),
	}
}

func TestExecuteWithRetryRecoversAfterTransientFailures(t *testing.T) {
	const delay = 20 * time.Millisecond
	ex := newTestExecutor(2, delay)

	var calls int32
	start := time.Now()
	result, err := providers.ExecuteWithRetry(context.Background(), ex, "op",
		func(ctx context.Context) (string, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return "", providers.Classified(providers.ClassRetryable, errors.New("connection reset"))
			}
			return "done", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// Linear backoff: delay*1 before attempt 2, delay*2 before attempt 3.
	assert.GreaterOrEqual(t, time.Since(start), 3*delay)
}

func TestExecuteWithRetryPermanentFailsImmediately(t *testing.T) {
	ex := newTestExecutor(3, 50*time.Millisecond)

	permanent := errors.New("invalid order parameters")
	var calls int32
	start := time.Now()
	_, err := providers.ExecuteWithRetry(context.Background(), ex, "op",
		func(ctx context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "", permanent
		})

	// The original error comes back unwrapped, on the first attempt,
	// with zero backoff.
	assert.Equal(t, permanent, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	var unavailable *providers.ServiceUnavailableError
	assert.False(t, errors.As(err, &unavailable))
}

func TestExecuteWithRetryExhaustionWrapsLastError(t *testing.T) {
	ex := newTestExecutor(2, time.Millisecond)

	last := errors.New("503 upstream overloaded")
	var calls int32
	_, err := providers.ExecuteWithRetry(context.Background(), ex, "op",
		func(ctx context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 0, last
		})

	var unavailable *providers.ServiceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "retryAttempts+1 total attempts")
}

func TestExecuteWithRetryAttemptTimeoutConsumesBudget(t *testing.T) {
	ex := newTestExecutor(1, time.Millisecond)
	ex.Timeout = 15 * time.Millisecond

	var calls int32
	_, err := providers.ExecuteWithRetry(context.Background(), ex, "op",
		func(ctx context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			select {
			case <-time.After(time.Second):
				return "late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})

	var unavailable *providers.ServiceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "timeouts count toward the retry budget")
}

func TestExecuteWithRetryLateCompletionDiscarded(t *testing.T) {
	ex := newTestExecutor(0, time.Millisecond)
	ex.Timeout = 10 * time.Millisecond

	release := make(chan struct{})
	_, err := providers.ExecuteWithRetry(context.Background(), ex, "op",
		func(ctx context.Context) (string, error) {
			<-release
			return "too late", nil
		})

	var unavailable *providers.ServiceUnavailableError
	require.ErrorAs(t, err, &unavailable)

	// The attempt finishing after the harness gave up must not turn the
	// call into a success retroactively.
	close(release)
	time.Sleep(5 * time.Millisecond)
	require.ErrorAs(t, err, &unavailable)
}

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "broken pipe" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

var _ net.Error = fakeNetError{}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want providers.ErrorClass
	}{
		{"tagged retryable", providers.Classified(providers.ClassRetryable, errors.New("invalid but tagged")), providers.ClassRetryable},
		{"tagged permanent", providers.Classified(providers.ClassPermanent, errors.New("connection but tagged")), providers.ClassPermanent},
		{"deny list beats allow list", errors.New("validation failed: connection field"), providers.ClassPermanent},
		{"unauthorized", errors.New("401 unauthorized"), providers.ClassPermanent},
		{"insufficient funds", errors.New("Insufficient Funds for trade"), providers.ClassPermanent},
		{"rate limited", errors.New("rate limit exceeded"), providers.ClassRetryable},
		{"bad gateway", errors.New("502 bad gateway"), providers.ClassRetryable},
		{"deadline", context.DeadlineExceeded, providers.ClassTimeout},
		{"net error default", fakeNetError{}, providers.ClassRetryable},
		{"unknown default", errors.New("something odd happened"), providers.ClassPermanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, providers.Classify(tc.err))
		})
	}
}
