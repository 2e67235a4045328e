package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func TestRetry_SucceedsAfterConflicts(t *testing.T) {
	// GIVEN: A function that conflicts twice before succeeding
	// WHEN: Run under a policy with enough attempts
	// THEN: It succeeds, and every conflict ran the function again

	calls := 0
	err := fastRetry(5).Run(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return ErrConflict
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_BusinessRuleErrorsAreNotRetried(t *testing.T) {
	// Deterministic rejections would fail identically on re-run.
	calls := 0
	wantErr := &InsufficientPointsError{
		UserID:    "u1",
		Available: P(30),
		Requested: P(50),
		Sentinel:  ErrInsufficientAllowance,
	}

	err := fastRetry(5).Run(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})

	assert.Equal(t, 1, calls, "business-rule errors must not be retried")
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestRetry_ExhaustionSurfacesSentinel(t *testing.T) {
	calls := 0
	err := fastRetry(3).Run(context.Background(), func(ctx context.Context) error {
		calls++
		return ErrConflict
	})

	assert.Equal(t, 3, calls)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestRetry_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseBackoff: time.Hour, // would hang without cancellation
		MaxBackoff:  time.Hour,
	}

	done := make(chan error, 1)
	go func() {
		done <- policy.Run(ctx, func(ctx context.Context) error {
			return ErrConflict
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe context cancellation")
	}
}
