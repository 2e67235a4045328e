/*
retry.go - Bounded retry for optimistic-concurrency conflicts

PURPOSE:
  Every mutating engine operation is one atomic read-decide-write
  transaction. Under optimistic concurrency, a conflicting commit means
  the in-memory decisions ("is there enough allowance?") were made against
  a stale snapshot, so the ONLY safe recovery is to re-run the whole
  closure from the first read. This file makes that policy explicit:
  bounded attempts, exponential backoff, and a hard rule that
  business-rule errors are never retried.

WHAT GETS RETRIED:
  - ErrConflict (version check failed on commit)
  Nothing else. Insufficient funds, terminal-state violations, not-found
  and validation errors are deterministic given the data and re-running
  them would just repeat the same reads.

WHAT THE CALLER SEES:
  - Success, or the first non-retryable error, verbatim
  - ErrRetriesExhausted (wrapping the last conflict) after the cap
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// RETRY POLICY
// =============================================================================

// RetryPolicy bounds how often a conflicting transaction is re-run.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts including the first
	BaseBackoff time.Duration // Backoff before attempt 2; doubles each retry
	MaxBackoff  time.Duration // Backoff cap
}

// DefaultRetryPolicy suits an interactive HR workload: a handful of quick
// re-runs, then give up and let the user press the button again.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  250 * time.Millisecond,
	}
}

// Run executes fn until it succeeds, fails non-retryably, or the attempt
// budget is spent. fn must be safe to re-run from scratch: it re-reads
// everything it depends on each attempt.
func (p RetryPolicy) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := p.BaseBackoff
	var lastErr error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempts, lastErr)
}
