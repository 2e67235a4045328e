/*
engine.go - Engine construction and shared transaction plumbing

PURPOSE:
  One Engine serves all five ledger operations. Dependencies are injected
  at construction:
  - TxStore:        The transactional store everything runs against
  - ConfigProvider: The points policy (allowance base, catalog)
  - Clock:          Source of "now", fixed in tests; the clock's location
                    is the canonical timezone for month-boundary decisions
  - Retry:          Bounded re-run policy for concurrency conflicts

TRANSACTION SHAPE:
  Every mutating operation is written as
      e.atomically(ctx, func(s Store) error { ... })
  which runs the closure inside one store transaction, re-running it
  through the retry policy on conflict, with a per-attempt deadline so a
  hung attempt is treated as a conflict rather than blocking forever.
  Closures therefore re-read everything they depend on at the top.

IDENTITY:
  The engine performs no authentication or authorization. Callers supply
  already-resolved actor and target ids and must have checked permission
  before invoking an operation.
*/
package points

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/warp/points-engine/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store  TxStore
	config ConfigProvider
	clock  func() time.Time
	retry  ledger.RetryPolicy

	// attemptTimeout bounds one transaction attempt's wall clock.
	attemptTimeout time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock fixes the engine's time source. The clock's location decides
// which calendar month an operation falls in.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRetryPolicy overrides the conflict retry policy.
func WithRetryPolicy(p ledger.RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// WithAttemptTimeout overrides the per-attempt deadline.
func WithAttemptTimeout(d time.Duration) Option {
	return func(e *Engine) { e.attemptTimeout = d }
}

// NewEngine wires up an engine against a transactional store.
func NewEngine(store TxStore, config ConfigProvider, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		config:         config,
		clock:          time.Now,
		retry:          ledger.DefaultRetryPolicy(),
		attemptTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// SHARED PLUMBING
// =============================================================================

// now returns the engine's current time and the month token derived from it.
func (e *Engine) now() (time.Time, ledger.Month) {
	t := e.clock()
	return t, ledger.MonthOf(t)
}

// atomically runs fn as one store transaction under the retry policy.
// A deadline exceeded inside an attempt counts as a conflict: the store's
// atomicity guarantee means nothing partial committed, so re-running is
// safe and correct.
func (e *Engine) atomically(ctx context.Context, fn func(Store) error) error {
	return e.retry.Run(ctx, func(ctx context.Context) error {
		attemptCtx := ctx
		if e.attemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
			defer cancel()
		}

		err := e.store.WithTx(attemptCtx, fn)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ledger.ErrConflict
		}
		return err
	})
}

// loadOrNewAccount reads an account inside a transaction, synthesizing a
// fresh one (Version 0, full allowance) when the user has never
// participated, and applying the lazy monthly reset when the stored token
// is stale. The reset happens in memory, within the same transaction that
// will check sufficiency and write the account back.
func loadOrNewAccount(ctx context.Context, s Store, userID ledger.UserID, base ledger.Points, month ledger.Month, now time.Time) (ledger.PointAccount, error) {
	account, err := s.GetAccount(ctx, userID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ledger.NewAccount(userID, base, month, now), nil
	}
	if err != nil {
		return ledger.PointAccount{}, err
	}
	account.ResetAllowanceIfStale(base, month)
	return account, nil
}

// putAccountChecked verifies non-negativity then writes the account.
func putAccountChecked(ctx context.Context, s Store, account ledger.PointAccount, now time.Time) error {
	if err := account.CheckInvariants(); err != nil {
		return err
	}
	account.UpdatedAt = now
	return s.PutAccount(ctx, account)
}

func newID() string {
	return uuid.NewString()
}
