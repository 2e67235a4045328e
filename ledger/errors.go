/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The split matters operationally:

  1. Business-rule violations - deterministic given the data; surfaced
     verbatim to the caller with numeric context; NEVER retried.
  2. Transient errors - optimistic-concurrency conflicts and timeouts;
     retried transparently by the retry wrapper, never shown raw.
  3. Not-found errors - missing referenced documents.

USAGE:
  Engines return structured errors that unwrap to a sentinel:

    var insuff *ledger.InsufficientPointsError
    if errors.As(err, &insuff) {
        render(insuff.Available, insuff.Requested)
    }
    if errors.Is(err, ledger.ErrInsufficientAllowance) { ... }

SEE ALSO:
  - retry.go: Uses IsRetryable to decide what to re-run
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientAllowance is returned when a recognition transfer
	// exceeds the sender's monthly allowance pool.
	ErrInsufficientAllowance = errors.New("insufficient monthly allowance")

	// ErrInsufficientBalance is returned when a redemption exceeds the
	// user's spendable balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientBudget is returned when approving a budget grant would
	// overdraw the position's remaining yearly budget.
	ErrInsufficientBudget = errors.New("insufficient position budget")

	// ErrNoBudgetConfigured is returned when a position has no point budget.
	ErrNoBudgetConfigured = errors.New("position has no point budget configured")

	// ErrAlreadyProcessed is returned when approving or rejecting a budget
	// request that already reached a terminal state.
	ErrAlreadyProcessed = errors.New("request already processed")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("point account not found")

	// ErrRequestNotFound is returned when a referenced budget request doesn't exist.
	ErrRequestNotFound = errors.New("budget request not found")

	// ErrPositionNotFound is returned when a referenced position doesn't exist.
	ErrPositionNotFound = errors.New("position not found")

	// ErrRewardNotFound is returned when a referenced reward doesn't exist.
	ErrRewardNotFound = errors.New("reward not found")

	// ErrConflict is returned when a version check detects a concurrent
	// write. The whole read-decide-write sequence must be re-run; resuming
	// mid-transaction would act on a stale snapshot.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrRetriesExhausted is returned after the bounded retry policy gives
	// up on a conflicting operation. Safe to surface as "try again".
	ErrRetriesExhausted = errors.New("transaction retries exhausted")
)

// =============================================================================
// STRUCTURED ERRORS - Carry numeric context for user-facing messages
// =============================================================================

// InsufficientPointsError reports a shortage in one of the point pools.
// Sentinel distinguishes which pool: ErrInsufficientAllowance for the
// giving pool, ErrInsufficientBalance for the spendable pool.
type InsufficientPointsError struct {
	UserID    UserID
	Available Points
	Requested Points
	Sentinel  error
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("%v: available %s, requested %s",
		e.Sentinel, e.Available, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error { return e.Sentinel }

// InsufficientBudgetError reports a position budget shortage. Remaining is
// carried so the caller can render "insufficient budget, remaining X"
// without a second lookup.
type InsufficientBudgetError struct {
	PositionID PositionID
	Remaining  Points
	Requested  Points
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("insufficient position budget: remaining %s, requested %s",
		e.Remaining, e.Requested)
}

func (e *InsufficientBudgetError) Unwrap() error { return ErrInsufficientBudget }

// AlreadyProcessedError reports a terminal-state violation on a budget
// request, carrying the status it was found in.
type AlreadyProcessedError struct {
	RequestID string
	Status    string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("request %s already processed: status is %s", e.RequestID, e.Status)
}

func (e *AlreadyProcessedError) Unwrap() error { return ErrAlreadyProcessed }

// InvariantError reports a would-be negative pool at commit time. Seeing
// one means an engine skipped its sufficiency check; the transaction is
// aborted rather than committing a negative balance.
type InvariantError struct {
	UserID UserID
	Field  string
	Value  Points
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s for user %s would be %s", e.Field, e.UserID, e.Value)
}

// ValidationError rejects bad input before any transaction begins.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// =============================================================================
// ERROR CLASSIFIERS
// =============================================================================

// IsRetryable returns true if re-running the whole operation might succeed.
// Only concurrency conflicts qualify; timeouts are mapped to ErrConflict by
// the stores before they get here.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsBusinessRule returns true for deterministic violations that must be
// surfaced to the caller immediately and never retried.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrInsufficientAllowance) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientBudget) ||
		errors.Is(err, ErrNoBudgetConfigured) ||
		errors.Is(err, ErrAlreadyProcessed)
}

// IsNotFound returns true if the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrPositionNotFound) ||
		errors.Is(err, ErrRewardNotFound)
}
