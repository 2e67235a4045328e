/*
allowance.go - Monthly allowance reset policy

PURPOSE:
  Allowances reset lazily: every allowance-consuming transaction compares
  the account's LastResetMonth against the current calendar month (in the
  engine clock's timezone) and resets in memory before checking
  sufficiency. That avoids a scheduled job but means an account that
  never sends points shows a stale allowance in the UI until it acts.

  CheckAndResetAllowance is the eager path for exactly that staleness: an
  explicit, idempotent reset safe to call redundantly (profile load, a
  monthly sweep). It is written as a single create-if-absent-or-reset
  upsert inside one transaction - not read, catch not-found, then set -
  so two concurrent initializations cannot race into an observable
  half-state: the version check makes one of them re-run and find the
  account already present.
*/
package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/points-engine/ledger"
)

// =============================================================================
// CHECK AND RESET
// =============================================================================

// CheckAndResetAllowance ensures the user's account exists and its
// allowance is current for this month. Returns the up-to-date account.
// Idempotent: calling it again in the same month is a no-op.
func (e *Engine) CheckAndResetAllowance(ctx context.Context, userID ledger.UserID) (ledger.PointAccount, error) {
	if userID == "" {
		return ledger.PointAccount{}, &ledger.ValidationError{Field: "user_id", Message: "user id is required"}
	}

	cfg, err := e.config.Current(ctx)
	if err != nil {
		return ledger.PointAccount{}, fmt.Errorf("load points config: %w", err)
	}

	var result ledger.PointAccount
	err = e.atomically(ctx, func(s Store) error {
		now, month := e.now()

		account, err := s.GetAccount(ctx, userID)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			account = ledger.NewAccount(userID, cfg.MonthlyAllowanceBase, month, now)
			result = account
			return s.PutAccount(ctx, account) // insert; conflict means a concurrent create won, retry re-reads it
		}
		if err != nil {
			return err
		}

		if !account.ResetAllowanceIfStale(cfg.MonthlyAllowanceBase, month) {
			result = account
			return nil // already current, nothing to write
		}
		if err := putAccountChecked(ctx, s, account, now); err != nil {
			return err
		}
		result = account
		return nil
	})
	if err != nil {
		return ledger.PointAccount{}, err
	}
	return result, nil
}

// RefreshAllAllowances runs the eager reset across every known account.
// Used by the monthly sweep; per-account, so one bad account does not
// abort the rest.
func (e *Engine) RefreshAllAllowances(ctx context.Context) (int, error) {
	ids, err := e.store.ListAccountIDs(ctx)
	if err != nil {
		return 0, err
	}

	var reset int
	var firstErr error
	for _, id := range ids {
		if _, err := e.CheckAndResetAllowance(ctx, id); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("refresh allowance for %s: %w", id, err)
			}
			continue
		}
		reset++
	}
	return reset, firstErr
}

// =============================================================================
// READ SURFACE
// =============================================================================

// AccountView is an account as the UI should see it: the allowance shown
// is the value a send would observe, with the lazy reset applied.
type AccountView struct {
	Account        ledger.PointAccount
	EffectiveMonth ledger.Month
}

// GetAccount returns the user's account with the current-month allowance
// computed (not persisted). Missing accounts surface ErrAccountNotFound;
// callers wanting creation use CheckAndResetAllowance.
func (e *Engine) GetAccount(ctx context.Context, userID ledger.UserID) (AccountView, error) {
	cfg, err := e.config.Current(ctx)
	if err != nil {
		return AccountView{}, err
	}

	account, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return AccountView{}, err
	}

	_, month := e.now()
	account.ResetAllowanceIfStale(cfg.MonthlyAllowanceBase, month)
	return AccountView{Account: account, EffectiveMonth: month}, nil
}

// ReconcileAccount replays the user's ledger entries against the stored
// account. An empty slice means the audit trail agrees with the account.
func (e *Engine) ReconcileAccount(ctx context.Context, userID ledger.UserID) ([]ledger.Mismatch, error) {
	account, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := e.store.TransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ledger.Reconcile(account, txs), nil
}
