/*
Package ledger provides the core types for the points ledger engine.

PURPOSE:
  This package contains the domain-agnostic building blocks for a
  recognition-and-rewards points economy: exact point amounts, per-user
  point accounts, and an immutable transaction log. The domain flows
  (recognition, budget grants, redemption) live in the points package
  and are built entirely on these primitives.

KEY CONCEPTS IN THIS FILE (types.go):
  - Points:           An exact point quantity (decimal-backed, no float drift)
  - Month:            A year-month token driving lazy allowance resets
  - PointAccount:     One per user; two pools (balance vs. monthly allowance)
  - PointTransaction: An immutable ledger entry recording one signed movement

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified once written
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Two pools: Allowance (points to give) is a separate pool from
     balance (points received, spendable on rewards)
  4. Auditability: Every transaction carries type, reference, and origin

SEE ALSO:
  - errors.go:    Sentinel and structured errors
  - retry.go:     Bounded retry for optimistic-concurrency conflicts
  - reconcile.go: Replay-based balance reconciliation
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POINTS - Exact point quantity
// =============================================================================

// Points is an exact point amount. Amounts in this system are whole
// numbers, but decimal keeps arithmetic exact and serialization lossless.
type Points struct {
	Value decimal.Decimal
}

func P(value int64) Points {
	return Points{Value: decimal.NewFromInt(value)}
}

func Zero() Points {
	return Points{Value: decimal.Zero}
}

// PFromFloat converts a float amount (e.g. from a JSON document) without
// accumulating binary floating-point error.
func PFromFloat(value float64) Points {
	return Points{Value: decimal.NewFromFloat(value)}
}

// ParsePoints parses a stored string representation. Malformed input
// yields zero, matching how stored amounts are treated on scan.
func ParsePoints(s string) Points {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero()
	}
	return Points{Value: d}
}

func (p Points) Add(q Points) Points        { return Points{Value: p.Value.Add(q.Value)} }
func (p Points) Sub(q Points) Points        { return Points{Value: p.Value.Sub(q.Value)} }
func (p Points) Neg() Points                { return Points{Value: p.Value.Neg()} }
func (p Points) MulInt(n int) Points        { return Points{Value: p.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (p Points) IsNegative() bool           { return p.Value.IsNegative() }
func (p Points) IsPositive() bool           { return p.Value.IsPositive() }
func (p Points) IsZero() bool               { return p.Value.IsZero() }
func (p Points) Equal(q Points) bool        { return p.Value.Equal(q.Value) }
func (p Points) LessThan(q Points) bool     { return p.Value.LessThan(q.Value) }
func (p Points) GreaterThan(q Points) bool  { return p.Value.GreaterThan(q.Value) }
func (p Points) GreaterOrEqual(q Points) bool { return p.Value.GreaterThanOrEqual(q.Value) }
func (p Points) String() string             { return p.Value.String() }
func (p Points) Float64() float64           { f, _ := p.Value.Float64(); return f }

// =============================================================================
// MONTH - Year-month token for allowance resets
// =============================================================================

// Month is a year-month token ("2025-07"). Accounts remember the month
// their allowance was last reset; comparing against the current month
// drives the lazy reset inside allowance-consuming transactions.
type Month string

func MonthOf(t time.Time) Month {
	return Month(t.Format("2006-01"))
}

func (m Month) IsZero() bool { return m == "" }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type PositionID string
type TransactionID string

// =============================================================================
// POINT ACCOUNT - One per user, two pools
// =============================================================================

// PointAccount holds a single user's point state.
//
// Two pools, deliberately separate:
//   - MonthlyAllowance: points the user may GIVE this month; resets to the
//     configured base at the start of each month (lazily, on next use).
//   - Balance: points the user has RECEIVED; reduced only by redemption.
//
// Version implements optimistic concurrency: every write must carry the
// version it read, and the store rejects the write with ErrConflict if the
// stored version has moved. Accounts are created lazily on first use and
// never deleted.
type PointAccount struct {
	UserID           UserID
	Balance          Points
	MonthlyAllowance Points
	TotalEarned      Points
	TotalGiven       Points
	LastResetMonth   Month

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount synthesizes a fresh account with a full allowance for the
// given month. Used when a user first participates in the economy.
func NewAccount(userID UserID, allowanceBase Points, month Month, now time.Time) PointAccount {
	return PointAccount{
		UserID:           userID,
		Balance:          Zero(),
		MonthlyAllowance: allowanceBase,
		TotalEarned:      Zero(),
		TotalGiven:       Zero(),
		LastResetMonth:   month,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Credit adds received points to the spendable pool and the earned counter.
func (a *PointAccount) Credit(amount Points) {
	a.Balance = a.Balance.Add(amount)
	a.TotalEarned = a.TotalEarned.Add(amount)
}

// SpendAllowance deducts from the giving pool and bumps the given counter.
// Callers must have verified sufficiency; this does not re-check.
func (a *PointAccount) SpendAllowance(amount Points) {
	a.MonthlyAllowance = a.MonthlyAllowance.Sub(amount)
	a.TotalGiven = a.TotalGiven.Add(amount)
}

// ResetAllowanceIfStale applies the lazy monthly reset in memory. Returns
// true if the allowance was reset. Must be called inside the same
// transaction that checks sufficiency, never as a separate write.
func (a *PointAccount) ResetAllowanceIfStale(base Points, current Month) bool {
	if a.LastResetMonth == current {
		return false
	}
	a.MonthlyAllowance = base
	a.LastResetMonth = current
	return true
}

// CheckInvariants verifies the non-negativity invariant prior to commit.
func (a *PointAccount) CheckInvariants() error {
	if a.Balance.IsNegative() {
		return &InvariantError{UserID: a.UserID, Field: "balance", Value: a.Balance}
	}
	if a.MonthlyAllowance.IsNegative() {
		return &InvariantError{UserID: a.UserID, Field: "monthly_allowance", Value: a.MonthlyAllowance}
	}
	return nil
}

// =============================================================================
// POINT TRANSACTION - Immutable ledger entry
// =============================================================================

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxReceived TransactionType = "received" // Positive: points credited to balance
	TxGiven    TransactionType = "given"    // Negative: allowance spent on recognition
	TxRedeemed TransactionType = "redeemed" // Negative: balance spent on a reward
)

// PointTransaction is one signed point movement. Append-only: the store
// exposes no update or delete for transactions, ever.
//
// Amount is signed from the owning user's perspective: positive for
// incoming (received), negative for outgoing (given, redeemed). RefID
// points at the originating recognition post or redemption request, so
// every movement is traceable to the action that caused it.
type PointTransaction struct {
	ID         TransactionID
	UserID     UserID
	Amount     Points
	Type       TransactionType
	RefID      string
	FromUserID UserID // Set on received entries: who gave the points
	CreatedAt  time.Time
}

// Incoming reports whether this entry credits the user's balance.
func (t PointTransaction) Incoming() bool { return t.Type == TxReceived }
