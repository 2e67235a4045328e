package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// POINTS ARITHMETIC
// =============================================================================

func TestPoints_Arithmetic(t *testing.T) {
	a := P(100)
	b := P(30)

	assert.True(t, a.Sub(b).Equal(P(70)))
	assert.True(t, a.Add(b).Equal(P(130)))
	assert.True(t, b.MulInt(3).Equal(P(90)))
	assert.True(t, b.Neg().IsNegative())
	assert.True(t, Zero().IsZero())
	assert.True(t, a.GreaterOrEqual(P(100)))
	assert.False(t, b.GreaterOrEqual(a))
}

func TestParsePoints_RoundTrips(t *testing.T) {
	p := ParsePoints(P(250).String())
	assert.True(t, p.Equal(P(250)))

	// Garbage parses to zero rather than panicking; store contents are
	// written by us, so this is a last-resort default.
	assert.True(t, ParsePoints("not-a-number").IsZero())
}

func TestMonthOf_UsesClockLocation(t *testing.T) {
	// 2026-03-01 00:30 in UTC+2 is still 2026-02-28 in UTC.
	loc := time.FixedZone("UTC+2", 2*3600)
	instant := time.Date(2026, time.March, 1, 0, 30, 0, 0, loc)

	assert.Equal(t, Month("2026-03"), MonthOf(instant))
	assert.Equal(t, Month("2026-02"), MonthOf(instant.UTC()))
}

// =============================================================================
// ACCOUNT MUTATIONS
// =============================================================================

func TestNewAccount_StartsWithFullAllowance(t *testing.T) {
	now := time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)
	a := NewAccount("u1", P(100), "2026-05", now)

	assert.True(t, a.Balance.IsZero())
	assert.True(t, a.MonthlyAllowance.Equal(P(100)))
	assert.True(t, a.TotalEarned.IsZero())
	assert.True(t, a.TotalGiven.IsZero())
	assert.Equal(t, Month("2026-05"), a.LastResetMonth)
	assert.EqualValues(t, 0, a.Version, "fresh accounts insert at version zero")
}

func TestAccount_CreditAndSpend(t *testing.T) {
	now := time.Now()
	a := NewAccount("u1", P(100), "2026-05", now)

	a.Credit(P(40))
	assert.True(t, a.Balance.Equal(P(40)))
	assert.True(t, a.TotalEarned.Equal(P(40)))

	a.SpendAllowance(P(25))
	assert.True(t, a.MonthlyAllowance.Equal(P(75)))
	assert.True(t, a.TotalGiven.Equal(P(25)))
	// Spending allowance never touches the main balance.
	assert.True(t, a.Balance.Equal(P(40)))
}

func TestResetAllowanceIfStale(t *testing.T) {
	now := time.Now()
	a := NewAccount("u1", P(100), "2026-04", now)
	a.SpendAllowance(P(100))
	require.True(t, a.MonthlyAllowance.IsZero())

	// Same month: no reset, leftover allowance is discarded only on rollover.
	assert.False(t, a.ResetAllowanceIfStale(P(100), "2026-04"))
	assert.True(t, a.MonthlyAllowance.IsZero())

	// New month: allowance snaps back to the base, not base+leftover.
	assert.True(t, a.ResetAllowanceIfStale(P(100), "2026-05"))
	assert.True(t, a.MonthlyAllowance.Equal(P(100)))
	assert.Equal(t, Month("2026-05"), a.LastResetMonth)

	// Idempotent within the month.
	assert.False(t, a.ResetAllowanceIfStale(P(100), "2026-05"))
}

func TestCheckInvariants_RejectsNegativePools(t *testing.T) {
	now := time.Now()
	a := NewAccount("u1", P(100), "2026-05", now)
	require.NoError(t, a.CheckInvariants())

	a.Balance = P(5).Neg()
	err := a.CheckInvariants()
	require.Error(t, err)
	var invErr *InvariantError
	assert.ErrorAs(t, err, &invErr)
	assert.Equal(t, "balance", invErr.Field)

	a = NewAccount("u2", P(100), "2026-05", now)
	a.MonthlyAllowance = P(1).Neg()
	assert.Error(t, a.CheckInvariants())
}
