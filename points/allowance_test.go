package points_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
)

// =============================================================================
// CHECK AND RESET
// =============================================================================

func TestCheckAndResetAllowance_CreatesAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t, 100)

	account, err := engine.CheckAndResetAllowance(context.Background(), "newcomer")
	require.NoError(t, err)

	assert.Equal(t, ledger.UserID("newcomer"), account.UserID)
	assert.True(t, account.MonthlyAllowance.Equal(ledger.P(100)))
	assert.True(t, account.Balance.IsZero())
	assert.Equal(t, ledger.Month("2026-05"), account.LastResetMonth)
}

func TestCheckAndResetAllowance_IdempotentWithinMonth(t *testing.T) {
	// GIVEN: An account that already spent part of its allowance
	// WHEN: The reset runs again in the same month
	// THEN: Nothing changes; a reset never tops an account back up mid-month

	engine, _, _ := newTestEngine(t, 100)
	ctx := context.Background()
	seedAccount(t, engine, "u1")

	_, err := engine.SendRecognition(ctx, points.SendRecognitionInput{
		FromUserID: "u1", ToUserIDs: []ledger.UserID{"u2"}, PointsEach: ledger.P(40),
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		account, err := engine.CheckAndResetAllowance(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, account.MonthlyAllowance.Equal(ledger.P(60)))
	}
}

func TestCheckAndResetAllowance_NewMonthResets(t *testing.T) {
	engine, _, clock := newTestEngine(t, 100)
	ctx := context.Background()
	seedAccount(t, engine, "u1")

	_, err := engine.SendRecognition(ctx, points.SendRecognitionInput{
		FromUserID: "u1", ToUserIDs: []ledger.UserID{"u2"}, PointsEach: ledger.P(100),
	})
	require.NoError(t, err)

	clock.Set(may2026().AddDate(0, 1, 0))

	account, err := engine.CheckAndResetAllowance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, account.MonthlyAllowance.Equal(ledger.P(100)))
	assert.Equal(t, ledger.Month("2026-06"), account.LastResetMonth)

	// Balance and counters survive the month boundary.
	assert.True(t, account.TotalGiven.Equal(ledger.P(100)))
}

func TestRefreshAllAllowances_SweepsEveryAccount(t *testing.T) {
	engine, _, clock := newTestEngine(t, 100)
	ctx := context.Background()

	users := []ledger.UserID{"a", "b", "c"}
	for _, u := range users {
		seedAccount(t, engine, u)
	}
	_, err := engine.SendRecognition(ctx, points.SendRecognitionInput{
		FromUserID: "a", ToUserIDs: []ledger.UserID{"b"}, PointsEach: ledger.P(100),
	})
	require.NoError(t, err)

	clock.Set(may2026().AddDate(0, 1, 0))

	n, err := engine.RefreshAllAllowances(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(users), n)

	for _, u := range users {
		view, err := engine.GetAccount(ctx, u)
		require.NoError(t, err)
		assert.True(t, view.Account.MonthlyAllowance.Equal(ledger.P(100)), "account %s", u)
		assert.Equal(t, ledger.Month("2026-06"), view.Account.LastResetMonth)
	}
}

// =============================================================================
// READ SURFACE
// =============================================================================

func TestGetAccount_AppliesLazyResetWithoutPersisting(t *testing.T) {
	// The view shows the allowance a send would observe, but the stored
	// row keeps the old month token until something actually writes.
	engine, mem, clock := newTestEngine(t, 100)
	ctx := context.Background()
	seedAccount(t, engine, "u1")

	_, err := engine.SendRecognition(ctx, points.SendRecognitionInput{
		FromUserID: "u1", ToUserIDs: []ledger.UserID{"u2"}, PointsEach: ledger.P(70),
	})
	require.NoError(t, err)

	clock.Set(may2026().AddDate(0, 1, 0))

	view, err := engine.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, view.Account.MonthlyAllowance.Equal(ledger.P(100)))
	assert.Equal(t, ledger.Month("2026-06"), view.EffectiveMonth)

	stored, err := mem.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Month("2026-05"), stored.LastResetMonth, "read path must not write")
	assert.True(t, stored.MonthlyAllowance.Equal(ledger.P(30)))
}

func TestGetAccount_Missing(t *testing.T) {
	engine, _, _ := newTestEngine(t, 100)

	_, err := engine.GetAccount(context.Background(), "nobody")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
