package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
	"github.com/warp/points-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLite_AccountRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)

	// GIVEN a fresh account
	acct := ledger.NewAccount("alice", ledger.P(100), "2026-05", now)
	acct.Balance = ledger.ParsePoints("42.5")
	require.NoError(t, store.PutAccount(ctx, acct))

	// WHEN reading it back
	got, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)

	// THEN every field survived, exact decimals included
	assert.Equal(t, ledger.UserID("alice"), got.UserID)
	assert.Equal(t, "42.5", got.Balance.String())
	assert.Equal(t, "100", got.MonthlyAllowance.String())
	assert.Equal(t, ledger.Month("2026-05"), got.LastResetMonth)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestSQLite_GetAccount_Missing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetAccount(context.Background(), "nobody")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestSQLite_PutAccount_VersionConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	acct := ledger.NewAccount("alice", ledger.P(100), "2026-05", now)
	require.NoError(t, store.PutAccount(ctx, acct))

	// A second version-0 insert of the same user loses the race.
	assert.ErrorIs(t, store.PutAccount(ctx, acct), ledger.ErrConflict)

	// Update with the current version succeeds and bumps it.
	got, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	got.Balance = ledger.P(50)
	require.NoError(t, store.PutAccount(ctx, got))

	// A writer still holding version 1 is rejected with no effect.
	stale := got
	stale.Balance = ledger.P(999)
	assert.ErrorIs(t, store.PutAccount(ctx, stale), ledger.ErrConflict)

	final, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "50", final.Balance.String())
	assert.Equal(t, int64(2), final.Version)
}

func TestSQLite_Transactions_AppendAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	txs := []ledger.PointTransaction{
		{ID: "tx-1", UserID: "alice", Amount: ledger.P(100), Type: ledger.TxReceived, RefID: "post-1", FromUserID: "bob", CreatedAt: base},
		{ID: "tx-2", UserID: "alice", Amount: ledger.P(-30), Type: ledger.TxGiven, RefID: "post-2", CreatedAt: base.Add(time.Minute)},
		{ID: "tx-3", UserID: "bob", Amount: ledger.P(30), Type: ledger.TxReceived, RefID: "post-2", FromUserID: "alice", CreatedAt: base.Add(time.Minute)},
	}
	require.NoError(t, store.AppendTransactions(ctx, txs))

	// Per-user query returns only that user's entries, oldest first.
	got, err := store.TransactionsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ledger.TransactionID("tx-1"), got[0].ID)
	assert.Equal(t, ledger.UserID("bob"), got[0].FromUserID)
	assert.Equal(t, "-30", got[1].Amount.String())

	// Appending a duplicate id is an append-only violation.
	err = store.AppendTransactions(ctx, []ledger.PointTransaction{
		{ID: "tx-1", UserID: "alice", Amount: ledger.P(1), Type: ledger.TxReceived, CreatedAt: base},
	})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestSQLite_WithTx_CommitAndRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	// GIVEN a committed account
	acct := ledger.NewAccount("alice", ledger.P(100), "2026-05", now)
	require.NoError(t, store.PutAccount(ctx, acct))

	// WHEN a transaction writes and then fails
	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s points.Store) error {
		a, err := s.GetAccount(ctx, "alice")
		if err != nil {
			return err
		}
		a.Balance = ledger.P(500)
		if err := s.PutAccount(ctx, a); err != nil {
			return err
		}
		// The uncommitted write is visible inside the transaction.
		inside, err := s.GetAccount(ctx, "alice")
		if err != nil {
			return err
		}
		if inside.Balance.String() != "500" {
			return errors.New("tx read did not see tx write")
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN the write was rolled back
	got, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	assert.Equal(t, int64(1), got.Version)

	// WHEN a transaction succeeds, its writes commit
	err = store.WithTx(ctx, func(s points.Store) error {
		a, err := s.GetAccount(ctx, "alice")
		if err != nil {
			return err
		}
		a.Balance = ledger.P(75)
		return s.PutAccount(ctx, a)
	})
	require.NoError(t, err)

	got, err = store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "75", got.Balance.String())
}

func TestSQLite_BudgetRequest_DecisionUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 5, 2, 11, 0, 0, 0, time.UTC)

	req := points.BudgetPointRequest{
		ID:         "req-1",
		FromUserID: "manager",
		PositionID: "eng-manager",
		ToUserIDs:  []ledger.UserID{"alice", "bob"},
		Amount:     ledger.P(100),
		ValueID:    "teamwork",
		Message:    "great sprint",
		Status:     points.StatusPending,
		CreatedAt:  created,
	}
	require.NoError(t, store.SaveBudgetRequest(ctx, req))

	// Decide it: only the decision fields change on the second save.
	decided := created.Add(2 * time.Hour)
	adjusted := ledger.P(80)
	req.Status = points.StatusApproved
	req.AdjustedAmount = &adjusted
	req.AdminNote = "trimmed to fit budget"
	req.DecidedAt = &decided
	require.NoError(t, store.SaveBudgetRequest(ctx, req))

	got, err := store.GetBudgetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, points.StatusApproved, got.Status)
	assert.Equal(t, "100", got.Amount.String())
	require.NotNil(t, got.AdjustedAmount)
	assert.Equal(t, "80", got.AdjustedAmount.String())
	assert.Equal(t, "trimmed to fit budget", got.AdminNote)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(decided))
	assert.Equal(t, []ledger.UserID{"alice", "bob"}, got.ToUserIDs)

	// Status filter sees it under approved, not pending.
	pending, err := store.ListBudgetRequests(ctx, points.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	approved, err := store.ListBudgetRequests(ctx, points.StatusApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestSQLite_Position_VersionCheck(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pos := points.PositionBudget{
		PositionID:     "eng-manager",
		HasPointBudget: true,
		YearlyBudget:   ledger.P(1000),
		Remaining:      ledger.P(1000),
	}
	require.NoError(t, store.PutPosition(ctx, pos))

	got, err := store.GetPosition(ctx, "eng-manager")
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Version)

	got.Remaining = ledger.P(800)
	require.NoError(t, store.PutPosition(ctx, got))

	stale := got
	stale.Remaining = ledger.P(0)
	assert.ErrorIs(t, store.PutPosition(ctx, stale), ledger.ErrConflict)

	_, err = store.GetPosition(ctx, "unknown")
	assert.ErrorIs(t, err, ledger.ErrPositionNotFound)
}

func TestSQLite_Redemption_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 3, 15, 0, 0, 0, time.UTC)

	red := points.RedemptionRequest{
		ID:       "red-1",
		UserID:   "alice",
		RewardID: "coffee-card",
		Snapshot: points.RewardSnapshot{
			RewardID: "coffee-card",
			Title:    "Coffee Card",
			Cost:     ledger.P(250),
		},
		Status:    points.RedemptionPending,
		CreatedAt: now,
	}
	require.NoError(t, store.SaveRedemption(ctx, red))

	got, err := store.GetRedemption(ctx, "red-1")
	require.NoError(t, err)
	assert.Equal(t, "Coffee Card", got.Snapshot.Title)
	assert.Equal(t, "250", got.Snapshot.Cost.String())
	assert.Equal(t, points.RedemptionPending, got.Status)

	byUser, err := store.ListRedemptionsByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	none, err := store.ListRedemptionsByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_Config_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// An unconfigured store returns a zero config, not an error.
	cfg, err := store.GetConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.MonthlyAllowanceBase.IsZero())

	want := points.PointsConfig{
		MonthlyAllowanceBase: ledger.P(100),
		Values: []points.CompanyValue{
			{ID: "teamwork", Label: "Teamwork"},
		},
		Catalog: []points.Reward{
			{ID: "coffee-card", Title: "Coffee Card", Cost: ledger.ParsePoints("249.99")},
		},
	}
	require.NoError(t, store.SaveConfig(ctx, want))

	got, err := store.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100", got.MonthlyAllowanceBase.String())
	require.Len(t, got.Values, 1)
	assert.Equal(t, "Teamwork", got.Values[0].Label)
	require.Len(t, got.Catalog, 1)
	// Costs survive as exact decimal strings.
	assert.Equal(t, "249.99", got.Catalog[0].Cost.String())

	// Saving again replaces the singleton.
	want.MonthlyAllowanceBase = ledger.P(150)
	require.NoError(t, store.SaveConfig(ctx, want))
	got, err = store.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "150", got.MonthlyAllowanceBase.String())
}
