package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func entry(userID UserID, amount Points, txType TransactionType) PointTransaction {
	return PointTransaction{
		ID:        TransactionID("tx-" + string(userID) + "-" + string(txType)),
		UserID:    userID,
		Amount:    amount,
		Type:      txType,
		CreatedAt: time.Now(),
	}
}

func TestReplayTransactions(t *testing.T) {
	// GIVEN: A user who received 100 + 50, gave 30, redeemed 40
	txs := []PointTransaction{
		entry("u1", P(100), TxReceived),
		entry("u1", P(50), TxReceived),
		entry("u1", P(30).Neg(), TxGiven),
		entry("u1", P(40).Neg(), TxRedeemed),
	}

	r := ReplayTransactions(txs)

	// Balance: received minus redeemed; given never touches it.
	assert.True(t, r.Balance.Equal(P(110)), "balance = 100 + 50 - 40, got %s", r.Balance)
	assert.True(t, r.TotalEarned.Equal(P(150)))
	assert.True(t, r.TotalGiven.Equal(P(30)))
}

func TestReconcile_ConsistentAccount(t *testing.T) {
	now := time.Now()
	a := NewAccount("u1", P(100), "2026-05", now)
	a.Credit(P(80))
	a.SpendAllowance(P(20))

	txs := []PointTransaction{
		entry("u1", P(80), TxReceived),
		entry("u1", P(20).Neg(), TxGiven),
	}

	assert.Empty(t, Reconcile(a, txs))
}

func TestReconcile_DetectsDrift(t *testing.T) {
	now := time.Now()
	a := NewAccount("u1", P(100), "2026-05", now)
	a.Balance = P(75) // balance asserted without a matching ledger entry

	mismatches := Reconcile(a, nil)

	assert.Len(t, mismatches, 1)
	assert.Equal(t, "balance", mismatches[0].Field)
	assert.True(t, mismatches[0].Stored.Equal(P(75)))
	assert.True(t, mismatches[0].Replayed.IsZero())
}
