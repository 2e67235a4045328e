/*
reconcile.go - Replay-based balance reconciliation

PURPOSE:
  The transaction log is the audit trail: replaying a user's entries must
  reproduce the stored account. This is not enforced synchronously (the
  account document is the operational source of truth for speed) but it is
  the property auditors and tests lean on, so the replay lives here rather
  than being re-derived ad hoc.

RECONCILIATION RULES:
  Balance      = sum of received amounts + sum of redeemed amounts
                 (redeemed entries are negative, so plain signed sum)
  TotalEarned  = sum of received amounts
  TotalGiven   = -sum of given amounts (given entries are negative)

  "given" entries never touch Balance: they are paid from the monthly
  allowance pool, which is policy-replenished and not replayable from the
  ledger alone.
*/
package ledger

// =============================================================================
// REPLAY
// =============================================================================

// Replay is the account state derived purely from ledger entries.
type Replay struct {
	Balance     Points
	TotalEarned Points
	TotalGiven  Points
}

// ReplayTransactions folds a user's ledger entries into derived totals.
func ReplayTransactions(txs []PointTransaction) Replay {
	r := Replay{Balance: Zero(), TotalEarned: Zero(), TotalGiven: Zero()}
	for _, tx := range txs {
		switch tx.Type {
		case TxReceived:
			r.Balance = r.Balance.Add(tx.Amount)
			r.TotalEarned = r.TotalEarned.Add(tx.Amount)
		case TxRedeemed:
			r.Balance = r.Balance.Add(tx.Amount) // negative amount
		case TxGiven:
			r.TotalGiven = r.TotalGiven.Add(tx.Amount.Neg()) // negative amount
		}
	}
	return r
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Mismatch describes one field where replay and account disagree.
type Mismatch struct {
	Field    string
	Stored   Points
	Replayed Points
}

// Reconcile compares an account against the replay of its ledger entries.
// An empty result means the audit trail and the account agree.
func Reconcile(account PointAccount, txs []PointTransaction) []Mismatch {
	replay := ReplayTransactions(txs)

	var mismatches []Mismatch
	if !account.Balance.Equal(replay.Balance) {
		mismatches = append(mismatches, Mismatch{Field: "balance", Stored: account.Balance, Replayed: replay.Balance})
	}
	if !account.TotalEarned.Equal(replay.TotalEarned) {
		mismatches = append(mismatches, Mismatch{Field: "total_earned", Stored: account.TotalEarned, Replayed: replay.TotalEarned})
	}
	if !account.TotalGiven.Equal(replay.TotalGiven) {
		mismatches = append(mismatches, Mismatch{Field: "total_given", Stored: account.TotalGiven, Replayed: replay.TotalGiven})
	}
	return mismatches
}
