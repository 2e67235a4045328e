/*
recognition.go - Peer-to-peer recognition transfers

PURPOSE:
  The "give points" flow. Deducts amount*len(recipients) from the
  sender's monthly allowance (NOT their balance) and credits each
  recipient's balance, all inside one atomic transaction that also writes
  the recognition post and one ledger entry per party.

INVARIANTS:
  - All-or-nothing: no partial transfer; a failed sufficiency check
    leaves every account untouched
  - Conservation: sender allowance drops by exactly what recipients'
    balances gain
  - Non-negativity: checked in memory before the write, re-checked by
    account invariants at write time

CONCURRENCY:
  Two concurrent sends from the same sender each re-run their sufficiency
  check under their own snapshot; the version check on the sender account
  forces the loser to re-read, so both can only succeed if the allowance
  covers both.
*/
package points

import (
	"context"
	"fmt"

	"github.com/warp/points-engine/ledger"
)

// =============================================================================
// SEND RECOGNITION
// =============================================================================

// SendRecognitionInput carries the already-validated identities and the
// transfer parameters for one recognition.
type SendRecognitionInput struct {
	FromUserID ledger.UserID
	ToUserIDs  []ledger.UserID
	PointsEach ledger.Points
	ValueID    string
	Message    string
	Visibility Visibility
}

// SendRecognition executes the peer transfer and returns the created post.
//
// Writes, all in one transaction: sender account (allowance down, given
// counter up), each recipient account (balance and earned counter up,
// created lazily), the recognition post, one received entry per recipient
// and one negative given entry for the sender.
func (e *Engine) SendRecognition(ctx context.Context, in SendRecognitionInput) (RecognitionPost, error) {
	if len(in.ToUserIDs) == 0 {
		return RecognitionPost{}, &ledger.ValidationError{Field: "to_user_ids", Message: "at least one recipient is required"}
	}
	if !in.PointsEach.IsPositive() {
		return RecognitionPost{}, &ledger.ValidationError{Field: "points_each", Message: "amount must be positive"}
	}
	for _, to := range in.ToUserIDs {
		if to == in.FromUserID {
			return RecognitionPost{}, &ledger.ValidationError{Field: "to_user_ids", Message: "cannot send recognition to yourself"}
		}
	}
	if seen := duplicateRecipient(in.ToUserIDs); seen != "" {
		return RecognitionPost{}, &ledger.ValidationError{Field: "to_user_ids", Message: fmt.Sprintf("duplicate recipient %s", seen)}
	}
	if in.Visibility == "" {
		in.Visibility = VisibilityPublic
	}

	cfg, err := e.config.Current(ctx)
	if err != nil {
		return RecognitionPost{}, fmt.Errorf("load points config: %w", err)
	}

	var post RecognitionPost
	err = e.atomically(ctx, func(s Store) error {
		now, month := e.now()
		totalNeeded := in.PointsEach.MulInt(len(in.ToUserIDs))

		// 1. Sender: lazy reset, then sufficiency against the allowance pool.
		sender, err := loadOrNewAccount(ctx, s, in.FromUserID, cfg.MonthlyAllowanceBase, month, now)
		if err != nil {
			return err
		}
		if !sender.MonthlyAllowance.GreaterOrEqual(totalNeeded) {
			return &ledger.InsufficientPointsError{
				UserID:    in.FromUserID,
				Available: sender.MonthlyAllowance,
				Requested: totalNeeded,
				Sentinel:  ledger.ErrInsufficientAllowance,
			}
		}

		// 2. Recipients, read under the same transaction.
		recipients := make([]ledger.PointAccount, 0, len(in.ToUserIDs))
		for _, to := range in.ToUserIDs {
			acct, err := loadOrNewAccount(ctx, s, to, cfg.MonthlyAllowanceBase, month, now)
			if err != nil {
				return err
			}
			recipients = append(recipients, acct)
		}

		// 3. Apply and write.
		post = RecognitionPost{
			ID:         newID(),
			FromUserID: in.FromUserID,
			ToUserIDs:  in.ToUserIDs,
			PointsEach: in.PointsEach,
			ValueID:    in.ValueID,
			Message:    in.Message,
			Visibility: in.Visibility,
			CreatedAt:  now,
		}

		sender.SpendAllowance(totalNeeded)
		if err := putAccountChecked(ctx, s, sender, now); err != nil {
			return err
		}

		txs := make([]ledger.PointTransaction, 0, len(recipients)+1)
		for i := range recipients {
			recipients[i].Credit(in.PointsEach)
			if err := putAccountChecked(ctx, s, recipients[i], now); err != nil {
				return err
			}
			txs = append(txs, ledger.PointTransaction{
				ID:         ledger.TransactionID(newID()),
				UserID:     recipients[i].UserID,
				Amount:     in.PointsEach,
				Type:       ledger.TxReceived,
				RefID:      post.ID,
				FromUserID: in.FromUserID,
				CreatedAt:  now,
			})
		}
		txs = append(txs, ledger.PointTransaction{
			ID:        ledger.TransactionID(newID()),
			UserID:    in.FromUserID,
			Amount:    totalNeeded.Neg(),
			Type:      ledger.TxGiven,
			RefID:     post.ID,
			CreatedAt: now,
		})

		if err := s.SavePost(ctx, post); err != nil {
			return err
		}
		return s.AppendTransactions(ctx, txs)
	})
	if err != nil {
		return RecognitionPost{}, err
	}
	return post, nil
}

func duplicateRecipient(ids []ledger.UserID) ledger.UserID {
	seen := make(map[ledger.UserID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return ""
}
