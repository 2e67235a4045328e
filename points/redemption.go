/*
redemption.go - Exchanging balance for cataloged rewards

PURPOSE:
  One atomic transaction: check the user's spendable balance against the
  reward's cost, deduct it, create a PENDING redemption request with a
  frozen snapshot of the reward, and write the negative redeemed ledger
  entry. Fulfillment (shipping, delivery, cancellation) is an external
  workflow operating on the redemption request afterwards.

SNAPSHOT:
  The reward's title and cost are denormalized into the request at
  redemption time. Later catalog edits change what future redemptions
  cost, never what historical ones did.
*/
package points

import (
	"context"

	"github.com/warp/points-engine/ledger"
)

// =============================================================================
// REDEEM REWARD
// =============================================================================

// RedeemReward spends balance on the given catalog entry and returns the
// pending fulfillment request.
//
// Unlike recognition, redemption does NOT create an account lazily: a user
// with no account has never received points and by definition cannot
// afford any reward, so the missing account surfaces as ErrAccountNotFound.
func (e *Engine) RedeemReward(ctx context.Context, userID ledger.UserID, reward Reward) (RedemptionRequest, error) {
	if reward.ID == "" {
		return RedemptionRequest{}, &ledger.ValidationError{Field: "reward", Message: "reward id is required"}
	}
	if !reward.Cost.IsPositive() {
		return RedemptionRequest{}, &ledger.ValidationError{Field: "reward", Message: "reward cost must be positive"}
	}

	var redemption RedemptionRequest
	err := e.atomically(ctx, func(s Store) error {
		now, _ := e.now()

		account, err := s.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if account.Balance.LessThan(reward.Cost) {
			return &ledger.InsufficientPointsError{
				UserID:    userID,
				Available: account.Balance,
				Requested: reward.Cost,
				Sentinel:  ledger.ErrInsufficientBalance,
			}
		}

		account.Balance = account.Balance.Sub(reward.Cost)
		if err := putAccountChecked(ctx, s, account, now); err != nil {
			return err
		}

		redemption = RedemptionRequest{
			ID:       newID(),
			UserID:   userID,
			RewardID: reward.ID,
			Snapshot: RewardSnapshot{
				RewardID: reward.ID,
				Title:    reward.Title,
				Cost:     reward.Cost,
			},
			Status:    RedemptionPending,
			CreatedAt: now,
		}
		if err := s.SaveRedemption(ctx, redemption); err != nil {
			return err
		}

		return s.AppendTransactions(ctx, []ledger.PointTransaction{{
			ID:        ledger.TransactionID(newID()),
			UserID:    userID,
			Amount:    reward.Cost.Neg(),
			Type:      ledger.TxRedeemed,
			RefID:     redemption.ID,
			CreatedAt: now,
		}})
	})
	if err != nil {
		return RedemptionRequest{}, err
	}
	return redemption, nil
}

// RedeemRewardByID resolves the reward from the configured catalog first.
// Convenience for callers that hold only an id.
func (e *Engine) RedeemRewardByID(ctx context.Context, userID ledger.UserID, rewardID string) (RedemptionRequest, error) {
	cfg, err := e.config.Current(ctx)
	if err != nil {
		return RedemptionRequest{}, err
	}
	reward, ok := cfg.FindReward(rewardID)
	if !ok {
		return RedemptionRequest{}, ledger.ErrRewardNotFound
	}
	return e.RedeemReward(ctx, userID, reward)
}
