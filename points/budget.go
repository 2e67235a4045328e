/*
budget.go - Budget-backed grant requests and the approval workflow

PURPOSE:
  Positions with a yearly point budget can fund bulk grants, but only an
  administrator releases the funds. The flow is two independent atomic
  transactions:

    RequestBudgetPoints   pure enqueue, writes a PENDING request, no funds
    ApproveBudgetRequest  decrements the position budget, credits every
                          recipient, writes the post + ledger entries,
                          marks the request APPROVED - all at once
    RejectBudgetRequest   single-document status write, no funds

STATE MACHINE:
  PENDING --approve--> APPROVED   (funds move exactly once)
  PENDING --reject--->  REJECTED   (no funds move)
  Both terminal. Approve AND reject guard on the current status, so a
  second decision of either kind fails with AlreadyProcessed and touches
  no balance or budget.

ADJUSTMENT:
  An administrator may change the per-recipient amount at approval time,
  up or down. The originally proposed amount stays on the request for
  audit; AdjustedAmount records what actually moved.
*/
package points

import (
	"context"
	"fmt"

	"github.com/warp/points-engine/ledger"
)

// =============================================================================
// REQUEST
// =============================================================================

// RequestBudgetPointsInput proposes a budget-funded distribution.
type RequestBudgetPointsInput struct {
	FromUserID ledger.UserID
	PositionID ledger.PositionID
	ToUserIDs  []ledger.UserID
	Amount     ledger.Points // per recipient
	ValueID    string
	Message    string
}

// RequestBudgetPoints validates and enqueues a PENDING request. No funds
// move; budget sufficiency is checked at approval time against the budget
// as it stands then.
func (e *Engine) RequestBudgetPoints(ctx context.Context, in RequestBudgetPointsInput) (BudgetPointRequest, error) {
	if len(in.ToUserIDs) == 0 {
		return BudgetPointRequest{}, &ledger.ValidationError{Field: "to_user_ids", Message: "at least one recipient is required"}
	}
	if !in.Amount.IsPositive() {
		return BudgetPointRequest{}, &ledger.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if seen := duplicateRecipient(in.ToUserIDs); seen != "" {
		return BudgetPointRequest{}, &ledger.ValidationError{Field: "to_user_ids", Message: fmt.Sprintf("duplicate recipient %s", seen)}
	}

	now, _ := e.now()
	req := BudgetPointRequest{
		ID:         newID(),
		FromUserID: in.FromUserID,
		PositionID: in.PositionID,
		ToUserIDs:  in.ToUserIDs,
		Amount:     in.Amount,
		ValueID:    in.ValueID,
		Message:    in.Message,
		Status:     StatusPending,
		CreatedAt:  now,
	}

	err := e.atomically(ctx, func(s Store) error {
		// The position must exist at request time; its budget is not
		// reserved, only checked on approval.
		if _, err := s.GetPosition(ctx, in.PositionID); err != nil {
			return err
		}
		return s.SaveBudgetRequest(ctx, req)
	})
	if err != nil {
		return BudgetPointRequest{}, err
	}
	return req, nil
}

// =============================================================================
// APPROVE
// =============================================================================

// ApproveOptions carries the administrator's decision parameters.
type ApproveOptions struct {
	AdjustedAmount *ledger.Points // nil keeps the requested amount
	AdminNote      string
}

// ApproveBudgetRequest releases the funds. One atomic transaction:
// re-reads the request (terminal guard), checks the position budget,
// decrements it, credits every recipient, writes the attributed post and
// one received ledger entry per recipient, and marks the request APPROVED.
func (e *Engine) ApproveBudgetRequest(ctx context.Context, requestID string, opts ApproveOptions) (BudgetPointRequest, error) {
	if opts.AdjustedAmount != nil && !opts.AdjustedAmount.IsPositive() {
		return BudgetPointRequest{}, &ledger.ValidationError{Field: "adjusted_amount", Message: "adjusted amount must be positive"}
	}

	cfg, err := e.config.Current(ctx)
	if err != nil {
		return BudgetPointRequest{}, fmt.Errorf("load points config: %w", err)
	}

	var approved BudgetPointRequest
	err = e.atomically(ctx, func(s Store) error {
		now, month := e.now()

		// 1. Terminal guard under the transaction's own snapshot.
		req, err := s.GetBudgetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Terminal() {
			return &ledger.AlreadyProcessedError{RequestID: req.ID, Status: string(req.Status)}
		}

		req.AdjustedAmount = opts.AdjustedAmount
		req.AdminNote = opts.AdminNote
		finalAmount := req.FinalAmount()
		totalToDistribute := finalAmount.MulInt(len(req.ToUserIDs))

		// 2. Position budget.
		pos, err := s.GetPosition(ctx, req.PositionID)
		if err != nil {
			return err
		}
		if !pos.HasPointBudget {
			return ledger.ErrNoBudgetConfigured
		}
		if pos.Remaining.LessThan(totalToDistribute) {
			return &ledger.InsufficientBudgetError{
				PositionID: pos.PositionID,
				Remaining:  pos.Remaining,
				Requested:  totalToDistribute,
			}
		}
		pos.Remaining = pos.Remaining.Sub(totalToDistribute)
		if err := s.PutPosition(ctx, pos); err != nil {
			return err
		}

		// 3. Recipients and the attributed post.
		post := RecognitionPost{
			ID:         newID(),
			FromUserID: req.FromUserID,
			ToUserIDs:  req.ToUserIDs,
			PointsEach: finalAmount,
			ValueID:    req.ValueID,
			Message:    req.Message,
			Visibility: VisibilityPublic,
			CreatedAt:  now,
		}

		txs := make([]ledger.PointTransaction, 0, len(req.ToUserIDs))
		for _, to := range req.ToUserIDs {
			acct, err := loadOrNewAccount(ctx, s, to, cfg.MonthlyAllowanceBase, month, now)
			if err != nil {
				return err
			}
			acct.Credit(finalAmount)
			if err := putAccountChecked(ctx, s, acct, now); err != nil {
				return err
			}
			txs = append(txs, ledger.PointTransaction{
				ID:         ledger.TransactionID(newID()),
				UserID:     to,
				Amount:     finalAmount,
				Type:       ledger.TxReceived,
				RefID:      post.ID,
				FromUserID: req.FromUserID,
				CreatedAt:  now,
			})
		}

		if err := s.SavePost(ctx, post); err != nil {
			return err
		}
		if err := s.AppendTransactions(ctx, txs); err != nil {
			return err
		}

		// 4. Terminal write.
		req.Status = StatusApproved
		req.DecidedAt = &now
		if err := s.SaveBudgetRequest(ctx, req); err != nil {
			return err
		}
		approved = req
		return nil
	})
	if err != nil {
		return BudgetPointRequest{}, err
	}
	return approved, nil
}

// =============================================================================
// REJECT
// =============================================================================

// RejectBudgetRequest marks a PENDING request REJECTED. No funds are
// touched. The terminal guard mirrors approval: rejecting an already
// approved or rejected request fails with AlreadyProcessed instead of
// silently overwriting the decision.
func (e *Engine) RejectBudgetRequest(ctx context.Context, requestID string, adminNote string) (BudgetPointRequest, error) {
	var rejected BudgetPointRequest
	err := e.atomically(ctx, func(s Store) error {
		now, _ := e.now()

		req, err := s.GetBudgetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Terminal() {
			return &ledger.AlreadyProcessedError{RequestID: req.ID, Status: string(req.Status)}
		}

		req.Status = StatusRejected
		req.AdminNote = adminNote
		req.DecidedAt = &now
		if err := s.SaveBudgetRequest(ctx, req); err != nil {
			return err
		}
		rejected = req
		return nil
	})
	if err != nil {
		return BudgetPointRequest{}, err
	}
	return rejected, nil
}
