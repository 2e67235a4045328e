/*
Package points implements the recognition-and-rewards flows of the points
economy on top of the ledger package.

PURPOSE:
  Three money-like flows, each a single atomic transaction:
  - Recognition: peer-to-peer transfers from the sender's monthly
    allowance into recipients' balances (recognition.go)
  - Budget grants: bulk distributions funded by a position's yearly
    budget, gated on administrator approval (budget.go)
  - Redemption: exchanging balance for a cataloged reward (redemption.go)

KEY CONCEPTS IN THIS FILE (types.go):
  - RecognitionPost:    The social artifact created by a transfer
  - BudgetPointRequest: PENDING -> APPROVED | REJECTED state machine
  - PositionBudget:     Mutable budget slice of an externally-owned position
  - Reward / RewardSnapshot / RedemptionRequest
  - PointsConfig:       Singleton policy document (allowance base, values,
                        reward catalog)

OWNERSHIP:
  The engine owns PointAccount, PointTransaction, PositionBudget mutations.
  RecognitionPost social metadata (comments, reactions) and redemption
  fulfillment past PENDING belong to external systems and are not modeled.

SEE ALSO:
  - store.go:  Persistence interfaces the engines run against
  - engine.go: Engine construction and shared transaction plumbing
*/
package points

import (
	"time"

	"github.com/warp/points-engine/ledger"
)

// =============================================================================
// RECOGNITION POST
// =============================================================================

// Visibility scopes who can see a recognition post. Enforced by the
// presentation layer; stored here so the feed can filter.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityTeam    Visibility = "team"
	VisibilityPrivate Visibility = "private"
)

// RecognitionPost records one recognition event: who praised whom, for
// which company value, and how many points each recipient received.
// Core fields are immutable once written.
type RecognitionPost struct {
	ID         string
	FromUserID ledger.UserID
	ToUserIDs  []ledger.UserID
	PointsEach ledger.Points
	ValueID    string
	Message    string
	Visibility Visibility
	CreatedAt  time.Time
}

// Total is the full amount moved by this post across all recipients.
func (p RecognitionPost) Total() ledger.Points {
	return p.PointsEach.MulInt(len(p.ToUserIDs))
}

// =============================================================================
// BUDGET POINT REQUEST - PENDING -> APPROVED | REJECTED
// =============================================================================

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// BudgetPointRequest asks to distribute position-budget points to a set of
// recipients. No funds move at request time; approval is a second,
// independent transaction. Amount preserves the originally proposed
// per-recipient value for audit; AdjustedAmount records what an
// administrator actually released, when they changed it.
type BudgetPointRequest struct {
	ID             string
	FromUserID     ledger.UserID
	PositionID     ledger.PositionID
	ToUserIDs      []ledger.UserID
	Amount         ledger.Points
	ValueID        string
	Message        string
	Status         RequestStatus
	AdjustedAmount *ledger.Points
	AdminNote      string
	CreatedAt      time.Time
	DecidedAt      *time.Time
}

// Terminal reports whether the request reached a final state. There is no
// transition out of a terminal state.
func (r BudgetPointRequest) Terminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}

// FinalAmount is the per-recipient amount that moves on approval.
func (r BudgetPointRequest) FinalAmount() ledger.Points {
	if r.AdjustedAmount != nil {
		return *r.AdjustedAmount
	}
	return r.Amount
}

// =============================================================================
// POSITION BUDGET
// =============================================================================

// PositionBudget is the budget slice of a position record. The position
// itself is externally-owned master data; this engine only ever decrements
// RemainingPointBudget, and only on approval. Version implements the same
// optimistic write check as PointAccount.
type PositionBudget struct {
	PositionID     ledger.PositionID
	HasPointBudget bool
	YearlyBudget   ledger.Points
	Remaining      ledger.Points
	Version        int64
}

// =============================================================================
// REWARDS & REDEMPTION
// =============================================================================

// Reward is a read-only catalog entry.
type Reward struct {
	ID    string
	Title string
	Cost  ledger.Points
}

// RewardSnapshot freezes the reward's title and cost at redemption time,
// protecting redemption history against later catalog edits.
type RewardSnapshot struct {
	RewardID string
	Title    string
	Cost     ledger.Points
}

type RedemptionStatus string

// Fulfillment states past pending (shipped, delivered, cancelled) are
// owned by an external workflow.
const (
	RedemptionPending RedemptionStatus = "pending"
)

// RedemptionRequest is the pending fulfillment record created when a user
// spends balance on a reward.
type RedemptionRequest struct {
	ID        string
	UserID    ledger.UserID
	RewardID  string
	Snapshot  RewardSnapshot
	Status    RedemptionStatus
	CreatedAt time.Time
}

// =============================================================================
// POINTS CONFIG - Singleton policy document
// =============================================================================

// CompanyValue is a taggable value that recognitions reference.
type CompanyValue struct {
	ID    string
	Label string
}

// PointsConfig holds the process-wide points policy. It is a first-class
// dependency injected into the engine (see ConfigProvider in config.go),
// not a bare document fetched ad hoc per call.
type PointsConfig struct {
	MonthlyAllowanceBase ledger.Points
	Values               []CompanyValue
	Catalog              []Reward
}

// FindReward resolves a catalog entry by id.
func (c PointsConfig) FindReward(id string) (Reward, bool) {
	for _, r := range c.Catalog {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}
