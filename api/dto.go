/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Accounts:
    AccountDTO, TransactionDTO, ReconciliationDTO

  Recognition:
    SendRecognitionRequest, PostDTO

  Budget requests:
    BudgetRequestDTO, SubmitBudgetRequest, DecideBudgetRequest

  Redemptions:
    RedeemRequest, RedemptionDTO

  Config:
    wraps factory.ConfigJSON

VALIDATION:
  Structural validation is done in handlers; business validation lives
  in the points engine. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: ConfigJSON type
*/
package api

import (
	"time"

	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
)

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

// AccountDTO represents a point account in API responses.
type AccountDTO struct {
	UserID           string `json:"user_id"`
	Balance          float64 `json:"balance"`
	MonthlyAllowance float64 `json:"monthly_allowance"`
	TotalEarned      float64 `json:"total_earned"`
	TotalGiven       float64 `json:"total_given"`
	LastResetMonth   string `json:"last_reset_month"`
	EffectiveMonth   string `json:"effective_month,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

func accountDTO(a ledger.PointAccount, effectiveMonth ledger.Month) AccountDTO {
	return AccountDTO{
		UserID:           string(a.UserID),
		Balance:          a.Balance.Float64(),
		MonthlyAllowance: a.MonthlyAllowance.Float64(),
		TotalEarned:      a.TotalEarned.Float64(),
		TotalGiven:       a.TotalGiven.Float64(),
		LastResetMonth:   string(a.LastResetMonth),
		EffectiveMonth:   string(effectiveMonth),
		UpdatedAt:        a.UpdatedAt.Format(time.RFC3339),
	}
}

// TransactionDTO represents one ledger entry.
type TransactionDTO struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Amount     float64 `json:"amount"`
	Type       string  `json:"type"`
	RefID      string  `json:"ref_id,omitempty"`
	FromUserID string  `json:"from_user_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func transactionDTO(tx ledger.PointTransaction) TransactionDTO {
	return TransactionDTO{
		ID:         string(tx.ID),
		UserID:     string(tx.UserID),
		Amount:     tx.Amount.Float64(),
		Type:       string(tx.Type),
		RefID:      tx.RefID,
		FromUserID: string(tx.FromUserID),
		CreatedAt:  tx.CreatedAt.Format(time.RFC3339),
	}
}

// ReconciliationDTO reports a ledger replay against stored counters.
type ReconciliationDTO struct {
	UserID     string        `json:"user_id"`
	Consistent bool          `json:"consistent"`
	Mismatches []MismatchDTO `json:"mismatches,omitempty"`
}

// MismatchDTO is one field where the stored value disagrees with the replay.
type MismatchDTO struct {
	Field    string  `json:"field"`
	Stored   float64 `json:"stored"`
	Replayed float64 `json:"replayed"`
}

// =============================================================================
// RECOGNITION TYPES
// =============================================================================

// SendRecognitionRequest is the request to send a peer recognition.
type SendRecognitionRequest struct {
	FromUserID string   `json:"from_user_id"`
	ToUserIDs  []string `json:"to_user_ids"`
	PointsEach float64  `json:"points_each"`
	ValueID    string   `json:"value_id,omitempty"`
	Message    string   `json:"message,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
}

// PostDTO represents a recognition post in API responses.
type PostDTO struct {
	ID         string   `json:"id"`
	FromUserID string   `json:"from_user_id"`
	ToUserIDs  []string `json:"to_user_ids"`
	PointsEach float64  `json:"points_each"`
	ValueID    string   `json:"value_id,omitempty"`
	Message    string   `json:"message,omitempty"`
	Visibility string   `json:"visibility"`
	CreatedAt  string   `json:"created_at"`
}

func postDTO(p points.RecognitionPost) PostDTO {
	dto := PostDTO{
		ID:         p.ID,
		FromUserID: string(p.FromUserID),
		PointsEach: p.PointsEach.Float64(),
		ValueID:    p.ValueID,
		Message:    p.Message,
		Visibility: string(p.Visibility),
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
	for _, id := range p.ToUserIDs {
		dto.ToUserIDs = append(dto.ToUserIDs, string(id))
	}
	return dto
}

// =============================================================================
// BUDGET REQUEST TYPES
// =============================================================================

// SubmitBudgetRequest is the request to ask for budget-backed points.
type SubmitBudgetRequest struct {
	FromUserID string   `json:"from_user_id"`
	PositionID string   `json:"position_id"`
	ToUserIDs  []string `json:"to_user_ids"`
	Amount     float64  `json:"amount"`
	ValueID    string   `json:"value_id,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// DecideBudgetRequest is the admin approve/reject body.
type DecideBudgetRequest struct {
	AdjustedAmount *float64 `json:"adjusted_amount,omitempty"`
	AdminNote      string   `json:"admin_note,omitempty"`
}

// BudgetRequestDTO represents a budget point request in API responses.
type BudgetRequestDTO struct {
	ID             string   `json:"id"`
	FromUserID     string   `json:"from_user_id"`
	PositionID     string   `json:"position_id"`
	ToUserIDs      []string `json:"to_user_ids"`
	Amount         float64  `json:"amount"`
	AdjustedAmount *float64 `json:"adjusted_amount,omitempty"`
	ValueID        string   `json:"value_id,omitempty"`
	Message        string   `json:"message,omitempty"`
	Status         string   `json:"status"`
	AdminNote      string   `json:"admin_note,omitempty"`
	CreatedAt      string   `json:"created_at"`
	DecidedAt      string   `json:"decided_at,omitempty"`
}

func budgetRequestDTO(req points.BudgetPointRequest) BudgetRequestDTO {
	dto := BudgetRequestDTO{
		ID:         req.ID,
		FromUserID: string(req.FromUserID),
		PositionID: string(req.PositionID),
		Amount:     req.Amount.Float64(),
		ValueID:    req.ValueID,
		Message:    req.Message,
		Status:     string(req.Status),
		AdminNote:  req.AdminNote,
		CreatedAt:  req.CreatedAt.Format(time.RFC3339),
	}
	for _, id := range req.ToUserIDs {
		dto.ToUserIDs = append(dto.ToUserIDs, string(id))
	}
	if req.AdjustedAmount != nil {
		v := req.AdjustedAmount.Float64()
		dto.AdjustedAmount = &v
	}
	if req.DecidedAt != nil {
		dto.DecidedAt = req.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

// PositionDTO represents a position budget slice.
type PositionDTO struct {
	PositionID     string  `json:"position_id"`
	HasPointBudget bool    `json:"has_point_budget"`
	YearlyBudget   float64 `json:"yearly_budget"`
	Remaining      float64 `json:"remaining"`
}

func positionDTO(pos points.PositionBudget) PositionDTO {
	return PositionDTO{
		PositionID:     string(pos.PositionID),
		HasPointBudget: pos.HasPointBudget,
		YearlyBudget:   pos.YearlyBudget.Float64(),
		Remaining:      pos.Remaining.Float64(),
	}
}

// =============================================================================
// REDEMPTION TYPES
// =============================================================================

// RedeemRequest is the request to redeem a catalog reward.
type RedeemRequest struct {
	UserID   string `json:"user_id"`
	RewardID string `json:"reward_id"`
}

// RedemptionDTO represents a redemption request in API responses.
type RedemptionDTO struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	RewardID  string  `json:"reward_id"`
	Title     string  `json:"title"`
	Cost      float64 `json:"cost"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

func redemptionDTO(req points.RedemptionRequest) RedemptionDTO {
	return RedemptionDTO{
		ID:        req.ID,
		UserID:    string(req.UserID),
		RewardID:  req.RewardID,
		Title:     req.Snapshot.Title,
		Cost:      req.Snapshot.Cost.Float64(),
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes one demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
