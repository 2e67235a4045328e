/*
handlers.go - HTTP API handlers for the points ledger engine

PURPOSE:
  Exposes the points engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts/{id}               Account balances (lazy reset applied)
    GET    /api/accounts/{id}/transactions  Ledger history
    GET    /api/accounts/{id}/redemptions   Redemption history
    GET    /api/accounts/{id}/reconcile     Replay ledger vs stored counters
    POST   /api/accounts/{id}/refresh       Persist the monthly allowance reset

  Recognition:
    POST   /api/recognitions                Send peer recognition
    GET    /api/posts                       Recognition feed

  Budget requests:
    POST   /api/budget-requests             Submit a grant request
    GET    /api/budget-requests/pending     Admin queue
    POST   /api/budget-requests/{id}/approve
    POST   /api/budget-requests/{id}/reject

  Redemptions:
    POST   /api/redemptions                 Redeem a catalog reward

  Config:
    GET    /api/config                      Active points policy
    PUT    /api/config                      Replace policy (JSON document)
    POST   /api/config/reload               Drop the cached policy

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate structure
  3. Call the points engine (all business rules live there)
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Account/request/reward not found
  - 409: Business-rule rejections (insufficient funds, already processed)
  - 503: Retries exhausted under contention
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Identity comes from request bodies; production needs an auth middleware
  that resolves the caller instead.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/points-engine/factory"
	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine        *points.Engine
	Store         points.TxStore
	Config        points.ConfigProvider
	ConfigFactory *factory.ConfigFactory

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler around the engine and its store.
func NewHandler(engine *points.Engine, store points.TxStore, config points.ConfigProvider) *Handler {
	return &Handler{
		Engine:        engine,
		Store:         store,
		Config:        config,
		ConfigFactory: factory.NewConfigFactory(),
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// GetAccount returns the account with the lazy monthly reset applied.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	view, err := h.Engine.GetAccount(r.Context(), userID)
	if err != nil {
		writeEngineError(w, "Failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, accountDTO(view.Account, view.EffectiveMonth))
}

// GetTransactions returns the full ledger history for a user.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	txs, err := h.Store.TransactionsByUser(r.Context(), userID)
	if err != nil {
		writeEngineError(w, "Failed to get transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = transactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRedemptions returns a user's redemption requests.
func (h *Handler) GetRedemptions(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	reqs, err := h.Store.ListRedemptionsByUser(r.Context(), userID)
	if err != nil {
		writeEngineError(w, "Failed to list redemptions", err)
		return
	}

	dtos := make([]RedemptionDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = redemptionDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReconcileAccount replays the ledger and reports any drift from the
// stored balance counters.
func (h *Handler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	mismatches, err := h.Engine.ReconcileAccount(r.Context(), userID)
	if err != nil {
		writeEngineError(w, "Failed to reconcile account", err)
		return
	}

	dto := ReconciliationDTO{
		UserID:     string(userID),
		Consistent: len(mismatches) == 0,
	}
	for _, m := range mismatches {
		dto.Mismatches = append(dto.Mismatches, MismatchDTO{
			Field:    m.Field,
			Stored:   m.Stored.Float64(),
			Replayed: m.Replayed.Float64(),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// RefreshAllowance persists the monthly allowance reset for a user.
// Idempotent: calling it twice in a month is a no-op.
func (h *Handler) RefreshAllowance(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	account, err := h.Engine.CheckAndResetAllowance(r.Context(), userID)
	if err != nil {
		writeEngineError(w, "Failed to refresh allowance", err)
		return
	}

	writeJSON(w, http.StatusOK, accountDTO(account, account.LastResetMonth))
}

// =============================================================================
// RECOGNITION HANDLERS
// =============================================================================

// SendRecognition transfers allowance points from the sender to each
// recipient and publishes a recognition post.
func (h *Handler) SendRecognition(w http.ResponseWriter, r *http.Request) {
	var req SendRecognitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := points.SendRecognitionInput{
		FromUserID: ledger.UserID(req.FromUserID),
		PointsEach: ledger.PFromFloat(req.PointsEach),
		ValueID:    req.ValueID,
		Message:    req.Message,
		Visibility: points.Visibility(req.Visibility),
	}
	for _, id := range req.ToUserIDs {
		in.ToUserIDs = append(in.ToUserIDs, ledger.UserID(id))
	}

	post, err := h.Engine.SendRecognition(r.Context(), in)
	if err != nil {
		writeEngineError(w, "Failed to send recognition", err)
		return
	}

	writeJSON(w, http.StatusCreated, postDTO(post))
}

// ListPosts returns the recognition feed, newest first.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.Store.ListPosts(r.Context(), 50)
	if err != nil {
		writeEngineError(w, "Failed to list posts", err)
		return
	}

	dtos := make([]PostDTO, len(posts))
	for i, p := range posts {
		dtos[i] = postDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BUDGET REQUEST HANDLERS
// =============================================================================

// SubmitBudgetRequest creates a PENDING budget point request.
func (h *Handler) SubmitBudgetRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := points.RequestBudgetPointsInput{
		FromUserID: ledger.UserID(req.FromUserID),
		PositionID: ledger.PositionID(req.PositionID),
		Amount:     ledger.PFromFloat(req.Amount),
		ValueID:    req.ValueID,
		Message:    req.Message,
	}
	for _, id := range req.ToUserIDs {
		in.ToUserIDs = append(in.ToUserIDs, ledger.UserID(id))
	}

	created, err := h.Engine.RequestBudgetPoints(r.Context(), in)
	if err != nil {
		writeEngineError(w, "Failed to submit budget request", err)
		return
	}

	writeJSON(w, http.StatusCreated, budgetRequestDTO(created))
}

// ListPendingBudgetRequests returns the admin approval queue.
func (h *Handler) ListPendingBudgetRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.ListBudgetRequests(r.Context(), points.StatusPending)
	if err != nil {
		writeEngineError(w, "Failed to list budget requests", err)
		return
	}

	dtos := make([]BudgetRequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = budgetRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveBudgetRequest approves a pending request, optionally at an
// adjusted per-recipient amount, and distributes the points.
func (h *Handler) ApproveBudgetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body DecideBudgetRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	opts := points.ApproveOptions{AdminNote: body.AdminNote}
	if body.AdjustedAmount != nil {
		p := ledger.PFromFloat(*body.AdjustedAmount)
		opts.AdjustedAmount = &p
	}

	decided, err := h.Engine.ApproveBudgetRequest(r.Context(), id, opts)
	if err != nil {
		writeEngineError(w, "Failed to approve budget request", err)
		return
	}

	writeJSON(w, http.StatusOK, budgetRequestDTO(decided))
}

// RejectBudgetRequest rejects a pending request. No funds move.
func (h *Handler) RejectBudgetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body DecideBudgetRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	decided, err := h.Engine.RejectBudgetRequest(r.Context(), id, body.AdminNote)
	if err != nil {
		writeEngineError(w, "Failed to reject budget request", err)
		return
	}

	writeJSON(w, http.StatusOK, budgetRequestDTO(decided))
}

// GetPosition returns a position budget slice.
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := ledger.PositionID(chi.URLParam(r, "id"))

	pos, err := h.Store.GetPosition(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get position", err)
		return
	}

	writeJSON(w, http.StatusOK, positionDTO(pos))
}

// =============================================================================
// REDEMPTION HANDLERS
// =============================================================================

// RedeemReward spends main-balance points on a catalog reward.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.Engine.RedeemRewardByID(r.Context(), ledger.UserID(req.UserID), req.RewardID)
	if err != nil {
		writeEngineError(w, "Failed to redeem reward", err)
		return
	}

	writeJSON(w, http.StatusCreated, redemptionDTO(created))
}

// =============================================================================
// CONFIG HANDLERS
// =============================================================================

// GetConfig returns the active points policy.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.Current(r.Context())
	if err != nil {
		writeEngineError(w, "Failed to load config", err)
		return
	}

	writeJSON(w, http.StatusOK, h.ConfigFactory.ToJSON(cfg))
}

// PutConfig replaces the points policy from a JSON document and drops
// the cached copy so the next operation sees the new values.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var cj factory.ConfigJSON
	if err := json.NewDecoder(r.Body).Decode(&cj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg, err := h.ConfigFactory.FromJSON(cj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid config", err)
		return
	}

	if err := h.Store.SaveConfig(r.Context(), cfg); err != nil {
		writeEngineError(w, "Failed to save config", err)
		return
	}
	h.Config.Invalidate()

	writeJSON(w, http.StatusOK, h.ConfigFactory.ToJSON(cfg))
}

// ReloadConfig drops the cached policy so the next read refetches it.
func (h *Handler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	h.Config.Invalidate()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	var vErr *ledger.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsBusinessRule(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrRetriesExhausted):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
