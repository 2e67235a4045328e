/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario seeds the points policy,
	accounts, and enough activity to demonstrate specific features.

AVAILABLE SCENARIOS:

	fresh-team:       Config + empty accounts, full allowances
	recognition-flow: A team that has been sending recognitions
	budget-approval:  A position budget with a pending grant request
	redemption:       An account rich enough to redeem catalog rewards

HOW SCENARIOS WORK:
 1. Save the standard points policy
 2. Create accounts via the engine (so the ledger stays consistent)
 3. Drive activity through engine operations, never raw writes
 4. Seed master data (positions) directly, since it is externally owned

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "recognition-flow"}

NOTE:

	Scenarios write into the live store. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: Handler context
  - factory/config.go: StandardConfigJSON
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"encoding/json"

	"github.com/warp/points-engine/factory"
	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-team",
		Name:        "Fresh Team",
		Description: "Standard policy with five untouched accounts at full allowance",
	},
	{
		ID:          "recognition-flow",
		Name:        "Recognition Flow",
		Description: "Peers recognizing each other; balances and feed populated",
	},
	{
		ID:          "budget-approval",
		Name:        "Budget Approval",
		Description: "Position budget with a pending grant request awaiting an admin",
	},
	{
		ID:          "redemption",
		Name:        "Redemption",
		Description: "An account with enough balance to redeem catalog rewards",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error

	switch req.ScenarioID {
	case "fresh-team":
		err = h.loadFreshTeamScenario(ctx)
	case "recognition-flow":
		err = h.loadRecognitionFlowScenario(ctx)
	case "budget-approval":
		err = h.loadBudgetApprovalScenario(ctx)
	case "redemption":
		err = h.loadRedemptionScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var demoUsers = []ledger.UserID{"alice", "bob", "carol", "dave", "erin"}

// seedConfig installs the standard policy and drops any cached copy.
func (h *Handler) seedConfig(ctx context.Context) error {
	cfg, err := h.ConfigFactory.ParseConfig(factory.StandardConfigJSON())
	if err != nil {
		return err
	}
	if err := h.Store.SaveConfig(ctx, cfg); err != nil {
		return err
	}
	h.Config.Invalidate()
	return nil
}

// seedAccounts materializes accounts for the demo users through the
// engine so every account starts at the current month's allowance.
func (h *Handler) seedAccounts(ctx context.Context) error {
	for _, id := range demoUsers {
		if _, err := h.Engine.CheckAndResetAllowance(ctx, id); err != nil {
			return fmt.Errorf("failed to seed account %s: %w", id, err)
		}
	}
	return nil
}

func (h *Handler) loadFreshTeamScenario(ctx context.Context) error {
	if err := h.seedConfig(ctx); err != nil {
		return err
	}
	return h.seedAccounts(ctx)
}

func (h *Handler) loadRecognitionFlowScenario(ctx context.Context) error {
	if err := h.loadFreshTeamScenario(ctx); err != nil {
		return err
	}

	sends := []points.SendRecognitionInput{
		{
			FromUserID: "alice",
			ToUserIDs:  []ledger.UserID{"bob"},
			PointsEach: ledger.P(25),
			ValueID:    "teamwork",
			Message:    "Thanks for the pairing session on the importer",
		},
		{
			FromUserID: "bob",
			ToUserIDs:  []ledger.UserID{"carol", "dave"},
			PointsEach: ledger.P(15),
			ValueID:    "craft",
			Message:    "Great work on the release",
		},
		{
			FromUserID: "carol",
			ToUserIDs:  []ledger.UserID{"alice"},
			PointsEach: ledger.P(40),
			ValueID:    "customer-first",
			Message:    "Saved the onboarding call",
			Visibility: points.VisibilityTeam,
		},
	}

	for _, in := range sends {
		if _, err := h.Engine.SendRecognition(ctx, in); err != nil {
			return fmt.Errorf("failed to send demo recognition: %w", err)
		}
	}
	return nil
}

func (h *Handler) loadBudgetApprovalScenario(ctx context.Context) error {
	if err := h.loadFreshTeamScenario(ctx); err != nil {
		return err
	}

	// Position master data is owned by an external HR system; seed the
	// budget slice directly.
	pos := points.PositionBudget{
		PositionID:     "eng-manager",
		HasPointBudget: true,
		YearlyBudget:   ledger.P(5000),
		Remaining:      ledger.P(250),
	}
	if err := h.Store.PutPosition(ctx, pos); err != nil && err != ledger.ErrConflict {
		return fmt.Errorf("failed to seed position: %w", err)
	}

	_, err := h.Engine.RequestBudgetPoints(ctx, points.RequestBudgetPointsInput{
		FromUserID: "erin",
		PositionID: "eng-manager",
		ToUserIDs:  []ledger.UserID{"alice", "bob", "carol"},
		Amount:     ledger.P(100),
		ValueID:    "teamwork",
		Message:    "Quarter-end push, whole team went above and beyond",
	})
	if err != nil {
		return fmt.Errorf("failed to seed budget request: %w", err)
	}
	return nil
}

func (h *Handler) loadRedemptionScenario(ctx context.Context) error {
	if err := h.loadFreshTeamScenario(ctx); err != nil {
		return err
	}

	// Fund dave's main balance through an approved grant.
	pos := points.PositionBudget{
		PositionID:     "eng-director",
		HasPointBudget: true,
		YearlyBudget:   ledger.P(10000),
		Remaining:      ledger.P(10000),
	}
	if err := h.Store.PutPosition(ctx, pos); err != nil && err != ledger.ErrConflict {
		return fmt.Errorf("failed to seed position: %w", err)
	}

	req, err := h.Engine.RequestBudgetPoints(ctx, points.RequestBudgetPointsInput{
		FromUserID: "erin",
		PositionID: "eng-director",
		ToUserIDs:  []ledger.UserID{"dave"},
		Amount:     ledger.P(1500),
		Message:    "Incident response, kept the lights on all weekend",
	})
	if err != nil {
		return fmt.Errorf("failed to seed budget request: %w", err)
	}

	if _, err := h.Engine.ApproveBudgetRequest(ctx, req.ID, points.ApproveOptions{}); err != nil {
		return fmt.Errorf("failed to approve demo request: %w", err)
	}
	return nil
}
