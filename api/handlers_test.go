/*
handlers_test.go - HTTP-level tests for the points API

Exercises the full router against an in-memory store:
- Account views and the lazy monthly reset
- Recognition posting and the error-to-status mapping
- Budget request approval flow
- Redemption and config round-trips
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
	"github.com/warp/points-engine/points/store"
)

type testEnv struct {
	router  http.Handler
	handler *Handler
	mem     *store.TxMemory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := store.NewTxMemory()
	cfg := points.PointsConfig{
		MonthlyAllowanceBase: ledger.P(100),
		Values: []points.CompanyValue{
			{ID: "teamwork", Label: "Teamwork"},
		},
		Catalog: []points.Reward{
			{ID: "coffee-card", Title: "Coffee Card", Cost: ledger.P(250)},
		},
	}
	provider := points.StaticConfig{Config: cfg}
	engine := points.NewEngine(mem, provider,
		points.WithClock(func() time.Time {
			return time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
		}),
	)
	h := NewHandler(engine, mem, provider)
	return &testEnv{router: NewRouter(h), handler: h, mem: mem}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = int64(buf.Len())
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (e *testEnv) seedAccount(t *testing.T, userID string) {
	t.Helper()
	_, err := e.handler.Engine.CheckAndResetAllowance(context.Background(), ledger.UserID(userID))
	require.NoError(t, err)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestGetAccount_OK(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/accounts/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decode[AccountDTO](t, rec)
	assert.Equal(t, "alice", dto.UserID)
	assert.Equal(t, float64(100), dto.MonthlyAllowance)
	assert.Equal(t, float64(0), dto.Balance)
	assert.Equal(t, "2026-05", dto.LastResetMonth)
}

func TestGetAccount_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/accounts/nobody", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Failed to get account", resp.Error)
}

func TestRefreshAllowance_CreatesAccount(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/accounts/alice/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decode[AccountDTO](t, rec)
	assert.Equal(t, float64(100), dto.MonthlyAllowance)
}

// =============================================================================
// RECOGNITIONS
// =============================================================================

func TestSendRecognition_Created(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/recognitions", SendRecognitionRequest{
		FromUserID: "alice",
		ToUserIDs:  []string{"bob"},
		PointsEach: 30,
		ValueID:    "teamwork",
		Message:    "great pairing session",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	post := decode[PostDTO](t, rec)
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "alice", post.FromUserID)
	assert.Equal(t, float64(30), post.PointsEach)
	assert.Equal(t, "public", post.Visibility)

	// Sender allowance shrinks; recipient balance grows.
	sender := decode[AccountDTO](t, env.do(t, http.MethodGet, "/api/accounts/alice", nil))
	assert.Equal(t, float64(70), sender.MonthlyAllowance)
	recipient := decode[AccountDTO](t, env.do(t, http.MethodGet, "/api/accounts/bob", nil))
	assert.Equal(t, float64(30), recipient.Balance)

	// The feed shows the post; the ledger shows the entries.
	posts := decode[[]PostDTO](t, env.do(t, http.MethodGet, "/api/posts", nil))
	require.Len(t, posts, 1)

	txs := decode[[]TransactionDTO](t, env.do(t, http.MethodGet, "/api/accounts/bob/transactions", nil))
	require.Len(t, txs, 1)
	assert.Equal(t, "received", txs[0].Type)
	assert.Equal(t, "alice", txs[0].FromUserID)
}

func TestSendRecognition_InsufficientAllowanceIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/recognitions", SendRecognitionRequest{
		FromUserID: "alice",
		ToUserIDs:  []string{"bob"},
		PointsEach: 500,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSendRecognition_ValidationIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice")

	// Self-recognition is rejected before any points move.
	rec := env.do(t, http.MethodPost, "/api/recognitions", SendRecognitionRequest{
		FromUserID: "alice",
		ToUserIDs:  []string{"alice"},
		PointsEach: 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendRecognition_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/recognitions", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// BUDGET REQUESTS
// =============================================================================

func TestBudgetRequest_ApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	env.mem.SeedPosition(points.PositionBudget{
		PositionID:     "eng-manager",
		HasPointBudget: true,
		YearlyBudget:   ledger.P(1000),
		Remaining:      ledger.P(1000),
	})

	// WHEN the manager submits a request for two recipients
	rec := env.do(t, http.MethodPost, "/api/budget-requests/", SubmitBudgetRequest{
		FromUserID: "manager",
		PositionID: "eng-manager",
		ToUserIDs:  []string{"alice", "bob"},
		Amount:     100,
		Message:    "shipped the migration",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[BudgetRequestDTO](t, rec)
	assert.Equal(t, "pending", created.Status)

	// THEN it shows up in the pending queue
	pending := decode[[]BudgetRequestDTO](t, env.do(t, http.MethodGet, "/api/budget-requests/pending", nil))
	require.Len(t, pending, 1)

	// WHEN the admin approves at an adjusted amount
	adjusted := 80.0
	rec = env.do(t, http.MethodPost, "/api/budget-requests/"+created.ID+"/approve", DecideBudgetRequest{
		AdjustedAmount: &adjusted,
		AdminNote:      "trimmed to quarter budget",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decided := decode[BudgetRequestDTO](t, rec)
	assert.Equal(t, "approved", decided.Status)
	assert.Equal(t, float64(100), decided.Amount)
	require.NotNil(t, decided.AdjustedAmount)
	assert.Equal(t, float64(80), *decided.AdjustedAmount)

	// THEN each recipient got the adjusted amount and the budget shrank
	alice := decode[AccountDTO](t, env.do(t, http.MethodGet, "/api/accounts/alice", nil))
	assert.Equal(t, float64(80), alice.Balance)

	pos := decode[PositionDTO](t, env.do(t, http.MethodGet, "/api/positions/eng-manager", nil))
	assert.Equal(t, float64(840), pos.Remaining)

	// AND deciding it again is a conflict
	rec = env.do(t, http.MethodPost, "/api/budget-requests/"+created.ID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBudgetRequest_UnknownPositionIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/budget-requests/", SubmitBudgetRequest{
		FromUserID: "manager",
		PositionID: "no-such-position",
		ToUserIDs:  []string{"alice"},
		Amount:     50,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBudgetRequest_InsufficientBudgetIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.mem.SeedPosition(points.PositionBudget{
		PositionID:     "eng-manager",
		HasPointBudget: true,
		YearlyBudget:   ledger.P(1000),
		Remaining:      ledger.P(50),
	})

	created := decode[BudgetRequestDTO](t, env.do(t, http.MethodPost, "/api/budget-requests/", SubmitBudgetRequest{
		FromUserID: "manager",
		PositionID: "eng-manager",
		ToUserIDs:  []string{"alice"},
		Amount:     100,
	}))

	rec := env.do(t, http.MethodPost, "/api/budget-requests/"+created.ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The request is still pending and can be approved at a lower amount.
	pending := decode[[]BudgetRequestDTO](t, env.do(t, http.MethodGet, "/api/budget-requests/pending", nil))
	require.Len(t, pending, 1)
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func TestRedeemReward_Created(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice")

	// Fund alice's balance past the reward cost. Each sender can give at
	// most their own monthly allowance, so spread it over three peers.
	for i := 0; i < 3; i++ {
		funder := fmt.Sprintf("funder-%d", i)
		env.seedAccount(t, funder)
		rec := env.do(t, http.MethodPost, "/api/recognitions", SendRecognitionRequest{
			FromUserID: funder,
			ToUserIDs:  []string{"alice"},
			PointsEach: 90,
			Message:    fmt.Sprintf("kudos %d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodPost, "/api/redemptions", RedeemRequest{
		UserID:   "alice",
		RewardID: "coffee-card",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	red := decode[RedemptionDTO](t, rec)
	assert.Equal(t, "Coffee Card", red.Title)
	assert.Equal(t, float64(250), red.Cost)
	assert.Equal(t, "pending", red.Status)

	alice := decode[AccountDTO](t, env.do(t, http.MethodGet, "/api/accounts/alice", nil))
	assert.Equal(t, float64(20), alice.Balance)

	history := decode[[]RedemptionDTO](t, env.do(t, http.MethodGet, "/api/accounts/alice/redemptions", nil))
	require.Len(t, history, 1)
}

func TestRedeemReward_InsufficientBalanceIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/redemptions", RedeemRequest{
		UserID:   "alice",
		RewardID: "coffee-card",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRedeemReward_NoAccountIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/redemptions", RedeemRequest{
		UserID:   "ghost",
		RewardID: "coffee-card",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcileAccount_Consistent(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice")
	env.seedAccount(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/recognitions", SendRecognitionRequest{
		FromUserID: "alice",
		ToUserIDs:  []string{"bob"},
		PointsEach: 25,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, id := range []string{"alice", "bob"} {
		dto := decode[ReconciliationDTO](t, env.do(t, http.MethodGet, "/api/accounts/"+id+"/reconcile", nil))
		assert.True(t, dto.Consistent, "account %s should reconcile cleanly", id)
		assert.Empty(t, dto.Mismatches)
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_GetAndReload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/config/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[map[string]any](t, rec)
	assert.Equal(t, float64(100), cfg["monthly_allowance"])

	rec = env.do(t, http.MethodPost, "/api/config/reload", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPutConfig_RejectsInvalidDocument(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/config/", map[string]any{
		"monthly_allowance": -5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
