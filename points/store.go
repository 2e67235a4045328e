/*
store.go - Persistence interfaces for the points engines

PURPOSE:
  Defines the boundary between the engines and the database. Engines never
  touch a driver; they run read-decide-write closures against these
  interfaces, and the store decides how atomicity is provided (SQL
  transaction, in-memory snapshot).

APPEND-ONLY CONTRACT:
  Point transactions are the audit trail. The interface exposes
  AppendTransactions and reads - no update, no delete, ever. Recognition
  posts and redemption requests are likewise write-once from the engine's
  perspective.

OPTIMISTIC CONCURRENCY:
  PointAccount and PositionBudget are the only mutable shared documents.
  Writes carry the version the closure read; a moved version fails the
  write with ledger.ErrConflict, which aborts the enclosing transaction
  and sends the whole closure back through the retry policy.

IMPLEMENTATIONS:
  - points/store/memory.go: In-memory, for engine tests and dev
  - store/sqlite/sqlite.go:  Production SQLite
*/
package points

import (
	"context"

	"github.com/warp/points-engine/ledger"
)

// =============================================================================
// STORE
// =============================================================================

// Store is the flat persistence surface the engines program against.
// Within a WithTx closure, all methods observe and mutate the same
// uncommitted transaction state.
type Store interface {
	// --- Accounts (mutable, version-checked) ---

	// GetAccount returns ledger.ErrAccountNotFound if absent.
	GetAccount(ctx context.Context, userID ledger.UserID) (ledger.PointAccount, error)

	// PutAccount upserts an account. A zero Version inserts and fails with
	// ledger.ErrConflict if the account already exists; a non-zero Version
	// updates and fails with ledger.ErrConflict unless the stored version
	// matches. The store bumps Version on success.
	PutAccount(ctx context.Context, account ledger.PointAccount) error

	// ListAccountIDs returns every known account, for eager allowance
	// refresh sweeps.
	ListAccountIDs(ctx context.Context) ([]ledger.UserID, error)

	// --- Transactions (append-only) ---

	AppendTransactions(ctx context.Context, txs []ledger.PointTransaction) error
	TransactionsByUser(ctx context.Context, userID ledger.UserID) ([]ledger.PointTransaction, error)

	// --- Recognition posts (write-once) ---

	SavePost(ctx context.Context, post RecognitionPost) error
	GetPost(ctx context.Context, id string) (RecognitionPost, error)
	ListPosts(ctx context.Context, limit int) ([]RecognitionPost, error)

	// --- Budget requests ---

	// SaveBudgetRequest inserts a new request or rewrites an existing one.
	// Status transitions are the engine's responsibility; the store only
	// persists.
	SaveBudgetRequest(ctx context.Context, req BudgetPointRequest) error

	// GetBudgetRequest returns ledger.ErrRequestNotFound if absent.
	GetBudgetRequest(ctx context.Context, id string) (BudgetPointRequest, error)
	ListBudgetRequests(ctx context.Context, status RequestStatus) ([]BudgetPointRequest, error)

	// --- Position budgets (mutable, version-checked) ---

	// GetPosition returns ledger.ErrPositionNotFound if absent.
	GetPosition(ctx context.Context, id ledger.PositionID) (PositionBudget, error)

	// PutPosition follows the same version rules as PutAccount.
	PutPosition(ctx context.Context, pos PositionBudget) error

	// --- Redemptions (write-once from the engine; fulfillment external) ---

	SaveRedemption(ctx context.Context, req RedemptionRequest) error
	GetRedemption(ctx context.Context, id string) (RedemptionRequest, error)
	ListRedemptionsByUser(ctx context.Context, userID ledger.UserID) ([]RedemptionRequest, error)

	// --- Config (singleton document) ---

	GetConfig(ctx context.Context) (PointsConfig, error)
	SaveConfig(ctx context.Context, cfg PointsConfig) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with atomic transactions.
type TxStore interface {
	Store

	// WithTx executes fn atomically and in isolation. If fn returns an
	// error, nothing fn wrote is observable. A commit-time conflict or
	// timeout surfaces as (or wrapping) ledger.ErrConflict so the retry
	// policy can re-run the closure from its first read.
	WithTx(ctx context.Context, fn func(Store) error) error
}
