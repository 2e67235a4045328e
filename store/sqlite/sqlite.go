/*
Package sqlite provides a SQLite-backed implementation of points.TxStore.

PURPOSE:
  Production persistence for the points ledger. The same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The transactions table is the audit trail:
  - No UPDATE statements on transactions
  - No DELETE statements on transactions
  Balances live on accounts; the ledger explains how they got there.

OPTIMISTIC CONCURRENCY:
  accounts and positions carry a version column. Writes are
    UPDATE ... SET version = version + 1 WHERE id = ? AND version = ?
  Zero rows affected means a concurrent writer won; the store returns
  ledger.ErrConflict and the engine re-runs its whole closure.

KEY TABLES:
  accounts          One per user: two pools + audit counters + version
  transactions      Immutable signed point movements
  posts             Recognition posts (recipients as a JSON array)
  budget_requests   PENDING/APPROVED/REJECTED grant requests
  positions         Position budget slices (externally-owned master data)
  redemptions       Pending reward fulfillments with frozen snapshots
  config            Singleton points policy document

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/points.db")   // or ":memory:"
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := points.NewEngine(store, provider)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
)

// Store implements points.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx is the common surface of *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases from resetting per
	// pooled connection; writes are serialized by s.mu anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Point accounts (one per user, version-checked writes)
	CREATE TABLE IF NOT EXISTS accounts (
		user_id TEXT PRIMARY KEY,
		balance TEXT NOT NULL,
		monthly_allowance TEXT NOT NULL,
		total_earned TEXT NOT NULL,
		total_given TEXT NOT NULL,
		last_reset_month TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Point transactions (append-only; no UPDATE, no DELETE)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		ref_id TEXT,
		from_user_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_ref
		ON transactions(ref_id) WHERE ref_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_type
		ON transactions(tx_type);

	-- Recognition posts (immutable core fields)
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		from_user_id TEXT NOT NULL,
		to_user_ids TEXT NOT NULL,
		points_each TEXT NOT NULL,
		value_id TEXT,
		message TEXT,
		visibility TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created
		ON posts(created_at DESC);

	-- Budget point requests (PENDING -> APPROVED | REJECTED)
	CREATE TABLE IF NOT EXISTS budget_requests (
		id TEXT PRIMARY KEY,
		from_user_id TEXT NOT NULL,
		position_id TEXT NOT NULL,
		to_user_ids TEXT NOT NULL,
		amount TEXT NOT NULL,
		value_id TEXT,
		message TEXT,
		status TEXT NOT NULL,
		adjusted_amount TEXT,
		admin_note TEXT,
		created_at TEXT NOT NULL,
		decided_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_budget_requests_status
		ON budget_requests(status, created_at);

	-- Position budgets (version-checked writes)
	CREATE TABLE IF NOT EXISTS positions (
		position_id TEXT PRIMARY KEY,
		has_point_budget INTEGER NOT NULL,
		yearly_budget TEXT NOT NULL,
		remaining_budget TEXT NOT NULL,
		version INTEGER NOT NULL
	);

	-- Redemption requests with frozen reward snapshots
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reward_id TEXT NOT NULL,
		snapshot_title TEXT NOT NULL,
		snapshot_cost TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_user
		ON redemptions(user_id, created_at);

	-- Singleton points policy document
	CREATE TABLE IF NOT EXISTS config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		monthly_allowance_base TEXT NOT NULL,
		values_json TEXT NOT NULL,
		catalog_json TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, userID ledger.UserID) (ledger.PointAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, userID)
}

func getAccount(ctx context.Context, db dbtx, userID ledger.UserID) (ledger.PointAccount, error) {
	row := db.QueryRowContext(ctx, `
		SELECT user_id, balance, monthly_allowance, total_earned, total_given,
		       last_reset_month, version, created_at, updated_at
		FROM accounts WHERE user_id = ?`, userID)

	var (
		a                                 ledger.PointAccount
		balance, allowance, earned, given string
		month, createdAt, updatedAt       string
	)
	err := row.Scan(&a.UserID, &balance, &allowance, &earned, &given, &month, &a.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return ledger.PointAccount{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return ledger.PointAccount{}, fmt.Errorf("failed to scan account: %w", err)
	}

	a.Balance = ledger.ParsePoints(balance)
	a.MonthlyAllowance = ledger.ParsePoints(allowance)
	a.TotalEarned = ledger.ParsePoints(earned)
	a.TotalGiven = ledger.ParsePoints(given)
	a.LastResetMonth = ledger.Month(month)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func (s *Store) PutAccount(ctx context.Context, account ledger.PointAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putAccount(ctx, s.db, account)
}

func putAccount(ctx context.Context, db dbtx, a ledger.PointAccount) error {
	if a.Version == 0 {
		_, err := db.ExecContext(ctx, `
			INSERT INTO accounts
			(user_id, balance, monthly_allowance, total_earned, total_given,
			 last_reset_month, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			a.UserID, a.Balance.String(), a.MonthlyAllowance.String(),
			a.TotalEarned.String(), a.TotalGiven.String(),
			string(a.LastResetMonth), formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
		if err != nil {
			if isUniqueConstraintError(err) {
				return ledger.ErrConflict // concurrent create won
			}
			return fmt.Errorf("failed to insert account: %w", err)
		}
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE accounts
		SET balance = ?, monthly_allowance = ?, total_earned = ?, total_given = ?,
		    last_reset_month = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		a.Balance.String(), a.MonthlyAllowance.String(),
		a.TotalEarned.String(), a.TotalGiven.String(),
		string(a.LastResetMonth), formatTime(a.UpdatedAt),
		a.UserID, a.Version)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrConflict
	}
	return nil
}

func (s *Store) ListAccountIDs(ctx context.Context) ([]ledger.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccountIDs(ctx, s.db)
}

func listAccountIDs(ctx context.Context, db dbtx) ([]ledger.UserID, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []ledger.UserID
	for rows.Next() {
		var id ledger.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// TRANSACTIONS (append-only)
// =============================================================================

func (s *Store) AppendTransactions(ctx context.Context, txs []ledger.PointTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransactions(ctx, s.db, txs)
}

func appendTransactions(ctx context.Context, db dbtx, txs []ledger.PointTransaction) error {
	for _, tx := range txs {
		_, err := db.ExecContext(ctx, `
			INSERT INTO transactions (id, user_id, amount, tx_type, ref_id, from_user_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, tx.UserID, tx.Amount.String(), tx.Type,
			nullString(tx.RefID), nullString(string(tx.FromUserID)), formatTime(tx.CreatedAt))
		if err != nil {
			if isUniqueConstraintError(err) {
				return ledger.ErrConflict // duplicate id: the log is append-only
			}
			return fmt.Errorf("failed to append transaction: %w", err)
		}
	}
	return nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID ledger.UserID) ([]ledger.PointTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsByUser(ctx, s.db, userID)
}

func transactionsByUser(ctx context.Context, db dbtx, userID ledger.UserID) ([]ledger.PointTransaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, amount, tx_type, ref_id, from_user_id, created_at
		FROM transactions WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.PointTransaction
	for rows.Next() {
		var (
			tx                ledger.PointTransaction
			amount, createdAt string
			refID, fromUser   sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &amount, &tx.Type, &refID, &fromUser, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Amount = ledger.ParsePoints(amount)
		tx.RefID = refID.String
		tx.FromUserID = ledger.UserID(fromUser.String)
		tx.CreatedAt = parseTime(createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// RECOGNITION POSTS
// =============================================================================

func (s *Store) SavePost(ctx context.Context, post points.RecognitionPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePost(ctx, s.db, post)
}

func savePost(ctx context.Context, db dbtx, post points.RecognitionPost) error {
	recipients, _ := json.Marshal(post.ToUserIDs)
	_, err := db.ExecContext(ctx, `
		INSERT INTO posts (id, from_user_id, to_user_ids, points_each, value_id, message, visibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.FromUserID, string(recipients), post.PointsEach.String(),
		nullString(post.ValueID), nullString(post.Message), post.Visibility, formatTime(post.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save post: %w", err)
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (points.RecognitionPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPost(ctx, s.db, id)
}

func getPost(ctx context.Context, db dbtx, id string) (points.RecognitionPost, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, from_user_id, to_user_ids, points_each, value_id, message, visibility, created_at
		FROM posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return points.RecognitionPost{}, ledger.ErrRequestNotFound
	}
	return post, err
}

func (s *Store) ListPosts(ctx context.Context, limit int) ([]points.RecognitionPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPosts(ctx, s.db, limit)
}

func listPosts(ctx context.Context, db dbtx, limit int) ([]points.RecognitionPost, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, from_user_id, to_user_ids, points_each, value_id, message, visibility, created_at
		FROM posts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var result []points.RecognitionPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, post)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (points.RecognitionPost, error) {
	var (
		post             points.RecognitionPost
		recipients       string
		pointsEach       string
		valueID, message sql.NullString
		createdAt        string
	)
	err := row.Scan(&post.ID, &post.FromUserID, &recipients, &pointsEach, &valueID, &message, &post.Visibility, &createdAt)
	if err != nil {
		return post, err
	}
	json.Unmarshal([]byte(recipients), &post.ToUserIDs)
	post.PointsEach = ledger.ParsePoints(pointsEach)
	post.ValueID = valueID.String
	post.Message = message.String
	post.CreatedAt = parseTime(createdAt)
	return post, nil
}

// =============================================================================
// BUDGET REQUESTS
// =============================================================================

func (s *Store) SaveBudgetRequest(ctx context.Context, req points.BudgetPointRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBudgetRequest(ctx, s.db, req)
}

func saveBudgetRequest(ctx context.Context, db dbtx, req points.BudgetPointRequest) error {
	recipients, _ := json.Marshal(req.ToUserIDs)

	var adjusted sql.NullString
	if req.AdjustedAmount != nil {
		adjusted = sql.NullString{String: req.AdjustedAmount.String(), Valid: true}
	}
	var decidedAt sql.NullString
	if req.DecidedAt != nil {
		decidedAt = sql.NullString{String: formatTime(*req.DecidedAt), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO budget_requests
		(id, from_user_id, position_id, to_user_ids, amount, value_id, message,
		 status, adjusted_amount, admin_note, created_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			adjusted_amount = excluded.adjusted_amount,
			admin_note = excluded.admin_note,
			decided_at = excluded.decided_at`,
		req.ID, req.FromUserID, req.PositionID, string(recipients),
		req.Amount.String(), nullString(req.ValueID), nullString(req.Message),
		req.Status, adjusted, nullString(req.AdminNote),
		formatTime(req.CreatedAt), decidedAt)
	if err != nil {
		return fmt.Errorf("failed to save budget request: %w", err)
	}
	return nil
}

func (s *Store) GetBudgetRequest(ctx context.Context, id string) (points.BudgetPointRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBudgetRequest(ctx, s.db, id)
}

func getBudgetRequest(ctx context.Context, db dbtx, id string) (points.BudgetPointRequest, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, from_user_id, position_id, to_user_ids, amount, value_id, message,
		       status, adjusted_amount, admin_note, created_at, decided_at
		FROM budget_requests WHERE id = ?`, id)
	req, err := scanBudgetRequest(row)
	if err == sql.ErrNoRows {
		return points.BudgetPointRequest{}, ledger.ErrRequestNotFound
	}
	return req, err
}

func (s *Store) ListBudgetRequests(ctx context.Context, status points.RequestStatus) ([]points.BudgetPointRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBudgetRequests(ctx, s.db, status)
}

func listBudgetRequests(ctx context.Context, db dbtx, status points.RequestStatus) ([]points.BudgetPointRequest, error) {
	query := `
		SELECT id, from_user_id, position_id, to_user_ids, amount, value_id, message,
		       status, adjusted_amount, admin_note, created_at, decided_at
		FROM budget_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list budget requests: %w", err)
	}
	defer rows.Close()

	var result []points.BudgetPointRequest
	for rows.Next() {
		req, err := scanBudgetRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func scanBudgetRequest(row rowScanner) (points.BudgetPointRequest, error) {
	var (
		req                 points.BudgetPointRequest
		recipients, amount  string
		valueID, message    sql.NullString
		adjusted, adminNote sql.NullString
		createdAt           string
		decidedAt           sql.NullString
	)
	err := row.Scan(&req.ID, &req.FromUserID, &req.PositionID, &recipients, &amount,
		&valueID, &message, &req.Status, &adjusted, &adminNote, &createdAt, &decidedAt)
	if err != nil {
		return req, err
	}
	json.Unmarshal([]byte(recipients), &req.ToUserIDs)
	req.Amount = ledger.ParsePoints(amount)
	req.ValueID = valueID.String
	req.Message = message.String
	req.AdminNote = adminNote.String
	req.CreatedAt = parseTime(createdAt)
	if adjusted.Valid {
		p := ledger.ParsePoints(adjusted.String)
		req.AdjustedAmount = &p
	}
	if decidedAt.Valid {
		t := parseTime(decidedAt.String)
		req.DecidedAt = &t
	}
	return req, nil
}

// =============================================================================
// POSITIONS
// =============================================================================

func (s *Store) GetPosition(ctx context.Context, id ledger.PositionID) (points.PositionBudget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPosition(ctx, s.db, id)
}

func getPosition(ctx context.Context, db dbtx, id ledger.PositionID) (points.PositionBudget, error) {
	row := db.QueryRowContext(ctx, `
		SELECT position_id, has_point_budget, yearly_budget, remaining_budget, version
		FROM positions WHERE position_id = ?`, id)

	var (
		pos               points.PositionBudget
		yearly, remaining string
	)
	err := row.Scan(&pos.PositionID, &pos.HasPointBudget, &yearly, &remaining, &pos.Version)
	if err == sql.ErrNoRows {
		return points.PositionBudget{}, ledger.ErrPositionNotFound
	}
	if err != nil {
		return points.PositionBudget{}, fmt.Errorf("failed to scan position: %w", err)
	}
	pos.YearlyBudget = ledger.ParsePoints(yearly)
	pos.Remaining = ledger.ParsePoints(remaining)
	return pos, nil
}

func (s *Store) PutPosition(ctx context.Context, pos points.PositionBudget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putPosition(ctx, s.db, pos)
}

func putPosition(ctx context.Context, db dbtx, pos points.PositionBudget) error {
	if pos.Version == 0 {
		_, err := db.ExecContext(ctx, `
			INSERT INTO positions (position_id, has_point_budget, yearly_budget, remaining_budget, version)
			VALUES (?, ?, ?, ?, 1)`,
			pos.PositionID, pos.HasPointBudget, pos.YearlyBudget.String(), pos.Remaining.String())
		if err != nil {
			if isUniqueConstraintError(err) {
				return ledger.ErrConflict
			}
			return fmt.Errorf("failed to insert position: %w", err)
		}
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE positions
		SET has_point_budget = ?, yearly_budget = ?, remaining_budget = ?, version = version + 1
		WHERE position_id = ? AND version = ?`,
		pos.HasPointBudget, pos.YearlyBudget.String(), pos.Remaining.String(),
		pos.PositionID, pos.Version)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrConflict
	}
	return nil
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func (s *Store) SaveRedemption(ctx context.Context, req points.RedemptionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRedemption(ctx, s.db, req)
}

func saveRedemption(ctx context.Context, db dbtx, req points.RedemptionRequest) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO redemptions (id, user_id, reward_id, snapshot_title, snapshot_cost, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.UserID, req.RewardID, req.Snapshot.Title, req.Snapshot.Cost.String(),
		req.Status, formatTime(req.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save redemption: %w", err)
	}
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, id string) (points.RedemptionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRedemption(ctx, s.db, id)
}

func getRedemption(ctx context.Context, db dbtx, id string) (points.RedemptionRequest, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, reward_id, snapshot_title, snapshot_cost, status, created_at
		FROM redemptions WHERE id = ?`, id)
	req, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return points.RedemptionRequest{}, ledger.ErrRequestNotFound
	}
	return req, err
}

func (s *Store) ListRedemptionsByUser(ctx context.Context, userID ledger.UserID) ([]points.RedemptionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRedemptionsByUser(ctx, s.db, userID)
}

func listRedemptionsByUser(ctx context.Context, db dbtx, userID ledger.UserID) ([]points.RedemptionRequest, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, reward_id, snapshot_title, snapshot_cost, status, created_at
		FROM redemptions WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	var result []points.RedemptionRequest
	for rows.Next() {
		req, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func scanRedemption(row rowScanner) (points.RedemptionRequest, error) {
	var (
		req             points.RedemptionRequest
		cost, createdAt string
	)
	err := row.Scan(&req.ID, &req.UserID, &req.RewardID, &req.Snapshot.Title, &cost, &req.Status, &createdAt)
	if err != nil {
		return req, err
	}
	req.Snapshot.RewardID = req.RewardID
	req.Snapshot.Cost = ledger.ParsePoints(cost)
	req.CreatedAt = parseTime(createdAt)
	return req, nil
}

// =============================================================================
// CONFIG
// =============================================================================

func (s *Store) GetConfig(ctx context.Context) (points.PointsConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getConfig(ctx, s.db)
}

func getConfig(ctx context.Context, db dbtx) (points.PointsConfig, error) {
	row := db.QueryRowContext(ctx, `
		SELECT monthly_allowance_base, values_json, catalog_json FROM config WHERE id = 1`)

	var base, valuesJSON, catalogJSON string
	err := row.Scan(&base, &valuesJSON, &catalogJSON)
	if err == sql.ErrNoRows {
		return points.PointsConfig{}, nil
	}
	if err != nil {
		return points.PointsConfig{}, fmt.Errorf("failed to scan config: %w", err)
	}

	var cfg points.PointsConfig
	cfg.MonthlyAllowanceBase = ledger.ParsePoints(base)
	json.Unmarshal([]byte(valuesJSON), &cfg.Values)

	var catalog []storedReward
	json.Unmarshal([]byte(catalogJSON), &catalog)
	for _, r := range catalog {
		cfg.Catalog = append(cfg.Catalog, points.Reward{
			ID: r.ID, Title: r.Title, Cost: ledger.ParsePoints(r.Cost),
		})
	}
	return cfg, nil
}

func (s *Store) SaveConfig(ctx context.Context, cfg points.PointsConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveConfig(ctx, s.db, cfg)
}

func saveConfig(ctx context.Context, db dbtx, cfg points.PointsConfig) error {
	valuesJSON, _ := json.Marshal(cfg.Values)
	catalog := make([]storedReward, 0, len(cfg.Catalog))
	for _, r := range cfg.Catalog {
		catalog = append(catalog, storedReward{ID: r.ID, Title: r.Title, Cost: r.Cost.String()})
	}
	catalogJSON, _ := json.Marshal(catalog)

	_, err := db.ExecContext(ctx, `
		INSERT INTO config (id, monthly_allowance_base, values_json, catalog_json)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			monthly_allowance_base = excluded.monthly_allowance_base,
			values_json = excluded.values_json,
			catalog_json = excluded.catalog_json`,
		cfg.MonthlyAllowanceBase.String(), string(valuesJSON), string(catalogJSON))
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// storedReward keeps catalog costs as exact strings in JSON.
type storedReward struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Cost  string `json:"cost"`
}

// =============================================================================
// TRANSACTIONAL STORE (points.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. SQLite serializes
// writers; the process-level mutex keeps this store's own writers from
// tripping over each other on the shared connection.
func (s *Store) WithTx(ctx context.Context, fn func(points.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs every Store method against the open *sql.Tx, so reads
// inside a closure observe that closure's own uncommitted writes.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetAccount(ctx context.Context, userID ledger.UserID) (ledger.PointAccount, error) {
	return getAccount(ctx, ts.tx, userID)
}

func (ts *txStore) PutAccount(ctx context.Context, account ledger.PointAccount) error {
	return putAccount(ctx, ts.tx, account)
}

func (ts *txStore) ListAccountIDs(ctx context.Context) ([]ledger.UserID, error) {
	return listAccountIDs(ctx, ts.tx)
}

func (ts *txStore) AppendTransactions(ctx context.Context, txs []ledger.PointTransaction) error {
	return appendTransactions(ctx, ts.tx, txs)
}

func (ts *txStore) TransactionsByUser(ctx context.Context, userID ledger.UserID) ([]ledger.PointTransaction, error) {
	return transactionsByUser(ctx, ts.tx, userID)
}

func (ts *txStore) SavePost(ctx context.Context, post points.RecognitionPost) error {
	return savePost(ctx, ts.tx, post)
}

func (ts *txStore) GetPost(ctx context.Context, id string) (points.RecognitionPost, error) {
	return getPost(ctx, ts.tx, id)
}

func (ts *txStore) ListPosts(ctx context.Context, limit int) ([]points.RecognitionPost, error) {
	return listPosts(ctx, ts.tx, limit)
}

func (ts *txStore) SaveBudgetRequest(ctx context.Context, req points.BudgetPointRequest) error {
	return saveBudgetRequest(ctx, ts.tx, req)
}

func (ts *txStore) GetBudgetRequest(ctx context.Context, id string) (points.BudgetPointRequest, error) {
	return getBudgetRequest(ctx, ts.tx, id)
}

func (ts *txStore) ListBudgetRequests(ctx context.Context, status points.RequestStatus) ([]points.BudgetPointRequest, error) {
	return listBudgetRequests(ctx, ts.tx, status)
}

func (ts *txStore) GetPosition(ctx context.Context, id ledger.PositionID) (points.PositionBudget, error) {
	return getPosition(ctx, ts.tx, id)
}

func (ts *txStore) PutPosition(ctx context.Context, pos points.PositionBudget) error {
	return putPosition(ctx, ts.tx, pos)
}

func (ts *txStore) SaveRedemption(ctx context.Context, req points.RedemptionRequest) error {
	return saveRedemption(ctx, ts.tx, req)
}

func (ts *txStore) GetRedemption(ctx context.Context, id string) (points.RedemptionRequest, error) {
	return getRedemption(ctx, ts.tx, id)
}

func (ts *txStore) ListRedemptionsByUser(ctx context.Context, userID ledger.UserID) ([]points.RedemptionRequest, error) {
	return listRedemptionsByUser(ctx, ts.tx, userID)
}

func (ts *txStore) GetConfig(ctx context.Context) (points.PointsConfig, error) {
	return getConfig(ctx, ts.tx)
}

func (ts *txStore) SaveConfig(ctx context.Context, cfg points.PointsConfig) error {
	return saveConfig(ctx, ts.tx, cfg)
}

var _ points.TxStore = (*Store)(nil)
var _ points.Store = (*txStore)(nil)

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
