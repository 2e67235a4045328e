// Package store provides an in-memory points.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds everything in maps guarded by one mutex. WithTx simulates
// atomicity with a full snapshot restored on error, and PutAccount /
// PutPosition enforce the same version check as the SQLite store, so
// engine-level conflict and retry behavior is exercised identically.
type Memory struct {
	mu sync.RWMutex

	accounts     map[ledger.UserID]ledger.PointAccount
	transactions map[ledger.UserID][]ledger.PointTransaction
	posts        map[string]points.RecognitionPost
	postOrder    []string
	requests     map[string]points.BudgetPointRequest
	positions    map[ledger.PositionID]points.PositionBudget
	redemptions  map[string]points.RedemptionRequest
	config       *points.PointsConfig
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[ledger.UserID]ledger.PointAccount),
		transactions: make(map[ledger.UserID][]ledger.PointTransaction),
		posts:        make(map[string]points.RecognitionPost),
		requests:     make(map[string]points.BudgetPointRequest),
		positions:    make(map[ledger.PositionID]points.PositionBudget),
		redemptions:  make(map[string]points.RedemptionRequest),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) GetAccount(_ context.Context, userID ledger.UserID) (ledger.PointAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(userID)
}

func (m *Memory) getAccountLocked(userID ledger.UserID) (ledger.PointAccount, error) {
	acct, ok := m.accounts[userID]
	if !ok {
		return ledger.PointAccount{}, ledger.ErrAccountNotFound
	}
	return acct, nil
}

func (m *Memory) PutAccount(_ context.Context, account ledger.PointAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putAccountLocked(account)
}

func (m *Memory) putAccountLocked(account ledger.PointAccount) error {
	existing, ok := m.accounts[account.UserID]
	if account.Version == 0 {
		if ok {
			return ledger.ErrConflict // concurrent create won
		}
	} else if !ok || existing.Version != account.Version {
		return ledger.ErrConflict
	}
	account.Version++
	m.accounts[account.UserID] = account
	return nil
}

func (m *Memory) ListAccountIDs(_ context.Context) ([]ledger.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]ledger.UserID, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// TRANSACTIONS (append-only)
// =============================================================================

func (m *Memory) AppendTransactions(_ context.Context, txs []ledger.PointTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.transactions[tx.UserID] = append(m.transactions[tx.UserID], tx)
	}
	return nil
}

func (m *Memory) TransactionsByUser(_ context.Context, userID ledger.UserID) ([]ledger.PointTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.PointTransaction, len(m.transactions[userID]))
	copy(result, m.transactions[userID])
	return result, nil
}

// =============================================================================
// POSTS
// =============================================================================

func (m *Memory) SavePost(_ context.Context, post points.RecognitionPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[post.ID]; !ok {
		m.postOrder = append(m.postOrder, post.ID)
	}
	m.posts[post.ID] = post
	return nil
}

func (m *Memory) GetPost(_ context.Context, id string) (points.RecognitionPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	post, ok := m.posts[id]
	if !ok {
		return points.RecognitionPost{}, ledger.ErrRequestNotFound
	}
	return post, nil
}

func (m *Memory) ListPosts(_ context.Context, limit int) ([]points.RecognitionPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first.
	var result []points.RecognitionPost
	for i := len(m.postOrder) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		result = append(result, m.posts[m.postOrder[i]])
	}
	return result, nil
}

// =============================================================================
// BUDGET REQUESTS
// =============================================================================

func (m *Memory) SaveBudgetRequest(_ context.Context, req points.BudgetPointRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return nil
}

func (m *Memory) GetBudgetRequest(_ context.Context, id string) (points.BudgetPointRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return points.BudgetPointRequest{}, ledger.ErrRequestNotFound
	}
	return req, nil
}

func (m *Memory) ListBudgetRequests(_ context.Context, status points.RequestStatus) ([]points.BudgetPointRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []points.BudgetPointRequest
	for _, req := range m.requests {
		if status == "" || req.Status == status {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// =============================================================================
// POSITIONS
// =============================================================================

func (m *Memory) GetPosition(_ context.Context, id ledger.PositionID) (points.PositionBudget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[id]
	if !ok {
		return points.PositionBudget{}, ledger.ErrPositionNotFound
	}
	return pos, nil
}

func (m *Memory) PutPosition(_ context.Context, pos points.PositionBudget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.positions[pos.PositionID]
	if pos.Version == 0 {
		if ok {
			return ledger.ErrConflict
		}
	} else if !ok || existing.Version != pos.Version {
		return ledger.ErrConflict
	}
	pos.Version++
	m.positions[pos.PositionID] = pos
	return nil
}

// SeedPosition installs position master data directly (bypasses the
// version check). Test/dev helper for externally-owned records.
func (m *Memory) SeedPosition(pos points.PositionBudget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pos.Version == 0 {
		pos.Version = 1
	}
	m.positions[pos.PositionID] = pos
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func (m *Memory) SaveRedemption(_ context.Context, req points.RedemptionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redemptions[req.ID] = req
	return nil
}

func (m *Memory) GetRedemption(_ context.Context, id string) (points.RedemptionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.redemptions[id]
	if !ok {
		return points.RedemptionRequest{}, ledger.ErrRequestNotFound
	}
	return req, nil
}

func (m *Memory) ListRedemptionsByUser(_ context.Context, userID ledger.UserID) ([]points.RedemptionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []points.RedemptionRequest
	for _, req := range m.redemptions {
		if req.UserID == userID {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// =============================================================================
// CONFIG
// =============================================================================

func (m *Memory) GetConfig(_ context.Context) (points.PointsConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return points.PointsConfig{}, nil
	}
	return *m.config, nil
}

func (m *Memory) SaveConfig(_ context.Context, cfg points.PointsConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &cfg
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with snapshot-rollback transactions.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx serializes transactions and restores a snapshot if fn fails, so
// a failed closure leaves nothing observable.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(points.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	if err := ctx.Err(); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts     map[ledger.UserID]ledger.PointAccount
	transactions map[ledger.UserID][]ledger.PointTransaction
	posts        map[string]points.RecognitionPost
	postOrder    []string
	requests     map[string]points.BudgetPointRequest
	positions    map[ledger.PositionID]points.PositionBudget
	redemptions  map[string]points.RedemptionRequest
	config       *points.PointsConfig
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		accounts:     make(map[ledger.UserID]ledger.PointAccount, len(tm.accounts)),
		transactions: make(map[ledger.UserID][]ledger.PointTransaction, len(tm.transactions)),
		posts:        make(map[string]points.RecognitionPost, len(tm.posts)),
		postOrder:    append([]string{}, tm.postOrder...),
		requests:     make(map[string]points.BudgetPointRequest, len(tm.requests)),
		positions:    make(map[ledger.PositionID]points.PositionBudget, len(tm.positions)),
		redemptions:  make(map[string]points.RedemptionRequest, len(tm.redemptions)),
		config:       tm.config,
	}
	for k, v := range tm.accounts {
		s.accounts[k] = v
	}
	for k, v := range tm.transactions {
		s.transactions[k] = append([]ledger.PointTransaction{}, v...)
	}
	for k, v := range tm.posts {
		s.posts[k] = v
	}
	for k, v := range tm.requests {
		s.requests[k] = v
	}
	for k, v := range tm.positions {
		s.positions[k] = v
	}
	for k, v := range tm.redemptions {
		s.redemptions[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.accounts = s.accounts
	tm.transactions = s.transactions
	tm.posts = s.posts
	tm.postOrder = s.postOrder
	tm.requests = s.requests
	tm.positions = s.positions
	tm.redemptions = s.redemptions
	tm.config = s.config
}

var _ points.TxStore = (*TxMemory)(nil)
