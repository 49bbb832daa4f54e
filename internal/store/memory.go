package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*model.WalletAccount
	ledger    map[string][]model.LedgerEntry // playerID → entries, oldest first
	byRef     map[string]model.LedgerEntry   // referenceID → entry
	rounds    map[string][]model.RoundRecord // trackID → records, oldest first
	transfers map[string]*model.TransferRequest
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*model.WalletAccount),
		ledger:    make(map[string][]model.LedgerEntry),
		byRef:     make(map[string]model.LedgerEntry),
		rounds:    make(map[string][]model.RoundRecord),
		transfers: make(map[string]*model.TransferRequest),
	}
}

// Seed creates or replaces an account with the given balance. Test helper.
func (s *MemoryStore) Seed(playerID string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[playerID] = &model.WalletAccount{
		PlayerID:  playerID,
		Balance:   balance,
		UpdatedAt: time.Now().UTC(),
	}
}

func (s *MemoryStore) Account(_ context.Context, playerID string) (*model.WalletAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) ApplyBalanceDelta(_ context.Context, playerID string, delta decimal.Decimal, reason model.LedgerReason, referenceID string) (*model.LedgerEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent replay: hand back the original entry unchanged.
	if prior, ok := s.byRef[referenceID]; ok {
		copy := prior
		return &copy, false, nil
	}

	acct, ok := s.accounts[playerID]
	if !ok {
		acct = &model.WalletAccount{PlayerID: playerID, Balance: decimal.Zero}
		s.accounts[playerID] = acct
	}

	// Chain check: the ledger tail must agree with the stored balance.
	if entries := s.ledger[playerID]; len(entries) > 0 {
		if !entries[len(entries)-1].BalanceAfter.Equal(acct.Balance) {
			return nil, false, ErrChainMismatch
		}
	}

	after := acct.Balance.Add(delta)
	if after.IsNegative() {
		return nil, false, ErrInsufficientFunds
	}

	entry := model.LedgerEntry{
		ID:            uuid.New().String(),
		PlayerID:      playerID,
		Delta:         delta,
		BalanceBefore: acct.Balance,
		BalanceAfter:  after,
		Reason:        reason,
		ReferenceID:   referenceID,
		Timestamp:     time.Now().UTC(),
	}

	acct.Balance = after
	acct.UpdatedAt = entry.Timestamp
	s.ledger[playerID] = append(s.ledger[playerID], entry)
	s.byRef[referenceID] = entry

	copy := entry
	return &copy, true, nil
}

func (s *MemoryStore) LedgerEntries(_ context.Context, playerID string, limit int) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.ledger[playerID]
	out := make([]model.LedgerEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *MemoryStore) LastLedgerEntry(_ context.Context, playerID string) (*model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.ledger[playerID]
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	copy := entries[len(entries)-1]
	return &copy, nil
}

// CorruptBalance overwrites an account balance without appending a ledger
// entry, breaking the chain. Test helper for the mismatch path.
func (s *MemoryStore) CorruptBalance(playerID string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[playerID]; ok {
		a.Balance = balance
	}
}

func (s *MemoryStore) InsertRoundRecord(_ context.Context, rec *model.RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rounds[rec.TrackID] = append(s.rounds[rec.TrackID], *rec)
	return nil
}

func (s *MemoryStore) RoundHistory(_ context.Context, trackID string, limit int) ([]model.RoundRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.rounds[trackID]
	out := make([]model.RoundRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, recs[i])
	}
	return out, nil
}

func (s *MemoryStore) CreateTransfer(_ context.Context, req *model.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *req
	s.transfers[req.OrderID] = &copy
	return nil
}

func (s *MemoryStore) Transfer(_ context.Context, orderID string) (*model.TransferRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.transfers[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *req
	return &copy, nil
}

func (s *MemoryStore) UpdateTransferStatus(_ context.Context, orderID string, from, to model.TransferStatus, adminID, remarks string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.transfers[orderID]
	if !ok {
		return ErrNotFound
	}
	if req.Status != from {
		return ErrStatusConflict
	}
	req.Status = to
	req.AdminID = adminID
	req.Remarks = remarks
	req.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) TransfersByStatus(_ context.Context, status model.TransferStatus, limit int) ([]model.TransferRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.TransferRequest
	for _, req := range s.transfers {
		if req.Status == status {
			out = append(out, *req)
		}
	}
	// Oldest first.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ExpirePending(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, req := range s.transfers {
		if req.Status == model.TransferPending && req.CreatedAt.Before(cutoff) {
			req.Status = model.TransferCancelled
			req.Remarks = "expired: not approved within retention window"
			req.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}
