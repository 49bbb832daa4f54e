package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for account balances and round history. Writes go to the primary
// store and invalidate the cache; reads check Redis first then fall back.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) Account(ctx context.Context, playerID string) (*model.WalletAccount, error) {
	data, err := s.rdb.Get(ctx, accountKey(playerID)).Bytes()
	if err == nil {
		var a model.WalletAccount
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.Account(ctx, playerID)
	if err != nil {
		return nil, err
	}
	s.cacheAccount(ctx, a)
	return a, nil
}

func (s *CachedStore) RoundHistory(ctx context.Context, trackID string, limit int) ([]model.RoundRecord, error) {
	key := historyKey(trackID, limit)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var recs []model.RoundRecord
		if json.Unmarshal(data, &recs) == nil {
			return recs, nil
		}
	}

	recs, err := s.primary.RoundHistory(ctx, trackID, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(recs); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return recs, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) ApplyBalanceDelta(ctx context.Context, playerID string, delta decimal.Decimal, reason model.LedgerReason, referenceID string) (*model.LedgerEntry, bool, error) {
	entry, applied, err := s.primary.ApplyBalanceDelta(ctx, playerID, delta, reason, referenceID)
	if err != nil {
		return nil, false, err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, accountKey(playerID))
	return entry, applied, nil
}

func (s *CachedStore) InsertRoundRecord(ctx context.Context, rec *model.RoundRecord) error {
	if err := s.primary.InsertRoundRecord(ctx, rec); err != nil {
		return err
	}
	// History keys vary by limit; drop the common ones.
	keys, err := s.rdb.Keys(ctx, fmt.Sprintf("history:%s:*", rec.TrackID)).Result()
	if err == nil && len(keys) > 0 {
		s.rdb.Del(ctx, keys...)
	}
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) LedgerEntries(ctx context.Context, playerID string, limit int) ([]model.LedgerEntry, error) {
	return s.primary.LedgerEntries(ctx, playerID, limit)
}

func (s *CachedStore) LastLedgerEntry(ctx context.Context, playerID string) (*model.LedgerEntry, error) {
	return s.primary.LastLedgerEntry(ctx, playerID)
}

func (s *CachedStore) CreateTransfer(ctx context.Context, req *model.TransferRequest) error {
	return s.primary.CreateTransfer(ctx, req)
}

func (s *CachedStore) Transfer(ctx context.Context, orderID string) (*model.TransferRequest, error) {
	return s.primary.Transfer(ctx, orderID)
}

func (s *CachedStore) UpdateTransferStatus(ctx context.Context, orderID string, from, to model.TransferStatus, adminID, remarks string) error {
	return s.primary.UpdateTransferStatus(ctx, orderID, from, to, adminID, remarks)
}

func (s *CachedStore) TransfersByStatus(ctx context.Context, status model.TransferStatus, limit int) ([]model.TransferRequest, error) {
	return s.primary.TransfersByStatus(ctx, status, limit)
}

func (s *CachedStore) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	return s.primary.ExpirePending(ctx, cutoff)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAccount(ctx context.Context, a *model.WalletAccount) {
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, accountKey(a.PlayerID), data, s.ttl)
	}
}

func accountKey(playerID string) string         { return fmt.Sprintf("account:%s", playerID) }
func historyKey(trackID string, limit int) string { return fmt.Sprintf("history:%s:%d", trackID, limit) }
