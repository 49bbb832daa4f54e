package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Account(ctx context.Context, playerID string) (*model.WalletAccount, error) {
	var a model.WalletAccount
	var balance string

	err := s.pool.QueryRow(ctx,
		`SELECT player_id, balance::TEXT, updated_at
		 FROM wallet_accounts WHERE player_id = $1`, playerID).
		Scan(&a.PlayerID, &balance, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", playerID, err)
	}

	a.Balance, _ = decimal.NewFromString(balance)
	return &a, nil
}

// ApplyBalanceDelta runs the balance mutation and the ledger append in one
// transaction, with the account row locked for the duration. This is the
// transactional boundary: a failure anywhere rolls back both writes.
func (s *PostgresStore) ApplyBalanceDelta(ctx context.Context, playerID string, delta decimal.Decimal, reason model.LedgerReason, referenceID string) (*model.LedgerEntry, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin apply delta: %w", err)
	}
	defer tx.Rollback(ctx)

	// Idempotent replay: same reference id returns the original entry.
	if prior, err := scanEntryRow(tx.QueryRow(ctx,
		`SELECT id, player_id, delta::TEXT, balance_before::TEXT, balance_after::TEXT, reason, reference_id, timestamp
		 FROM ledger_entries WHERE reference_id = $1`, referenceID)); err == nil {
		return prior, false, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("check reference %s: %w", referenceID, err)
	}

	// Lock the account row; create it on first use.
	var balanceS string
	err = tx.QueryRow(ctx,
		`INSERT INTO wallet_accounts (player_id, balance, updated_at)
		 VALUES ($1, 0, NOW())
		 ON CONFLICT (player_id) DO UPDATE SET player_id = EXCLUDED.player_id
		 RETURNING balance::TEXT`, playerID).Scan(&balanceS)
	if err != nil {
		return nil, false, fmt.Errorf("lock account %s: %w", playerID, err)
	}
	balance, _ := decimal.NewFromString(balanceS)

	// Chain check against the ledger tail.
	var tailAfterS string
	err = tx.QueryRow(ctx,
		`SELECT balance_after::TEXT FROM ledger_entries
		 WHERE player_id = $1 ORDER BY timestamp DESC, id DESC LIMIT 1`, playerID).
		Scan(&tailAfterS)
	if err == nil {
		tailAfter, _ := decimal.NewFromString(tailAfterS)
		if !tailAfter.Equal(balance) {
			return nil, false, ErrChainMismatch
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("read ledger tail %s: %w", playerID, err)
	}

	after := balance.Add(delta)
	if after.IsNegative() {
		return nil, false, ErrInsufficientFunds
	}

	entry := &model.LedgerEntry{
		ID:            uuid.New().String(),
		PlayerID:      playerID,
		Delta:         delta,
		BalanceBefore: balance,
		BalanceAfter:  after,
		Reason:        reason,
		ReferenceID:   referenceID,
		Timestamp:     time.Now().UTC(),
	}

	if _, err := tx.Exec(ctx,
		`UPDATE wallet_accounts SET balance = $2::NUMERIC, updated_at = $3 WHERE player_id = $1`,
		playerID, after.String(), entry.Timestamp); err != nil {
		return nil, false, fmt.Errorf("update balance %s: %w", playerID, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, player_id, delta, balance_before, balance_after, reason, reference_id, timestamp)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6, $7, $8)`,
		entry.ID, entry.PlayerID,
		entry.Delta.String(), entry.BalanceBefore.String(), entry.BalanceAfter.String(),
		entry.Reason, entry.ReferenceID, entry.Timestamp); err != nil {
		return nil, false, fmt.Errorf("append ledger entry %s: %w", referenceID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit apply delta: %w", err)
	}
	return entry, true, nil
}

func (s *PostgresStore) LedgerEntries(ctx context.Context, playerID string, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, player_id, delta::TEXT, balance_before::TEXT, balance_after::TEXT, reason, reference_id, timestamp
		 FROM ledger_entries WHERE player_id = $1
		 ORDER BY timestamp DESC, id DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var deltaS, beforeS, afterS string
		if err := rows.Scan(&e.ID, &e.PlayerID, &deltaS, &beforeS, &afterS,
			&e.Reason, &e.ReferenceID, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Delta, _ = decimal.NewFromString(deltaS)
		e.BalanceBefore, _ = decimal.NewFromString(beforeS)
		e.BalanceAfter, _ = decimal.NewFromString(afterS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) LastLedgerEntry(ctx context.Context, playerID string) (*model.LedgerEntry, error) {
	entry, err := scanEntryRow(s.pool.QueryRow(ctx,
		`SELECT id, player_id, delta::TEXT, balance_before::TEXT, balance_after::TEXT, reason, reference_id, timestamp
		 FROM ledger_entries WHERE player_id = $1
		 ORDER BY timestamp DESC, id DESC LIMIT 1`, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

func (s *PostgresStore) InsertRoundRecord(ctx context.Context, rec *model.RoundRecord) error {
	bets, err := json.Marshal(rec.Bets)
	if err != nil {
		return fmt.Errorf("marshal round bets: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO round_records (track_id, round, digit, color, size, bets, settled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.TrackID, rec.Round, rec.Outcome.Digit, rec.Outcome.Color, rec.Outcome.Size,
		bets, rec.SettledAt)
	return err
}

func (s *PostgresStore) RoundHistory(ctx context.Context, trackID string, limit int) ([]model.RoundRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT track_id, round, digit, color, size, bets, settled_at
		 FROM round_records WHERE track_id = $1
		 ORDER BY round DESC LIMIT $2`, trackID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.RoundRecord
	for rows.Next() {
		var rec model.RoundRecord
		var bets []byte
		if err := rows.Scan(&rec.TrackID, &rec.Round, &rec.Outcome.Digit,
			&rec.Outcome.Color, &rec.Outcome.Size, &bets, &rec.SettledAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(bets, &rec.Bets); err != nil {
			return nil, fmt.Errorf("unmarshal round bets: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *PostgresStore) CreateTransfer(ctx context.Context, req *model.TransferRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transfer_requests (order_id, player_id, kind, amount, status, admin_id, remarks, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7, $8, $9)`,
		req.OrderID, req.PlayerID, req.Kind, req.Amount.String(), req.Status,
		req.AdminID, req.Remarks, req.CreatedAt, req.UpdatedAt)
	return err
}

func (s *PostgresStore) Transfer(ctx context.Context, orderID string) (*model.TransferRequest, error) {
	var req model.TransferRequest
	var amount string

	err := s.pool.QueryRow(ctx,
		`SELECT order_id, player_id, kind, amount::TEXT, status, admin_id, remarks, created_at, updated_at
		 FROM transfer_requests WHERE order_id = $1`, orderID).
		Scan(&req.OrderID, &req.PlayerID, &req.Kind, &amount, &req.Status,
			&req.AdminID, &req.Remarks, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer %s: %w", orderID, err)
	}

	req.Amount, _ = decimal.NewFromString(amount)
	return &req, nil
}

func (s *PostgresStore) UpdateTransferStatus(ctx context.Context, orderID string, from, to model.TransferStatus, adminID, remarks string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transfer_requests
		 SET status = $3, admin_id = $4, remarks = $5, updated_at = NOW()
		 WHERE order_id = $1 AND status = $2`,
		orderID, from, to, adminID, remarks)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from wrong-status.
		if _, err := s.Transfer(ctx, orderID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

func (s *PostgresStore) TransfersByStatus(ctx context.Context, status model.TransferStatus, limit int) ([]model.TransferRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT order_id, player_id, kind, amount::TEXT, status, admin_id, remarks, created_at, updated_at
		 FROM transfer_requests WHERE status = $1
		 ORDER BY created_at ASC LIMIT $2`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []model.TransferRequest
	for rows.Next() {
		var req model.TransferRequest
		var amount string
		if err := rows.Scan(&req.OrderID, &req.PlayerID, &req.Kind, &amount, &req.Status,
			&req.AdminID, &req.Remarks, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		req.Amount, _ = decimal.NewFromString(amount)
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (s *PostgresStore) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transfer_requests
		 SET status = $1, remarks = 'expired: not approved within retention window', updated_at = NOW()
		 WHERE status = $2 AND created_at < $3`,
		model.TransferCancelled, model.TransferPending, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanEntryRow(row pgx.Row) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var deltaS, beforeS, afterS string
	if err := row.Scan(&e.ID, &e.PlayerID, &deltaS, &beforeS, &afterS,
		&e.Reason, &e.ReferenceID, &e.Timestamp); err != nil {
		return nil, err
	}
	e.Delta, _ = decimal.NewFromString(deltaS)
	e.BalanceBefore, _ = decimal.NewFromString(beforeS)
	e.BalanceAfter, _ = decimal.NewFromString(afterS)
	return &e, nil
}
