// Package store defines the persistence interface for the game engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrInsufficientFunds is returned when a debit would push an account
	// balance below zero.
	ErrInsufficientFunds = errors.New("store: insufficient funds")

	// ErrChainMismatch is returned when the most recent ledger entry's
	// balance-after disagrees with the account balance. Writes to the
	// account must stop until the ledger is reconciled.
	ErrChainMismatch = errors.New("store: ledger chain does not match account balance")

	// ErrStatusConflict is returned when a transfer status transition is
	// attempted from the wrong current status.
	ErrStatusConflict = errors.New("store: transfer not in expected status")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Wallet accounts and immutable ledger ---

	// Account retrieves a wallet account, or ErrNotFound.
	Account(ctx context.Context, playerID string) (*model.WalletAccount, error)

	// ApplyBalanceDelta atomically mutates an account balance and appends
	// the matching ledger entry: both happen or neither does. The account
	// is created with a zero balance on first use. Replaying a reference
	// id returns the original entry with applied=false and changes
	// nothing. Fails with ErrInsufficientFunds when the new balance would
	// be negative, and ErrChainMismatch when the existing ledger tail
	// disagrees with the stored balance.
	ApplyBalanceDelta(ctx context.Context, playerID string, delta decimal.Decimal, reason model.LedgerReason, referenceID string) (entry *model.LedgerEntry, applied bool, err error)

	// LedgerEntries returns an account's entries, most recent first.
	LedgerEntries(ctx context.Context, playerID string, limit int) ([]model.LedgerEntry, error)

	// LastLedgerEntry returns the most recent entry, or ErrNotFound for a
	// virgin account.
	LastLedgerEntry(ctx context.Context, playerID string) (*model.LedgerEntry, error)

	// --- Round history ---

	// InsertRoundRecord persists one settled round.
	InsertRoundRecord(ctx context.Context, rec *model.RoundRecord) error

	// RoundHistory returns a track's settled rounds, most recent first.
	RoundHistory(ctx context.Context, trackID string, limit int) ([]model.RoundRecord, error)

	// --- Deposit/withdrawal requests ---

	// CreateTransfer persists a new PENDING transfer request.
	CreateTransfer(ctx context.Context, req *model.TransferRequest) error

	// Transfer retrieves a request by order id, or ErrNotFound.
	Transfer(ctx context.Context, orderID string) (*model.TransferRequest, error)

	// UpdateTransferStatus moves a request from one status to another,
	// compare-and-set: ErrStatusConflict if the current status is not
	// `from`.
	UpdateTransferStatus(ctx context.Context, orderID string, from, to model.TransferStatus, adminID, remarks string) error

	// TransfersByStatus lists requests in a status, oldest first.
	TransfersByStatus(ctx context.Context, status model.TransferStatus, limit int) ([]model.TransferRequest, error)

	// ExpirePending cancels PENDING requests created before the cutoff and
	// returns how many were cancelled.
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}
