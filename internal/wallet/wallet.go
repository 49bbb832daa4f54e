// Package wallet applies atomic, auditable balance deltas and answers
// balance queries. Every mutation appends an immutable ledger entry whose
// balance-after must equal the account's balance. The store enforces both
// writes in one transactional unit, and the ledger serializes writers per
// account on top of that.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/metrics"
	"github.com/luckyline/game-engine/internal/model"
	"github.com/luckyline/game-engine/internal/store"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")

	// ErrAccountFrozen is returned for accounts whose ledger chain failed
	// verification. Further writes require manual reconciliation.
	ErrAccountFrozen = errors.New("wallet: account frozen pending reconciliation")
)

// Ledger is the wallet subsystem. Safe for concurrent use: two simultaneous
// settlements touching the same player (or a settlement racing a withdrawal)
// are serialized by a per-account lock so the balance-before/after chain
// stays consistent.
type Ledger struct {
	store store.Store
	log   *slog.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	frozen map[string]bool
}

// NewLedger creates a wallet ledger over the given store.
func NewLedger(st store.Store, log *slog.Logger) *Ledger {
	return &Ledger{
		store:  st,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
		frozen: make(map[string]bool),
	}
}

// accountLock returns the mutex serializing writes for one account.
func (l *Ledger) accountLock(playerID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[playerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[playerID] = m
	}
	return m
}

// ApplyDelta mutates a player's balance by the signed amount and appends the
// ledger entry, atomically. Operations are keyed by referenceID: replaying
// the same reference id returns the original entry and changes nothing,
// which makes retries after transient persistence failures safe.
//
// Debits that would push the balance negative fail with
// ErrInsufficientFunds. A detected chain mismatch freezes the account and
// fails with ErrAccountFrozen; games must not keep writing to an account
// whose audit trail is broken.
func (l *Ledger) ApplyDelta(ctx context.Context, playerID string, delta decimal.Decimal, reason model.LedgerReason, referenceID string) (*model.LedgerEntry, error) {
	lock := l.accountLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	if l.isFrozen(playerID) {
		return nil, fmt.Errorf("%w: %s", ErrAccountFrozen, playerID)
	}

	entry, applied, err := l.store.ApplyBalanceDelta(ctx, playerID, delta, reason, referenceID)
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		metrics.InsufficientFunds.Inc()
		return nil, fmt.Errorf("%w: player %s delta %s", ErrInsufficientFunds, playerID, delta)
	case errors.Is(err, store.ErrChainMismatch):
		l.freeze(playerID)
		l.log.Error("ledger chain mismatch, account frozen",
			"player", playerID, "reference", referenceID)
		return nil, fmt.Errorf("%w: %s", ErrAccountFrozen, playerID)
	case err != nil:
		return nil, fmt.Errorf("apply delta for %s: %w", playerID, err)
	}

	if !applied {
		l.log.Warn("duplicate ledger reference replayed",
			"player", playerID, "reference", referenceID)
		return entry, nil
	}

	metrics.LedgerEntries.WithLabelValues(string(reason)).Inc()
	return entry, nil
}

// Balance returns the player's current balance. Unknown players have a zero
// balance rather than an error: accounts materialize on first credit.
func (l *Ledger) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	acct, err := l.store.Account(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance of %s: %w", playerID, err)
	}
	return acct.Balance, nil
}

// Entries returns the player's ledger history, most recent first.
func (l *Ledger) Entries(ctx context.Context, playerID string, limit int) ([]model.LedgerEntry, error) {
	return l.store.LedgerEntries(ctx, playerID, limit)
}

// Frozen reports whether an account is locked out pending reconciliation.
func (l *Ledger) Frozen(playerID string) bool {
	return l.isFrozen(playerID)
}

func (l *Ledger) isFrozen(playerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frozen[playerID]
}

func (l *Ledger) freeze(playerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen[playerID] = true
}
