// Package transfer manages user-initiated deposit and withdrawal requests
// through their lifecycle: PENDING → PROCESSING → COMPLETED | REJECTED |
// CANCELLED. Completion is the only step that touches the wallet ledger,
// keyed by the order id so an interrupted completion can be retried safely.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/model"
	"github.com/luckyline/game-engine/internal/store"
	"github.com/luckyline/game-engine/internal/wallet"
)

var (
	// ErrInvalidAmount is returned for zero or negative transfer amounts.
	ErrInvalidAmount = errors.New("transfer: amount must be positive")

	// ErrInsufficientFunds is returned when a withdrawal exceeds the
	// player's balance.
	ErrInsufficientFunds = errors.New("transfer: insufficient funds")

	// ErrNotFound is returned for an unknown order id.
	ErrNotFound = errors.New("transfer: request not found")

	// ErrStatusConflict is returned for a lifecycle transition attempted
	// from the wrong status.
	ErrStatusConflict = errors.New("transfer: request not in expected status")
)

// Service handles transfer requests. The retention window bounds how long a
// request may sit PENDING before the sweep cancels it.
type Service struct {
	store     store.Store
	ledger    *wallet.Ledger
	retention time.Duration
	log       *slog.Logger
}

// NewService creates a transfer service with the given PENDING retention
// window.
func NewService(st store.Store, ledger *wallet.Ledger, retention time.Duration, log *slog.Logger) *Service {
	return &Service{
		store:     st,
		ledger:    ledger,
		retention: retention,
		log:       log,
	}
}

// CreateDeposit records a PENDING deposit request.
func (s *Service) CreateDeposit(ctx context.Context, playerID string, amount decimal.Decimal) (*model.TransferRequest, error) {
	return s.create(ctx, playerID, model.TransferDeposit, amount)
}

// CreateWithdrawal records a PENDING withdrawal request. The balance is
// pre-checked here for fast feedback; the authoritative check happens again
// in the ledger at completion time.
func (s *Service) CreateWithdrawal(ctx context.Context, playerID string, amount decimal.Decimal) (*model.TransferRequest, error) {
	if amount.IsPositive() {
		balance, err := s.ledger.Balance(ctx, playerID)
		if err != nil {
			return nil, err
		}
		if balance.LessThan(amount) {
			return nil, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, balance, amount)
		}
	}
	return s.create(ctx, playerID, model.TransferWithdrawal, amount)
}

func (s *Service) create(ctx context.Context, playerID string, kind model.TransferKind, amount decimal.Decimal) (*model.TransferRequest, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	req := &model.TransferRequest{
		OrderID:   orderID(kind),
		PlayerID:  playerID,
		Kind:      kind,
		Amount:    amount,
		Status:    model.TransferPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTransfer(ctx, req); err != nil {
		return nil, fmt.Errorf("create %s for %s: %w", strings.ToLower(string(kind)), playerID, err)
	}

	s.log.Info("transfer requested",
		"order", req.OrderID, "player", playerID,
		"kind", kind, "amount", amount.String())
	return req, nil
}

// Approve moves a PENDING request to PROCESSING.
func (s *Service) Approve(ctx context.Context, orderID, adminID, remarks string) error {
	return s.transition(ctx, orderID, model.TransferPending, model.TransferProcessing, adminID, remarks)
}

// Reject moves a PENDING request to REJECTED.
func (s *Service) Reject(ctx context.Context, orderID, adminID, reason string) error {
	return s.transition(ctx, orderID, model.TransferPending, model.TransferRejected, adminID, reason)
}

// Cancel moves a PENDING request to CANCELLED (player-initiated).
func (s *Service) Cancel(ctx context.Context, orderID string) error {
	return s.transition(ctx, orderID, model.TransferPending, model.TransferCancelled, "", "cancelled by player")
}

// Complete applies a PROCESSING request's balance delta and moves it to
// COMPLETED. The ledger write is idempotent on the order id, so retrying a
// completion that failed between the two steps cannot double-apply.
func (s *Service) Complete(ctx context.Context, orderID, adminID, remarks string) (*model.LedgerEntry, error) {
	req, err := s.store.Transfer(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if req.Status != model.TransferProcessing {
		return nil, fmt.Errorf("%w: %s is %s", ErrStatusConflict, orderID, req.Status)
	}

	delta := req.Amount
	reason := model.ReasonDeposit
	if req.Kind == model.TransferWithdrawal {
		delta = req.Amount.Neg()
		reason = model.ReasonWithdrawal
	}

	entry, err := s.ledger.ApplyDelta(ctx, req.PlayerID, delta, reason, "transfer:"+orderID)
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			return nil, fmt.Errorf("%w: order %s", ErrInsufficientFunds, orderID)
		}
		return nil, err
	}

	if err := s.store.UpdateTransferStatus(ctx, orderID, model.TransferProcessing, model.TransferCompleted, adminID, remarks); err != nil {
		// The delta is applied; the status flip can be retried and the
		// replayed ledger write will be a no-op.
		return entry, fmt.Errorf("complete %s: %w", orderID, err)
	}

	s.log.Info("transfer completed",
		"order", orderID, "player", req.PlayerID,
		"kind", req.Kind, "amount", req.Amount.String())
	return entry, nil
}

// Get returns one request by order id.
func (s *Service) Get(ctx context.Context, orderID string) (*model.TransferRequest, error) {
	req, err := s.store.Transfer(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return req, err
}

// Pending lists requests awaiting admin action, oldest first.
func (s *Service) Pending(ctx context.Context, limit int) ([]model.TransferRequest, error) {
	return s.store.TransfersByStatus(ctx, model.TransferPending, limit)
}

// ExpireStale cancels PENDING requests older than the retention window.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	n, err := s.store.ExpirePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire pending transfers: %w", err)
	}
	if n > 0 {
		s.log.Info("expired stale transfer requests", "count", n)
	}
	return n, nil
}

// StartSweep schedules the expiry sweep on the given cron runner. The
// sweep's failures are logged, never fatal.
func (s *Service) StartSweep(c *cron.Cron) error {
	_, err := c.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.ExpireStale(ctx); err != nil {
			s.log.Error("transfer sweep failed", "err", err)
		}
	})
	return err
}

func (s *Service) transition(ctx context.Context, orderID string, from, to model.TransferStatus, adminID, remarks string) error {
	err := s.store.UpdateTransferStatus(ctx, orderID, from, to, adminID, remarks)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrStatusConflict):
		return fmt.Errorf("%w: %s → %s", ErrStatusConflict, from, to)
	case err != nil:
		return err
	}

	s.log.Info("transfer status changed", "order", orderID, "from", from, "to", to)
	return nil
}

func orderID(kind model.TransferKind) string {
	prefix := "DEP"
	if kind == model.TransferWithdrawal {
		prefix = "WDL"
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String())
}
