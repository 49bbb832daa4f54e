// Package model defines the core domain types shared across the game engine.
// All monetary values use shopspring/decimal, never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the stage a track's current round is in.
type Phase string

const (
	// PhaseBetting accepts bets until the timer runs out.
	PhaseBetting Phase = "betting"
	// PhaseSettling displays the outcome while payouts are applied.
	PhaseSettling Phase = "settling"
)

// BetKind selects which axis of the outcome a bet is on.
type BetKind string

const (
	KindColor  BetKind = "color"
	KindNumber BetKind = "number"
	KindSize   BetKind = "size"
)

// Color of a drawn digit. Digit 0 is violet; {1,3,7,9} are green,
// {2,4,6,8} are red.
type Color string

const (
	ColorViolet Color = "violet"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
)

// Size of a drawn digit: small for 0-4, big for 5-9.
type Size string

const (
	SizeSmall Size = "small"
	SizeBig   Size = "big"
)

// Track is the immutable configuration of one speed variant. Each track runs
// its own independent round timeline.
type Track struct {
	ID          string        `json:"id"`
	BettingFor  time.Duration `json:"betting_for"`
	SettlingFor time.Duration `json:"settling_for"`
}

// DefaultTracks are the four speed variants offered at launch.
func DefaultTracks() []Track {
	const settle = 3 * time.Second
	return []Track{
		{ID: "fast", BettingFor: 30 * time.Second, SettlingFor: settle},
		{ID: "medium", BettingFor: 60 * time.Second, SettlingFor: settle},
		{ID: "slow", BettingFor: 180 * time.Second, SettlingFor: settle},
		{ID: "extra-slow", BettingFor: 300 * time.Second, SettlingFor: settle},
	}
}

// Outcome is one drawn digit with its derived attributes. Color and size are
// independent axes, both pure functions of the digit.
type Outcome struct {
	Digit int   `json:"digit"`
	Color Color `json:"color"`
	Size  Size  `json:"size"`
}

// Bet is a player's single live stake on one track. It exists only within
// one round: created at placement, consumed at settlement.
type Bet struct {
	PlayerID string          `json:"player_id"`
	TrackID  string          `json:"track_id"`
	Kind     BetKind         `json:"kind"`
	Value    string          `json:"value"` // color/size name, or digit as string
	Amount   decimal.Decimal `json:"amount"`
	PlacedAt time.Time       `json:"placed_at"`
}

// RoundSnapshot is a read-only view of a track's current round state,
// handed out by the scheduler's accessor.
type RoundSnapshot struct {
	TrackID       string   `json:"track_id"`
	Round         int64    `json:"round"`
	Phase         Phase    `json:"phase"`
	TimeRemaining int      `json:"time_remaining"`
	LastOutcome   *Outcome `json:"last_outcome,omitempty"`
}

// WalletAccount holds a player's balance. The balance never goes negative:
// debits are rejected when funds are insufficient, and a round loss is
// bounded by the stake.
type WalletAccount struct {
	PlayerID  string          `json:"player_id" db:"player_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// LedgerReason tags why a balance delta was applied.
type LedgerReason string

const (
	ReasonBetWin     LedgerReason = "bet_win"
	ReasonBetLoss    LedgerReason = "bet_loss"
	ReasonDeposit    LedgerReason = "deposit"
	ReasonWithdrawal LedgerReason = "withdrawal"
)

// LedgerEntry is an immutable record of one balance mutation. Once written,
// these are never modified or deleted. The most recent entry's BalanceAfter
// must always equal the account's current balance.
type LedgerEntry struct {
	ID            string          `json:"id" db:"id"`
	PlayerID      string          `json:"player_id" db:"player_id"`
	Delta         decimal.Decimal `json:"delta" db:"delta"` // signed
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	Reason        LedgerReason    `json:"reason" db:"reason"`
	ReferenceID   string          `json:"reference_id" db:"reference_id"` // idempotency key
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}

// BetResult is one settled bet inside a RoundRecord.
type BetResult struct {
	PlayerID  string          `json:"player_id"`
	Kind      BetKind         `json:"kind"`
	Value     string          `json:"value"`
	Amount    decimal.Decimal `json:"amount"`
	Won       bool            `json:"won"`
	WinAmount decimal.Decimal `json:"win_amount"`
}

// RoundRecord is the persisted history of one settled round.
type RoundRecord struct {
	TrackID   string      `json:"track_id" db:"track_id"`
	Round     int64       `json:"round" db:"round"`
	Outcome   Outcome     `json:"outcome" db:"outcome"`
	Bets      []BetResult `json:"bets" db:"bets"`
	SettledAt time.Time   `json:"settled_at" db:"settled_at"`
}

// TransferStatus is the lifecycle state of a deposit/withdrawal request.
type TransferStatus string

const (
	TransferPending    TransferStatus = "PENDING"
	TransferProcessing TransferStatus = "PROCESSING"
	TransferCompleted  TransferStatus = "COMPLETED"
	TransferRejected   TransferStatus = "REJECTED"
	TransferCancelled  TransferStatus = "CANCELLED"
)

// TransferKind distinguishes deposits from withdrawals.
type TransferKind string

const (
	TransferDeposit    TransferKind = "DEPOSIT"
	TransferWithdrawal TransferKind = "WITHDRAWAL"
)

// TransferRequest is a user-initiated deposit or withdrawal moving through
// PENDING → PROCESSING → COMPLETED | REJECTED | CANCELLED. Requests left
// PENDING beyond the retention window are cancelled by the sweep.
type TransferRequest struct {
	OrderID   string          `json:"order_id" db:"order_id"`
	PlayerID  string          `json:"player_id" db:"player_id"`
	Kind      TransferKind    `json:"kind" db:"kind"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Status    TransferStatus  `json:"status" db:"status"`
	AdminID   string          `json:"admin_id,omitempty" db:"admin_id"`
	Remarks   string          `json:"remarks,omitempty" db:"remarks"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
