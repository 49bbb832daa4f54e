package wallet_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/model"
	"github.com/luckyline/game-engine/internal/store"
	"github.com/luckyline/game-engine/internal/wallet"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newLedger(t *testing.T) (*wallet.Ledger, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	return wallet.NewLedger(ms, slog.Default()), ms
}

func TestApplyDelta_CreditThenDebit(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	if _, err := l.ApplyDelta(ctx, "p1", d(100), model.ReasonDeposit, "ref-1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := l.ApplyDelta(ctx, "p1", d(-30), model.ReasonBetLoss, "ref-2"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	balance, err := l.Balance(ctx, "p1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(d(70)) {
		t.Errorf("balance = %s, want 70", balance)
	}
}

func TestApplyDelta_ChainInvariant(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	deltas := []float64{100, -25, 60, -10}
	for i, amt := range deltas {
		if _, err := l.ApplyDelta(ctx, "p1", d(amt), model.ReasonDeposit, fmt.Sprintf("ref-%d", i)); err != nil {
			t.Fatalf("delta %d: %v", i, err)
		}
	}

	entries, err := l.Entries(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != len(deltas) {
		t.Fatalf("expected %d entries, got %d", len(deltas), len(entries))
	}

	// Entries are newest first. Each entry's balance-before must equal the
	// previous entry's balance-after, and the chain must start at zero.
	for i := 0; i < len(entries)-1; i++ {
		if !entries[i].BalanceBefore.Equal(entries[i+1].BalanceAfter) {
			t.Errorf("chain break between entries %d and %d: before=%s after=%s",
				i, i+1, entries[i].BalanceBefore, entries[i+1].BalanceAfter)
		}
	}
	if oldest := entries[len(entries)-1]; !oldest.BalanceBefore.IsZero() {
		t.Errorf("first entry balance_before = %s, want 0", oldest.BalanceBefore)
	}

	balance, _ := l.Balance(ctx, "p1")
	if !entries[0].BalanceAfter.Equal(balance) {
		t.Errorf("newest entry after=%s does not match balance=%s", entries[0].BalanceAfter, balance)
	}
}

func TestApplyDelta_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	if _, err := l.ApplyDelta(ctx, "p1", d(20), model.ReasonDeposit, "ref-1"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err := l.ApplyDelta(ctx, "p1", d(-50), model.ReasonWithdrawal, "ref-2")
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The failed debit must leave no trace.
	balance, _ := l.Balance(ctx, "p1")
	if !balance.Equal(d(20)) {
		t.Errorf("balance = %s, want 20", balance)
	}
	entries, _ := l.Entries(ctx, "p1", 0)
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
}

func TestApplyDelta_IdempotentReplay(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	first, err := l.ApplyDelta(ctx, "p1", d(100), model.ReasonDeposit, "dup-ref")
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}

	replay, err := l.ApplyDelta(ctx, "p1", d(100), model.ReasonDeposit, "dup-ref")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if replay.ID != first.ID {
		t.Errorf("replay returned a different entry: %s vs %s", replay.ID, first.ID)
	}
	balance, _ := l.Balance(ctx, "p1")
	if !balance.Equal(d(100)) {
		t.Errorf("balance = %s, want 100 (delta applied once)", balance)
	}
	entries, _ := l.Entries(ctx, "p1", 0)
	if len(entries) != 1 {
		t.Errorf("expected 1 entry after replay, got %d", len(entries))
	}
}

func TestApplyDelta_ChainMismatchFreezesAccount(t *testing.T) {
	ctx := context.Background()
	l, ms := newLedger(t)

	if _, err := l.ApplyDelta(ctx, "p1", d(100), model.ReasonDeposit, "ref-1"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Break the chain: mutate the balance with no ledger entry.
	ms.CorruptBalance("p1", d(999))

	_, err := l.ApplyDelta(ctx, "p1", d(10), model.ReasonDeposit, "ref-2")
	if !errors.Is(err, wallet.ErrAccountFrozen) {
		t.Fatalf("expected ErrAccountFrozen, got %v", err)
	}
	if !l.Frozen("p1") {
		t.Error("account should be marked frozen")
	}

	// Frozen accounts reject all further writes.
	_, err = l.ApplyDelta(ctx, "p1", d(10), model.ReasonDeposit, "ref-3")
	if !errors.Is(err, wallet.ErrAccountFrozen) {
		t.Fatalf("expected ErrAccountFrozen on retry, got %v", err)
	}

	// Other accounts are unaffected.
	if _, err := l.ApplyDelta(ctx, "p2", d(5), model.ReasonDeposit, "ref-4"); err != nil {
		t.Fatalf("unrelated account: %v", err)
	}
}

func TestBalance_UnknownPlayerIsZero(t *testing.T) {
	l, _ := newLedger(t)

	balance, err := l.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("balance = %s, want 0", balance)
	}
}

func TestApplyDelta_ConcurrentCredits(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.ApplyDelta(ctx, "p1", d(1), model.ReasonDeposit, fmt.Sprintf("ref-%d", i)); err != nil {
				t.Errorf("concurrent credit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	balance, _ := l.Balance(ctx, "p1")
	if !balance.Equal(d(n)) {
		t.Errorf("balance = %s, want %d", balance, n)
	}

	entries, _ := l.Entries(ctx, "p1", 0)
	if len(entries) != n {
		t.Fatalf("expected %d entries, got %d", n, len(entries))
	}
	for i := 0; i < len(entries)-1; i++ {
		if !entries[i].BalanceBefore.Equal(entries[i+1].BalanceAfter) {
			t.Fatalf("chain break under concurrency at entry %d", i)
		}
	}
}
