// Package payout computes winnings from a bet and a drawn outcome using the
// fixed multiplier table: color 2.0x, exact number 9.0x, size 1.8x.
//
// Settlement is net at round end; the stake is not escrowed at placement.
// A winning bet's ledger delta is winAmount minus stake, a losing bet's is
// the negated stake. All monetary values use shopspring/decimal.
package payout

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/model"
)

var (
	// MultiplierColor pays 2.0x the stake on a color match.
	MultiplierColor = decimal.NewFromInt(2)
	// MultiplierNumber pays 9.0x the stake on an exact digit match.
	MultiplierNumber = decimal.NewFromInt(9)
	// MultiplierSize pays 1.8x the stake on a size match.
	MultiplierSize = decimal.NewFromFloat(1.8)
)

// Matches reports whether the bet's predicted value matches the outcome on
// the bet's axis.
func Matches(bet model.Bet, out model.Outcome) bool {
	switch bet.Kind {
	case model.KindColor:
		return bet.Value == string(out.Color)
	case model.KindNumber:
		return bet.Value == strconv.Itoa(out.Digit)
	case model.KindSize:
		return bet.Value == string(out.Size)
	}
	return false
}

// WinAmount returns stake × multiplier for a matching bet, zero otherwise.
func WinAmount(bet model.Bet, out model.Outcome) decimal.Decimal {
	if !Matches(bet, out) {
		return decimal.Zero
	}
	switch bet.Kind {
	case model.KindColor:
		return bet.Amount.Mul(MultiplierColor)
	case model.KindNumber:
		return bet.Amount.Mul(MultiplierNumber)
	case model.KindSize:
		return bet.Amount.Mul(MultiplierSize)
	}
	return decimal.Zero
}

// NetDelta returns the signed ledger delta for a settled bet:
// winAmount minus stake on a win, the negated stake on a loss.
func NetDelta(bet model.Bet, winAmount decimal.Decimal) decimal.Decimal {
	if winAmount.IsPositive() {
		return winAmount.Sub(bet.Amount)
	}
	return bet.Amount.Neg()
}
