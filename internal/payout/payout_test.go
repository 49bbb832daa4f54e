package payout_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/model"
	"github.com/luckyline/game-engine/internal/payout"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func bet(kind model.BetKind, value string, amount float64) model.Bet {
	return model.Bet{PlayerID: "p1", TrackID: "fast", Kind: kind, Value: value, Amount: d(amount)}
}

var outDigit7 = model.Outcome{Digit: 7, Color: model.ColorGreen, Size: model.SizeBig}
var outDigit0 = model.Outcome{Digit: 0, Color: model.ColorViolet, Size: model.SizeSmall}

func TestWinAmount_Multipliers(t *testing.T) {
	cases := []struct {
		name string
		bet  model.Bet
		out  model.Outcome
		want decimal.Decimal
	}{
		{"color match pays 2x", bet(model.KindColor, "green", 10), outDigit7, d(20)},
		{"number match pays 9x", bet(model.KindNumber, "7", 10), outDigit7, d(90)},
		{"size match pays 1.8x", bet(model.KindSize, "big", 10), outDigit7, d(18)},
		{"violet match on zero", bet(model.KindColor, "violet", 5), outDigit0, d(10)},
		{"color mismatch pays zero", bet(model.KindColor, "red", 10), outDigit7, decimal.Zero},
		{"number mismatch pays zero", bet(model.KindNumber, "3", 10), outDigit7, decimal.Zero},
		{"size mismatch pays zero", bet(model.KindSize, "small", 10), outDigit7, decimal.Zero},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := payout.WinAmount(tc.bet, tc.out)
			if !got.Equal(tc.want) {
				t.Errorf("WinAmount = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestMatches_ZeroIsVioletAndSmall(t *testing.T) {
	// Digit zero satisfies both a violet bet and a small bet; the axes
	// are independent.
	if !payout.Matches(bet(model.KindColor, "violet", 1), outDigit0) {
		t.Error("violet bet should match digit 0")
	}
	if !payout.Matches(bet(model.KindSize, "small", 1), outDigit0) {
		t.Error("small bet should match digit 0")
	}
	if payout.Matches(bet(model.KindColor, "green", 1), outDigit0) {
		t.Error("green bet should not match digit 0")
	}
}

func TestNetDelta(t *testing.T) {
	// Win: the delta is winnings minus the stake that was never escrowed.
	b := bet(model.KindColor, "green", 10)
	win := payout.WinAmount(b, outDigit7)
	if got := payout.NetDelta(b, win); !got.Equal(d(10)) {
		t.Errorf("win delta = %s, want 10", got)
	}

	// Number win: 9x on 50 → delta 400.
	b = bet(model.KindNumber, "7", 50)
	win = payout.WinAmount(b, outDigit7)
	if got := payout.NetDelta(b, win); !got.Equal(d(400)) {
		t.Errorf("number win delta = %s, want 400", got)
	}

	// Loss: the full stake is debited.
	b = bet(model.KindNumber, "3", 50)
	if got := payout.NetDelta(b, decimal.Zero); !got.Equal(d(-50)) {
		t.Errorf("loss delta = %s, want -50", got)
	}
}
