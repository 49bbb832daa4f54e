package outcome_test

import (
	"testing"

	"github.com/luckyline/game-engine/internal/model"
	"github.com/luckyline/game-engine/internal/outcome"
)

func TestDerivations_AllDigits(t *testing.T) {
	cases := []struct {
		digit int
		color model.Color
		size  model.Size
	}{
		{0, model.ColorViolet, model.SizeSmall},
		{1, model.ColorGreen, model.SizeSmall},
		{2, model.ColorRed, model.SizeSmall},
		{3, model.ColorGreen, model.SizeSmall},
		{4, model.ColorRed, model.SizeSmall},
		{5, model.ColorGreen, model.SizeBig},
		{6, model.ColorRed, model.SizeBig},
		{7, model.ColorGreen, model.SizeBig},
		{8, model.ColorRed, model.SizeBig},
		{9, model.ColorGreen, model.SizeBig},
	}

	for _, tc := range cases {
		if got := outcome.ColorOf(tc.digit); got != tc.color {
			t.Errorf("ColorOf(%d) = %s, want %s", tc.digit, got, tc.color)
		}
		if got := outcome.SizeOf(tc.digit); got != tc.size {
			t.Errorf("SizeOf(%d) = %s, want %s", tc.digit, got, tc.size)
		}
	}
}

func TestDraw_FixedSequence(t *testing.T) {
	src := &outcome.FixedSource{Digits: []int{0, 7, 4}}

	want := []model.Outcome{
		{Digit: 0, Color: model.ColorViolet, Size: model.SizeSmall},
		{Digit: 7, Color: model.ColorGreen, Size: model.SizeBig},
		{Digit: 4, Color: model.ColorRed, Size: model.SizeSmall},
		// Past the end, the last digit repeats.
		{Digit: 4, Color: model.ColorRed, Size: model.SizeSmall},
	}

	for i, w := range want {
		got, err := outcome.Draw(src)
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if got != w {
			t.Errorf("draw %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestDraw_EmptyFixedSourceFails(t *testing.T) {
	if _, err := outcome.Draw(&outcome.FixedSource{}); err == nil {
		t.Fatal("expected error from empty fixed source")
	}
}

func TestDraw_RejectsOutOfRangeDigit(t *testing.T) {
	if _, err := outcome.Draw(&outcome.FixedSource{Digits: []int{12}}); err == nil {
		t.Fatal("expected error for digit outside [0,9]")
	}
}

func TestCryptoSource_InRange(t *testing.T) {
	src := outcome.CryptoSource{}
	for i := 0; i < 200; i++ {
		d, err := src.Digit()
		if err != nil {
			t.Fatalf("digit: %v", err)
		}
		if d < 0 || d > 9 {
			t.Fatalf("digit %d outside [0,9]", d)
		}
	}
}
