// Package outcome draws the winning digit for a round and derives its
// color and size attributes.
//
// The draw must not be predictable from publicly observable state, so the
// default source reads from crypto/rand rather than a seeded PRNG. The
// derivations are pure functions of the digit and are fixed for the life
// of the game: changing them would invalidate every recorded round.
package outcome

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/luckyline/game-engine/internal/model"
)

// Source produces one uniformly distributed digit in [0,9] per call.
type Source interface {
	Digit() (int, error)
}

// CryptoSource draws digits from crypto/rand. Used in production.
type CryptoSource struct{}

var ten = big.NewInt(10)

// Digit returns a uniform digit in [0,9].
func (CryptoSource) Digit() (int, error) {
	n, err := rand.Int(rand.Reader, ten)
	if err != nil {
		return 0, fmt.Errorf("outcome: draw digit: %w", err)
	}
	return int(n.Int64()), nil
}

// FixedSource returns a preset sequence of digits, then repeats the last.
// Used in tests to make settlements deterministic.
type FixedSource struct {
	Digits []int
	next   int
}

func (s *FixedSource) Digit() (int, error) {
	if len(s.Digits) == 0 {
		return 0, fmt.Errorf("outcome: fixed source has no digits")
	}
	d := s.Digits[s.next]
	if s.next < len(s.Digits)-1 {
		s.next++
	}
	return d, nil
}

// ColorOf maps a digit to its color: 0 → violet, {1,3,7,9} → green,
// {2,4,6,8} → red.
func ColorOf(digit int) model.Color {
	switch {
	case digit == 0:
		return model.ColorViolet
	case digit%2 == 1:
		return model.ColorGreen
	default:
		return model.ColorRed
	}
}

// SizeOf maps a digit to its size: 0-4 → small, 5-9 → big. Digit 0 is both
// violet and small; the axes are independent.
func SizeOf(digit int) model.Size {
	if digit >= 5 {
		return model.SizeBig
	}
	return model.SizeSmall
}

// Draw pulls one digit from the source and derives the full outcome.
func Draw(src Source) (model.Outcome, error) {
	d, err := src.Digit()
	if err != nil {
		return model.Outcome{}, err
	}
	if d < 0 || d > 9 {
		return model.Outcome{}, fmt.Errorf("outcome: source produced digit %d outside [0,9]", d)
	}
	return model.Outcome{Digit: d, Color: ColorOf(d), Size: SizeOf(d)}, nil
}
