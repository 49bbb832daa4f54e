// Package registry holds the live bet book: at most one bet per player,
// across all tracks. Placement is rejected while a track is settling and
// when the player already holds a bet on a different track.
package registry

import (
	"errors"
	"sync"

	"github.com/luckyline/game-engine/internal/model"
)

var (
	// ErrBettingClosed is returned when a bet is placed outside the
	// betting phase of the target track.
	ErrBettingClosed = errors.New("registry: betting phase has ended")

	// ErrCrossTrackConflict is returned when the player already holds a
	// live bet on a different track.
	ErrCrossTrackConflict = errors.New("registry: player already has an active bet on another track")

	// ErrUnknownTrack is returned for a track id the registry was not
	// configured with.
	ErrUnknownTrack = errors.New("registry: unknown track")
)

type trackBook struct {
	open bool
	bets map[string]model.Bet // playerID → live bet
}

// Registry is safe for concurrent use. Each player's slot is independent;
// the only cross-player state is the track→book map and the cross-track
// active index, both guarded by one mutex.
type Registry struct {
	mu     sync.Mutex
	books  map[string]*trackBook
	active map[string]string // playerID → trackID with a live bet
}

// New creates a registry with a closed book per track. Tracks are opened by
// their scheduler when the betting phase starts.
func New(tracks []model.Track) *Registry {
	books := make(map[string]*trackBook, len(tracks))
	for _, t := range tracks {
		books[t.ID] = &trackBook{bets: make(map[string]model.Bet)}
	}
	return &Registry{
		books:  books,
		active: make(map[string]string),
	}
}

// OpenTrack marks a track's betting phase open. Called by the track's
// scheduler at the start of each round.
func (r *Registry) OpenTrack(trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.books[trackID]; ok {
		b.open = true
	}
}

// CloseTrack marks a track's betting phase closed. Placements on the track
// fail until the next OpenTrack.
func (r *Registry) CloseTrack(trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.books[trackID]; ok {
		b.open = false
	}
}

// Place records a bet. A repeat placement on the same track replaces the
// prior bet: a player has exactly one live stake per round, overwritable
// until the phase closes. Placing while holding a bet on another track
// fails with ErrCrossTrackConflict and leaves the existing bet untouched.
func (r *Registry) Place(bet model.Bet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[bet.TrackID]
	if !ok {
		return ErrUnknownTrack
	}
	if !book.open {
		return ErrBettingClosed
	}
	if held, ok := r.active[bet.PlayerID]; ok && held != bet.TrackID {
		return ErrCrossTrackConflict
	}

	book.bets[bet.PlayerID] = bet
	r.active[bet.PlayerID] = bet.TrackID
	return nil
}

// CurrentBet returns the player's live bet on a track, if any. No side
// effects.
func (r *Registry) CurrentBet(playerID, trackID string) (model.Bet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[trackID]
	if !ok {
		return model.Bet{}, false
	}
	bet, ok := book.bets[playerID]
	return bet, ok
}

// DrainTrack removes and returns all bets for a track, releasing each
// player's cross-track lock. Called only by the track's scheduler during
// settlement, after the phase is closed.
func (r *Registry) DrainTrack(trackID string) []model.Bet {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[trackID]
	if !ok {
		return nil
	}

	bets := make([]model.Bet, 0, len(book.bets))
	for playerID, bet := range book.bets {
		bets = append(bets, bet)
		if r.active[playerID] == trackID {
			delete(r.active, playerID)
		}
	}
	book.bets = make(map[string]model.Bet)
	return bets
}
