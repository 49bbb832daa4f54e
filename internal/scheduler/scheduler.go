// Package scheduler drives one track's round state machine:
//
//	BETTING --(timer 0)--> SETTLING --(timer 0)--> BETTING (round+1)
//
// Each track's scheduler is an independent sequential process. A tick that
// triggers settlement completes the whole settlement (outcome draw, payouts,
// ledger writes, round record) before the timer loop resumes, so no two
// settlements for one track ever overlap. Schedulers never block on each
// other; the wallet ledger and the bet registry are the only shared state.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/luckyline/game-engine/internal/broadcast"
	"github.com/luckyline/game-engine/internal/metrics"
	"github.com/luckyline/game-engine/internal/model"
	"github.com/luckyline/game-engine/internal/outcome"
	"github.com/luckyline/game-engine/internal/payout"
	"github.com/luckyline/game-engine/internal/registry"
	"github.com/luckyline/game-engine/internal/store"
	"github.com/luckyline/game-engine/internal/wallet"
)

// Scheduler owns one track's round state. All mutation happens on the
// scheduler's own tick; other components read through Snapshot.
type Scheduler struct {
	track  model.Track
	src    outcome.Source
	reg    *registry.Registry
	ledger *wallet.Ledger
	store  store.Store
	hub    *broadcast.Hub
	clock  Clock
	log    *slog.Logger

	mu          sync.Mutex
	round       int64
	phase       model.Phase
	remaining   int
	lastOutcome *model.Outcome
}

// New creates a scheduler for one track, at round 1 in the betting phase.
func New(track model.Track, src outcome.Source, reg *registry.Registry, ledger *wallet.Ledger, st store.Store, hub *broadcast.Hub, clock Clock, log *slog.Logger) *Scheduler {
	return &Scheduler{
		track:     track,
		src:       src,
		reg:       reg,
		ledger:    ledger,
		store:     st,
		hub:       hub,
		clock:     clock,
		log:       log.With("track", track.ID),
		round:     1,
		phase:     model.PhaseBetting,
		remaining: int(track.BettingFor / time.Second),
	}
}

// Run ticks the track once per second until ctx is cancelled. A settlement
// in flight when cancellation arrives still completes; the ledger's
// transactional writes are never left half-applied.
func (s *Scheduler) Run(ctx context.Context) {
	s.reg.OpenTrack(s.track.ID)
	s.log.Info("scheduler started",
		"betting", s.track.BettingFor.String(),
		"settling", s.track.SettlingFor.String(),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped", "round", s.Snapshot().Round)
			return
		case <-s.clock.After(time.Second):
			s.Tick(ctx)
		}
	}
}

// Snapshot returns a read-only view of the current round state.
func (s *Scheduler) Snapshot() model.RoundSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.RoundSnapshot{
		TrackID:       s.track.ID,
		Round:         s.round,
		Phase:         s.phase,
		TimeRemaining: s.remaining,
		LastOutcome:   s.lastOutcome,
	}
}

// Tick advances the track's timer by one second and performs any phase
// transition it triggers. Exported so tests can drive rounds
// deterministically without the real clock.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remaining--
	s.hub.Publish(broadcast.Event{
		Type:          broadcast.EventPhaseTimer,
		TrackID:       s.track.ID,
		Phase:         s.phase,
		TimeRemaining: s.remaining,
	})

	if s.remaining > 0 {
		return
	}

	switch s.phase {
	case model.PhaseBetting:
		s.endBetting(ctx)
	case model.PhaseSettling:
		s.beginRound()
	}
}

// endBetting closes the book, draws the outcome, settles every live bet,
// and moves the track into the settling phase. Persistence failures are
// logged and never stop the phase transition: players must not be stuck.
func (s *Scheduler) endBetting(ctx context.Context) {
	started := time.Now()
	s.reg.CloseTrack(s.track.ID)

	// Shutdown may have been requested mid-tick; the settlement still has
	// to finish its ledger writes.
	ctx = context.WithoutCancel(ctx)

	s.phase = model.PhaseSettling
	s.remaining = int(s.track.SettlingFor / time.Second)

	out, err := outcome.Draw(s.src)
	if err != nil {
		// No outcome means nothing to settle. Stakes were never
		// collected, so the drained bets are simply void.
		s.log.Error("outcome draw failed, round voided", "round", s.round, "err", err)
		s.reg.DrainTrack(s.track.ID)
		return
	}
	s.lastOutcome = &out

	bets := s.reg.DrainTrack(s.track.ID)
	results := make([]model.BetResult, 0, len(bets))

	for _, bet := range bets {
		win := payout.WinAmount(bet, out)
		won := win.IsPositive()
		delta := payout.NetDelta(bet, win)

		reason := model.ReasonBetLoss
		result := "lost"
		if won {
			reason = model.ReasonBetWin
			result = "won"
		}

		refID := fmt.Sprintf("settle:%s:%d:%s", s.track.ID, s.round, bet.PlayerID)
		if _, err := s.ledger.ApplyDelta(ctx, bet.PlayerID, delta, reason, refID); err != nil {
			// Recoverable: the reference id makes a later replay safe.
			s.log.Error("settlement ledger write failed",
				"round", s.round, "player", bet.PlayerID, "err", err)
		}

		metrics.BetsSettled.WithLabelValues(s.track.ID, result).Inc()
		results = append(results, model.BetResult{
			PlayerID:  bet.PlayerID,
			Kind:      bet.Kind,
			Value:     bet.Value,
			Amount:    bet.Amount,
			Won:       won,
			WinAmount: win,
		})
	}

	rec := &model.RoundRecord{
		TrackID:   s.track.ID,
		Round:     s.round,
		Outcome:   out,
		Bets:      results,
		SettledAt: time.Now().UTC(),
	}
	if err := s.store.InsertRoundRecord(ctx, rec); err != nil {
		s.log.Error("round record persist failed", "round", s.round, "err", err)
	}

	s.hub.Publish(broadcast.Event{
		Type:    broadcast.EventRoundResult,
		TrackID: s.track.ID,
		Round:   s.round,
		Outcome: &out,
	})

	metrics.Settlements.WithLabelValues(s.track.ID).Inc()
	metrics.SettlementDuration.WithLabelValues(s.track.ID).Observe(time.Since(started).Seconds())

	s.log.Info("round settled",
		"round", s.round,
		"digit", out.Digit,
		"color", out.Color,
		"size", out.Size,
		"bets", len(results),
	)
}

// beginRound clears the settled round and opens betting for the next one.
func (s *Scheduler) beginRound() {
	s.round++
	s.phase = model.PhaseBetting
	s.remaining = int(s.track.BettingFor / time.Second)
	s.reg.OpenTrack(s.track.ID)

	s.hub.Publish(broadcast.Event{
		Type:          broadcast.EventNewRound,
		TrackID:       s.track.ID,
		Round:         s.round,
		Phase:         s.phase,
		TimeRemaining: s.remaining,
	})

	s.log.Info("new round", "round", s.round)
}
