// Package game provides the HTTP handlers for bet placement, balance and
// bet queries, round state, history, and transfer requests.
//
// Placement acknowledgements and rejections are the synchronous response to
// the placing player; phase timers, results, and new rounds go out on the
// broadcast hub.
package game

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/luckyline/game-engine/internal/metrics"
	"github.com/luckyline/game-engine/internal/model"
	"github.com/luckyline/game-engine/internal/registry"
	"github.com/luckyline/game-engine/internal/scheduler"
	"github.com/luckyline/game-engine/internal/store"
	"github.com/luckyline/game-engine/internal/transfer"
	"github.com/luckyline/game-engine/internal/wallet"
)

// Service wires the HTTP surface to the schedulers, registry, ledger, and
// transfer service.
type Service struct {
	schedulers map[string]*scheduler.Scheduler
	reg        *registry.Registry
	ledger     *wallet.Ledger
	transfers  *transfer.Service
	store      store.Store
}

// NewService creates the game API service.
func NewService(schedulers map[string]*scheduler.Scheduler, reg *registry.Registry, ledger *wallet.Ledger, transfers *transfer.Service, st store.Store) *Service {
	return &Service{
		schedulers: schedulers,
		reg:        reg,
		ledger:     ledger,
		transfers:  transfers,
		store:      st,
	}
}

// --- Request/Response types ---

// PlaceBetRequest is the JSON body for POST /bets.
type PlaceBetRequest struct {
	PlayerID string          `json:"player_id"`
	TrackID  string          `json:"track_id"`
	Kind     model.BetKind   `json:"kind"`
	Value    string          `json:"value"`
	Amount   decimal.Decimal `json:"amount"`
}

// PlaceBetResponse acknowledges an accepted bet.
type PlaceBetResponse struct {
	Accepted bool      `json:"accepted"`
	Bet      model.Bet `json:"bet"`
}

// TransferRequestBody is the JSON body for POST /transfers.
type TransferRequestBody struct {
	PlayerID string             `json:"player_id"`
	Kind     model.TransferKind `json:"kind"`
	Amount   decimal.Decimal    `json:"amount"`
}

// AdminActionBody carries the acting admin and optional remarks for
// transfer lifecycle endpoints.
type AdminActionBody struct {
	AdminID string `json:"admin_id"`
	Remarks string `json:"remarks"`
}

// --- HTTP Handlers ---

// PlaceBet handles POST /api/v1/bets
func (s *Service) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.PlayerID == "" {
		writeError(w, "player_id is required", http.StatusBadRequest)
		return
	}
	if _, ok := s.schedulers[req.TrackID]; !ok {
		writeError(w, "unknown track: "+req.TrackID, http.StatusNotFound)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	if err := validateBetValue(req.Kind, req.Value); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The stake is settled net at round end, but it must exist up front:
	// a player cannot wager money they do not have.
	balance, err := s.ledger.Balance(r.Context(), req.PlayerID)
	if err != nil {
		writeError(w, "failed to check balance", http.StatusInternalServerError)
		return
	}
	if balance.LessThan(req.Amount) {
		metrics.BetsRejected.WithLabelValues("insufficient_funds").Inc()
		writeError(w, "insufficient funds", http.StatusConflict)
		return
	}

	bet := model.Bet{
		PlayerID: req.PlayerID,
		TrackID:  req.TrackID,
		Kind:     req.Kind,
		Value:    req.Value,
		Amount:   req.Amount,
		PlacedAt: time.Now().UTC(),
	}

	if err := s.reg.Place(bet); err != nil {
		switch {
		case errors.Is(err, registry.ErrBettingClosed):
			metrics.BetsRejected.WithLabelValues("phase_closed").Inc()
			writeError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, registry.ErrCrossTrackConflict):
			metrics.BetsRejected.WithLabelValues("cross_track").Inc()
			writeError(w, err.Error(), http.StatusConflict)
		default:
			writeError(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	metrics.BetsPlaced.WithLabelValues(req.TrackID, string(req.Kind)).Inc()
	slog.Info("bet placed",
		"player", req.PlayerID,
		"track", req.TrackID,
		"kind", req.Kind,
		"value", req.Value,
		"amount", req.Amount.String(),
	)

	writeJSON(w, http.StatusOK, PlaceBetResponse{Accepted: true, Bet: bet})
}

// GetBalance handles GET /api/v1/players/{playerID}/balance
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	balance, err := s.ledger.Balance(r.Context(), playerID)
	if err != nil {
		writeError(w, "failed to read balance", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

// GetCurrentBet handles GET /api/v1/players/{playerID}/bet?track={trackID}
func (s *Service) GetCurrentBet(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	trackID := r.URL.Query().Get("track")

	if _, ok := s.schedulers[trackID]; !ok {
		writeError(w, "unknown track: "+trackID, http.StatusNotFound)
		return
	}

	bet, ok := s.reg.CurrentBet(playerID, trackID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]*model.Bet{"bet": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]*model.Bet{"bet": &bet})
}

// GetLedger handles GET /api/v1/players/{playerID}/ledger
func (s *Service) GetLedger(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.ledger.Entries(r.Context(), playerID, limit)
	if err != nil {
		writeError(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListTracks handles GET /api/v1/tracks
func (s *Service) ListTracks(w http.ResponseWriter, r *http.Request) {
	snaps := make([]model.RoundSnapshot, 0, len(s.schedulers))
	for _, sched := range s.schedulers {
		snaps = append(snaps, sched.Snapshot())
	}
	writeJSON(w, http.StatusOK, snaps)
}

// GetTrackState handles GET /api/v1/tracks/{trackID}/state
func (s *Service) GetTrackState(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	sched, ok := s.schedulers[trackID]
	if !ok {
		writeError(w, "unknown track: "+trackID, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sched.Snapshot())
}

// GetTrackHistory handles GET /api/v1/tracks/{trackID}/history
func (s *Service) GetTrackHistory(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if _, ok := s.schedulers[trackID]; !ok {
		writeError(w, "unknown track: "+trackID, http.StatusNotFound)
		return
	}

	recs, err := s.store.RoundHistory(r.Context(), trackID, limit)
	if err != nil {
		writeError(w, "failed to read round history", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []model.RoundRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// CreateTransfer handles POST /api/v1/transfers
func (s *Service) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var body TransferRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.PlayerID == "" {
		writeError(w, "player_id is required", http.StatusBadRequest)
		return
	}

	var req *model.TransferRequest
	var err error
	switch body.Kind {
	case model.TransferDeposit:
		req, err = s.transfers.CreateDeposit(r.Context(), body.PlayerID, body.Amount)
	case model.TransferWithdrawal:
		req, err = s.transfers.CreateWithdrawal(r.Context(), body.PlayerID, body.Amount)
	default:
		writeError(w, "kind must be DEPOSIT or WITHDRAWAL", http.StatusBadRequest)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, transfer.ErrInvalidAmount):
			writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, transfer.ErrInsufficientFunds):
			writeError(w, err.Error(), http.StatusConflict)
		default:
			writeError(w, "failed to create transfer", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// ListPendingTransfers handles GET /api/v1/transfers/pending
func (s *Service) ListPendingTransfers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	reqs, err := s.transfers.Pending(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to list transfers", http.StatusInternalServerError)
		return
	}
	if reqs == nil {
		reqs = []model.TransferRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// TransferAction handles POST /api/v1/transfers/{orderID}/{action} for
// approve, reject, cancel, and complete.
func (s *Service) TransferAction(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	action := chi.URLParam(r, "action")

	var body AdminActionBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	var err error
	switch action {
	case "approve":
		err = s.transfers.Approve(r.Context(), orderID, body.AdminID, body.Remarks)
	case "reject":
		err = s.transfers.Reject(r.Context(), orderID, body.AdminID, body.Remarks)
	case "cancel":
		err = s.transfers.Cancel(r.Context(), orderID)
	case "complete":
		_, err = s.transfers.Complete(r.Context(), orderID, body.AdminID, body.Remarks)
	default:
		writeError(w, "unknown action: "+action, http.StatusNotFound)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, transfer.ErrNotFound):
			writeError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, transfer.ErrStatusConflict):
			writeError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, transfer.ErrInsufficientFunds):
			writeError(w, err.Error(), http.StatusConflict)
		default:
			writeError(w, "transfer action failed", http.StatusInternalServerError)
		}
		return
	}

	req, err := s.transfers.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, "transfer action applied but reload failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// --- Helpers ---

func validateBetValue(kind model.BetKind, value string) error {
	switch kind {
	case model.KindColor:
		switch model.Color(value) {
		case model.ColorRed, model.ColorGreen, model.ColorViolet:
			return nil
		}
		return errors.New("value must be red, green, or violet")
	case model.KindNumber:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 9 {
			return errors.New("value must be a digit 0-9")
		}
		return nil
	case model.KindSize:
		switch model.Size(value) {
		case model.SizeSmall, model.SizeBig:
			return nil
		}
		return errors.New("value must be big or small")
	}
	return errors.New("kind must be color, number, or size")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
