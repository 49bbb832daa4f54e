// Package broadcast fans out phase, timer, and result notifications to
// subscribers. Delivery is best-effort and non-blocking: a slow or
// disconnected subscriber never delays a tick or a settlement.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luckyline/game-engine/internal/metrics"
	"github.com/luckyline/game-engine/internal/model"
)

// Event types published by the schedulers.
const (
	EventPhaseTimer  = "phase_timer"
	EventRoundResult = "round_result"
	EventNewRound    = "new_round"
)

// Event is a JSON message delivered to all subscribers.
type Event struct {
	Type          string         `json:"type"`
	TrackID       string         `json:"track_id"`
	Phase         model.Phase    `json:"phase,omitempty"`
	TimeRemaining int            `json:"time_remaining,omitempty"`
	Round         int64          `json:"round,omitempty"`
	Outcome       *model.Outcome `json:"outcome,omitempty"`
}

// Hub manages WebSocket connections and in-process subscribers, fanning
// published events out to all of them.
//
// A connection is written to by the hub loop (event frames) and by its ping
// ticker; the per-connection mutex serializes those writers, which
// gorilla/websocket requires.
type Hub struct {
	clients    map[*websocket.Conn]*sync.Mutex
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn

	mu   sync.RWMutex
	subs map[chan Event]bool
}

// NewHub creates a new broadcast hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*sync.Mutex),
		broadcast:  make(chan Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		subs:       make(map[chan Event]bool),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = &sync.Mutex{}
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			slog.Info("ws client connected", "total", len(h.clients))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				metrics.WebSocketClients.Dec()
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for conn, wmu := range h.clients {
				wmu.Lock()
				err := conn.WriteMessage(websocket.TextMessage, data)
				wmu.Unlock()
				if err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			for sub := range h.subs {
				select {
				case sub <- ev:
				default:
					// Drop for this subscriber rather than block.
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for delivery to all current subscribers.
// Non-blocking: drops the event if the hub's buffer is full, so the caller
// (a scheduler mid-settlement) is never delayed.
func (h *Hub) Publish(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
	}
}

// Subscribe registers an in-process subscriber and returns its channel plus
// a cancel func. Used by tests and by any co-located consumer.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	h.subs[ch] = true
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			wmu, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			wmu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			wmu.Unlock()
			if err != nil {
				return
			}
		}
	}()
}
