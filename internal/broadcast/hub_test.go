package broadcast_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luckyline/game-engine/internal/broadcast"
	"github.com/luckyline/game-engine/internal/model"
)

func recv(t *testing.T, ch <-chan broadcast.Event) broadcast.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return broadcast.Event{}
	}
}

func TestSubscribe_ReceivesInPublishOrder(t *testing.T) {
	hub := broadcast.NewHub()
	go hub.Run()

	ch, cancel := hub.Subscribe(8)
	defer cancel()

	hub.Publish(broadcast.Event{Type: broadcast.EventPhaseTimer, TrackID: "fast", TimeRemaining: 5})
	hub.Publish(broadcast.Event{Type: broadcast.EventRoundResult, TrackID: "fast", Round: 1})
	hub.Publish(broadcast.Event{Type: broadcast.EventNewRound, TrackID: "fast", Round: 2, Phase: model.PhaseBetting})

	if ev := recv(t, ch); ev.Type != broadcast.EventPhaseTimer {
		t.Errorf("first event = %s, want phase_timer", ev.Type)
	}
	if ev := recv(t, ch); ev.Type != broadcast.EventRoundResult || ev.Round != 1 {
		t.Errorf("second event wrong: %+v", ev)
	}
	if ev := recv(t, ch); ev.Type != broadcast.EventNewRound || ev.Round != 2 {
		t.Errorf("third event wrong: %+v", ev)
	}
}

func TestPublish_SlowSubscriberNeverBlocks(t *testing.T) {
	hub := broadcast.NewHub()
	go hub.Run()

	// A subscriber with no buffer headroom that never reads.
	_, cancel := hub.Subscribe(1)
	defer cancel()

	ch, cancel2 := hub.Subscribe(64)
	defer cancel2()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 32; i++ {
			hub.Publish(broadcast.Event{Type: broadcast.EventPhaseTimer, TrackID: "fast", TimeRemaining: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The healthy subscriber still gets events.
	recv(t, ch)
}

func TestHandleWS_ClientReceivesBroadcast(t *testing.T) {
	hub := broadcast.NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration races the publish; retry until the frame arrives.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	go func() {
		for i := 0; i < 20; i++ {
			hub.Publish(broadcast.Event{Type: broadcast.EventNewRound, TrackID: "fast", Round: 3, Phase: model.PhaseBetting})
			time.Sleep(20 * time.Millisecond)
		}
	}()

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev broadcast.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != broadcast.EventNewRound || ev.TrackID != "fast" || ev.Round != 3 {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	hub := broadcast.NewHub()
	go hub.Run()

	ch, cancel := hub.Subscribe(8)
	hub.Publish(broadcast.Event{Type: broadcast.EventPhaseTimer, TrackID: "fast"})
	recv(t, ch)

	cancel()
	hub.Publish(broadcast.Event{Type: broadcast.EventPhaseTimer, TrackID: "fast"})

	select {
	case ev, ok := <-ch:
		if ok {
			t.Errorf("received event after cancel: %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
	}
}
