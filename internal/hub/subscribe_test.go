package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClient_SubscribeDeliversSnapshotsInOrder(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/live/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"type": "hello"})
		_ = conn.WriteJSON(Message{Type: MsgSnapshot, Payload: Snapshot{CurrentSessionID: "s1"}})
		_ = conn.WriteJSON(Message{Type: MsgSnapshot, Payload: Snapshot{}})
		// Hold the socket open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []string
	err = c.Subscribe(ctx, func(s Snapshot) {
		got = append(got, s.CurrentSessionID)
		if len(got) == 2 {
			cancel()
		}
	})
	if err == nil {
		t.Fatal("Subscribe returned nil error, want cancellation")
	}
	if len(got) != 2 || got[0] != "s1" || got[1] != "" {
		t.Fatalf("snapshots = %q, want [s1 \"\"]", got)
	}
}

func TestClient_LiveSocketURL(t *testing.T) {
	c, err := NewClient("https://hub.local:9000")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if got := c.liveSocketURL(); got != "wss://hub.local:9000/api/live/ws" {
		t.Fatalf("liveSocketURL = %q, want wss://hub.local:9000/api/live/ws", got)
	}
}
