package publish

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-sync/internal/advert"
)

func TestWebSocketStream(t *testing.T) {
	coll, _, _ := sampleCollection()
	srv := newTestServer(t, coll, true)
	srv.rec.next(t) // initial advertisement, sent before any client connects

	url := "ws" + strings.TrimPrefix(srv.base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	read := func() WSMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck // Test deadline
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return msg
	}

	// A pong proves the client is registered before anything is broadcast.
	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := read(); msg.Type != WSTypePong || msg.ID != "1" {
		t.Fatalf("reply = %+v, want pong", msg)
	}
	if srv.hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", srv.hub.ClientCount())
	}

	srv.cache.Notify()
	msg := read()
	if msg.Type != WSTypeAdvert {
		t.Fatalf("frame type = %q, want advert", msg.Type)
	}
	var adv advert.Message
	if err := json.Unmarshal(msg.Payload, &adv); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if adv.Service.Name != "kitchen" || adv.Service.Seq == 0 {
		t.Errorf("advertised service = %+v", adv.Service)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	for {
		if m := read(); m.Type == WSTypeError {
			break
		}
	}
}
