package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
)

func TestBroadcastChange(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleWebSocket(hub, w, r)
	}))
	defer srv.Close()

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.Count())
	}

	hub.BroadcastChange(ResourceItem, "pick", 42, 7)

	var evt Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Type != "tender_item_pick" || evt.Action != "pick" || evt.ProjectID != 7 {
		t.Errorf("event = %+v", evt)
	}
	if id, ok := evt.ID.(float64); !ok || id != 42 {
		t.Errorf("id = %v", evt.ID)
	}
}

func TestNilHub(t *testing.T) {
	var hub *Hub
	hub.BroadcastChange(ResourceOrder, "create", 1, 1)
	if hub.Count() != 0 {
		t.Error("nil hub should have no clients")
	}
}
