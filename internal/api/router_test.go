package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sketchroom/internal/board"
	"sketchroom/internal/gateway"
	"sketchroom/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gw := gateway.New(board.NewDirectory(0, time.Minute))
	router := SetupRoutes(gateway.NewHandler(gw), t.TempDir())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestWebSocketJoinHandshake(t *testing.T) {
	srv := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	defer conn.Close()

	data, _ := json.Marshal(models.JoinPayload{RoomID: "main", UserName: "alice"})
	if err := conn.WriteJSON(models.Envelope{Type: models.EventJoin, Data: data}); err != nil {
		t.Fatalf("send join: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	wantOrder := []string{models.EventJoined, models.EventSyncState, models.EventUserList}
	for _, want := range wantOrder {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		if env.Type != want {
			t.Fatalf("got event %q, want %q", env.Type, want)
		}
	}
}
