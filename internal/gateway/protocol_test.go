package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sketchroom/internal/board"
	"sketchroom/internal/models"
)

func newTestGateway() *Gateway {
	return New(board.NewDirectory(0, time.Minute))
}

// connect simulates an upgraded, still-unjoined connection.
func connect(g *Gateway, id string) *Client {
	c := &Client{
		id:   id,
		send: make(chan []byte, sendBuffer),
		gw:   g,
	}
	g.attach(c)
	return c
}

func send(t *testing.T, g *Gateway, c *Client, event string, payload interface{}) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal %s payload: %v", event, err)
		}
	}
	raw, err := json.Marshal(models.Envelope{Type: event, Data: data})
	if err != nil {
		t.Fatalf("marshal %s envelope: %v", event, err)
	}
	g.handleMessage(context.Background(), c, raw)
}

// drain empties the client's outbound queue and decodes the envelopes.
func drain(t *testing.T, c *Client) []models.Envelope {
	t.Helper()
	var envs []models.Envelope
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return envs
			}
			var env models.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				t.Fatalf("undecodable outbound frame: %v", err)
			}
			envs = append(envs, env)
		default:
			return envs
		}
	}
}

func decodeData(t *testing.T, env models.Envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode %s data: %v", env.Type, err)
	}
}

// join runs the handshake and returns the identity the server assigned.
func join(t *testing.T, g *Gateway, c *Client, roomID, userName string) models.JoinedPayload {
	t.Helper()
	send(t, g, c, models.EventJoin, models.JoinPayload{RoomID: roomID, UserName: userName})
	envs := drain(t, c)
	if len(envs) != 3 {
		t.Fatalf("join produced %d messages, want joined+sync_state+user_list", len(envs))
	}
	if envs[0].Type != models.EventJoined || envs[1].Type != models.EventSyncState || envs[2].Type != models.EventUserList {
		t.Fatalf("join reply order %s, %s, %s", envs[0].Type, envs[1].Type, envs[2].Type)
	}
	var joined models.JoinedPayload
	decodeData(t, envs[0], &joined)
	return joined
}

func TestJoinHandshake(t *testing.T) {
	g := newTestGateway()
	c := connect(g, "conn1")

	send(t, g, c, models.EventJoin, models.JoinPayload{RoomID: "main", UserName: "alice"})
	envs := drain(t, c)
	if len(envs) != 3 {
		t.Fatalf("got %d messages, want 3", len(envs))
	}

	var joined models.JoinedPayload
	decodeData(t, envs[0], &joined)
	if joined.RoomID != "main" || joined.UserID == "" || joined.Color == "" {
		t.Fatalf("bad joined payload: %+v", joined)
	}

	var snap models.SyncState
	decodeData(t, envs[1], &snap)
	if snap.Seq != 0 || len(snap.OpLog) != 0 {
		t.Fatalf("fresh room snapshot: %+v", snap)
	}
	if len(snap.Users) != 1 || snap.Users[0].UserID != joined.UserID {
		t.Fatalf("snapshot roster: %+v", snap.Users)
	}

	var roster models.UserListPayload
	decodeData(t, envs[2], &roster)
	if len(roster.Users) != 1 || roster.Users[0].UserName != "alice" {
		t.Fatalf("broadcast roster: %+v", roster.Users)
	}
}

func TestJoinDefaults(t *testing.T) {
	g := newTestGateway()
	c := connect(g, "conn1")

	send(t, g, c, models.EventJoin, nil)
	envs := drain(t, c)
	if len(envs) != 3 {
		t.Fatalf("got %d messages, want 3", len(envs))
	}
	var joined models.JoinedPayload
	decodeData(t, envs[0], &joined)
	if joined.RoomID != "main" {
		t.Fatalf("got room %q, want main", joined.RoomID)
	}
	var roster models.UserListPayload
	decodeData(t, envs[2], &roster)
	if roster.Users[0].UserName != "guest" {
		t.Fatalf("got name %q, want guest", roster.Users[0].UserName)
	}
}

func TestSecondJoinIgnored(t *testing.T) {
	g := newTestGateway()
	c := connect(g, "conn1")
	join(t, g, c, "main", "alice")

	send(t, g, c, models.EventJoin, models.JoinPayload{RoomID: "other", UserName: "alice2"})
	if envs := drain(t, c); len(envs) != 0 {
		t.Fatalf("second join produced %d messages, want 0", len(envs))
	}
	if g.RoomSize("other") != 0 {
		t.Fatal("second join attached the connection to a new room")
	}
}

func TestConcurrentJoinersGetDistinctIdentity(t *testing.T) {
	g := newTestGateway()
	a := connect(g, "conn1")
	b := connect(g, "conn2")

	ja := join(t, g, a, "main", "alice")
	jb := join(t, g, b, "main", "bob")

	if ja.UserID == jb.UserID {
		t.Fatalf("both joiners got userId %s", ja.UserID)
	}
	if ja.Color == jb.Color {
		t.Fatalf("both joiners got color %s with palette not exhausted", ja.Color)
	}
	if g.RoomSize("main") != 2 {
		t.Fatalf("room holds %d connections, want 2", g.RoomSize("main"))
	}
}

func TestUnjoinedEventsDropped(t *testing.T) {
	g := newTestGateway()
	c := connect(g, "conn1")

	send(t, g, c, models.EventCursor, models.CursorPayload{X: 1, Y: 2})
	send(t, g, c, models.EventStrokeStart, models.StrokeStartPayload{OpID: "s1"})
	send(t, g, c, models.EventStrokePoints, models.StrokePointsPayload{OpID: "s1"})
	send(t, g, c, models.EventStrokeEnd, models.StrokeEndPayload{OpID: "s1"})
	send(t, g, c, models.EventUndo, nil)
	send(t, g, c, models.EventRedo, nil)

	if envs := drain(t, c); len(envs) != 0 {
		t.Fatalf("unjoined events produced %d messages", len(envs))
	}
	if g.directory.Len() != 0 {
		t.Fatal("unjoined events created a room")
	}
}

func TestCursorRelayExcludesSender(t *testing.T) {
	g := newTestGateway()
	a, b, c := connect(g, "c1"), connect(g, "c2"), connect(g, "c3")
	ja := join(t, g, a, "main", "alice")
	join(t, g, b, "main", "bob")
	join(t, g, c, "main", "carol")
	drain(t, a) // roster updates from the later joins
	drain(t, b)

	send(t, g, a, models.EventCursor, models.CursorPayload{X: 10, Y: 20, Tool: models.ToolBrush})

	if envs := drain(t, a); len(envs) != 0 {
		t.Fatalf("sender received its own cursor (%d messages)", len(envs))
	}
	for _, peer := range []*Client{b, c} {
		envs := drain(t, peer)
		if len(envs) != 1 || envs[0].Type != models.EventCursor {
			t.Fatalf("peer %s got %+v, want one cursor event", peer.id, envs)
		}
		var cur models.CursorPayload
		decodeData(t, envs[0], &cur)
		if cur.UserID != ja.UserID || cur.Color != ja.Color {
			t.Fatalf("cursor not stamped with sender identity: %+v", cur)
		}
		if cur.X != 10 || cur.Y != 20 {
			t.Fatalf("cursor position mangled: %+v", cur)
		}
	}
}

func TestStrokeLiveRelay(t *testing.T) {
	g := newTestGateway()
	a, b := connect(g, "c1"), connect(g, "c2")
	ja := join(t, g, a, "main", "alice")
	join(t, g, b, "main", "bob")
	drain(t, a)

	send(t, g, a, models.EventStrokeStart, models.StrokeStartPayload{
		OpID: "s1", Color: "#fff", Width: 3, Tool: models.ToolEraser,
	})
	send(t, g, a, models.EventStrokePoints, models.StrokePointsPayload{
		OpID: "s1", Points: []models.Point{{X: 1, Y: 2}},
	})

	if envs := drain(t, a); len(envs) != 0 {
		t.Fatalf("sender received its own live relay (%d messages)", len(envs))
	}
	envs := drain(t, b)
	if len(envs) != 2 {
		t.Fatalf("peer got %d messages, want stroke_start+stroke_points", len(envs))
	}
	var start models.StrokeStartPayload
	decodeData(t, envs[0], &start)
	if start.UserID != ja.UserID || start.Tool != models.ToolEraser {
		t.Fatalf("bad stroke_start relay: %+v", start)
	}
	var pts models.StrokePointsPayload
	decodeData(t, envs[1], &pts)
	if pts.UserID != ja.UserID || len(pts.Points) != 1 {
		t.Fatalf("bad stroke_points relay: %+v", pts)
	}
}

func TestStrokeEndBroadcastsAuthoritativeOp(t *testing.T) {
	g := newTestGateway()
	a, b := connect(g, "c1"), connect(g, "c2")
	ja := join(t, g, a, "main", "alice")
	join(t, g, b, "main", "bob")
	drain(t, a)

	send(t, g, a, models.EventStrokeEnd, models.StrokeEndPayload{
		OpID:   "s1",
		Points: []models.Point{{X: 0, Y: 0}, {X: 5, Y: 5}},
		Color:  "#000",
		Width:  2,
		Tool:   models.ToolBrush,
	})

	// The sender gets the authoritative op too, to replace its
	// provisional local rendering.
	for _, peer := range []*Client{a, b} {
		envs := drain(t, peer)
		if len(envs) != 1 || envs[0].Type != models.EventOp {
			t.Fatalf("peer %s got %+v, want one op event", peer.id, envs)
		}
		var op models.Operation
		decodeData(t, envs[0], &op)
		if op.Seq != 1 || op.OpID != "s1" || !op.Active {
			t.Fatalf("bad op broadcast: %+v", op)
		}
		if op.UserID != ja.UserID {
			t.Fatalf("op attributed to %q, want %q", op.UserID, ja.UserID)
		}
	}
}

func TestUndoRedoBroadcasts(t *testing.T) {
	g := newTestGateway()
	a, b := connect(g, "c1"), connect(g, "c2")
	join(t, g, a, "main", "alice")
	join(t, g, b, "main", "bob")
	drain(t, a)

	send(t, g, a, models.EventStrokeEnd, models.StrokeEndPayload{OpID: "s1", Points: []models.Point{{X: 1, Y: 1}}})
	drain(t, a)
	drain(t, b)

	send(t, g, a, models.EventUndo, nil)
	for _, peer := range []*Client{a, b} {
		envs := drain(t, peer)
		if len(envs) != 1 || envs[0].Type != models.EventOpUndone {
			t.Fatalf("peer %s got %+v, want op_undone", peer.id, envs)
		}
		var ref models.OpRefPayload
		decodeData(t, envs[0], &ref)
		if ref.OpID != "s1" {
			t.Fatalf("got opId %q, want s1", ref.OpID)
		}
	}

	send(t, g, a, models.EventRedo, nil)
	for _, peer := range []*Client{a, b} {
		envs := drain(t, peer)
		if len(envs) != 1 || envs[0].Type != models.EventOpRedone {
			t.Fatalf("peer %s got %+v, want op_redone", peer.id, envs)
		}
	}

	// A late joiner's snapshot shows the op active with its original seq.
	c := connect(g, "c3")
	send(t, g, c, models.EventJoin, models.JoinPayload{RoomID: "main", UserName: "carol"})
	envs := drain(t, c)
	var snap models.SyncState
	decodeData(t, envs[1], &snap)
	if len(snap.OpLog) != 1 || !snap.OpLog[0].Active || snap.OpLog[0].Seq != 1 {
		t.Fatalf("late joiner snapshot: %+v", snap.OpLog)
	}
}

func TestUndoRedoSilentNoOps(t *testing.T) {
	g := newTestGateway()
	a, b := connect(g, "c1"), connect(g, "c2")
	join(t, g, a, "main", "alice")
	join(t, g, b, "main", "bob")
	drain(t, a)

	send(t, g, a, models.EventUndo, nil)
	send(t, g, a, models.EventRedo, nil)

	if envs := drain(t, a); len(envs) != 0 {
		t.Fatalf("no-op undo/redo produced %d messages to sender", len(envs))
	}
	if envs := drain(t, b); len(envs) != 0 {
		t.Fatalf("no-op undo/redo produced %d messages to peer", len(envs))
	}
}

func TestStrokeChunkFinishedPersists(t *testing.T) {
	g := newTestGateway()
	a, b := connect(g, "c1"), connect(g, "c2")
	join(t, g, a, "main", "alice")
	join(t, g, b, "main", "bob")
	drain(t, a)

	// Unfinished chunk: relayed as stroke_points, nothing persisted.
	send(t, g, a, models.EventStrokeChunk, models.StrokeChunkPayload{
		OpID: "s1", Points: []models.Point{{X: 1, Y: 1}},
	})
	envs := drain(t, b)
	if len(envs) != 1 || envs[0].Type != models.EventStrokePoints {
		t.Fatalf("unfinished chunk: peer got %+v, want stroke_points", envs)
	}
	if envs := drain(t, a); len(envs) != 0 {
		t.Fatalf("unfinished chunk echoed to sender: %+v", envs)
	}

	// Finished chunk: handled exactly like stroke_end.
	send(t, g, a, models.EventStrokeChunk, models.StrokeChunkPayload{
		OpID: "s1", Points: []models.Point{{X: 1, Y: 1}, {X: 2, Y: 2}},
		Color: "#000", Width: 2, Finished: true,
	})
	for _, peer := range []*Client{a, b} {
		envs := drain(t, peer)
		if len(envs) != 1 || envs[0].Type != models.EventOp {
			t.Fatalf("finished chunk: peer %s got %+v, want op", peer.id, envs)
		}
		var op models.Operation
		decodeData(t, envs[0], &op)
		if op.Seq != 1 || op.Tool != models.ToolBrush {
			t.Fatalf("finished chunk op: %+v", op)
		}
	}
}

func TestStrokeChunkExplicitRoomID(t *testing.T) {
	// The legacy protocol carries its own roomId; it wins over the
	// connection's joined room and even works for an unjoined sender.
	g := newTestGateway()
	c := connect(g, "c1")

	send(t, g, c, models.EventStrokeChunk, models.StrokeChunkPayload{
		RoomID: "legacy", OpID: "s1", Points: []models.Point{{X: 1, Y: 1}}, Finished: true,
	})
	room := g.directory.Get("legacy")
	snap := room.Snapshot()
	if len(snap.OpLog) != 1 || snap.OpLog[0].OpID != "s1" {
		t.Fatalf("legacy room log: %+v", snap.OpLog)
	}
}

func TestDisconnectUpdatesRoster(t *testing.T) {
	g := newTestGateway()
	a, b := connect(g, "c1"), connect(g, "c2")
	ja := join(t, g, a, "main", "alice")
	jb := join(t, g, b, "main", "bob")
	drain(t, a)

	send(t, g, a, models.EventStrokeEnd, models.StrokeEndPayload{OpID: "s1", Points: []models.Point{{X: 1, Y: 1}}})
	drain(t, a)
	drain(t, b)

	g.handleDisconnect(a)

	envs := drain(t, b)
	if len(envs) != 1 || envs[0].Type != models.EventUserList {
		t.Fatalf("peer got %+v, want one user_list", envs)
	}
	var roster models.UserListPayload
	decodeData(t, envs[0], &roster)
	if len(roster.Users) != 1 || roster.Users[0].UserID != jb.UserID {
		t.Fatalf("roster after disconnect: %+v", roster.Users)
	}
	if g.RoomSize("main") != 1 {
		t.Fatalf("room holds %d connections, want 1", g.RoomSize("main"))
	}

	// The departed user's stroke survives for late joiners.
	snap := g.directory.Get("main").Snapshot()
	if len(snap.OpLog) != 1 || snap.OpLog[0].UserID != ja.UserID {
		t.Fatalf("history after disconnect: %+v", snap.OpLog)
	}
}

func TestUnknownAndMalformedEventsIgnored(t *testing.T) {
	g := newTestGateway()
	c := connect(g, "c1")
	join(t, g, c, "main", "alice")

	g.handleMessage(context.Background(), c, []byte("not json"))
	send(t, g, c, "teleport", nil)
	g.handleMessage(context.Background(), c, []byte(`{"type":"stroke_end","data":"not an object"}`))

	if envs := drain(t, c); len(envs) != 0 {
		t.Fatalf("garbage input produced %d messages", len(envs))
	}
	if snap := g.directory.Get("main").Snapshot(); len(snap.OpLog) != 0 {
		t.Fatalf("garbage input mutated the log: %+v", snap.OpLog)
	}
}
