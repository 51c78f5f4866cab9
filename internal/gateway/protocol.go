package gateway

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"sketchroom/internal/middleware"
	"sketchroom/internal/models"
)

// handleMessage decodes one inbound frame and dispatches it. Malformed or
// out-of-state events degrade to logged no-ops: nothing in this protocol
// terminates the connection or the room.
func (g *Gateway) handleMessage(ctx context.Context, c *Client, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("client %s: undecodable frame: %v", c.id, err)
		return
	}
	middleware.AddSpanEvent(ctx, "dispatch", attribute.String("event.type", env.Type))

	switch env.Type {
	case models.EventJoin:
		g.handleJoin(c, env.Data)
	case models.EventCursor:
		g.handleCursor(c, env.Data)
	case models.EventStrokeStart:
		g.handleStrokeStart(c, env.Data)
	case models.EventStrokePoints:
		g.handleStrokePoints(c, env.Data)
	case models.EventStrokeEnd:
		g.handleStrokeEnd(c, env.Data)
	case models.EventStrokeChunk:
		g.handleStrokeChunk(c, env.Data)
	case models.EventUndo:
		g.handleUndo(c)
	case models.EventRedo:
		g.handleRedo(c)
	default:
		log.Printf("client %s: unknown event %q", c.id, env.Type)
	}
}

// handleJoin performs the Unjoined -> Joined transition: allocate an
// identity, attach to the room, reply with identity and snapshot, then
// broadcast the new roster to the whole room including the joiner.
func (g *Gateway) handleJoin(c *Client, data json.RawMessage) {
	if c.joined {
		return
	}
	var p models.JoinPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			log.Printf("client %s: bad join payload: %v", c.id, err)
			return
		}
	}
	if p.RoomID == "" {
		p.RoomID = "main"
	}
	if p.UserName == "" {
		p.UserName = "guest"
	}

	userID := uuid.NewString()
	room := g.directory.Get(p.RoomID)
	user := room.AddUser(c.id, userID, p.UserName)
	g.register(c, p.RoomID)

	c.joined = true
	c.roomID = p.RoomID
	c.userID = userID
	c.userName = p.UserName
	c.color = user.Color

	g.sendTo(c, models.EventJoined, models.JoinedPayload{
		RoomID: p.RoomID,
		UserID: userID,
		Color:  user.Color,
	})
	g.sendTo(c, models.EventSyncState, room.Snapshot())
	g.broadcastRoom(p.RoomID, models.EventUserList, models.UserListPayload{Users: room.ListUsers()}, nil)

	log.Printf("client %s joined room %q as %s (%s)", c.id, p.RoomID, p.UserName, userID)
}

// handleCursor relays an ephemeral presence signal to everyone else in
// the room, stamped with the sender's identity and color. Nothing is
// persisted; rate limiting is left to well-behaved senders.
func (g *Gateway) handleCursor(c *Client, data json.RawMessage) {
	if !c.joined {
		return
	}
	var p models.CursorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	p.UserID = c.userID
	p.Color = c.color
	g.broadcastRoom(c.roomID, models.EventCursor, p, c)
}

// handleStrokeStart relays the live style for an in-progress stroke. The
// gateway keeps no per-stroke state: receivers associate the style with
// the opId until the authoritative op arrives.
func (g *Gateway) handleStrokeStart(c *Client, data json.RawMessage) {
	if !c.joined {
		return
	}
	var p models.StrokeStartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if p.Tool == "" {
		p.Tool = models.ToolBrush
	}
	p.UserID = c.userID
	g.broadcastRoom(c.roomID, models.EventStrokeStart, p, c)
}

// handleStrokePoints relays a point batch for an in-flight stroke to
// everyone else in the room.
func (g *Gateway) handleStrokePoints(c *Client, data json.RawMessage) {
	if !c.joined {
		return
	}
	var p models.StrokePointsPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	p.UserID = c.userID
	g.broadcastRoom(c.roomID, models.EventStrokePoints, p, c)
}

// handleStrokeEnd is the only event that mutates the log. The payload
// carries the complete point path, not the union of relayed chunks; the
// stored operation — with its freshly assigned seq — goes to every
// connection in the room, sender included, so the sender can replace its
// provisional rendering with the authoritative record.
func (g *Gateway) handleStrokeEnd(c *Client, data json.RawMessage) {
	if !c.joined {
		return
	}
	var p models.StrokeEndPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("client %s: bad stroke_end payload: %v", c.id, err)
		return
	}

	room := g.directory.Get(c.roomID)
	op := room.AddStroke(models.StrokeDraft{
		OpID:   p.OpID,
		UserID: c.userID,
		Color:  p.Color,
		Width:  p.Width,
		Tool:   p.Tool,
		Points: p.Points,
	})
	g.broadcastRoom(c.roomID, models.EventOp, op, nil)
}

// handleStrokeChunk is the legacy single-event stroke encoding: an
// unfinished chunk behaves exactly like stroke_points, a finished one
// exactly like stroke_end. The room is resolved from the payload first,
// then from the connection's joined room.
func (g *Gateway) handleStrokeChunk(c *Client, data json.RawMessage) {
	var p models.StrokeChunkPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	roomID := p.RoomID
	if roomID == "" {
		roomID = c.roomID
	}
	if roomID == "" {
		return
	}

	if p.Finished {
		room := g.directory.Get(roomID)
		op := room.AddStroke(models.StrokeDraft{
			OpID:   p.OpID,
			UserID: c.userID,
			Color:  p.Color,
			Width:  p.Width,
			Tool:   p.Tool,
			Points: p.Points,
		})
		g.broadcastRoom(roomID, models.EventOp, op, nil)
		return
	}
	g.broadcastRoom(roomID, models.EventStrokePoints, models.StrokePointsPayload{
		OpID:   p.OpID,
		UserID: c.userID,
		Points: p.Points,
	}, c)
}

// handleUndo deactivates the caller's most recent active stroke and
// announces it to the whole room. No active stroke means no broadcast.
func (g *Gateway) handleUndo(c *Client) {
	if !c.joined {
		return
	}
	room := g.directory.Get(c.roomID)
	opID, ok := room.Undo(c.userID)
	if !ok {
		return
	}
	g.broadcastRoom(c.roomID, models.EventOpUndone, models.OpRefPayload{OpID: opID}, nil)
}

// handleRedo reactivates the caller's most recently undone stroke and
// announces it. An empty undo stack means no broadcast.
func (g *Gateway) handleRedo(c *Client) {
	if !c.joined {
		return
	}
	room := g.directory.Get(c.roomID)
	opID, ok := room.Redo(c.userID)
	if !ok {
		return
	}
	g.broadcastRoom(c.roomID, models.EventOpRedone, models.OpRefPayload{OpID: opID}, nil)
}

// handleDisconnect runs the any-state -> Closed transition: drop the
// roster entry and tell the remaining members. The user's operations and
// undo ledger stay in the room untouched.
func (g *Gateway) handleDisconnect(c *Client) {
	roomID := c.roomID
	joined := c.joined
	g.detach(c)
	if !joined {
		return
	}

	room := g.directory.Get(roomID)
	room.RemoveUser(c.id)
	g.broadcastRoom(roomID, models.EventUserList, models.UserListPayload{Users: room.ListUsers()}, nil)
	log.Printf("client %s left room %q", c.id, roomID)
}
