package models

import "encoding/json"

// Envelope is the framing for every websocket message in both directions:
// an event name plus a JSON payload. Payload shapes are the structs below.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound event names (client → server).
const (
	EventJoin         = "join"
	EventCursor       = "cursor"
	EventStrokeStart  = "stroke_start"
	EventStrokePoints = "stroke_points"
	EventStrokeEnd    = "stroke_end"
	EventStrokeChunk  = "stroke_chunk" // legacy single-message stroke protocol
	EventUndo         = "undo"
	EventRedo         = "redo"
)

// Outbound event names (server → client).
const (
	EventJoined    = "joined"
	EventSyncState = "sync_state"
	EventUserList  = "user_list"
	EventOp        = "op"
	EventOpUndone  = "op_undone"
	EventOpRedone  = "op_redone"
)

// JoinPayload opens a session: attaches the connection to a room under a
// display name. Empty fields fall back to "main" / "guest".
type JoinPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// JoinedPayload is the server's reply to the joining connection only.
type JoinedPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Color  string `json:"color"`
}

// CursorPayload is an ephemeral presence signal. Inbound it carries only
// the position and tool; the server stamps UserID and Color on relay.
type CursorPayload struct {
	UserID string  `json:"userId,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Tool   Tool    `json:"tool"`
	Color  string  `json:"color,omitempty"`
}

// StrokeStartPayload announces a live stroke's style so receivers can
// render it provisionally until the authoritative op arrives.
type StrokeStartPayload struct {
	OpID   string  `json:"opId"`
	UserID string  `json:"userId,omitempty"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Tool   Tool    `json:"tool"`
}

// StrokePointsPayload carries a batch of points for an in-flight stroke.
type StrokePointsPayload struct {
	OpID   string  `json:"opId"`
	UserID string  `json:"userId,omitempty"`
	Points []Point `json:"points"`
}

// StrokeEndPayload finalizes a stroke. Points is the complete path, not a
// delta: the end message is self-sufficient and authoritative.
type StrokeEndPayload struct {
	OpID   string  `json:"opId"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Tool   Tool    `json:"tool"`
}

// StrokeChunkPayload is the legacy single-event stroke encoding: a chunk
// of points, persisted as a full stroke when Finished is set.
type StrokeChunkPayload struct {
	RoomID   string  `json:"roomId,omitempty"`
	OpID     string  `json:"opId"`
	Points   []Point `json:"points"`
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	Tool     Tool    `json:"tool"`
	Finished bool    `json:"finished"`
}

// UserListPayload is the room roster, broadcast on join and disconnect.
type UserListPayload struct {
	Users []User `json:"users"`
}

// OpRefPayload references an operation by id, for undo/redo broadcasts.
type OpRefPayload struct {
	OpID string `json:"opId"`
}
