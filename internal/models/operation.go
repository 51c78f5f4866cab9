package models

// Tool identifies how a stroke's path is applied to the canvas.
type Tool string

const (
	ToolBrush  Tool = "brush"
	ToolEraser Tool = "eraser"
)

// Point is a single sampled position on a stroke path. T is the client's
// capture timestamp in milliseconds; zero means the client didn't send one.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t,omitempty"`
}

// OpType defines the kinds of operations recorded in a room's history.
// Stroke is the only variant today; the field exists so clients can
// dispatch on it when replaying the log.
type OpType string

const (
	OpTypeStroke OpType = "stroke"
)

// Operation is one finalized entry in a room's shared history.
//
// Seq is assigned by the room when the stroke is finalized and defines the
// canonical replay order. OpID is the client-generated handle that
// correlates live-relay events with this authoritative record and drives
// undo/redo. Operations are never deleted: undo flips Active to false,
// redo flips it back, so the full audit trail survives.
type Operation struct {
	Seq    int     `json:"seq"`
	Type   OpType  `json:"type"`
	OpID   string  `json:"opId"`
	UserID string  `json:"userId"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Tool   Tool    `json:"tool"`
	Points []Point `json:"points"`
	Active bool    `json:"active"`
}

// StrokeDraft carries the client-supplied parts of a stroke before the
// room assigns it a sequence number.
type StrokeDraft struct {
	OpID   string
	UserID string
	Color  string
	Width  float64
	Tool   Tool
	Points []Point
}
