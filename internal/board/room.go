package board

import (
	"sync"
	"time"

	"sketchroom/internal/models"
)

// Colors handed to joining users, in round-robin order. The cursor
// advances unconditionally, so once the palette is exhausted two
// simultaneously connected users may share a color.
var palette = []string{
	"#e74c3c",
	"#8e44ad",
	"#3498db",
	"#16a085",
	"#27ae60",
	"#f39c12",
	"#d35400",
	"#2c3e50",
	"#1abc9c",
	"#c0392b",
}

// Room is one independently synchronized canvas: the operation log, the
// undo ledger, the roster of connected users and color assignment. Every
// mutation is serialized under a single mutex; the exported methods are
// the only entry points, which keeps seq uniqueness and the per-user
// undo/redo LIFO intact under concurrent gateway traffic.
type Room struct {
	id string

	mu           sync.Mutex
	log          *Log
	ledger       *Ledger
	users        map[string]models.User // connection handle -> user
	nextColorIdx int
	lastActive   time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		id:         id,
		log:        &Log{},
		ledger:     NewLedger(),
		users:      make(map[string]models.User),
		lastActive: time.Now(),
	}
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// AddUser registers a connection under a fresh user identity, assigns the
// next palette color and returns the complete user record.
func (r *Room) AddUser(connID, userID, userName string) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()

	user := models.User{
		UserID:   userID,
		UserName: userName,
		Color:    r.assignColor(),
	}
	r.users[connID] = user
	r.ledger.Init(userID)
	return user
}

// assignColor hands out palette[counter mod len] and always advances the
// counter; it never inspects colors currently in use. Caller holds r.mu.
func (r *Room) assignColor() string {
	color := palette[r.nextColorIdx%len(palette)]
	r.nextColorIdx++
	return color
}

// RemoveUser drops the connection's roster entry. The user's operations
// and undo ledger stay behind: a disconnecting user's drawings persist,
// and a later reconnect is a new identity that cannot resume the ledger.
func (r *Room) RemoveUser(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()
	delete(r.users, connID)
}

// ListUsers returns the current roster.
func (r *Room) ListUsers() []models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	return users
}

// UserCount returns the number of connected users.
func (r *Room) UserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// AddStroke finalizes a stroke: the log assigns the next seq and stores
// it active. An empty tool defaults to brush, matching older clients that
// never send the field.
func (r *Room) AddStroke(draft models.StrokeDraft) models.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()

	if draft.Tool == "" {
		draft.Tool = models.ToolBrush
	}
	return r.log.Append(draft)
}

// Undo deactivates the user's most recent active operation and records it
// on the user's undo stack. Returns the affected opId, or ok=false if the
// user has nothing active to undo (a silent no-op at the protocol level).
func (r *Room) Undo(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()

	op := r.log.FindLastActiveByUser(userID)
	if op == nil {
		return "", false
	}
	op.Active = false
	r.ledger.RecordUndo(userID, op.OpID)
	return op.OpID, true
}

// Redo reactivates the operation most recently undone by this user.
// Drawing new strokes does not clear pending redos; the stack is consumed
// strictly LIFO per user. Returns ok=false on an empty stack, or if the
// popped opId no longer resolves (cannot happen while the log stays
// append-only).
func (r *Room) Redo(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()

	opID, ok := r.ledger.PopRedo(userID)
	if !ok {
		return "", false
	}
	op := r.log.FindByOpID(opID)
	if op == nil {
		return "", false
	}
	op.Active = true
	return op.OpID, true
}

// Snapshot returns the full room state for a newly joined connection:
// last seq, the whole op log inactive entries included, and the roster.
func (r *Room) Snapshot() models.SyncState {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	return models.SyncState{
		Seq:   r.log.Seq(),
		OpLog: r.log.Operations(),
		Users: users,
	}
}

// LastActive reports when the room last saw a mutation, for idle sweeps.
func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}
