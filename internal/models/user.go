package models

// User is one participant in a room. UserID is server-generated and
// stable for the lifetime of the connection's session; a reconnect gets a
// fresh identity and a freshly assigned color. UserName is client-supplied
// and not unique.
type User struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Color    string `json:"color"` // hex color for cursor/stroke attribution
}

// SyncState is the full snapshot sent to a newly joined connection. OpLog
// includes inactive operations so the client can track undo/redo state
// locally; only active ones render.
type SyncState struct {
	Seq   int         `json:"seq"`
	OpLog []Operation `json:"opLog"`
	Users []User      `json:"users"`
}
