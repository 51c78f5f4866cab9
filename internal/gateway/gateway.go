// Package gateway maps live websocket connections onto rooms: it owns the
// per-connection protocol state machine, translates inbound events into
// room operations and fans room state changes back out to connections.
package gateway

import (
	"encoding/json"
	"log"
	"sync"

	"sketchroom/internal/board"
	"sketchroom/internal/models"
)

// Gateway tracks which connections are attached to which room and
// performs broadcast fan-out. Room state itself lives in board.Room;
// the gateway only holds transport-side membership.
type Gateway struct {
	directory *board.Directory

	mu      sync.RWMutex
	clients map[*Client]bool            // every open connection, joined or not
	rooms   map[string]map[*Client]bool // roomID -> attached connections
}

func New(directory *board.Directory) *Gateway {
	return &Gateway{
		directory: directory,
		clients:   make(map[*Client]bool),
		rooms:     make(map[string]map[*Client]bool),
	}
}

// attach records a freshly upgraded connection, still unjoined.
func (g *Gateway) attach(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[c] = true
}

// register adds a joined connection to its room's fan-out set.
func (g *Gateway) register(c *Client, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[roomID] == nil {
		g.rooms[roomID] = make(map[*Client]bool)
	}
	g.rooms[roomID][c] = true
}

// detach removes the connection from its room set (if joined) and from
// the client set, and closes its outbound queue.
func (g *Gateway) detach(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.clients[c] {
		return
	}
	delete(g.clients, c)
	if c.roomID != "" {
		if members, ok := g.rooms[c.roomID]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(g.rooms, c.roomID)
			}
		}
	}
	c.closeSend()
}

// sendTo queues an event for a single connection.
func (g *Gateway) sendTo(c *Client, event string, payload interface{}) {
	msg, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("encode %s: %v", event, err)
		return
	}
	c.enqueue(msg)
}

// broadcastRoom queues an event for every connection in the room, minus
// exclude when non-nil. Fan-out is not atomic with respect to joins: a
// connection joining mid-broadcast may miss the message, and relies on
// the snapshot it receives after its own join completes.
func (g *Gateway) broadcastRoom(roomID, event string, payload interface{}, exclude *Client) {
	msg, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("encode %s: %v", event, err)
		return
	}

	g.mu.RLock()
	members := make([]*Client, 0, len(g.rooms[roomID]))
	for c := range g.rooms[roomID] {
		if c != exclude {
			members = append(members, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range members {
		c.enqueue(msg)
	}
}

func encodeEvent(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Envelope{Type: event, Data: data})
}

// RoomSize reports how many connections are attached to a room.
func (g *Gateway) RoomSize(roomID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms[roomID])
}

// Shutdown closes every open connection. Read pumps observe the closed
// sockets and run the normal disconnect path.
func (g *Gateway) Shutdown() {
	g.mu.RLock()
	clients := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.RUnlock()

	for _, c := range clients {
		if c.conn != nil {
			c.conn.Close()
		}
	}
	log.Printf("gateway shutdown: closed %d connections", len(clients))
}
