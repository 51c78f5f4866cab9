package gateway

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"sketchroom/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20 // strokes carry full point paths
	sendBuffer     = 256
)

// Client is one websocket connection and its protocol state. The state
// machine is Unjoined -> Joined -> Closed: identity fields are zero until
// a join event lands, and they are written only from the connection's own
// read pump, so they need no lock.
type Client struct {
	id   string // connection handle, keys the room roster
	conn *websocket.Conn
	send chan []byte
	gw   *Gateway

	joined   bool
	roomID   string
	userID   string
	userName string
	color    string

	// sendMu serializes enqueue against closeSend so a broadcast racing
	// a disconnect never writes to a closed channel.
	sendMu sync.Mutex
	closed bool
}

// enqueue hands a message to the write pump. A full buffer means the
// consumer is too slow or gone; the connection is closed and the read
// pump runs the disconnect path.
func (c *Client) enqueue(msg []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Printf("client %s send buffer full, closing connection", c.id)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// closeSend shuts the outbound queue exactly once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump consumes inbound frames until the connection dies, then runs
// the disconnect transition. One goroutine per connection; this is the
// only goroutine that touches the client's protocol state.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.gw.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("client %s read error: %v", c.id, err)
			}
			return
		}

		msgCtx, span := middleware.StartSpan(ctx, "Gateway.HandleEvent",
			attribute.String("client.id", c.id),
			attribute.String("room.id", c.roomID),
			attribute.Int("message.size", len(raw)),
		)
		c.gw.handleMessage(msgCtx, c, raw)
		span.End()
	}
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings. Separate goroutine so a slow client never
// blocks room processing.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
