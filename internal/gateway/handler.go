package gateway

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel/attribute"

	"sketchroom/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: validate origin once the client is served from a fixed host
		return true
	},
}

// Handler upgrades HTTP requests to websocket connections and hands them
// to the gateway.
type Handler struct {
	gateway *Gateway
}

func NewHandler(gateway *Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// HandleConnection upgrades the request and starts the connection's read
// and write pumps. The connection stays Unjoined until it sends a join
// event; room attachment never happens at the HTTP layer.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx, span := middleware.StartSpan(r.Context(), "Gateway.Connect")
	defer span.End()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	client := &Client{
		id:   ksuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		gw:   h.gateway,
	}
	h.gateway.attach(client)
	span.SetAttributes(attribute.String("client.id", client.id))

	go client.writePump()
	go client.readPump(ctx)

	log.Printf("client %s connected from %s", client.id, r.RemoteAddr)
}
