// Package stream implements the HTTP surface of the publish/subscribe
// fabric: a POST endpoint that fans a message out to a topic's current
// subscribers, and a GET endpoint that upgrades to a WebSocket and runs a
// per-connection subscriber task for the lifetime of the socket.
package stream

import (
	"net/http"
	"time"

	"github.com/exowarexyz/simulator/internal/apierr"
	"github.com/exowarexyz/simulator/internal/pubsub"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MaxNameSize is the largest accepted topic name, in bytes.
const MaxNameSize = 512

// MaxMessageSize is the largest accepted published message, in bytes.
const MaxMessageSize = 20 * 1024 * 1024

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait / 2
	writeWait  = 10 * time.Second
)

// Handler wires the topic registry into HTTP publish/subscribe endpoints.
type Handler struct {
	registry *pubsub.Registry
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

// New constructs a stream Handler over registry.
func New(registry *pubsub.Registry, log *zap.SugaredLogger) *Handler {
	return &Handler{
		registry: registry,
		log:      log,
		upgrader: websocket.Upgrader{
			// CORS is handled ambiently by internal/httpserver for plain
			// HTTP routes; the upgrade itself also accepts any origin,
			// matching the simulator's permissive-by-default posture.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish validates name and body against the size ceilings and fans body
// out to every current subscriber of name. A topic with no subscribers, or
// a subscriber whose buffer is full, never causes Publish to fail.
func (h *Handler) Publish(name string, body []byte) error {
	if len(name) > MaxNameSize {
		return apierr.New(apierr.KindNameTooLarge, "topic name exceeds maximum size of 512 bytes")
	}
	if len(body) > MaxMessageSize {
		return apierr.New(apierr.KindMessageTooLarge, "message exceeds maximum size of 20MB")
	}
	h.registry.Publish(name, body)
	return nil
}

// Subscribe upgrades r's connection to a WebSocket and runs the
// per-connection subscriber loop until the client disconnects, the
// connection errors, or the subscriber lags. It returns once the
// connection has fully closed.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request, name string) error {
	if len(name) > MaxNameSize {
		return apierr.New(apierr.KindNameTooLarge, "topic name exceeds maximum size of 512 bytes")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, "websocket upgrade failed", err)
	}

	sub := h.registry.Subscribe(name)
	connID := uuid.NewString()
	h.runSubscriber(connID, name, conn, sub)
	return nil
}

// runSubscriber forwards broadcast messages to conn as binary frames until
// the client sends a close frame, a send fails, the subscriber lags, or
// the connection's read loop errors (e.g. the TCP connection drops).
func (h *Handler) runSubscriber(connID, topic string, conn *websocket.Conn, sub *pubsub.Subscription) {
	defer sub.Close()
	defer conn.Close()

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				h.debugw("subscriber send failed, closing connection", connID, topic, err)
				return
			}
		case <-sub.Lagged():
			h.debugw("subscriber lagged, disconnecting", connID, topic, nil)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber lagged"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains incoming frames so control frames (close, pong) are
// processed by gorilla/websocket's internal handlers, and closes the
// closed channel once the client sends a close frame or the connection
// errors. Non-close data frames are ignored, matching the simulator's
// receive-only subscriber contract.
func (h *Handler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) debugw(msg, connID, topic string, err error) {
	if h.log == nil {
		return
	}
	if err != nil {
		h.log.Debugw(msg, "connection_id", connID, "topic", topic, "error", err)
		return
	}
	h.log.Debugw(msg, "connection_id", connID, "topic", topic)
}
