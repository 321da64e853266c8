package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/classroom-signaling/config"
	"github.com/mossy-p/classroom-signaling/internal/broker"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client is one WebSocket connection. It is the broker's Transport for that
// participant: Send only queues, writePump does the network I/O.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	cfg    config.SignalingConfig
	log    *slog.Logger
	mu     sync.Mutex
	closed bool
}

// Send queues data without blocking.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return broker.ErrTransportClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return broker.ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// HandleSignaling upgrades the request and attaches the socket to the broker.
func HandleSignaling(b *broker.Broker, cfg config.SignalingConfig, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("failed to upgrade connection", "error", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan []byte, cfg.SendBuffer),
			cfg:  cfg,
			log:  log.With("remote", conn.RemoteAddr().String()),
		}
		handle := b.Attach(client)
		client.log.Debug("connection opened")

		go client.writePump()
		go client.readPump(b, handle)
	}
}

func (c *Client) readPump(b *broker.Broker, handle *broker.Conn) {
	defer func() {
		b.Detach(handle)
		c.close()
		c.conn.Close()
		c.log.Debug("connection closed", "participant", handle.ParticipantID())
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket error", "error", err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			c.log.Debug("ignoring non-text frame", "type", messageType)
			continue
		}

		b.Dispatch(handle, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
