package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// Client is a websocket connection. It implements registry.Conn.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	config config.WebSocketConfig

	mu     sync.Mutex
	closed bool
}

var _ registry.Conn = (*Client)(nil)

// NewClient wraps an upgraded socket. userID is empty for sockets that were
// not admitted.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, cfg config.WebSocketConfig) *Client {
	return &Client{
		id:     uuid.New().String(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		config: cfg,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() string { return c.userID }

// Send encodes p and enqueues it without blocking. A full buffer means the
// peer cannot keep up; the client is closed and the push fails.
func (c *Client) Send(p wire.Payload) error {
	data, err := wire.Encode(p)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: connection %s closed", domain.ErrTransport, c.id)
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.closeLocked()
		return fmt.Errorf("%w: connection %s send buffer full", domain.ErrTransport, c.id)
	}
}

// Close stops the write pump, which sends a close frame and tears down the
// socket. The read pump then releases the client from the hub.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump drains inbound frames until the socket fails, then releases the
// client. The chat protocol is push only, so data frames are discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Release(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Err(err).Str(log.FieldConnID, c.id).Str(log.FieldUserID, c.userID).Msg("websocket read error")
			}
			return
		}
	}
}

// WritePump writes queued frames and keepalive pings until the send channel
// is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
