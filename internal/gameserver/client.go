package gameserver

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/realmgo/internal/model"
	"github.com/udisondev/realmgo/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client is one websocket connection. The player pointer stays nil until
// the Intro handshake authenticates; outbound packets flow through the
// send channel so exactly one goroutine writes to the socket.
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte

	player *model.Player

	// rejected flips once the session is refused; only the read goroutine
	// touches it, before the delayed close lands.
	rejected bool

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(s *Server, conn *websocket.Conn) *Client {
	return &Client{
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Send queues one encoded packet. A client too slow to drain its buffer
// is dropped rather than allowed to stall broadcasts.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		slog.Warn("send buffer full, dropping client")
		c.close()
	}
}

// push encodes and queues a message for this client only.
func (c *Client) push(msg protocol.Message) {
	data, err := protocol.Marshal(msg)
	if err != nil {
		slog.Error("encoding message", "opcode", msg.Op(), "error", err)
		return
	}
	c.Send(data)
}

// notify sends a session-level notice ("updated", "loggedin", ...).
func (c *Client) notify(reason string) {
	c.push(protocol.Notification{Reason: reason})
}

// closeWith delivers a final notification and tears the connection down.
// Dispatching stops immediately; the close itself is delayed only to let
// the writer flush the notice, and nothing read in that window counts.
func (c *Client) closeWith(reason string) {
	c.rejected = true
	c.notify(reason)
	time.AfterFunc(writeWait/10, c.close)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump decodes inbound packets and dispatches them until the
// transport closes, then runs the full teardown.
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.teardown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("connection closed", "remote", c.conn.RemoteAddr(), "error", err)
			}
			return
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			// Protocol errors are dropped and logged; the connection
			// survives.
			if errors.Is(err, protocol.ErrUnknownOpcode) {
				slog.Warn("unknown opcode", "remote", c.conn.RemoteAddr(), "error", err)
			} else {
				slog.Warn("malformed packet", "remote", c.conn.RemoteAddr(), "error", err)
			}
			continue
		}

		c.dispatch(msg)
	}
}

// writePump owns all writes to the socket: queued packets plus keepalive
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// teardown unwinds a disconnect in a fixed order: despawn broadcast and
// group removal first, combat cleanup second, the connection record last,
// so no broadcast can race a half-torn-down entity.
func (c *Client) teardown() {
	p := c.player
	if p == nil {
		return
	}
	c.player = nil

	c.server.world.Despawn(p.Entity)
	c.server.combat.Release(p.Instance())
	c.server.unregisterClient(p)

	c.server.saveAsync(p)
	slog.Info("player disconnected", "name", p.Name(), "instance", p.Instance())
}
