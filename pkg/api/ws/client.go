package ws

import (
	"sync"
	"time"

	"enceladus/pkg/state/logger"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	errClosed = errors.New("subscriber closed")
	errSlow   = errors.New("subscriber send buffer full")
)

// client is one websocket subscriber. Send never blocks; a subscriber that
// cannot keep up is disconnected.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *client) Send(payload []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errClosed
	default:
		logger.Warn("ws_client_too_slow", "conn", c.id)
		c.close()
		return errSlow
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// goAway tells the peer the server is leaving, then closes.
func (c *client) goAway() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.close()
}

// writePump owns every write to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws_write_failed", "conn", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readLoop hands every inbound text frame to onMessage until the peer goes
// away.
func (c *client) readLoop(maxMessage int64, onMessage func([]byte)) {
	defer c.close()
	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("ws_read_failed", "conn", c.id, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		onMessage(data)
	}
}
