package relay

import (
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-telecam/pkg/protocol"
)

const (
	// writeWait is how long to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// registerWait bounds how long a fresh connection may take to send
	// its register message.
	registerWait = 10 * time.Second

	// maxMessageSize caps inbound messages; covers Full HD JPEG frames.
	maxMessageSize = 4 * 1024 * 1024

	// sendBuffer is each client's outbound queue. A viewer that falls
	// this far behind is dropped rather than backlogged.
	sendBuffer = 64
)

// outbound is one queued message for a client.
type outbound struct {
	msgType int // websocket.TextMessage or websocket.BinaryMessage
	data    []byte
}

// client is one registered websocket connection on the relay.
type client struct {
	id       string
	role     protocol.Role
	streamID string
	conn     *websocket.Conn
	send     chan outbound
}

func newClient(id string, role protocol.Role, streamID string, conn *websocket.Conn) *client {
	return &client{
		id:       id,
		role:     role,
		streamID: streamID,
		conn:     conn,
		send:     make(chan outbound, sendBuffer),
	}
}

// enqueue hands a message to the client's write pump. Returns false when
// the client's buffer is full; callers drop the client, never block.
func (c *client) enqueue(msg outbound) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writePump is the only goroutine allowed to write to the connection.
func (c *client) writePump() {
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
				// Relay closed the channel - send close frame.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.msgType, msg.data); err != nil {
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
