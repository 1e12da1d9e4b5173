package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/hopingminds/menrol-api/internal/notify"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// Client is a single live-views WebSocket connection bound to one
// broker subscription.
type Client struct {
	conn   *websocket.Conn
	broker *notify.Broker
	sub    *notify.Subscription
	send   chan []byte
}

// readPump waits for disconnects. Clients never send application
// messages; closing the socket ends the subscription.
func (c *Client) readPump() {
	defer func() {
		c.broker.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump drains the send queue to the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The view pump closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// enqueue hands a message to the write pump without blocking. A full
// queue drops the message; the next recompute will carry fresh state.
func (c *Client) enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
	}
}
