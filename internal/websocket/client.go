package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize    = 16
	keepAliveInterval = 30 * time.Second
)

// Client is one connected screen. Screens are listen-only: every mutation
// goes through the HTTP API, and the socket exists to push sync
// notifications the other way.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Receive returns the client's queue of outbound messages.
func (c *Client) Receive() <-chan []byte {
	return c.send
}

// Run registers the client and services the connection until it closes,
// then unregisters. Blocks for the life of the connection.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)

	// Drain and discard anything the screen sends. A read error means the
	// connection is gone.
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writeLoop forwards broadcast messages to the socket and pings on an
// interval so dead connections get noticed.
func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusNormalClosure, "hub closed")
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
