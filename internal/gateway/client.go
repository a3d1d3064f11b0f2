package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client is one WebSocket peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	channels map[string]bool
}

func newClient(h *Hub, conn *websocket.Conn, channels map[string]bool) *Client {
	return &Client{hub: h, conn: conn, send: make(chan []byte, 256), channels: channels}
}

func (c *Client) follows(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// backfill queues buffered envelopes the client follows. It runs before the
// pumps start, so a backlog larger than the queue is cut short.
func (c *Client) backfill(entries []replayEntry) {
	for _, e := range entries {
		if !c.follows(e.Channel) {
			continue
		}
		select {
		case c.send <- e.Data:
		default:
			return
		}
	}
}

// writePump coalesces queued envelopes into one frame, newline separated.
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
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			for n := len(c.send); n > 0; n-- {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
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

// clientMsg is what a client may send: a channel selection or a ping.
type clientMsg struct {
	Type     string   `json:"type"` // "SUBSCRIBE" or "PING"
	Channels []string `json:"channels"`
	Ping     int64    `json:"ping"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		switch msg.Type {
		case "SUBSCRIBE":
			chs := make(map[string]bool, len(msg.Channels))
			for _, ch := range msg.Channels {
				chs[ch] = true
			}
			c.mu.Lock()
			c.channels = chs
			c.mu.Unlock()
		case "PING":
			pong, _ := json.Marshal(map[string]any{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
				"seq":       c.hub.Seq(),
			})
			c.hub.mu.RLock()
			if c.hub.clients[c] {
				select {
				case c.send <- pong:
				default:
				}
			}
			c.hub.mu.RUnlock()
		}
	}
}
