// Package gateway streams engine output to dashboards over WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-signalsv1/internal/model"
)

// Channels a client can follow.
const (
	ChannelSignal = "signal"
	ChannelAlert  = "alert"
	ChannelSeries = "series"
)

var allChannels = []string{ChannelSignal, ChannelAlert, ChannelSeries}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans envelopes out to WebSocket clients and keeps a replay buffer so
// a reconnecting client can ask for everything after the last seq it saw.
//
// Envelope: {"channel":"alert","data":{...},"ts":"...","seq":N}
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	replay  *ReplayBuffer

	// OnClientsChanged reports the client count after every connect and
	// disconnect.
	OnClientsChanged func(n int)
}

var _ model.SignalPublisher = (*Hub)(nil)

// NewHub creates a hub that keeps the last replaySize envelopes.
func NewHub(replaySize int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
	}
}

// PublishSignals broadcasts each signal on the signal channel.
func (h *Hub) PublishSignals(_ context.Context, signals []model.Signal) error {
	for i := range signals {
		h.Broadcast(ChannelSignal, signals[i].JSON())
	}
	return nil
}

// PublishAlert broadcasts an alert on the alert channel.
func (h *Hub) PublishAlert(_ context.Context, alert model.Alert) error {
	h.Broadcast(ChannelAlert, alert.JSON())
	return nil
}

// PublishSeries broadcasts a series snapshot.
func (h *Hub) PublishSeries(_ context.Context, snap model.SeriesSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	h.Broadcast(ChannelSeries, data)
	return nil
}

// Broadcast wraps data in an envelope, records it for replay and queues it
// to every client following channel. Full client queues drop the envelope.
func (h *Hub) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')

	h.replay.Push(seq, channel, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.follows(channel) {
			continue
		}
		select {
		case c.send <- buf:
		default:
		}
	}
}

// ServeHTTP upgrades to WebSocket. Query parameters:
//
//	channels=signal,alert   follow only these channels (default all)
//	since=N                 first replay buffered envelopes with seq > N
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}

	c := newClient(h, conn, parseChannels(r.URL.Query().Get("channels")))
	since, backfill := int64(0), false
	if s := r.URL.Query().Get("since"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			since, backfill = v, true
		}
	}

	// Backfill under the lock so no live envelope overtakes the replayed ones.
	// Clients drop duplicates by seq.
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	if backfill {
		c.backfill(h.replay.Since(since))
	}
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", n)
	if h.OnClientsChanged != nil {
		h.OnClientsChanged(n)
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client disconnected (%d total)", n)
	if h.OnClientsChanged != nil {
		h.OnClientsChanged(n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the sequence number of the last envelope.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.remove(c)
	}
	return nil
}

func parseChannels(s string) map[string]bool {
	out := make(map[string]bool)
	for _, ch := range strings.Split(s, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			out[ch] = true
		}
	}
	if len(out) == 0 {
		for _, ch := range allChannels {
			out[ch] = true
		}
	}
	return out
}
