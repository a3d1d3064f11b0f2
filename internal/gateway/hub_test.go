package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signalsv1/internal/model"
)

type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	TS      string          `json:"ts"`
	Seq     int64           `json:"seq"`
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelopes reads frames until n envelopes arrived; frames may carry
// several newline-separated envelopes.
func readEnvelopes(t *testing.T, conn *websocket.Conn, n int) []envelope {
	t.Helper()
	var out []envelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(out) < n {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			var env envelope
			require.NoError(t, json.Unmarshal(line, &env), "raw: %s", line)
			out = append(out, env)
		}
	}
	return out
}

func TestHub_BroadcastsToFollowers(t *testing.T) {
	hub := NewHub(16)
	var last atomic.Int64
	hub.OnClientsChanged = func(n int) { last.Store(int64(n)) }
	srv := httptest.NewServer(hub)
	defer srv.Close()

	all := dial(t, srv, "")
	alertsOnly := dial(t, srv, "?channels=alert")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	ctx := context.Background()
	sig := model.Signal{Kind: model.SignalEnterLong, Source: "composite", Symbol: "ES", Exchange: "CME",
		Bar: 12, Price: decimal.RequireFromString("5099.00")}
	require.NoError(t, hub.PublishSignals(ctx, []model.Signal{sig}))
	require.NoError(t, hub.PublishAlert(ctx, model.Alert{Source: "composite", Title: "ENTER_LONG", Bar: 12}))

	got := readEnvelopes(t, all, 2)
	assert.Equal(t, ChannelSignal, got[0].Channel)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, ChannelAlert, got[1].Channel)

	var decoded model.Signal
	require.NoError(t, json.Unmarshal(got[0].Data, &decoded))
	assert.Equal(t, model.SignalEnterLong, decoded.Kind)
	assert.True(t, decoded.Price.Equal(sig.Price))

	only := readEnvelopes(t, alertsOnly, 1)
	assert.Equal(t, ChannelAlert, only[0].Channel)
	assert.Equal(t, int64(2), only[0].Seq)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, int64(0), last.Load())
}

func TestHub_BackfillsSince(t *testing.T) {
	hub := NewHub(16)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	for i := 0; i < 4; i++ {
		hub.Broadcast(ChannelAlert, []byte(`{"bar":`+string(rune('0'+i))+`}`))
	}
	require.NoError(t, hub.PublishSeries(context.Background(), model.SeriesSnapshot{Bar: 4}))
	assert.Equal(t, int64(5), hub.Seq())

	conn := dial(t, srv, "?since=2&channels=alert")
	got := readEnvelopes(t, conn, 2)
	assert.Equal(t, int64(3), got[0].Seq)
	assert.Equal(t, int64(4), got[1].Seq)
	assert.JSONEq(t, `{"bar":3}`, string(got[1].Data))
}

func TestHub_SubscribeAndPing(t *testing.T) {
	hub := NewHub(16)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "?channels=alert")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(clientMsg{Type: "PING", Ping: 77}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var pong map[string]any
	require.NoError(t, json.Unmarshal(frame, &pong))
	assert.Equal(t, "pong", pong["type"])
	assert.Equal(t, float64(77), pong["ping"])

	require.NoError(t, conn.WriteJSON(clientMsg{Type: "SUBSCRIBE", Channels: []string{ChannelSignal}}))
	// A PING round trip guarantees the SUBSCRIBE was processed.
	require.NoError(t, conn.WriteJSON(clientMsg{Type: "PING", Ping: 78}))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	hub.Broadcast(ChannelAlert, []byte(`{}`))
	hub.Broadcast(ChannelSignal, []byte(`{"kind":"BUY"}`))
	got := readEnvelopes(t, conn, 1)
	assert.Equal(t, ChannelSignal, got[0].Channel)
}

func TestParseChannels(t *testing.T) {
	assert.Equal(t, map[string]bool{"signal": true, "alert": true, "series": true}, parseChannels(""))
	assert.Equal(t, map[string]bool{"alert": true}, parseChannels(" alert, "))
}
