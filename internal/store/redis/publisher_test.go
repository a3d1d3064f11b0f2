package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signalsv1/internal/model"
)

func TestKeys(t *testing.T) {
	k := newKeys(model.Instrument{Symbol: "ES", Exchange: "CME", TF: 300})
	assert.Equal(t, "signal:300s:CME:ES", k.signalStream)
	assert.Equal(t, "signal:300s:latest:CME:ES", k.signalLatest)
	assert.Equal(t, "pub:signal:300s:CME:ES", k.signalChannel)
	assert.Equal(t, "pub:alert:300s:CME:ES", k.alertChannel)
	assert.Equal(t, "series:300s:latest:CME:ES", k.seriesLatest)
	assert.Equal(t, "config:signals:CME:ES", k.configLatest)
	assert.Equal(t, int64(5*86400/300+100), k.maxLen)

	assert.Equal(t, int64(200), streamMaxLen(0))
	assert.Equal(t, int64(200), streamMaxLen(86400))
}

func TestBacklog_DropsOldest(t *testing.T) {
	b := newBacklog(3)
	b.add([]op{{key: "a"}, {key: "b"}})
	b.add([]op{{key: "c"}, {key: "d"}})

	assert.Equal(t, 3, b.len())
	assert.Equal(t, uint64(1), b.droppedCount())
	got := b.take()
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].key)
	assert.Equal(t, 0, b.len())
}

// An unreachable server trips the breaker; later writes are buffered
// instead of failing.
func TestPublisher_BuffersWhileOpen(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	inst := model.Instrument{Symbol: "ES", Exchange: "CME", TF: 60}
	p := NewWithClient(client, Config{MaxFailures: 1, ResetTimeout: time.Hour}, inst)
	defer p.Close()

	var states []State
	p.OnStateChange = func(_, to State) { states = append(states, to) }

	ctx := context.Background()
	sig := model.Signal{Kind: model.SignalBuy, Source: "cloud", Symbol: "ES", Exchange: "CME",
		Bar: 3, Price: decimal.RequireFromString("5100.25")}

	require.Error(t, p.PublishSignals(ctx, []model.Signal{sig}), "first write reaches the dead server")
	assert.Equal(t, StateOpen, p.Breaker().CurrentState())
	assert.Equal(t, []State{StateOpen}, states)

	require.NoError(t, p.PublishAlert(ctx, model.Alert{Source: "cloud", Title: "MA Cloud"}))
	require.NoError(t, p.PublishSignals(ctx, nil))
	assert.Equal(t, 2, p.Pending())
}
