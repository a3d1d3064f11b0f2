package redis

import (
	"strconv"

	"trading-signalsv1/internal/model"
)

// ConfigChannel carries runtime indicator parameter updates (YAML or JSON).
const ConfigChannel = "config:signals"

// keys holds the pre-built key and channel names of one instrument stream.
type keys struct {
	signalStream  string // signal:{tf}s:{exchange}:{symbol}
	signalLatest  string // signal:{tf}s:latest:{exchange}:{symbol}
	signalChannel string // pub:signal:{tf}s:{exchange}:{symbol}
	alertStream   string // alert:{tf}s:{exchange}:{symbol}
	alertChannel  string // pub:alert:{tf}s:{exchange}:{symbol}
	seriesLatest  string // series:{tf}s:latest:{exchange}:{symbol}
	seriesChannel string // pub:series:{tf}s:{exchange}:{symbol}
	configLatest  string // config:signals:{exchange}:{symbol}
	maxLen        int64
}

func newKeys(inst model.Instrument) keys {
	tf := strconv.Itoa(inst.TF) + "s"
	id := inst.Exchange + ":" + inst.Symbol
	return keys{
		signalStream:  "signal:" + tf + ":" + id,
		signalLatest:  "signal:" + tf + ":latest:" + id,
		signalChannel: "pub:signal:" + tf + ":" + id,
		alertStream:   "alert:" + tf + ":" + id,
		alertChannel:  "pub:alert:" + tf + ":" + id,
		seriesLatest:  "series:" + tf + ":latest:" + id,
		seriesChannel: "pub:series:" + tf + ":" + id,
		configLatest:  ConfigChannel + ":" + id,
		maxLen:        streamMaxLen(inst.TF),
	}
}

// streamMaxLen keeps about five days of bars, never fewer than 200 entries.
func streamMaxLen(tf int) int64 {
	if tf <= 0 {
		return 200
	}
	return max(int64(5*86400/tf)+100, 200)
}
