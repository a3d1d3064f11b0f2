package indicator

import (
	"fmt"

	"trading-signalsv1/internal/model"
)

// Kind names a root component type.
type Kind string

const (
	KindComposite  Kind = "composite"
	KindLaguerre   Kind = "laguerre"
	KindHeikenAshi Kind = "heikenashi"
	KindCloud      Kind = "cloud"
	KindSignalsMA  Kind = "signalsma"
	KindADXDots    Kind = "adxdots"
)

// Builder constructs a root component for a feed.
type Builder func(feed model.Feed, cfg Config) Component

// registry is the closed set of root component kinds.
var registry = map[Kind]Builder{
	KindComposite: func(feed model.Feed, cfg Config) Component {
		return NewComposite(feed, cfg)
	},
	KindLaguerre: func(feed model.Feed, cfg Config) Component {
		return NewLaguerre(nameLaguerre, feed, cfg.Laguerre, cfg.Alerts.Zones)
	},
	KindHeikenAshi: func(feed model.Feed, cfg Config) Component {
		return NewHeikenAshi(nameHeikenAshi, feed, cfg.HeikenAshi.Days)
	},
	KindCloud: func(feed model.Feed, cfg Config) Component {
		return NewCloud(nameCloud, feed, cfg.Cloud, cfg.Alerts.Crossovers)
	},
	KindSignalsMA: func(feed model.Feed, cfg Config) Component {
		return NewSignalsMA(string(KindSignalsMA), feed, cfg.SignalsMA, cfg.Alerts.PriceCrosses)
	},
	KindADXDots: func(feed model.Feed, cfg Config) Component {
		return NewADXDots(string(KindADXDots), feed, cfg.ADX)
	},
}

// Build returns the root component for cfg.Kind.
func Build(feed model.Feed, cfg Config) (Component, error) {
	b, ok := registry[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown indicator kind %q", cfg.Kind)
	}
	return b(feed, cfg), nil
}

// Kinds lists the registered kinds.
func Kinds() []Kind {
	return []Kind{KindComposite, KindLaguerre, KindHeikenAshi, KindCloud, KindSignalsMA, KindADXDots}
}
