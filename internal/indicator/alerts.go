package indicator

import (
	"strconv"
	"strings"

	"trading-signalsv1/internal/model"
)

// alertGate remembers the last closed bar a component examined for alerts.
// It lets each closed index through exactly once.
type alertGate struct {
	last   int
	primed bool
}

// pass reports whether closed has not been examined yet and marks it.
func (g *alertGate) pass(closed int) bool {
	if closed < 0 {
		return false
	}
	if g.primed && closed <= g.last {
		return false
	}
	g.last = closed
	g.primed = true
	return true
}

func newAlert(feed model.Feed, source string, level model.AlertLevel, color model.ColorTag, bar int, title, msg string) model.Alert {
	inst := feed.Instrument()
	b := feed.Bar(bar)
	return model.Alert{
		Level:      level,
		Color:      color,
		Source:     source,
		Title:      title,
		Message:    msg,
		Instrument: inst.Key(),
		Bar:        bar,
		TS:         b.TS,
	}
}

// formatValue renders v with at most places fractional digits and no
// trailing zeros ("0.#####" style).
func formatValue(v float64, places int) string {
	s := strconv.FormatFloat(v, 'f', places, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}
