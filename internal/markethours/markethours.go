// Package markethours defines trading-session calendars. A session has a
// daily open time in a local time zone; bars are grouped into sessions by
// that open, which also covers sessions that start the evening before.
package markethours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// NSE session open in IST.
const (
	OpenHour   = 9
	OpenMinute = 15
)

// Calendar maps timestamps to trading sessions.
type Calendar struct {
	Loc        *time.Location
	OpenHour   int
	OpenMinute int
}

// NSE returns the calendar of the Indian cash market.
func NSE() Calendar {
	return Calendar{Loc: IST, OpenHour: OpenHour, OpenMinute: OpenMinute}
}

// Parse builds a calendar from a time-zone name ("Asia/Kolkata", "UTC",
// "IST") and a session open in "HH:MM".
func Parse(tz, open string) (Calendar, error) {
	var loc *time.Location
	switch tz {
	case "", "IST":
		loc = IST
	default:
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return Calendar{}, fmt.Errorf("session time zone %q: %w", tz, err)
		}
	}

	hh, mm, ok := strings.Cut(open, ":")
	if !ok {
		return Calendar{}, fmt.Errorf("session open %q: want HH:MM", open)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Calendar{}, fmt.Errorf("session open %q: bad hour", open)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Calendar{}, fmt.Errorf("session open %q: bad minute", open)
	}
	return Calendar{Loc: loc, OpenHour: h, OpenMinute: m}, nil
}

func (c Calendar) openOffset() time.Duration {
	return time.Duration(c.OpenHour)*time.Hour + time.Duration(c.OpenMinute)*time.Minute
}

// SessionDay returns the calendar date (midnight, in the calendar's zone)
// of the session t belongs to. Times before the daily open belong to the
// previous day's session.
func (c Calendar) SessionDay(t time.Time) time.Time {
	shifted := t.In(c.Loc).Add(-c.openOffset())
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, c.Loc)
}

// SessionStart returns the open of the session t belongs to.
func (c Calendar) SessionStart(t time.Time) time.Time {
	d := c.SessionDay(t)
	return time.Date(d.Year(), d.Month(), d.Day(), c.OpenHour, c.OpenMinute, 0, 0, c.Loc)
}

// IsNewSession reports whether a bar at cur starts a session that the bar
// at prev was not part of.
func (c Calendar) IsNewSession(prev, cur time.Time) bool {
	return !c.SessionDay(prev).Equal(c.SessionDay(cur))
}

// String renders the calendar as "HH:MM zone".
func (c Calendar) String() string {
	return fmt.Sprintf("%02d:%02d %s", c.OpenHour, c.OpenMinute, c.Loc)
}
