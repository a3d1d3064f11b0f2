package model

import (
	"encoding/json"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is an edge event raised for a just-closed bar, addressed to an
// external sink (log, webhook, chat, dashboard).
type Alert struct {
	Level      AlertLevel `json:"level"`
	Color      ColorTag   `json:"color,omitempty"`
	Source     string     `json:"source"` // component that raised it
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Instrument string     `json:"instrument"` // "exchange:symbol"
	Bar        int        `json:"bar"`
	TS         time.Time  `json:"ts"`
}

// JSON returns the JSON-encoded alert.
func (a *Alert) JSON() []byte {
	b, _ := json.Marshal(a)
	return b
}
