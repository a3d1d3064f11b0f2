// Package api provides the HTTP handlers of the signal engine.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"trading-signalsv1/config"
	"trading-signalsv1/internal/indicator"
	"trading-signalsv1/internal/model"
	"trading-signalsv1/internal/sigengine"
)

const (
	maxRange    = 5000
	maxBodySize = 1 << 20
)

// Routes are the optional handlers mounted next to the engine endpoints.
type Routes struct {
	WS     http.Handler // /ws
	Health http.Handler // /healthz
}

// NewRouter sets up the HTTP routes for one signal engine.
//
//	GET  /api/v1/series?bar=N | ?from=A&to=B
//	GET  /api/v1/signals?from=A&to=B
//	GET  /api/v1/config
//	POST /api/v1/config
//	GET  /api/v1/stats
func NewRouter(svc *sigengine.Service, routes Routes) *http.ServeMux {
	mux := http.NewServeMux()
	h := &handlers{svc: svc}

	mux.HandleFunc("GET /api/v1/series", h.series)
	mux.HandleFunc("GET /api/v1/signals", h.signals)
	mux.HandleFunc("GET /api/v1/config", h.getConfig)
	mux.HandleFunc("POST /api/v1/config", h.reload)
	mux.HandleFunc("GET /api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Stats())
	})

	if routes.Health != nil {
		mux.Handle("/healthz", routes.Health)
	} else {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}
	if routes.WS != nil {
		mux.Handle("/ws", routes.WS)
	}
	return mux
}

type handlers struct {
	svc *sigengine.Service
}

type seriesPoint struct {
	Bar    int                          `json:"bar"`
	TS     time.Time                    `json:"ts"`
	Closed bool                         `json:"closed"`
	Values map[string]model.SeriesValue `json:"values"`
}

func (h *handlers) series(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.bounds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	feed, eng := h.svc.Feed(), h.svc.Engine()
	count := feed.Count()
	inst := feed.Instrument()

	points := make([]seriesPoint, 0, max(to-from+1, 0))
	for bar := from; bar <= to; bar++ {
		points = append(points, seriesPoint{
			Bar:    bar,
			TS:     feed.Bar(bar).TS,
			Closed: bar < count-1,
			Values: eng.Values(bar),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instrument": inst.Key(),
		"names":      eng.SeriesNames(),
		"count":      count,
		"points":     points,
	})
}

func (h *handlers) signals(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.bounds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eng := h.svc.Engine()
	out := []model.Signal{}
	for bar := from; bar <= to; bar++ {
		out = append(out, eng.SignalsAt(bar)...)
	}
	writeJSON(w, http.StatusOK, out)
}

// bounds resolves ?bar= or ?from=&to= against the current feed. Missing
// bounds default to the latest maxRange bars.
func (h *handlers) bounds(r *http.Request) (int, int, error) {
	last := h.svc.Feed().Count() - 1
	q := r.URL.Query()

	if s := q.Get("bar"); s != "" {
		bar, err := strconv.Atoi(s)
		if err != nil || bar < 0 || bar > last {
			return 0, 0, errors.New("bar out of range")
		}
		return bar, bar, nil
	}

	from, to := max(last-maxRange+1, 0), last
	if s := q.Get("from"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, errors.New("invalid from")
		}
		from = v
	}
	if s := q.Get("to"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, errors.New("invalid to")
		}
		to = min(v, last)
	}
	if to-from+1 > maxRange {
		return 0, 0, errors.New("range too large")
	}
	return from, to, nil
}

func (h *handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Engine().Config())
}

func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	cfg, err := config.ParseParams(body)
	if err != nil {
		var verr *indicator.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "field": verr.Field})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Reload(r.Context(), cfg); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "replays": h.svc.Engine().Replays()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
