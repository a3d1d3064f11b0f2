// cmd/loadbars imports OHLCV bars from a CSV file into the SQLite bar store.
//
// Usage:
//
//	go run ./cmd/loadbars --csv=es_1m.csv --symbol=ES --exchange=CME --tf=60
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trading-signalsv1/internal/marketdata/barcsv"
	"trading-signalsv1/internal/marketdata/tfbuilder"
	"trading-signalsv1/internal/markethours"
	"trading-signalsv1/internal/model"
	sqlitestore "trading-signalsv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	csvPath := flag.String("csv", "", "CSV file with ts,open,high,low,close[,volume]")
	dbPath := flag.String("db", "data/bars.db", "Path to SQLite database")
	symbol := flag.String("symbol", "ES", "Instrument symbol")
	exchange := flag.String("exchange", "CME", "Instrument exchange")
	tf := flag.Int("tf", 60, "Bar duration in seconds")
	tz := flag.String("tz", "UTC", "Time zone of zone-less timestamps and sessions")
	open := flag.String("open", "00:00", "Session open (HH:MM), aligns resampled bars")
	resampleTF := flag.Int("resample-tf", 0, "Store bars resampled into this coarser TF (0=as read)")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("[loadbars] --csv is required")
	}
	cal, err := markethours.Parse(*tz, *open)
	if err != nil {
		log.Fatalf("[loadbars] %v", err)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("[loadbars] %v", err)
	}
	defer f.Close()

	if dir := filepath.Dir(*dbPath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[loadbars] sqlite init failed: %v", err)
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inst := model.Instrument{Symbol: *symbol, Exchange: *exchange, TF: *tf}
	var builder *tfbuilder.Builder
	if *resampleTF > 0 {
		if *resampleTF <= *tf || *resampleTF%*tf != 0 {
			log.Fatalf("[loadbars] --resample-tf=%d must be a multiple of --tf=%d", *resampleTF, *tf)
		}
		builder = tfbuilder.New(*resampleTF, cal)
		builder.OnStaleBar = func(b model.Bar) {
			log.Printf("[loadbars] out-of-order bar at %s dropped", b.TS.Format(time.RFC3339))
		}
		inst.TF = *resampleTF
	}

	start := time.Now()
	barCh := make(chan model.Bar, 1000)
	written := make(chan int, 1)
	go func() { written <- w.Run(ctx, inst, barCh) }()

	send := func(b model.Bar) error {
		select {
		case barCh <- b:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	read, readErr := barcsv.Read(f, cal.Loc, func(b model.Bar) error {
		if builder == nil {
			return send(b)
		}
		for _, u := range builder.Push(b) {
			if u.Closed {
				if err := send(u.Bar); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if builder != nil && readErr == nil {
		if u, ok := builder.Flush(); ok {
			readErr = send(u.Bar)
		}
	}
	close(barCh)
	n := <-written

	if readErr != nil {
		log.Fatalf("[loadbars] stopped after %d bars: %v", read, readErr)
	}
	last, _ := w.GetLastTimestamp(inst)
	log.Printf("[loadbars] %s tf=%ds: read %d, stored %d bars in %v (last %s)",
		inst.Key(), inst.TF, read, n, time.Since(start).Round(time.Millisecond), time.Unix(last, 0).UTC().Format(time.RFC3339))
}
