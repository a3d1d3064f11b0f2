// cmd/backtest replays bar history from SQLite through the indicator graph
// at full speed and prints the signals it produced.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=ES --exchange=CME --tf=60 --params=params.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"trading-signalsv1/config"
	"trading-signalsv1/internal/markethours"
	"trading-signalsv1/internal/model"
	"trading-signalsv1/internal/sigengine"
	sqlitestore "trading-signalsv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	dbPath := flag.String("db", "data/bars.db", "Path to SQLite database")
	symbol := flag.String("symbol", "ES", "Instrument symbol")
	exchange := flag.String("exchange", "CME", "Instrument exchange")
	tf := flag.Int("tf", 60, "Bar duration in seconds")
	tick := flag.String("tick", "0.25", "Tick size")
	tz := flag.String("tz", "UTC", "Session time zone")
	open := flag.String("open", "00:00", "Session open (HH:MM)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start from (0=all)")
	steps := flag.Int("steps", 1, "Intrabar revisions per bar")
	sourceTF := flag.Int("source-tf", 0, "Replay stored bars of this finer TF resampled into --tf")
	paramsPath := flag.String("params", "", "Indicator parameters (YAML); empty uses defaults")
	verbose := flag.Bool("v", false, "Print every signal")
	flag.Parse()

	tickSize, err := decimal.NewFromString(*tick)
	if err != nil || !tickSize.IsPositive() {
		log.Fatalf("[backtest] invalid tick size %q", *tick)
	}
	cal, err := markethours.Parse(*tz, *open)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	params, err := config.LoadParams(*paramsPath)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inst := model.Instrument{Symbol: *symbol, Exchange: *exchange, TF: *tf, TickSize: tickSize}
	rep, err := sigengine.Backtest(ctx, reader, inst, cal, params, sigengine.BacktestOptions{
		FromTS:        *fromTS,
		IntrabarSteps: *steps,
		SourceTF:      *sourceTF,
	})
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	for i, s := range rep.Signals {
		if *verbose || i < 10 {
			fmt.Printf("  [%s] bar=%-6d %-13s %-9s @ %s\n",
				s.TS.Format("2006-01-02 15:04"), s.Bar, s.Kind, s.Source, s.Price.StringFixed(2))
		}
	}

	kinds := make([]string, 0, len(rep.Counts))
	for k := range rep.Counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Instrument:        %-16s ║\n", inst.Key())
	fmt.Printf("║  Bars processed:    %-16d ║\n", rep.Bars)
	fmt.Printf("║  Feed updates:      %-16d ║\n", rep.Updates)
	fmt.Printf("║  Signals:           %-16d ║\n", len(rep.Signals))
	for _, k := range kinds {
		fmt.Printf("║    %-15s  %-16d ║\n", k, rep.Counts[model.SignalKind(k)])
	}
	fmt.Printf("║  Alerts:            %-16d ║\n", len(rep.Alerts))
	fmt.Printf("║  Elapsed:           %-16s ║\n", rep.Duration.Round(time.Millisecond))
	fmt.Println("╚══════════════════════════════════════╝")
}
