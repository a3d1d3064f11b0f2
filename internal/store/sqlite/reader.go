package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the bar history.
type Reader struct {
	db *sql.DB
}

var _ model.BarReader = (*Reader)(nil)

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadBars reads bars for one instrument and timeframe with ts > afterTS,
// ordered by timestamp ascending. Bar indices are assigned from 0.
func (r *Reader) ReadBars(ctx context.Context, exchange, symbol string, tf int, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE exchange = ? AND symbol = ? AND tf = ? AND ts > ?
		ORDER BY ts ASC
	`, exchange, symbol, tf, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var (
			tsUnix                  int64
			open, high, low, closeS string
			volume                  string
		)
		if err := rows.Scan(&tsUnix, &open, &high, &low, &closeS, &volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b := model.Bar{Index: len(bars), TS: time.Unix(tsUnix, 0).UTC()}
		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{{&b.Open, open}, {&b.High, high}, {&b.Low, low}, {&b.Close, closeS}, {&b.Volume, volume}} {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("sqlite bar %d price %q: %w", tsUnix, f.src, err)
			}
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// CountBars returns how many bars are stored for an instrument and timeframe.
func (r *Reader) CountBars(ctx context.Context, exchange, symbol string, tf int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bars WHERE exchange = ? AND symbol = ? AND tf = ?`,
		exchange, symbol, tf,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite count bars: %w", err)
	}
	return n, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
