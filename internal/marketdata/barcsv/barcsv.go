// Package barcsv reads OHLCV bars from CSV exports.
//
// Columns are ts,open,high,low,close[,volume]. A first row whose ts column
// is not a timestamp is treated as a header. ts may be unix seconds, unix
// milliseconds, RFC 3339, or "2006-01-02 15:04:05" in the given location.
package barcsv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/model"
)

// ErrMalformed is wrapped by every row-level parse error.
var ErrMalformed = errors.New("malformed bar row")

var layouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// unix values above this are milliseconds
const msThreshold = 100_000_000_000

// Read parses r and hands each bar to fn in file order. It returns the
// number of bars delivered. Parsing stops at the first malformed row.
func Read(r io.Reader, loc *time.Location, fn func(model.Bar) error) (int, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	n, line := 0, 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		line++
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}

		ts, tsErr := parseTS(rec[0], loc)
		if tsErr != nil && line == 1 {
			continue // header
		}

		b, err := parseRow(rec, ts, tsErr)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		b.Index = n
		if err := fn(b); err != nil {
			return n, err
		}
		n++
	}
}

func parseRow(rec []string, ts time.Time, tsErr error) (model.Bar, error) {
	if len(rec) < 5 {
		return model.Bar{}, fmt.Errorf("%w: %d columns, want at least 5", ErrMalformed, len(rec))
	}
	if tsErr != nil {
		return model.Bar{}, fmt.Errorf("%w: %v", ErrMalformed, tsErr)
	}

	b := model.Bar{TS: ts, Volume: decimal.Zero}
	fields := []*decimal.Decimal{&b.Open, &b.High, &b.Low, &b.Close}
	if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
		fields = append(fields, &b.Volume)
	}
	for i, dst := range fields {
		v, err := decimal.NewFromString(strings.TrimSpace(rec[i+1]))
		if err != nil {
			return model.Bar{}, fmt.Errorf("%w: column %d: %v", ErrMalformed, i+2, err)
		}
		*dst = v
	}

	if b.High.LessThan(decimal.Max(b.Open, b.Close)) || b.Low.GreaterThan(decimal.Min(b.Open, b.Close)) {
		return model.Bar{}, fmt.Errorf("%w: high/low do not bracket open/close", ErrMalformed)
	}
	if b.Volume.IsNegative() {
		return model.Bar{}, fmt.Errorf("%w: negative volume", ErrMalformed)
	}
	return b, nil
}

func parseTS(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\ufeff")
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v > msThreshold {
			return time.UnixMilli(v).UTC(), nil
		}
		return time.Unix(v, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
