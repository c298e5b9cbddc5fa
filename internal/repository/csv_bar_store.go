package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	"RegimeTrader/pkg/util"
)

var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrBadCSV         = errors.New("malformed bar csv")
)

var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// CSVBarStore serves bars from <dir>/<SYMBOL>.csv files. The timeframe is
// not encoded in the file, so tf is ignored.
type CSVBarStore struct {
	dir string
}

func NewCSVBarStore(dir string) *CSVBarStore {
	return &CSVBarStore{dir: dir}
}

func (s *CSVBarStore) GetBars(_ context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	path := filepath.Join(s.dir, util.NormalizeSymbol(symbol)+".csv")
	bars, err := LoadCSVFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, err
	}
	return FilterRange(bars, from, to), nil
}

// LoadCSVFile reads a bar CSV from disk.
func LoadCSVFile(path string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses bars with a header naming at least timestamp, open, high,
// low, close and volume (any order, case-insensitive). Timestamps are
// RFC3339, YYYY-MM-DD, "YYYY-MM-DD HH:MM:SS" or unix seconds. Rows with an
// unparseable timestamp are rejected; unparseable prices become NaN.
func ReadCSV(r io.Reader) ([]models.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrBadCSV, err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		j, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrBadCSV, name)
		}
		cols[i] = j
	}

	var out []models.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, err)
		}
		ts, ok := parseCSVTime(rec[cols[0]])
		if !ok {
			return nil, fmt.Errorf("%w: line %d: bad timestamp %q", ErrBadCSV, line, rec[cols[0]])
		}
		out = append(out, models.Bar{
			Timestamp:  ts,
			Open:       parseFloat(rec[cols[1]]),
			High:       parseFloat(rec[cols[2]]),
			Low:        parseFloat(rec[cols[3]]),
			Close:      parseFloat(rec[cols[4]]),
			Volume:     parseFloat(rec[cols[5]]),
			Indicators: models.UndefinedIndicators(),
		})
	}
	return out, nil
}

// FilterRange keeps bars with from <= ts <= to. A zero bound is open.
func FilterRange(bars []models.Bar, from, to time.Time) []models.Bar {
	out := bars[:0:0]
	for _, b := range bars {
		if !from.IsZero() && b.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && b.Timestamp.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func parseCSVTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, ok := util.ParseTime(s); ok {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

var _ domrepo.BarStore = (*CSVBarStore)(nil)
