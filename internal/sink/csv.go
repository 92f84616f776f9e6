// Package sink delivers emitted whale records to the durable log, the live
// display, and any configured store mirrors.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"whale-tracker/internal/domain"
)

// Header is the fixed column order of the durable log.
var Header = []string{
	"Address", "Symbol", "Side",
	"Position (USD)", "Position (Coin)",
	"Entry Price", "Liq. Price", "Margin",
	"Unrealised PnL", "Leverage", "Lev. Type",
	"Trade Price", "Timestamp",
}

// PersistError marks a failed append to the durable log. It is the one sink
// failure the pipeline must not swallow: silent loss of the log defeats the
// system's purpose.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("append whale log %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// CSVLog appends whale records to an append-only CSV file, writing the
// header row when it creates the file. A single writer owns the file, so no
// locking is needed.
type CSVLog struct {
	path string
}

// NewCSVLog creates a log writer for path. The file is created lazily on
// first append.
func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

// Path returns the log file path.
func (l *CSVLog) Path() string {
	return l.path
}

// Append durably writes one record. The record is flushed to the file before
// Append returns; there is no buffering.
func (l *CSVLog) Append(rec domain.WhaleRecord) error {
	writeHeader := false
	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		writeHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &PersistError{Path: l.path, Err: err}
	}

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(Header); err != nil {
			f.Close()
			return &PersistError{Path: l.path, Err: err}
		}
	}
	if err := w.Write(Row(rec)); err != nil {
		f.Close()
		return &PersistError{Path: l.path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return &PersistError{Path: l.path, Err: err}
	}

	if err := f.Close(); err != nil {
		return &PersistError{Path: l.path, Err: err}
	}
	return nil
}

// Row renders a record in the durable log column order.
func Row(rec domain.WhaleRecord) []string {
	p := rec.Position
	return []string{
		rec.Address, rec.Coin, rec.Side,
		formatFloat(p.PositionValueUSD), formatFloat(p.PositionSizeCoin),
		formatFloat(p.EntryPrice), formatFloat(p.LiquidationPrice), formatFloat(p.MarginUsed),
		formatFloat(p.UnrealizedPnl), formatFloat(p.Leverage), p.LeverageType,
		formatFloat(rec.TradePrice), rec.Timestamp,
	}
}

// ParseRow parses one durable-log row back into the record values it was
// written from. Fields not stored in the log (record id, trade time millis)
// are left zero.
func ParseRow(row []string) (domain.WhaleRecord, error) {
	if len(row) != len(Header) {
		return domain.WhaleRecord{}, fmt.Errorf("whale log row: want %d columns, got %d", len(Header), len(row))
	}

	nums := make([]float64, 0, 8)
	for _, idx := range []int{3, 4, 5, 6, 7, 8, 9, 11} {
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return domain.WhaleRecord{}, fmt.Errorf("whale log column %q: %w", Header[idx], err)
		}
		nums = append(nums, v)
	}

	return domain.WhaleRecord{
		Address: row[0],
		Coin:    row[1],
		Side:    row[2],
		Position: domain.PositionSnapshot{
			Account:          row[0],
			Coin:             row[1],
			PositionValueUSD: nums[0],
			PositionSizeCoin: nums[1],
			EntryPrice:       nums[2],
			LiquidationPrice: nums[3],
			MarginUsed:       nums[4],
			UnrealizedPnl:    nums[5],
			Leverage:         nums[6],
			LeverageType:     row[10],
		},
		TradePrice: nums[7],
		Timestamp:  row[12],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
