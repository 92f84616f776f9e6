// Package feed turns raw inbound frames into typed trade events and applies
// the whale threshold.
package feed

import (
	"encoding/json"
	"fmt"
	"strconv"

	"whale-tracker/internal/domain"
)

// DecodeError reports a frame or field that could not be decoded.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// frame is the envelope of every feed message.
type frame struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// wireTrade is one trade entry in a trades frame. Price and size stay raw so
// a corrupt value coerces to zero instead of failing the entry.
type wireTrade struct {
	Coin  string          `json:"coin"`
	Side  string          `json:"side"`
	Px    json.RawMessage `json:"px"`
	Sz    json.RawMessage `json:"sz"`
	Time  int64           `json:"time"`
	Users []string        `json:"users"`
}

// Decoder decodes raw feed frames into trade events.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode turns one raw frame into zero or more trade events. Frames on other
// channels yield no events and no error. A malformed entry inside a batched
// frame is skipped without discarding its siblings: the returned events are
// valid even when the error is non-nil, and the error describes the first
// entry that was dropped. A non-numeric or missing price or size coerces to
// zero rather than failing the entry.
func (d *Decoder) Decode(raw []byte) ([]domain.TradeEvent, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &DecodeError{Field: "frame", Err: err}
	}

	if f.Channel != "trades" {
		return nil, nil
	}

	// Split the batch first so one malformed entry cannot discard the rest.
	var entries []json.RawMessage
	if err := json.Unmarshal(f.Data, &entries); err != nil {
		return nil, &DecodeError{Field: "data", Err: err}
	}

	var events []domain.TradeEvent
	var firstErr *DecodeError
	for i, entry := range entries {
		var t wireTrade
		if err := json.Unmarshal(entry, &t); err != nil {
			if firstErr == nil {
				firstErr = &DecodeError{Field: fmt.Sprintf("data[%d]", i), Err: err}
			}
			continue
		}
		if t.Coin == "" {
			if firstErr == nil {
				firstErr = &DecodeError{Field: fmt.Sprintf("data[%d].coin", i), Err: fmt.Errorf("missing")}
			}
			continue
		}

		events = append(events, domain.TradeEvent{
			Coin:       t.Coin,
			Side:       t.Side,
			Price:      coerceFloat(t.Px),
			Size:       coerceFloat(t.Sz),
			TimeMillis: t.Time,
			Users:      t.Users,
		})
	}

	if firstErr != nil {
		return events, firstErr
	}
	return events, nil
}

// coerceFloat parses a JSON string or number; anything else is 0.
func coerceFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return 0
}
