package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the human-readable trade timestamp format used in the
// durable log and the live display.
const TimestampLayout = "2006-01-02 15:04"

// WhaleRecord joins one qualifying trade with one participant account and
// that account's position snapshot in the traded coin. Immutable once built.
type WhaleRecord struct {
	RecordID        string // uuid, identity in store mirrors
	Address         string
	Coin            string
	Side            string
	Position        PositionSnapshot
	TradePrice      float64
	TradeTimeMillis int64
	Timestamp       string // TradeTimeMillis rendered in TimestampLayout
}

// NewWhaleRecord builds the record for one (trade, account) pair.
func NewWhaleRecord(ev TradeEvent, account string, pos PositionSnapshot) WhaleRecord {
	return WhaleRecord{
		RecordID:        uuid.NewString(),
		Address:         account,
		Coin:            ev.Coin,
		Side:            ev.Side,
		Position:        pos,
		TradePrice:      ev.Price,
		TradeTimeMillis: ev.TimeMillis,
		Timestamp:       time.UnixMilli(ev.TimeMillis).Format(TimestampLayout),
	}
}
