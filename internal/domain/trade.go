package domain

// TradeEvent is one fill reported on the trades channel.
type TradeEvent struct {
	Coin       string
	Side       string   // "buy" | "sell"
	Price      float64  // execution price
	Size       float64  // traded size in coin
	TimeMillis int64    // trade time, Unix milliseconds
	Users      []string // addresses on both sides of the fill, in feed order
}

// Trade side constants
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Notional returns the trade's value in quote currency.
func (t TradeEvent) Notional() float64 {
	return t.Price * t.Size
}
