package feed

import "whale-tracker/internal/domain"

// Filter is the whale threshold predicate. The threshold is fixed for the
// process lifetime.
type Filter struct {
	ThresholdUSD float64
}

// Passes reports whether the trade's notional value meets the threshold.
func (f Filter) Passes(ev domain.TradeEvent) bool {
	return ev.Notional() >= f.ThresholdUSD
}
