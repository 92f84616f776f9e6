package sink

import (
	"fmt"
	"io"
	"strings"

	"whale-tracker/internal/domain"
)

// Display writes the live status stream: a subscription banner, one line per
// observed trade regardless of threshold, and one fixed-width line per
// emitted record. The stream is distinct from the durable log; display
// failures are ignored.
type Display struct {
	out io.Writer
}

// NewDisplay creates a Display writing to out.
func NewDisplay(out io.Writer) *Display {
	return &Display{out: out}
}

// Banner prints the subscribed coin list and the record column header.
func (d *Display) Banner(coins []string) {
	fmt.Fprintf(d.out, "Subscribed to trades for: %s\n\n", strings.Join(coins, ", "))

	header := fmt.Sprintf(
		"%-42s | %-6s | %-5s | %12s | %10s | %10s | %10s | %10s | %10s | %4s | %-6s | %10s | %s",
		"Address", "Symbol", "Side",
		"Position", "Coin", "Entry Px",
		"Liq. Px", "Margin", "PnL",
		"Lev", "Type", "Trade Px", "Time",
	)
	fmt.Fprintln(d.out, header)
	fmt.Fprintln(d.out, strings.Repeat("-", len(header)))
}

// Trade prints the informational line for one observed trade.
func (d *Display) Trade(ev domain.TradeEvent) {
	fmt.Fprintf(d.out, "TRADE: %s %s %.4f@%.2f = $%.2f\n",
		ev.Coin, ev.Side, ev.Size, ev.Price, ev.Notional())
}

// Record prints the fixed-width line for one emitted whale record.
func (d *Display) Record(rec domain.WhaleRecord) {
	p := rec.Position
	fmt.Fprintf(d.out,
		"%-42s | %-6s | %-5s | %12.2f | %10.4f | %10.2f | %10.2f | %10.2f | %10.2f | %4.0f | %-6s | %10.2f | %s\n",
		rec.Address, rec.Coin, rec.Side,
		p.PositionValueUSD, p.PositionSizeCoin, p.EntryPrice,
		p.LiquidationPrice, p.MarginUsed, p.UnrealizedPnl,
		p.Leverage, p.LeverageType, rec.TradePrice, rec.Timestamp,
	)
}
