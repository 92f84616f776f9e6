package sink

import (
	"bytes"
	"strings"
	"testing"

	"whale-tracker/internal/domain"
)

func TestDisplay_Banner(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf)

	d.Banner([]string{"BTC", "ETH"})

	out := buf.String()
	if !strings.Contains(out, "BTC, ETH") {
		t.Errorf("banner should list coins, got %q", out)
	}
	if !strings.Contains(out, "Address") || !strings.Contains(out, "Trade Px") {
		t.Errorf("banner should include the column header, got %q", out)
	}
	if !strings.Contains(out, "----") {
		t.Errorf("banner should include a rule, got %q", out)
	}
}

func TestDisplay_TradeLine(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf)

	d.Trade(domain.TradeEvent{Coin: "BTC", Side: domain.SideBuy, Price: 50000, Size: 0.5})

	got := buf.String()
	want := "TRADE: BTC buy 0.5000@50000.00 = $25000.00\n"
	if got != want {
		t.Errorf("trade line = %q, want %q", got, want)
	}
}

func TestDisplay_RecordLineIsFixedWidth(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf)

	d.Record(testRecord())
	first := buf.Len()

	buf.Reset()
	short := testRecord()
	short.Position.PositionValueUSD = 1
	short.Position.UnrealizedPnl = 0
	d.Record(short)

	if buf.Len() != first {
		t.Errorf("record lines should be fixed width: %d vs %d", buf.Len(), first)
	}
}
