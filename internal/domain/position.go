package domain

// LeverageTypeUnknown marks snapshots with no leverage information, either
// because the account has no open position in the coin or the lookup failed.
const LeverageTypeUnknown = "unknown"

// PositionSnapshot is a point-in-time read of one account's open position in
// one coin. The zero value of every numeric field means "no position".
type PositionSnapshot struct {
	Account          string
	Coin             string
	PositionValueUSD float64
	PositionSizeCoin float64 // signed size; negative is short
	EntryPrice       float64
	LiquidationPrice float64
	MarginUsed       float64
	UnrealizedPnl    float64
	Leverage         float64
	LeverageType     string // "cross" | "isolated" | "unknown"
}

// ZeroSnapshot returns the snapshot emitted when a lookup fails or the
// account has no open position in the coin.
func ZeroSnapshot(account, coin string) PositionSnapshot {
	return PositionSnapshot{
		Account:      account,
		Coin:         coin,
		LeverageType: LeverageTypeUnknown,
	}
}

// AccountPositions is the full set of an account's open positions across
// coins, as returned by the account-state service.
type AccountPositions struct {
	Account   string
	Positions []PositionSnapshot
}

// ForCoin selects the open position in coin. Positions in other coins are
// discarded; absence yields the zero snapshot.
func (a AccountPositions) ForCoin(coin string) PositionSnapshot {
	for _, p := range a.Positions {
		if p.Coin == coin {
			return p
		}
	}
	return ZeroSnapshot(a.Account, coin)
}
