// Package enrichment resolves participant accounts of qualifying trades to
// position snapshots, with bounded concurrency against the account-state
// service.
package enrichment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"whale-tracker/internal/domain"
	"whale-tracker/internal/hyperliquid"
	"whale-tracker/internal/observability"
)

// Client fetches an account's open positions from the account-state service.
type Client interface {
	// Fetch returns every open position of the account. A failed lookup is
	// non-fatal to the caller and is not retried here.
	Fetch(ctx context.Context, account string) (domain.AccountPositions, error)
}

// InfoLookup implements Client against the Hyperliquid info endpoint.
type InfoLookup struct {
	info    *hyperliquid.InfoClient
	metrics *observability.Metrics
}

// NewInfoLookup creates an InfoLookup backed by the given client. metrics
// may be nil.
func NewInfoLookup(info *hyperliquid.InfoClient, metrics *observability.Metrics) *InfoLookup {
	return &InfoLookup{info: info, metrics: metrics}
}

// Compile-time interface check.
var _ Client = (*InfoLookup)(nil)

// Fetch queries the clearinghouse state and maps every asset position.
func (l *InfoLookup) Fetch(ctx context.Context, account string) (domain.AccountPositions, error) {
	if l.metrics != nil {
		l.metrics.InFlightLookups.Inc()
		start := time.Now()
		defer func() {
			l.metrics.InFlightLookups.Dec()
			l.metrics.LookupLatency.Observe(time.Since(start).Seconds())
		}()
	}

	state, err := l.info.UserState(ctx, account)
	if err != nil {
		return domain.AccountPositions{}, fmt.Errorf("user state %s: %w", account, err)
	}

	out := domain.AccountPositions{Account: account}
	for _, ap := range state.AssetPositions {
		out.Positions = append(out.Positions, snapshotFromPosition(account, ap.Position))
	}
	return out, nil
}

// snapshotFromPosition maps one clearinghouse position onto a snapshot.
// Absent or malformed numeric fields default to zero, the leverage type to
// "unknown".
func snapshotFromPosition(account string, p hyperliquid.Position) domain.PositionSnapshot {
	levType := p.Leverage.Type
	if levType == "" {
		levType = domain.LeverageTypeUnknown
	}

	return domain.PositionSnapshot{
		Account:          account,
		Coin:             p.Coin,
		PositionValueUSD: safeFloat(p.PositionValue),
		PositionSizeCoin: safeFloat(p.Szi),
		EntryPrice:       safeFloat(p.EntryPx),
		LiquidationPrice: safeFloat(p.LiquidationPx),
		MarginUsed:       safeFloat(p.MarginUsed),
		UnrealizedPnl:    safeFloat(p.UnrealizedPnl),
		Leverage:         p.Leverage.Value,
		LeverageType:     levType,
	}
}

// safeFloat parses a numeric string, defaulting to 0.
func safeFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
