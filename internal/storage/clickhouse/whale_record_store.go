package clickhouse

import (
	"context"
	"fmt"

	"whale-tracker/internal/domain"
	"whale-tracker/internal/storage"
)

// WhaleRecordStore implements storage.WhaleRecordStore using ClickHouse.
// ClickHouse has no unique constraints, so Insert never reports
// ErrDuplicateKey; record_id dedup is left to the table engine.
type WhaleRecordStore struct {
	conn *Conn
}

// NewWhaleRecordStore creates a new WhaleRecordStore.
func NewWhaleRecordStore(conn *Conn) *WhaleRecordStore {
	return &WhaleRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.WhaleRecordStore = (*WhaleRecordStore)(nil)

// EnsureSchema creates the whale_records table if it does not exist.
func (s *WhaleRecordStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS whale_records (
			record_id         String,
			address           String,
			coin              String,
			side              String,
			position_usd      Float64,
			position_coin     Float64,
			entry_price       Float64,
			liquidation_price Float64,
			margin_used       Float64,
			unrealized_pnl    Float64,
			leverage          Float64,
			leverage_type     String,
			trade_price       Float64,
			trade_time_ms     UInt64,
			trade_timestamp   String
		) ENGINE = ReplacingMergeTree
		ORDER BY (coin, trade_time_ms, record_id)
	`
	if err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure whale_records schema: %w", err)
	}
	return nil
}

// Insert adds a new record.
func (s *WhaleRecordStore) Insert(ctx context.Context, r *domain.WhaleRecord) error {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO whale_records (
			record_id, address, coin, side,
			position_usd, position_coin, entry_price, liquidation_price,
			margin_used, unrealized_pnl, leverage, leverage_type,
			trade_price, trade_time_ms, trade_timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.RecordID, r.Address, r.Coin, r.Side,
		r.Position.PositionValueUSD, r.Position.PositionSizeCoin,
		r.Position.EntryPrice, r.Position.LiquidationPrice,
		r.Position.MarginUsed, r.Position.UnrealizedPnl,
		r.Position.Leverage, r.Position.LeverageType,
		r.TradePrice, uint64(r.TradeTimeMillis), r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByCoin retrieves all records for a coin, ordered by trade time ASC.
func (s *WhaleRecordStore) GetByCoin(ctx context.Context, coin string) ([]*domain.WhaleRecord, error) {
	query := selectColumns + ` WHERE coin = ? ORDER BY trade_time_ms ASC`

	rows, err := s.conn.Query(ctx, query, coin)
	if err != nil {
		return nil, fmt.Errorf("query whale records by coin: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetByTimeRange retrieves records with trade time within [start, end] (inclusive).
func (s *WhaleRecordStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.WhaleRecord, error) {
	query := selectColumns + ` WHERE trade_time_ms >= ? AND trade_time_ms <= ? ORDER BY trade_time_ms ASC`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query whale records by time range: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

const selectColumns = `
	SELECT record_id, address, coin, side,
		position_usd, position_coin, entry_price, liquidation_price,
		margin_used, unrealized_pnl, leverage, leverage_type,
		trade_price, trade_time_ms, trade_timestamp
	FROM whale_records
`

// rowScanner matches the subset of driver.Rows used by scanRecords.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) ([]*domain.WhaleRecord, error) {
	var out []*domain.WhaleRecord
	for rows.Next() {
		var r domain.WhaleRecord
		var tradeTime uint64
		err := rows.Scan(
			&r.RecordID, &r.Address, &r.Coin, &r.Side,
			&r.Position.PositionValueUSD, &r.Position.PositionSizeCoin,
			&r.Position.EntryPrice, &r.Position.LiquidationPrice,
			&r.Position.MarginUsed, &r.Position.UnrealizedPnl,
			&r.Position.Leverage, &r.Position.LeverageType,
			&r.TradePrice, &tradeTime, &r.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan whale record: %w", err)
		}
		r.TradeTimeMillis = int64(tradeTime)
		r.Position.Account = r.Address
		r.Position.Coin = r.Coin
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whale records: %w", err)
	}
	return out, nil
}
