package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"whale-tracker/internal/domain"
	"whale-tracker/internal/storage"
)

// WhaleRecordStore implements storage.WhaleRecordStore using PostgreSQL.
type WhaleRecordStore struct {
	pool *Pool
}

// NewWhaleRecordStore creates a new WhaleRecordStore.
func NewWhaleRecordStore(pool *Pool) *WhaleRecordStore {
	return &WhaleRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WhaleRecordStore = (*WhaleRecordStore)(nil)

// EnsureSchema creates the whale_records table if it does not exist.
func (s *WhaleRecordStore) EnsureSchema(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS whale_records (
			record_id         UUID PRIMARY KEY,
			address           TEXT NOT NULL,
			coin              TEXT NOT NULL,
			side              TEXT NOT NULL,
			position_usd      DOUBLE PRECISION NOT NULL,
			position_coin     DOUBLE PRECISION NOT NULL,
			entry_price       DOUBLE PRECISION NOT NULL,
			liquidation_price DOUBLE PRECISION NOT NULL,
			margin_used       DOUBLE PRECISION NOT NULL,
			unrealized_pnl    DOUBLE PRECISION NOT NULL,
			leverage          DOUBLE PRECISION NOT NULL,
			leverage_type     TEXT NOT NULL,
			trade_price       DOUBLE PRECISION NOT NULL,
			trade_time_ms     BIGINT NOT NULL,
			trade_timestamp   TEXT NOT NULL
		)
	`
	if _, err := s.pool.Exec(ctx, table); err != nil {
		return fmt.Errorf("ensure whale_records table: %w", err)
	}

	index := `
		CREATE INDEX IF NOT EXISTS whale_records_coin_time_idx
			ON whale_records (coin, trade_time_ms)
	`
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("ensure whale_records index: %w", err)
	}
	return nil
}

// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
func (s *WhaleRecordStore) Insert(ctx context.Context, r *domain.WhaleRecord) error {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO whale_records (
			record_id, address, coin, side,
			position_usd, position_coin, entry_price, liquidation_price,
			margin_used, unrealized_pnl, leverage, leverage_type,
			trade_price, trade_time_ms, trade_timestamp
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RecordID, r.Address, r.Coin, r.Side,
		r.Position.PositionValueUSD, r.Position.PositionSizeCoin,
		r.Position.EntryPrice, r.Position.LiquidationPrice,
		r.Position.MarginUsed, r.Position.UnrealizedPnl,
		r.Position.Leverage, r.Position.LeverageType,
		r.TradePrice, r.TradeTimeMillis, r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert whale record: %w", err)
	}
	return nil
}

// GetByCoin retrieves all records for a coin, ordered by trade time ASC.
func (s *WhaleRecordStore) GetByCoin(ctx context.Context, coin string) ([]*domain.WhaleRecord, error) {
	query := selectColumns + ` WHERE coin = $1 ORDER BY trade_time_ms ASC`

	rows, err := s.pool.Query(ctx, query, coin)
	if err != nil {
		return nil, fmt.Errorf("query whale records by coin: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetByTimeRange retrieves records with trade time within [start, end] (inclusive).
func (s *WhaleRecordStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.WhaleRecord, error) {
	query := selectColumns + ` WHERE trade_time_ms >= $1 AND trade_time_ms <= $2 ORDER BY trade_time_ms ASC`

	rows, err := s.pool.Query(ctx, query, start, end)
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

func scanRecords(rows pgx.Rows) ([]*domain.WhaleRecord, error) {
	var out []*domain.WhaleRecord
	for rows.Next() {
		var r domain.WhaleRecord
		err := rows.Scan(
			&r.RecordID, &r.Address, &r.Coin, &r.Side,
			&r.Position.PositionValueUSD, &r.Position.PositionSizeCoin,
			&r.Position.EntryPrice, &r.Position.LiquidationPrice,
			&r.Position.MarginUsed, &r.Position.UnrealizedPnl,
			&r.Position.Leverage, &r.Position.LeverageType,
			&r.TradePrice, &r.TradeTimeMillis, &r.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan whale record: %w", err)
		}
		r.Position.Account = r.Address
		r.Position.Coin = r.Coin
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whale records: %w", err)
	}
	return out, nil
}
