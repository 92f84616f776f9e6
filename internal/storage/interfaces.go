// Package storage defines the optional durable mirrors of the whale log.
package storage

import (
	"context"

	"whale-tracker/internal/domain"
)

// WhaleRecordStore provides access to whale_records storage. The CSV log is
// the primary durable copy; stores are best-effort mirrors.
type WhaleRecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
	Insert(ctx context.Context, r *domain.WhaleRecord) error

	// GetByCoin retrieves all records for a coin, ordered by trade time ASC.
	GetByCoin(ctx context.Context, coin string) ([]*domain.WhaleRecord, error)

	// GetByTimeRange retrieves records with trade time within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.WhaleRecord, error)
}
