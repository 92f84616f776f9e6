// Package memory provides in-memory store implementations for tests and
// storage-free runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"whale-tracker/internal/domain"
	"whale-tracker/internal/storage"
)

// WhaleRecordStore implements storage.WhaleRecordStore in memory.
type WhaleRecordStore struct {
	mu      sync.RWMutex
	byID    map[string]*domain.WhaleRecord
	records []*domain.WhaleRecord
}

// NewWhaleRecordStore creates an empty in-memory store.
func NewWhaleRecordStore() *WhaleRecordStore {
	return &WhaleRecordStore{
		byID: make(map[string]*domain.WhaleRecord),
	}
}

// Compile-time interface check.
var _ storage.WhaleRecordStore = (*WhaleRecordStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
func (s *WhaleRecordStore) Insert(ctx context.Context, r *domain.WhaleRecord) error {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.RecordID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *r
	s.byID[r.RecordID] = &cp
	s.records = append(s.records, &cp)
	return nil
}

// GetByCoin retrieves all records for a coin, ordered by trade time ASC.
func (s *WhaleRecordStore) GetByCoin(ctx context.Context, coin string) ([]*domain.WhaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.WhaleRecord
	for _, r := range s.records {
		if r.Coin == coin {
			cp := *r
			out = append(out, &cp)
		}
	}
	sortByTradeTime(out)
	return out, nil
}

// GetByTimeRange retrieves records with trade time within [start, end] (inclusive).
func (s *WhaleRecordStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.WhaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.WhaleRecord
	for _, r := range s.records {
		if r.TradeTimeMillis >= start && r.TradeTimeMillis <= end {
			cp := *r
			out = append(out, &cp)
		}
	}
	sortByTradeTime(out)
	return out, nil
}

func sortByTradeTime(records []*domain.WhaleRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TradeTimeMillis < records[j].TradeTimeMillis
	})
}
