package sink

import (
	"context"
	"errors"
	"log"

	"whale-tracker/internal/domain"
	"whale-tracker/internal/storage"
)

// Sink is the output boundary of the pipeline. Emit appends the record to
// the durable log, mirrors it to the live display and to any configured
// stores, and returns before the next record is processed.
type Sink struct {
	csv     *CSVLog
	display *Display
	stores  []storage.WhaleRecordStore
	logger  *log.Logger
}

// New creates a Sink. stores may be empty; display may be nil.
func New(csv *CSVLog, display *Display, stores []storage.WhaleRecordStore, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{csv: csv, display: display, stores: stores, logger: logger}
}

// Emit writes one record to every output. The durable append happens first
// and its failure is returned as *PersistError — the one error the caller
// must not swallow. Store mirror failures are logged and swallowed; the CSV
// log already holds the durable copy.
func (s *Sink) Emit(ctx context.Context, rec domain.WhaleRecord) error {
	if err := s.csv.Append(rec); err != nil {
		return err
	}

	if s.display != nil {
		s.display.Record(rec)
	}

	for _, st := range s.stores {
		if err := st.Insert(ctx, &rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			s.logger.Printf("[sink] store mirror insert %s/%s: %v", rec.Address, rec.Coin, err)
		}
	}
	return nil
}
