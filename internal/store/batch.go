package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BatchWriter provides efficient bulk write operations using BadgerDB's
// WriteBatch. Import uses it to upsert rows in configurable chunks so one
// failing chunk does not abort the rest of the run.
type BatchWriter struct {
	store     *Store
	batch     *badger.WriteBatch
	maxSize   int
	count     int
	autoFlush bool
}

// NewBatchWriter creates a new batch writer that will auto-flush when
// maxSize is reached.
func (s *Store) NewBatchWriter(maxSize int) *BatchWriter {
	return &BatchWriter{
		store:     s,
		batch:     s.db.NewWriteBatch(),
		maxSize:   maxSize,
		autoFlush: true,
	}
}

// BatchUpsert adds an upsert of a team-scoped entity to the batch.
// If autoFlush is enabled and the batch reaches maxSize, it flushes
// automatically. WriteBatch cannot read, so stale lookup entries from a
// previous row version are not cleaned up here; import only batch-writes
// rows it has either freshly minted IDs for or fully replaces.
func BatchUpsert[T any](b *BatchWriter, e *ScopedEntity[T], teamID, id string, entity *T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	if err := b.batch.Set(e.key(teamID, id), data); err != nil {
		return fmt.Errorf("batch set entity: %w", err)
	}

	for _, l := range e.lookups {
		for _, value := range l.keyGen(entity) {
			if err := b.batch.Set(e.lookupKey(l.name, teamID, value, id), []byte(id)); err != nil {
				return fmt.Errorf("batch set index key: %w", err)
			}
		}
	}

	b.count++

	// Auto-flush if batch is full
	if b.autoFlush && b.count >= b.maxSize {
		if err := b.Flush(); err != nil {
			return fmt.Errorf("auto flush: %w", err)
		}
	}

	return nil
}

// Flush commits all pending writes in the batch.
func (b *BatchWriter) Flush() error {
	if b.count == 0 {
		return nil // Nothing to flush
	}

	if err := b.batch.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}

	if b.store.logger != nil {
		b.store.logger.LogAttrs(context.Background(), slog.LevelInfo, "batch flushed",
			slog.Int("count", b.count),
		)
	}

	// Reset for next batch
	b.count = 0
	b.batch = b.store.db.NewWriteBatch()

	return nil
}

// Cancel discards all pending writes in the batch.
func (b *BatchWriter) Cancel() {
	b.batch.Cancel()
	b.count = 0
}

// Count returns the number of operations in the current batch.
func (b *BatchWriter) Count() int {
	return b.count
}
