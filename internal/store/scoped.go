package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
)

// ScopedEntity provides generic CRUD operations for team-partitioned domain
// types. Every key embeds the owning team's ID, so lookups and scans within
// one team can never observe another team's rows.
//
// Key layout:
//
//	{prefix}{teamID}:{id}                        primary row
//	{prefix}idx:{name}:{teamID}:{value}:{id}     lookup index entry
//
// Lookup indexes are non-unique: multiple rows may share a value (child rows
// share a parent ID, components may share a business key), so each entry's
// key carries the row ID and callers enumerate with ListByLookup.
type ScopedEntity[T any] struct {
	store   *Store
	prefix  string
	lookups []lookup[T]
}

// lookup defines a non-unique secondary index on a scoped entity.
type lookup[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewScopedEntity creates a new ScopedEntity instance for type T.
func NewScopedEntity[T any](s *Store, prefix string) *ScopedEntity[T] {
	return &ScopedEntity[T]{
		store:  s,
		prefix: prefix,
	}
}

// WithLookup adds a non-unique secondary index to the entity.
func (e *ScopedEntity[T]) WithLookup(name string, keyGen func(*T) []string) *ScopedEntity[T] {
	e.lookups = append(e.lookups, lookup[T]{
		name:   name,
		keyGen: keyGen,
	})
	return e
}

func (e *ScopedEntity[T]) key(teamID, id string) []byte {
	return []byte(e.prefix + teamID + ":" + id)
}

func (e *ScopedEntity[T]) lookupKey(name, teamID, value, id string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + teamID + ":" + value + ":" + id)
}

func (e *ScopedEntity[T]) lookupPrefix(name, teamID, value string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + teamID + ":" + value + ":")
}

// Create creates a new entity with the given ID.
// Returns ErrAlreadyExists if an entity with this ID already exists in the
// team.
func (e *ScopedEntity[T]) Create(ctx context.Context, teamID, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(e.key(teamID, id))
		if err == nil {
			return apperrors.ErrAlreadyExists
		}
		if !apperrors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		return e.write(txn, teamID, id, entity, data)
	})
}

// Upsert writes the entity whether or not a row with this ID exists.
// Existing lookup index entries are cleaned up before the new ones are
// written.
func (e *ScopedEntity[T]) Upsert(ctx context.Context, teamID, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		if err := e.clearLookups(txn, teamID, id); err != nil {
			return err
		}
		return e.write(txn, teamID, id, entity, data)
	})
}

// Get retrieves an entity by ID within a team.
// Returns ErrNotFound if the entity does not exist.
func (e *ScopedEntity[T]) Get(ctx context.Context, teamID, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.key(teamID, id))
		if apperrors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entity); err != nil {
				return fmt.Errorf("failed to unmarshal entity: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return &entity, nil
}

// Update updates an existing entity.
// Returns ErrNotFound if the entity does not exist.
func (e *ScopedEntity[T]) Update(ctx context.Context, teamID, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(e.key(teamID, id))
		if apperrors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get existing key: %w", err)
		}

		if err := e.clearLookups(txn, teamID, id); err != nil {
			return err
		}
		return e.write(txn, teamID, id, entity, data)
	})
}

// Delete deletes an entity by ID within a team.
// This operation is idempotent - it does not return an error if the entity
// does not exist.
func (e *ScopedEntity[T]) Delete(ctx context.Context, teamID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		if err := e.clearLookups(txn, teamID, id); err != nil {
			return err
		}
		if err := txn.Delete(e.key(teamID, id)); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		return nil
	})
}

// write sets the primary row and its lookup index entries.
func (e *ScopedEntity[T]) write(txn *badger.Txn, teamID, id string, entity *T, data []byte) error {
	if err := txn.Set(e.key(teamID, id), data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	for _, l := range e.lookups {
		for _, value := range l.keyGen(entity) {
			if err := txn.Set(e.lookupKey(l.name, teamID, value, id), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}

	return nil
}

// clearLookups removes all lookup entries pointing at the given row. Index
// values may have changed since the entry was written, so this scans each
// lookup namespace for the ID rather than regenerating keys from the old
// row.
func (e *ScopedEntity[T]) clearLookups(txn *badger.Txn, teamID, id string) error {
	if len(e.lookups) == 0 {
		return nil
	}

	// Read the old row; its keyGen output locates the stale entries.
	var oldEntity T
	item, err := txn.Get(e.key(teamID, id))
	if apperrors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &oldEntity)
	})
	if err != nil {
		return fmt.Errorf("failed to unmarshal old entity: %w", err)
	}

	for _, l := range e.lookups {
		for _, value := range l.keyGen(&oldEntity) {
			if err := txn.Delete(e.lookupKey(l.name, teamID, value, id)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}

	return nil
}

// ListByTeam returns an iterator over all of a team's entities.
func (e *ScopedEntity[T]) ListByTeam(ctx context.Context, teamID string) iter.Seq2[*T, error] {
	prefix := e.prefix + teamID + ":"
	return e.iterate(ctx, []byte(prefix))
}

// ListByLookup returns an iterator over the entities whose lookup index
// matches the given value within a team.
func (e *ScopedEntity[T]) ListByLookup(ctx context.Context, teamID, name, value string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		// Collect the IDs first; fetching rows inside the same iterator
		// would interleave two prefix scans in one transaction.
		var ids []string
		err := e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = e.lookupPrefix(name, teamID, value)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				err := it.Item().Value(func(val []byte) error {
					ids = append(ids, string(val))
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
			return
		}

		for _, id := range ids {
			entity, err := e.Get(ctx, teamID, id)
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue // row deleted between scans
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(entity, nil) {
				return
			}
		}
	}
}

// CountByTeam returns the number of entities a team owns.
func (e *ScopedEntity[T]) CountByTeam(ctx context.Context, teamID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := []byte(e.prefix + teamID + ":")
	count := 0
	err := e.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// iterate walks a key prefix and yields unmarshalled rows.
func (e *ScopedEntity[T]) iterate(ctx context.Context, prefix []byte) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys
				key := string(it.Item().Key())
				if strings.HasPrefix(key[len(e.prefix):], "idx:") {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&entity, nil) {
					return nil // Consumer stopped early
				}
			}

			return nil
		})
	}
}
