package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage"
)

// LedgerRepository implements storage.LedgerRepository for BadgerDB.
type LedgerRepository struct {
	backend *Backend
}

var _ storage.LedgerRepository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(backend *Backend) *LedgerRepository {
	return &LedgerRepository{backend: backend}
}

// RecordApplied stores entry, replacing any previous record for the same artifact.
func (r *LedgerRepository) RecordApplied(ctx context.Context, entry *core.LedgerEntry) error {
	if entry.Artifact == "" {
		return storage.ErrInvalidQuery
	}
	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = time.Now().UTC()
	}

	return r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		value, err := storage.MarshalLedgerEntry(entry)
		if err != nil {
			return err
		}
		if err := tx.Set(makeLedgerKey(entry.Artifact), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LookupApplied returns the entry for artifact, or nil, nil if none exists.
func (r *LedgerRepository) LookupApplied(ctx context.Context, artifact string) (*core.LedgerEntry, error) {
	var entry *core.LedgerEntry
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		val, err := getValue(tx, makeLedgerKey(artifact))
		if err != nil {
			return err
		}
		entry, err = storage.UnmarshalLedgerEntry(val)
		return err
	}, false)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// ListApplied returns all entries ordered by artifact name.
func (r *LedgerRepository) ListApplied(ctx context.Context) ([]*core.LedgerEntry, error) {
	var entries []*core.LedgerEntry
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = ledgerScanPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			entry, err := storage.UnmarshalLedgerEntry(val)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
