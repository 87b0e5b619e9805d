package storage

import (
	"context"

	"github.com/poiesic/clinicalner/core"
)

// NoteSource streams raw notes in ascending id order.
// Implementations must be thread-safe and support concurrent access.
type NoteSource interface {
	// CountNotes returns the number of notes with id > afterID.
	CountNotes(ctx context.Context, afterID int64) (int, error)

	// ForEachNote calls fn for every note with id > afterID, ascending by id.
	// Iteration stops at the first error returned by fn, which is returned.
	ForEachNote(ctx context.Context, afterID int64, fn func(note core.RawNote) error) error
}

// NoteWriter loads raw corpus rows into the notes table.
type NoteWriter interface {
	// EnsureTable creates the notes table if it does not exist.
	EnsureTable(ctx context.Context) error

	// InsertNotes inserts rows in one transaction, skipping ids that already exist.
	// Returns the number of rows actually inserted.
	InsertNotes(ctx context.Context, rows []core.DatasetRow) (int64, error)
}

// SchemaReport describes the outcome of a schema evolution pass.
type SchemaReport struct {
	// Ensured lists columns that were created or already present with the declared type.
	Ensured []string

	// Warnings holds one entry per column that could not be ensured or has a conflicting type.
	Warnings []error
}

// OK reports whether every column was ensured.
func (r *SchemaReport) OK() bool {
	return len(r.Warnings) == 0
}

// ApplyResult counts the outcome of applying one batch of documents.
type ApplyResult struct {
	// Updated is the number of documents that matched an existing note.
	Updated int

	// Unmatched holds the ids of documents with no matching note.
	Unmatched []int64
}

// MetadataStore writes derived metadata onto the notes table.
type MetadataStore interface {
	// EnsureColumns adds any missing metadata columns.
	// Column failures are reported as warnings; only an unreachable store is an error.
	EnsureColumns(ctx context.Context, columns core.SchemaColumnSet) (*SchemaReport, error)

	// ApplyBatch overwrites the metadata columns of every document's note in one
	// transaction. Any database error rolls the whole batch back.
	ApplyBatch(ctx context.Context, docs []*core.ProcessedDocument) (*ApplyResult, error)
}

// NoteQuery reads notes together with their derived metadata.
type NoteQuery interface {
	// Preview returns up to limit notes ordered by id.
	Preview(ctx context.Context, limit int) ([]*core.NoteMetadata, error)

	// FindByEntity returns notes whose label column contains term, case-insensitively.
	FindByEntity(ctx context.Context, label, term string, limit int) ([]*core.NoteMetadata, error)
}

// CheckpointRepository persists processor progress for resumable runs.
type CheckpointRepository interface {
	// SaveCheckpoint stores checkpoint, stamping UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint for processorType, or nil, nil if none exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for processorType. Missing checkpoints are not an error.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}

// LedgerRepository records which artifacts have been applied to the store.
type LedgerRepository interface {
	// RecordApplied stores entry, stamping AppliedAt if it is zero.
	RecordApplied(ctx context.Context, entry *core.LedgerEntry) error

	// LookupApplied returns the entry for artifact, or nil, nil if it was never applied.
	LookupApplied(ctx context.Context, artifact string) (*core.LedgerEntry, error)

	// ListApplied returns all entries ordered by artifact name.
	ListApplied(ctx context.Context) ([]*core.LedgerEntry, error)
}
