// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ingest loads the public clinical notes corpus into the notes table.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage"
)

// DefaultChunkSize is the number of rows inserted per transaction.
const DefaultChunkSize = 3000

// Report summarizes an ingestion run.
type Report struct {
	// Rows is the number of rows read from the source.
	Rows int

	// Inserted is the number of rows that were new to the table.
	Inserted int64

	// Chunks is the number of committed chunks.
	Chunks  int
	Elapsed time.Duration
}

// Skipped returns the number of rows whose id was already present.
func (r *Report) Skipped() int64 {
	return int64(r.Rows) - r.Inserted
}

// Ingestor copies rows from a RowSource into a NoteWriter in chunks.
type Ingestor struct {
	writer    storage.NoteWriter
	chunkSize int
	logger    *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor) error

// WithChunkSize sets rows per transaction.
// Default is DefaultChunkSize.
func WithChunkSize(size int) Option {
	return func(i *Ingestor) error {
		if size < 1 {
			return ErrInvalidChunkSize
		}
		i.chunkSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingestor) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// NewIngestor creates an ingestor writing to writer.
func NewIngestor(writer storage.NoteWriter, opts ...Option) (*Ingestor, error) {
	if writer == nil {
		return nil, ErrWriterRequired
	}
	i := &Ingestor{
		writer:    writer,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	i.logger = i.logger.With("component", "ingestor")
	return i, nil
}

// Ingest creates the notes table if needed and inserts every row of source.
// Rows whose id already exists are left untouched. Each chunk commits on its
// own; a failing chunk is rolled back and stops the run, leaving earlier
// chunks in place. Re-running the same source is safe.
func (i *Ingestor) Ingest(ctx context.Context, source RowSource) (*Report, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	started := time.Now()

	if err := i.writer.EnsureTable(ctx); err != nil {
		return nil, err
	}
	i.logger.Info("notes table created/verified", "table", core.NotesTable)

	report := &Report{}
	chunk := make([]core.DatasetRow, 0, i.chunkSize)

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		inserted, err := i.writer.InsertNotes(ctx, chunk)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", report.Chunks+1, err)
		}
		report.Chunks++
		report.Inserted += inserted
		i.logger.Info("inserted chunk", "chunk", report.Chunks, "rows", len(chunk), "new", inserted)
		chunk = chunk[:0]
		return nil
	}

	err := source.ForEachRow(ctx, func(row core.DatasetRow) error {
		report.Rows++
		chunk = append(chunk, row)
		if len(chunk) >= i.chunkSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	report.Elapsed = time.Since(started)
	if err != nil {
		i.logger.Error("ingestion failed", "err", err)
		return report, err
	}

	i.logger.Info("dataset ingested", "rows", report.Rows, "inserted", report.Inserted,
		"elapsed", report.Elapsed.Round(time.Millisecond))
	return report, nil
}
