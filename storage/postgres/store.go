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


package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage"
)

const defaultPageSize = 500

// Store implements the relational storage interfaces on a clinical notes table.
type Store struct {
	db       *sql.DB
	table    string
	pageSize int
	logger   *slog.Logger
}

var (
	_ storage.NoteSource    = (*Store)(nil)
	_ storage.NoteWriter    = (*Store)(nil)
	_ storage.MetadataStore = (*Store)(nil)
	_ storage.NoteQuery     = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store) error

// WithTable sets the notes table name. Default is clinical_notes.
func WithTable(table string) Option {
	return func(s *Store) error {
		if table == "" {
			return fmt.Errorf("%w: empty table name", storage.ErrInvalidQuery)
		}
		s.table = table
		return nil
	}
}

// WithPageSize sets how many notes ForEachNote fetches per query.
func WithPageSize(size int) Option {
	return func(s *Store) error {
		if size < 1 {
			size = 1
		}
		s.pageSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg *Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return db, nil
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database handle is nil", storage.ErrUnavailable)
	}
	s := &Store{
		db:       db,
		table:    core.NotesTable,
		pageSize: defaultPageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "postgres-store", "table", s.table)
	return s, nil
}

// quotedTable returns the table name quoted for use in SQL.
func (s *Store) quotedTable() string {
	return pq.QuoteIdentifier(s.table)
}
