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


// Package clinicalner wires the clinical note NER pipeline together.
//
// A System owns the database connection, the optional run-state store and
// the extraction model, and hands out the pipeline stages configured from a
// single Config:
//
//	sys, err := clinicalner.NewSystem(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer sys.Close()
//
//	proc, err := sys.NewProcessor(os.Stderr, false)
//	report, err := proc.Run(ctx)
package clinicalner

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/clinicalner/ai"
	"github.com/poiesic/clinicalner/ai/openai"
	"github.com/poiesic/clinicalner/corpus"
	"github.com/poiesic/clinicalner/ingest"
	"github.com/poiesic/clinicalner/query"
	"github.com/poiesic/clinicalner/reconcile"
	"github.com/poiesic/clinicalner/storage"
	"github.com/poiesic/clinicalner/storage/badger"
	"github.com/poiesic/clinicalner/storage/postgres"
	"github.com/poiesic/clinicalner/transform"
)

// System wires the notes database, local run state and extraction model
// together and hands out the pipeline stages that use them.
type System struct {
	config      *Config
	db          *sql.DB
	ownsDB      bool
	store       *postgres.Store
	backend     *badger.Backend
	checkpoints storage.CheckpointRepository
	ledger      storage.LedgerRepository
	provider    ai.AIProvider
	logger      *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	db       *sql.DB
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithDB uses an already open database instead of connecting with the
// configured DSN. The caller keeps ownership of db.
func WithDB(db *sql.DB) SystemOption {
	return func(o *systemOptions) {
		o.db = db
	}
}

// WithProvider uses provider for entity extraction instead of the
// configured OpenAI-compatible service.
func WithProvider(provider ai.AIProvider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) SystemOption {
	return func(o *systemOptions) {
		o.logger = logger
	}
}

// NewSystem connects to the database and opens the state store. The
// extraction model is created on first use, so commands that do not extract
// never need it. A nil config uses DefaultConfig.
func NewSystem(ctx context.Context, config *Config, opts ...SystemOption) (*System, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := &systemOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	sys := &System{
		config:   config,
		db:       options.db,
		provider: options.provider,
		logger:   options.logger,
	}

	if sys.db == nil {
		db, err := postgres.Open(ctx, &config.Database)
		if err != nil {
			return nil, err
		}
		sys.db = db
		sys.ownsDB = true
	}

	store, err := postgres.NewStore(sys.db,
		postgres.WithTable(config.Database.Table),
		postgres.WithLogger(sys.logger))
	if err != nil {
		sys.Close()
		return nil, err
	}
	sys.store = store

	if config.StateDir != "" {
		backend, err := badger.OpenBackend(config.StateDir, false)
		if err != nil {
			sys.Close()
			return nil, err
		}
		sys.backend = backend
		sys.checkpoints = badger.NewCheckpointRepository(backend)
		sys.ledger = badger.NewLedgerRepository(backend)
	}

	return sys, nil
}

// Close releases the model, the state store and the database connection.
func (s *System) Close() error {
	var errs []error
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing state store", "err", err)
			errs = append(errs, err)
		}
	}
	if s.ownsDB && s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("error closing database", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the resolved configuration.
func (s *System) Config() *Config {
	return s.config
}

// Store returns the Postgres notes store.
func (s *System) Store() *postgres.Store {
	return s.store
}

// CheckpointRepository returns the run checkpoint store, or nil without a state directory.
func (s *System) CheckpointRepository() storage.CheckpointRepository {
	return s.checkpoints
}

// LedgerRepository returns the applied-artifact ledger, or nil without a state directory.
func (s *System) LedgerRepository() storage.LedgerRepository {
	return s.ledger
}

// NewIngestor returns an ingestor writing to the notes table.
func (s *System) NewIngestor(opts ...ingest.Option) (*ingest.Ingestor, error) {
	opts = append([]ingest.Option{
		ingest.WithChunkSize(s.config.Ingest.ChunkSize),
		ingest.WithLogger(s.logger),
	}, opts...)
	return ingest.NewIngestor(s.store, opts...)
}

// NewTransformer returns a transformer backed by the configured model.
func (s *System) NewTransformer() (*transform.Transformer, error) {
	if s.provider == nil {
		cfg := s.config.AI
		provider, err := openai.NewProvider(&cfg)
		if err != nil {
			return nil, err
		}
		s.provider = provider
	}

	extractor, err := transform.NewExtractor(s.provider.EntityExtractor(),
		transform.WithThreshold(s.config.AI.Threshold),
		transform.WithExtractorLogger(s.logger))
	if err != nil {
		return nil, err
	}
	return transform.NewTransformer(extractor)
}

// NewProcessor returns a corpus processor reading the notes table. Progress
// lines go to progress; resume continues after the last checkpoint.
func (s *System) NewProcessor(progress io.Writer, resume bool, opts ...corpus.Option) (*corpus.Processor, error) {
	transformer, err := s.NewTransformer()
	if err != nil {
		return nil, err
	}

	cfg := &corpus.Config{
		OutputDir:      s.config.Extract.OutputDir,
		BatchSize:      s.config.Extract.BatchSize,
		ReportInterval: s.config.Extract.ReportInterval,
		Resume:         resume,
	}

	base := []corpus.Option{corpus.WithProgress(progress), corpus.WithLogger(s.logger)}
	if s.checkpoints != nil {
		base = append(base, corpus.WithCheckpoints(s.checkpoints))
	}
	return corpus.NewProcessor(s.store, transformer, cfg, append(base, opts...)...)
}

// NewReconciler returns a reconciler writing to the notes table.
// The caller must Release it.
func (s *System) NewReconciler(force bool, opts ...reconcile.Option) (*reconcile.Reconciler, error) {
	base := []reconcile.Option{reconcile.WithForce(force), reconcile.WithLogger(s.logger)}
	if s.config.Reconcile.LoadWorkers > 0 {
		base = append(base, reconcile.WithLoadWorkers(s.config.Reconcile.LoadWorkers))
	}
	if s.ledger != nil {
		base = append(base, reconcile.WithLedger(s.ledger))
	}
	return reconcile.NewReconciler(s.store, append(base, opts...)...)
}

// NewSearcher returns a searcher over the notes table.
func (s *System) NewSearcher(opts ...query.Option) (*query.Searcher, error) {
	opts = append([]query.Option{query.WithLogger(s.logger)}, opts...)
	return query.NewSearcher(s.store, opts...)
}
