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


package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/poiesic/clinicalner/artifact"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage"
	"github.com/poiesic/clinicalner/transform"
)

// ProcessorType identifies extraction checkpoints.
const ProcessorType = "extract"

// Config holds configuration for a processing run.
type Config struct {
	// OutputDir receives the batch artifacts.
	OutputDir string

	// BatchSize is the number of documents per artifact.
	BatchSize int

	// ReportInterval is how often to report progress (number of notes).
	ReportInterval int

	// Resume continues after the last checkpointed note instead of the first note.
	// Ignored without a checkpoint repository.
	Resume bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:      "processed_medical_notes",
		BatchSize:      artifact.DefaultBatchSize,
		ReportInterval: 100,
	}
}

// Processor drives every note of the corpus through the transformer and into batch artifacts.
type Processor struct {
	source      storage.NoteSource
	transformer *transform.Transformer
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	logger      *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor) error

// WithCheckpoints saves the last flushed note id after every artifact.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(p *Processor) error {
		p.checkpoints = repo
		return nil
	}
}

// WithProgress sets where progress lines are written. Default discards them.
func WithProgress(w io.Writer) Option {
	return func(p *Processor) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewProcessor creates a processor. A nil config uses DefaultConfig.
func NewProcessor(source storage.NoteSource, transformer *transform.Transformer, config *Config, opts ...Option) (*Processor, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if transformer == nil {
		return nil, ErrTransformerRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	p := &Processor{
		source:      source,
		transformer: transformer,
		config:      config,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "corpus-processor")
	return p, nil
}

// Run processes the corpus once.
//
// A note that cannot be transformed is recorded as a failed Result and
// skipped. Buffered documents are flushed at the end of the stream and also
// when ctx is cancelled, before ctx.Err() is returned. Errors writing
// artifacts stop the run.
func (p *Processor) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{StartAfter: math.MinInt64}

	if p.config.Resume && p.checkpoints != nil {
		checkpoint, err := p.checkpoints.LoadCheckpoint(ctx, ProcessorType)
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if checkpoint != nil {
			report.StartAfter = checkpoint.LastID
			p.logger.Info("resuming after checkpoint", "last_id", checkpoint.LastID)
		}
	}

	total, err := p.source.CountNotes(ctx, report.StartAfter)
	if err != nil {
		return nil, err
	}
	report.Total = total

	writer, err := artifact.NewWriter(p.config.OutputDir,
		artifact.WithBatchSize(p.config.BatchSize),
		artifact.WithFlushHook(p.saveCheckpoint(ctx)),
		artifact.WithLogger(p.logger),
	)
	if err != nil {
		return nil, err
	}

	p.logger.Info("processing corpus", "notes", total, "batch_size", p.config.BatchSize, "output", p.config.OutputDir, "run", writer.RunID())

	tracker := NewProgressTracker(p.progress, total, p.config.ReportInterval)
	tracker.Start()

	runErr := p.source.ForEachNote(ctx, report.StartAfter, func(note core.RawNote) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := p.transformer.Transform(ctx, note)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.logger.Warn("skipping note", "id", note.ID, "err", err)
			report.Results = append(report.Results, Result{NoteID: note.ID, Err: err})
			tracker.Record(false)
			return nil
		}

		if err := writer.Append(doc); err != nil {
			return fmt.Errorf("failed to buffer note %d: %w", note.ID, err)
		}
		report.Results = append(report.Results, Result{NoteID: note.ID})
		tracker.Record(true)
		return nil
	})

	// Flush whatever is buffered, including on cancellation. Close runs
	// independently of ctx so a cancelled run still persists its work.
	closeErr := writer.Close()
	tracker.Finish()

	report.Artifacts = writer.Written()
	report.ExtractionFailures = p.transformer.Extractor().Failures()
	report.Elapsed = time.Since(started)

	if runErr != nil || closeErr != nil {
		return report, errors.Join(runErr, closeErr)
	}

	p.logger.Info("corpus processed",
		"notes", report.Processed(),
		"failed", len(report.Failures()),
		"artifacts", len(report.Artifacts),
		"extraction_failures", report.ExtractionFailures,
		"elapsed", report.Elapsed.Round(time.Millisecond))
	return report, nil
}

// saveCheckpoint returns a flush hook recording the last flushed note.
func (p *Processor) saveCheckpoint(ctx context.Context) artifact.FlushHook {
	return func(info artifact.ArtifactInfo) error {
		if p.checkpoints == nil {
			return nil
		}
		// The final flush may run after ctx is cancelled.
		saveCtx := context.WithoutCancel(ctx)
		return p.checkpoints.SaveCheckpoint(saveCtx, &core.Checkpoint{
			ProcessorType: ProcessorType,
			LastID:        info.LastID,
		})
	}
}
