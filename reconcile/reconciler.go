package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/clinicalner/artifact"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage"
)

// Reconciler applies artifacts to a MetadataStore.
type Reconciler struct {
	store   storage.MetadataStore
	ledger  storage.LedgerRepository
	pool    *ants.Pool
	workers int
	force   bool
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler) error

// WithLoadWorkers sets how many artifacts are decoded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithLoadWorkers(size int) Option {
	return func(r *Reconciler) error {
		if size < 1 {
			size = 1
		}
		if r.pool != nil {
			r.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		r.pool = pool
		r.workers = size
		return nil
	}
}

// WithLedger records applied artifacts and skips those already applied
// with the same digest.
func WithLedger(ledger storage.LedgerRepository) Option {
	return func(r *Reconciler) error {
		r.ledger = ledger
		return nil
	}
}

// WithForce applies every artifact even if the ledger says it was applied.
func WithForce(force bool) Option {
	return func(r *Reconciler) error {
		r.force = force
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReconciler creates a reconciler writing to store.
// Call Release when done.
func NewReconciler(store storage.MetadataStore, opts ...Option) (*Reconciler, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	r := &Reconciler{
		store:   store,
		pool:    pool,
		workers: workers,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.Release()
			return nil, optErr
		}
	}
	r.logger = r.logger.With("component", "reconciler")
	return r, nil
}

// Release releases the decode worker pool.
// The reconciler should not be used after calling Release.
func (r *Reconciler) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}

// Reconcile applies every artifact in dir.
//
// The returned report is non-nil whenever the schema step succeeded, including
// when a later database error aborts the run.
func (r *Reconciler) Reconcile(ctx context.Context, dir string) (*Report, error) {
	started := time.Now()

	paths, err := artifact.List(dir)
	if err != nil {
		return nil, err
	}

	schema, err := r.store.EnsureColumns(ctx, core.MetadataColumns())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaUnavailable, err)
	}
	for _, w := range schema.Warnings {
		r.logger.Warn("metadata column not ensured", "err", w)
	}

	report := &Report{Schema: schema}
	r.logger.Info("reconciling artifacts", "dir", dir, "artifacts", len(paths))

	loader := newPrefetcher(r.pool, paths, r.workers*2)
	for i := range paths {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(started)
			return report, err
		}

		name, batch, loadErr := loader.take(i)
		result, applyErr := r.applyOne(ctx, name, batch, loadErr)
		report.Artifacts = append(report.Artifacts, result)
		if applyErr != nil {
			report.Elapsed = time.Since(started)
			return report, applyErr
		}
	}

	report.Elapsed = time.Since(started)
	r.logger.Info("reconciliation complete",
		"applied", report.Count(StatusApplied),
		"already_applied", report.Count(StatusAlreadyApplied),
		"rejected", report.Count(StatusRejected),
		"updated", report.Updated(),
		"unmatched", report.Unmatched(),
		"elapsed", report.Elapsed.Round(time.Millisecond))
	return report, nil
}

// applyOne validates and applies a single decoded artifact. Only store
// failures are returned as errors.
func (r *Reconciler) applyOne(ctx context.Context, name string, batch *artifact.Batch, loadErr error) (ArtifactResult, error) {
	if loadErr != nil {
		r.logger.Warn("skipping unreadable artifact", "artifact", name, "err", loadErr)
		return ArtifactResult{Name: name, Status: StatusRejected, Err: loadErr}, nil
	}

	result := ArtifactResult{
		Name:      batch.Name,
		Digest:    batch.Digest,
		Legacy:    batch.Legacy,
		Documents: len(batch.Documents),
	}

	if err := validateBatch(batch); err != nil {
		r.logger.Warn("skipping invalid artifact", "artifact", batch.Name, "err", err)
		result.Status = StatusRejected
		result.Err = err
		return result, nil
	}

	if r.ledger != nil && !r.force {
		entry, err := r.ledger.LookupApplied(ctx, batch.Name)
		if err != nil {
			r.logger.Warn("ledger lookup failed, applying anyway", "artifact", batch.Name, "err", err)
		} else if entry != nil && entry.Digest == batch.Digest {
			r.logger.Debug("artifact already applied", "artifact", batch.Name)
			result.Status = StatusAlreadyApplied
			return result, nil
		}
	}

	applied, err := r.store.ApplyBatch(ctx, batch.Documents)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		r.logger.Error("artifact rolled back", "artifact", batch.Name, "err", err)
		return result, fmt.Errorf("%w: %s: %w", ErrApplyFailed, batch.Name, err)
	}

	result.Status = StatusApplied
	result.Updated = applied.Updated
	result.Unmatched = applied.Unmatched
	if len(applied.Unmatched) > 0 {
		r.logger.Warn("documents with no matching note", "artifact", batch.Name, "count", len(applied.Unmatched))
	}
	r.logger.Debug("artifact applied", "artifact", batch.Name, "updated", applied.Updated)

	if r.ledger != nil {
		entry := &core.LedgerEntry{
			Artifact:  batch.Name,
			Digest:    batch.Digest,
			Documents: len(batch.Documents),
			AppliedAt: r.now().UTC(),
		}
		// A missing ledger entry only costs a redundant re-apply.
		if err := r.ledger.RecordApplied(ctx, entry); err != nil {
			r.logger.Warn("failed to record applied artifact", "artifact", batch.Name, "err", err)
		}
	}
	return result, nil
}

// validateBatch checks every document and reports all failures together.
func validateBatch(batch *artifact.Batch) error {
	var errs []error
	for _, doc := range batch.Documents {
		if err := core.ValidateProcessedDocument(doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
