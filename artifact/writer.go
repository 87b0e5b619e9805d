package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/clinicalner/core"
)

// DefaultBatchSize is the number of documents per artifact.
const DefaultBatchSize = 100

// FlushHook is called after each artifact is durably written.
type FlushHook func(info ArtifactInfo) error

// Writer accumulates processed documents and writes one artifact per batch.
// A Writer is safe for concurrent use, but documents are written in Append order.
type Writer struct {
	dir       string
	batchSize int
	runID     string
	runStart  time.Time
	now       func() time.Time
	hook      FlushHook
	logger    *slog.Logger

	mu        sync.Mutex
	pending   []*core.ProcessedDocument
	sequence  int
	written   []ArtifactInfo
	documents int
	closed    bool
}

// Option configures a Writer.
type Option func(*Writer) error

// WithBatchSize sets how many documents trigger an automatic flush.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(w *Writer) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		w.batchSize = size
		return nil
	}
}

// WithFlushHook registers fn to run after every successful flush.
// A hook error is returned from the flush that triggered it.
func WithFlushHook(fn FlushHook) Option {
	return func(w *Writer) error {
		w.hook = fn
		return nil
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(w *Writer) error {
		if id != "" {
			w.runID = id
		}
		return nil
	}
}

// WithClock overrides the time source used for names and timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) error {
		if now != nil {
			w.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWriter creates the output directory if needed and returns a Writer for a new run.
func NewWriter(dir string, opts ...Option) (*Writer, error) {
	if dir == "" {
		return nil, ErrOutputDirRequired
	}

	w := &Writer{
		dir:       dir,
		batchSize: DefaultBatchSize,
		runID:     uuid.NewString(),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.runStart = w.now()
	w.logger = w.logger.With("component", "artifact-writer", "run", w.runID)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return w, nil
}

// RunID returns the identifier shared by all artifacts of this run.
func (w *Writer) RunID() string {
	return w.runID
}

// Append adds a document and flushes once the batch is full.
func (w *Writer) Append(doc *core.ProcessedDocument) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	w.pending = append(w.pending, doc)
	if len(w.pending) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// Flush writes pending documents as one artifact. It is a no-op when nothing is pending.
// On failure the documents stay pending so a later Flush can retry.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	return w.flushLocked()
}

// Close flushes remaining documents. Further calls to Append fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	err := w.flushLocked()
	w.closed = true
	return err
}

// Pending returns the number of buffered documents.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Written returns the artifacts written so far, in order.
func (w *Writer) Written() []ArtifactInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ArtifactInfo, len(w.written))
	copy(out, w.written)
	return out
}

// DocumentsWritten returns the number of documents across all written artifacts.
func (w *Writer) DocumentsWritten() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.documents
}

func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}

	compact, err := json.Marshal(w.pending)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	digest, err := Digest(compact)
	if err != nil {
		return fmt.Errorf("failed to digest batch: %w", err)
	}

	sequence := w.sequence + 1
	env := Envelope{
		FormatVersion: FormatVersion,
		RunID:         w.runID,
		Sequence:      sequence,
		CreatedAt:     w.now().UTC(),
		DocumentCount: len(w.pending),
		Digest:        digest,
		Documents:     w.pending,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	name := FileName(w.runStart, w.runID, sequence)
	path := filepath.Join(w.dir, name)
	if err := writeFileAtomic(w.dir, path, data); err != nil {
		w.logger.Error("failed to write artifact", "artifact", name, "err", err)
		return err
	}

	info := ArtifactInfo{
		Name:      name,
		Path:      path,
		Sequence:  sequence,
		Documents: len(w.pending),
		FirstID:   w.pending[0].ID,
		LastID:    w.pending[len(w.pending)-1].ID,
		Digest:    digest,
	}
	w.sequence = sequence
	w.documents += info.Documents
	w.written = append(w.written, info)
	w.pending = nil

	w.logger.Info("wrote batch artifact", "artifact", name, "documents", info.Documents)

	if w.hook != nil {
		if err := w.hook(info); err != nil {
			return fmt.Errorf("flush hook failed for %s: %w", name, err)
		}
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in dir, syncs it and links it
// into place. The link fails if path exists, so artifacts are never replaced.
func writeFileAtomic(dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".batch-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrArtifactExists, path)
		}
		return fmt.Errorf("failed to publish artifact: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir persists the directory entry. Some platforms do not support it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
