package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage"
)

const (
	// DefaultPreviewLimit is the number of notes Preview returns when no limit is given.
	DefaultPreviewLimit = 1

	// DefaultFindLimit caps FindByEntity when no limit is given.
	DefaultFindLimit = 20

	// overfetch widens the store query when results are filtered afterwards.
	overfetch = 4
)

// Searcher answers read-only questions about reconciled notes.
type Searcher struct {
	store  storage.NoteQuery
	logger *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.NoteQuery, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	s := &Searcher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")
	return s, nil
}

// Preview returns the first limit notes by id with their metadata.
// Columns not yet reconciled come back nil.
func (s *Searcher) Preview(ctx context.Context, limit int) ([]*core.NoteMetadata, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	return s.store.Preview(ctx, limit)
}

// FindByEntity returns up to limit notes with a span for label containing
// every significant word of term, case-insensitively, ordered by id.
func (s *Searcher) FindByEntity(ctx context.Context, label, term string, limit int) ([]*core.NoteMetadata, error) {
	if !core.IsLabel(label) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	words := tokenizeAndFilter(term)
	if len(words) == 0 {
		return nil, ErrEmptyTerm
	}
	if limit <= 0 {
		limit = DefaultFindLimit
	}

	if len(words) == 1 {
		return s.store.FindByEntity(ctx, label, words[0], limit)
	}

	candidates, err := s.store.FindByEntity(ctx, label, longestWord(words), limit*overfetch)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("filtering candidates", "label", label, "words", words, "candidates", len(candidates))

	results := make([]*core.NoteMetadata, 0, limit)
	for _, note := range candidates {
		for _, span := range note.Entities.Get(label) {
			if spanMatches(span, words) {
				results = append(results, note)
				break
			}
		}
		if len(results) == limit {
			break
		}
	}
	return results, nil
}
