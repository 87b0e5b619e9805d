package transform

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/poiesic/clinicalner/ai"
	"github.com/poiesic/clinicalner/core"
)

// Extractor groups model output by label and never fails: a model error is
// logged and the note gets an empty entity set.
type Extractor struct {
	model     ai.EntityExtractor
	labels    []string
	threshold float64
	retry     RetryPolicy
	logger    *slog.Logger

	calls    atomic.Int64
	failures atomic.Int64
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor) error

// WithThreshold sets the minimum confidence passed to the model.
// Default is ai.DefaultThreshold.
func WithThreshold(threshold float64) ExtractorOption {
	return func(e *Extractor) error {
		if threshold < 0 || threshold > 1 {
			return ErrInvalidThreshold
		}
		e.threshold = threshold
		return nil
	}
}

// WithRetryPolicy sets how model errors are retried before giving up.
func WithRetryPolicy(policy RetryPolicy) ExtractorOption {
	return func(e *Extractor) error {
		if policy.MaxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		e.retry = policy
		return nil
	}
}

// WithExtractorLogger sets a custom logger.
// Default is slog.Default().
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewExtractor wraps model with the fixed clinical label set.
func NewExtractor(model ai.EntityExtractor, opts ...ExtractorOption) (*Extractor, error) {
	if model == nil {
		return nil, ErrExtractorRequired
	}

	e := &Extractor{
		model:     model,
		labels:    core.Labels,
		threshold: ai.DefaultThreshold,
		retry:     DefaultRetryPolicy(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "entity-extractor")
	return e, nil
}

// Extract returns the entities in text grouped by label.
// Every label is present in the result. Blank text is not sent to the model.
func (e *Extractor) Extract(ctx context.Context, text string) core.ExtractedEntities {
	entities := core.NewExtractedEntities()
	if strings.TrimSpace(text) == "" {
		return entities
	}

	e.calls.Add(1)

	var predicted []ai.Entity
	err := RetryWithBackoff(ctx, e.retry, e.logger, func(ctx context.Context) error {
		var err error
		predicted, err = e.model.PredictEntities(ctx, text, e.labels, e.threshold)
		return err
	})
	if err != nil {
		e.failures.Add(1)
		e.logger.Warn("entity extraction failed, using empty result", "err", err)
		return entities
	}

	for _, ent := range predicted {
		if !entities.Add(ent.Label, ent.Text) {
			e.logger.Debug("ignoring entity with unknown label", "label", ent.Label)
		}
	}
	return entities
}

// Calls returns how many texts were sent to the model.
func (e *Extractor) Calls() int64 {
	return e.calls.Load()
}

// Failures returns how many extractions degraded to an empty result.
func (e *Extractor) Failures() int64 {
	return e.failures.Load()
}
