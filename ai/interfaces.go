package ai

import "context"

// EntityExtractor recognizes labeled spans in free text.
// Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// PredictEntities returns the spans in text matching any of labels with
	// a confidence of at least threshold. Spans are returned in the order the
	// model produced them; duplicates are allowed.
	// Returns an empty slice if nothing matched.
	// Returns an error if the model could not be invoked or its output could
	// not be understood.
	PredictEntities(ctx context.Context, text string, labels []string, threshold float64) ([]Entity, error)
}

// Entity is a single span recognized by an EntityExtractor.
type Entity struct {
	// Text is the surface string as it appears in the input.
	Text string

	// Label is the category assigned by the model. It may fall outside the
	// requested label set; callers drop unknown labels.
	Label string

	// Score is the model confidence in [0, 1].
	Score float64
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// EntityExtractor returns the entity recognition service.
	// The returned EntityExtractor is safe for concurrent use.
	EntityExtractor() EntityExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
