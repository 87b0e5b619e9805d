package transform

import "errors"

var (
	// ErrExtractorRequired is returned when no model is supplied.
	ErrExtractorRequired = errors.New("entity extractor is required")

	// ErrInvalidMaxAttempts is returned when a retry policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidThreshold is returned for a threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
)
