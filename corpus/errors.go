package corpus

import "errors"

var (
	// ErrSourceRequired is returned when no note source is supplied.
	ErrSourceRequired = errors.New("note source is required")

	// ErrTransformerRequired is returned when no transformer is supplied.
	ErrTransformerRequired = errors.New("transformer is required")
)
