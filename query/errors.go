package query

import "errors"

var (
	// ErrStoreRequired is returned when a note query store is not provided.
	ErrStoreRequired = errors.New("note query store required")

	// ErrUnknownLabel is returned for a label outside the clinical label set.
	ErrUnknownLabel = errors.New("unknown entity label")

	// ErrEmptyTerm is returned when a search term has no significant words.
	ErrEmptyTerm = errors.New("search term is empty")
)
