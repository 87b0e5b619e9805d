package ingest

import "errors"

var (
	// ErrWriterRequired is returned when no note writer is supplied.
	ErrWriterRequired = errors.New("note writer is required")

	// ErrSourceRequired is returned when no row source is supplied.
	ErrSourceRequired = errors.New("row source is required")

	// ErrInvalidChunkSize is returned for a chunk size below one.
	ErrInvalidChunkSize = errors.New("chunk size must be at least 1")

	// ErrMalformedRow is returned when a source row cannot be decoded.
	ErrMalformedRow = errors.New("malformed dataset row")

	// ErrHubRequest is returned when the dataset server rejects a request.
	ErrHubRequest = errors.New("dataset server request failed")
)
