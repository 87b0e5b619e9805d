package artifact

import "errors"

var (
	// ErrInvalidBatchSize is returned for a batch size below one.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")

	// ErrOutputDirRequired is returned when no output directory is given.
	ErrOutputDirRequired = errors.New("output directory is required")

	// ErrWriterClosed is returned by Append and Flush after Close.
	ErrWriterClosed = errors.New("artifact writer is closed")

	// ErrArtifactExists is returned when a target file already exists.
	// Artifacts are never overwritten.
	ErrArtifactExists = errors.New("artifact already exists")

	// ErrInvalidArtifact is returned when a file cannot be decoded as a batch.
	ErrInvalidArtifact = errors.New("invalid batch artifact")

	// ErrDigestMismatch is returned when the documents do not hash to the recorded digest.
	ErrDigestMismatch = errors.New("artifact digest mismatch")

	// ErrUnsupportedVersion is returned for an envelope written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported artifact format version")
)
