package reconcile

import "errors"

var (
	// ErrStoreRequired is returned when no metadata store is supplied.
	ErrStoreRequired = errors.New("metadata store is required")

	// ErrSchemaUnavailable is returned when the metadata columns could not be ensured.
	ErrSchemaUnavailable = errors.New("failed to ensure metadata columns")

	// ErrApplyFailed is returned when an artifact could not be written to the store.
	ErrApplyFailed = errors.New("failed to apply artifact")
)
