package docstore

import "errors"

// Sentinel errors forming the failure taxonomy of the persistence
// layer. Callers discriminate with errors.Is; everything else is a
// plain wrapped error (I/O or unexpected faults).
var (
	// ErrNotFound indicates no document, version or recovery snapshot
	// exists for the given identity.
	ErrNotFound = errors.New("not found")

	// ErrInvalidFormat indicates content or a persisted document
	// failed to parse as structured data.
	ErrInvalidFormat = errors.New("invalid document format")

	// ErrCancelled indicates the user declined an interactive step.
	// It is not a failure: no stored state has been touched.
	ErrCancelled = errors.New("operation cancelled")
)
