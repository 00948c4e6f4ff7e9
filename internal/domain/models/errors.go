package models

import "errors"

// Error kinds shared by the pipeline. Callers classify with errors.Is.
var (
	// ErrDataUnavailable marks an empty range, a missing model or a missing quote.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInvalidInput marks a bad option type or a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned by stores when the key is absent.
	ErrNotFound = errors.New("not found")
	// ErrCollaborator marks a failure inside an external dependency.
	ErrCollaborator = errors.New("collaborator failure")
)

// IsUnavailable reports whether err means "nothing to compute with" rather than a failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable) || errors.Is(err, ErrNotFound)
}
