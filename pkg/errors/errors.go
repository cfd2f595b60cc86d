// Package errors defines the error vocabulary shared by the meeting store and
// the attendance pipeline.
//
// Store implementations wrap one of the sentinels below so callers can branch
// with errors.Is regardless of backend:
//
//	m, err := store.GetMeeting(ctx, id)
//	if nterrors.IsNotFound(err) {
//	    // unknown meeting id
//	}
//
// Stage failures of a pipeline run are described by PipelineError instead.
package errors

import "errors"

var (
	// ErrNotFound is returned for unknown meeting, note or user ids.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a record with the same id is already stored.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation marks a record rejected before it reached the store.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState is returned by a status transition whose expected current
	// status no longer holds, which is how a second claimant learns it lost.
	ErrInvalidState = errors.New("invalid state")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether any error in err's chain is ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
