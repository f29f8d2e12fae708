// Package errors defines the error vocabulary shared by the reconciler,
// the fleet view, the document store and the repositories.
//
// Every typed error maps onto one sentinel through an Is method, so
// callers test categories with errors.Is (or the IsX helpers below) and
// reach the details with errors.As. The HTTP layer maps the same
// categories onto status codes.
package errors

import "errors"

// Re-exports of the standard helpers so one import covers both.
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)

// Sentinel categories.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrPersistence   = errors.New("persistence failure")
	// ErrCatastrophic marks a multi-step fleet operation that was aborted
	// and rolled back.
	ErrCatastrophic = errors.New("catastrophic failure")
	ErrTimeout      = errors.New("operation timed out")
	ErrCanceled     = errors.New("operation canceled")
	// ErrNoRollback is returned by Rollback when no snapshot is held.
	ErrNoRollback = errors.New("no rollback available")
)

// IsNotFound reports whether err is in the not-found category.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidationError reports whether err describes bad input.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsPersistence reports whether a repository rejected an operation.
func IsPersistence(err error) bool { return errors.Is(err, ErrPersistence) }

// IsCatastrophic reports whether err aborted a fleet operation.
func IsCatastrophic(err error) bool { return errors.Is(err, ErrCatastrophic) }

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsCanceled reports whether err is a cancellation.
func IsCanceled(err error) bool { return errors.Is(err, ErrCanceled) }
