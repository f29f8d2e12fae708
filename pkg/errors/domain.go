package errors

import "fmt"

// NotFoundError names a missing vehicle, document or snapshot.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFoundError returns a NotFoundError for resource id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError reports one rejected input value. Field is empty for
// failures that are not tied to a single field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// NewValidationError returns a ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// WrapValidation turns err into a ValidationError on field. It returns nil
// for a nil err.
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// InvalidDocumentError rejects a whole extraction: a missing or malformed
// VIN, an unknown document type, or a confidence outside [0,1].
type InvalidDocumentError struct {
	DocumentID string
	Reason     string
	Err        error
}

func (e *InvalidDocumentError) Error() string {
	if e.DocumentID == "" {
		return "invalid document: " + e.Reason
	}
	return fmt.Sprintf("invalid document %s: %s", e.DocumentID, e.Reason)
}

func (e *InvalidDocumentError) Unwrap() error { return e.Err }

func (e *InvalidDocumentError) Is(target error) bool { return target == ErrInvalidInput }

// NewInvalidDocumentError returns an InvalidDocumentError. err may be nil.
func NewInvalidDocumentError(documentID, reason string, err error) *InvalidDocumentError {
	return &InvalidDocumentError{DocumentID: documentID, Reason: reason, Err: err}
}

// CatastrophicError reports a fleet operation that was aborted midway.
// RolledBack is false when restoring the snapshot failed as well.
type CatastrophicError struct {
	Operation  string
	RolledBack bool
	Err        error
}

func (e *CatastrophicError) Error() string {
	state := "rolled back"
	if !e.RolledBack {
		state = "rollback incomplete"
	}
	return fmt.Sprintf("%s aborted (%s): %v", e.Operation, state, e.Err)
}

func (e *CatastrophicError) Unwrap() error { return e.Err }

func (e *CatastrophicError) Is(target error) bool { return target == ErrCatastrophic }

// NewCatastrophicError returns a CatastrophicError.
func NewCatastrophicError(operation string, rolledBack bool, err error) *CatastrophicError {
	return &CatastrophicError{Operation: operation, RolledBack: rolledBack, Err: err}
}

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
