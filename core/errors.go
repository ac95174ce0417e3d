package core

import (
	"errors"
	"fmt"
)

// Validation messages returned to callers verbatim.
const (
	MsgNoValidJSON = "no valid json!"
)

// MsgMissingKey is the message for an absent field.
func MsgMissingKey(field string) string { return fmt.Sprintf("missing key '%s'!", field) }

// MsgNotInteger is the message for a field that does not parse as an integer.
func MsgNotInteger(field string) string {
	return fmt.Sprintf("Value for '%s' is not a valid integer!", field)
}

// MsgNotString is the message for a name that is not text.
func MsgNotString(field string) string {
	return fmt.Sprintf("Value for '%s' is not a valid string!", field)
}

// MsgOutOfRange is the message for a value outside its interval.
func MsgOutOfRange(field string) string { return fmt.Sprintf("%s not in valid range!", field) }

// ValidationError reports caller input that broke exactly one rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// StorageError wraps a failure of the persistence medium.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// WrapStorage returns nil for a nil err, otherwise a *StorageError.
// Errors that already are storage errors are returned unchanged.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ErrNotImproved signals a submission that did not beat the stored score.
// The service reports this through Result.Accepted; clients surface it as an error value.
var ErrNotImproved = errors.New("score not improved")

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is a *StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
