package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	ErrorTypeTransport    ErrorType = "transport"
	ErrorTypeCancelled    ErrorType = "cancelled"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeTranscoding  ErrorType = "transcoding"
	ErrorTypeInternal     ErrorType = "internal"
)

// SQLHTTPError represents a structured error with context
type SQLHTTPError struct {
	Type    ErrorType
	Message string
	Context map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *SQLHTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap returns the underlying error for error unwrapping
func (e *SQLHTTPError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SQLHTTPError of the same type
func (e *SQLHTTPError) Is(target error) bool {
	if targetErr, ok := target.(*SQLHTTPError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// WithContext adds context information to the error
func (e *SQLHTTPError) WithContext(key string, value interface{}) *SQLHTTPError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new SQLHTTPError
func New(errType ErrorType, message string) *SQLHTTPError {
	return &SQLHTTPError{
		Type:    errType,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *SQLHTTPError {
	return &SQLHTTPError{
		Type:    errType,
		Message: message,
		Context: make(map[string]interface{}),
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *SQLHTTPError {
	return Wrap(err, errType, fmt.Sprintf(format, args...))
}

// Newf creates a new SQLHTTPError with formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *SQLHTTPError {
	return New(errType, fmt.Sprintf(format, args...))
}

// As finds the first SQLHTTPError in err's chain
func As(err error) (*SQLHTTPError, bool) {
	var sErr *SQLHTTPError
	if stderrors.As(err, &sErr) {
		return sErr, true
	}
	return nil, false
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if sErr, ok := As(err); ok {
		return sErr.Type == errType
	}
	return false
}

// GetType returns the error type, or ErrorTypeInternal if not a SQLHTTPError
func GetType(err error) ErrorType {
	if sErr, ok := As(err); ok {
		return sErr.Type
	}
	return ErrorTypeInternal
}

// GetContext returns context information from the error
func GetContext(err error) map[string]interface{} {
	if sErr, ok := As(err); ok {
		return sErr.Context
	}
	return nil
}
