// Package errors defines the stable error codes used across the search
// service and the error type that carries them.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// EmptyQuery indicates the query was empty after trimming
	EmptyQuery ErrorCode = "EMPTY_QUERY"
	// PayloadTooLarge indicates the frame exceeded the configured maximum
	PayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// DatasetMissing indicates the dataset file does not exist.
	// It is absorbed by the dataset layer and surfaces as NotFound.
	DatasetMissing ErrorCode = "DATASET_MISSING"
	// DatasetIOFault indicates the dataset could not be read
	DatasetIOFault ErrorCode = "DATASET_IO_FAULT"
	// TransportFault indicates a handshake failure, reset or broken pipe
	TransportFault ErrorCode = "TRANSPORT_FAULT"
	// InternalFault indicates an unexpected failure during matching or dispatch
	InternalFault ErrorCode = "INTERNAL_FAULT"
	// ServerBusy indicates the admission gate rejected the connection
	ServerBusy ErrorCode = "SERVER_BUSY"
	// ConfigInvalid indicates the service configuration is unusable
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// SearchError represents a service error with a code, message and cause
type SearchError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	cause   error     // Underlying error (not exported to JSON)
}

// New creates a new SearchError
func New(code ErrorCode, message string, cause error) *SearchError {
	return &SearchError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a SearchError with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...any) *SearchError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *SearchError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *SearchError) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the first SearchError in err's chain.
// Errors without one are reported as InternalFault; nil yields "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return InternalFault
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
