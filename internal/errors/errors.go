package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeDeviceInit     ErrorType = "DEVICE_INIT_ERROR"
	ErrorTypeQueueCreation  ErrorType = "QUEUE_CREATION_ERROR"
	ErrorTypeStreamOpen     ErrorType = "STREAM_OPEN_ERROR"
	ErrorTypeDecoderCreate  ErrorType = "DECODER_CONSTRUCTION_ERROR"
	ErrorTypeSinkWrite      ErrorType = "SINK_WRITE_ERROR"
	ErrorTypeCorruptUnit    ErrorType = "CORRUPT_ACCESS_UNIT"
	ErrorTypeInternal       ErrorType = "INTERNAL_ERROR"
)

// Process exit codes for fatal setup stages. Each stage fails with its own
// negative code so scripted conformance runs can tell them apart.
const (
	ExitOK             = 0
	ExitDeviceInit     = -1
	ExitDeviceSelect   = -2
	ExitQueueCreation  = -3
	ExitStreamOpen     = -4
	ExitSinkCreate     = -5
	ExitDecoderCreate  = -6
)

// AppError represents an application error with additional context.
type AppError struct {
	Type     ErrorType              `json:"type"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
	ExitCode int                    `json:"-"`
	Err      error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, exitCode int) *AppError {
	return &AppError{
		Type:     errType,
		Message:  message,
		ExitCode: exitCode,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, exitCode int) *AppError {
	return &AppError{
		Type:     errType,
		Message:  message,
		ExitCode: exitCode,
		Err:      err,
	}
}

// Common error constructors.

// NewDeviceInitError creates a device initialization error.
func NewDeviceInitError(message string) *AppError {
	return New(ErrorTypeDeviceInit, message, ExitDeviceInit)
}

// WrapDeviceInitError wraps an error as a device initialization error.
func WrapDeviceInitError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeDeviceInit, message, ExitDeviceInit)
}

// NewQueueCreationError creates a queue creation error.
func NewQueueCreationError(message string) *AppError {
	return New(ErrorTypeQueueCreation, message, ExitQueueCreation)
}

// NewStreamOpenError creates a stream open error.
func NewStreamOpenError(message string) *AppError {
	return New(ErrorTypeStreamOpen, message, ExitStreamOpen)
}

// WrapStreamOpenError wraps an error as a stream open error.
func WrapStreamOpenError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeStreamOpen, message, ExitStreamOpen)
}

// NewDecoderConstructionError creates a decoder construction error.
func NewDecoderConstructionError(message string) *AppError {
	return New(ErrorTypeDecoderCreate, message, ExitDecoderCreate)
}

// WrapDecoderConstructionError wraps an error as a decoder construction error.
func WrapDecoderConstructionError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeDecoderCreate, message, ExitDecoderCreate)
}

// NewSinkWriteError creates a sink write error.
func NewSinkWriteError(message string) *AppError {
	return New(ErrorTypeSinkWrite, message, ExitSinkCreate)
}

// WrapSinkWriteError wraps an error as a sink write error.
func WrapSinkWriteError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeSinkWrite, message, ExitSinkCreate)
}

// NewCorruptUnitError creates a soft corrupt access unit error. It carries no
// exit code: corrupt units are skipped and decoding continues.
func NewCorruptUnitError(message string) *AppError {
	return New(ErrorTypeCorruptUnit, message, ExitOK)
}

// WrapCorruptUnitError wraps a parse failure as a soft corrupt unit error.
func WrapCorruptUnitError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeCorruptUnit, message, ExitOK)
}

// WrapInternalError wraps an error as an internal error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, ExitDeviceInit)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// IsCorruptUnit reports whether the error is the soft, locally recovered
// corrupt access unit error.
func IsCorruptUnit(err error) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == ErrorTypeCorruptUnit
}

// IsFatal reports whether the error aborts the run.
func IsFatal(err error) bool {
	appErr, ok := GetAppError(err)
	if !ok {
		return true
	}
	return appErr.Type != ErrorTypeCorruptUnit
}
