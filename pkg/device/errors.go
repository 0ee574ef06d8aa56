package device

import "errors"

var (
	// ErrNotFound indicates a device was not found
	ErrNotFound = errors.New("device not found")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrUnreachable indicates the device could not be contacted
	ErrUnreachable = errors.New("device unreachable")

	// ErrRefused indicates the device answered but rejected the command
	ErrRefused = errors.New("device refused command")

	// ErrUnsupported indicates an operation is not supported by the device
	ErrUnsupported = errors.New("operation not supported")

	// ErrValidation indicates a state payload failed schema validation
	ErrValidation = errors.New("validation error")

	// ErrStateUnknown indicates the device cannot report a state it has not
	// been told yet
	ErrStateUnknown = errors.New("state not yet known")
)
