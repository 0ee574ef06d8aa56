package alpaca

import "errors"

var (
	// ErrUnknownMethod indicates a bind against a method the registry does not declare
	ErrUnknownMethod = errors.New("unknown method")

	// ErrNilHandler indicates a bind with a handler that cannot be invoked
	ErrNilHandler = errors.New("handler is not invocable")

	// ErrDuplicateMethod indicates two categories declare the same verb and method
	ErrDuplicateMethod = errors.New("duplicate method")

	// ErrUnsupportedVerb indicates a verb other than GET or PUT
	ErrUnsupportedVerb = errors.New("unsupported verb")
)

// ErrorCode is an Alpaca protocol error number carried in ErrorNumber.
type ErrorCode int

// Alpaca error numbers.
const (
	Success                        ErrorCode = 0x0
	PropertyOrMethodNotImplemented ErrorCode = 0x400
	InvalidValue                   ErrorCode = 0x401
	ValueNotSet                    ErrorCode = 0x402
	NotConnected                   ErrorCode = 0x407
	InvalidWhileParked             ErrorCode = 0x408
	InvalidWhileSlaved             ErrorCode = 0x409
	InvalidOperation               ErrorCode = 0x40B
	ActionNotImplemented           ErrorCode = 0x40C
)

func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "SUCCESSFUL_TRANSACTION"
	case PropertyOrMethodNotImplemented:
		return "PROPERTY_OR_METHOD_NOT_IMPLEMENTED"
	case InvalidValue:
		return "INVALID_VALUE"
	case ValueNotSet:
		return "VALUE_NOT_SET"
	case NotConnected:
		return "NOT_CONNECTED"
	case InvalidWhileParked:
		return "INVALID_WHILE_PARKED"
	case InvalidWhileSlaved:
		return "INVALID_WHILE_SLAVED"
	case InvalidOperation:
		return "INVALID_OPERATION"
	case ActionNotImplemented:
		return "ACTION_NOT_IMPLEMENTED"
	default:
		return "UNKNOWN"
	}
}
