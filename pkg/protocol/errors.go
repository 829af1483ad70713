package protocol

import "fmt"

// IOError wraps a socket failure (dial, read, write, short stream)
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o error during %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ProtocolError reports a frame that does not follow the wire format
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationProblem classifies a ValidationError
type ValidationProblem int

const (
	// MissingField is raised by builders when a required field was never set
	MissingField ValidationProblem = iota + 1
	// InvalidValue is raised when a field is set to a value it cannot hold
	InvalidValue
)

func (p ValidationProblem) String() string {
	switch p {
	case MissingField:
		return "missing"
	case InvalidValue:
		return "invalid"
	default:
		return "unknown"
	}
}

// ValidationError is returned before any network activity when a message
// cannot be built
type ValidationError struct {
	Problem ValidationProblem
	Field   string
	Detail  string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s field %s: %s", e.Problem, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s field %s", e.Problem, e.Field)
}

func missing(field string) error {
	return &ValidationError{Problem: MissingField, Field: field}
}

func ioErr(op string, err error) error {
	return &IOError{Op: op, Err: err}
}
