package modbus

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFunction is returned when a request names a function code
// outside the supported read set.
var ErrUnsupportedFunction = errors.New("unsupported function code")

// OutOfRangeError reports a request parameter outside its valid range.
type OutOfRangeError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

// TransactionMismatchError reports a response whose transaction identifier
// does not match the originating request. Such a response carries no usable
// registers and is reported explicitly, never discarded.
type TransactionMismatchError struct {
	Want uint16
	Got  uint16
}

func (e *TransactionMismatchError) Error() string {
	return fmt.Sprintf("transaction id mismatch: sent %d, received %d", e.Want, e.Got)
}

// UnrecognizedFunctionError reports an echoed function code that is neither
// the request's function code nor its exception form (code | 0x80).
type UnrecognizedFunctionError struct {
	Want FunctionCode
	Got  uint8
}

func (e *UnrecognizedFunctionError) Error() string {
	return fmt.Sprintf("unrecognized function code echo 0x%02X (sent 0x%02X)", e.Got, uint8(e.Want))
}

// MalformedResponseError reports a response frame whose declared lengths
// disagree with each other or with the originating request.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Reason
}
