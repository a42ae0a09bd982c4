package modbus

import "fmt"

// ExceptionCode is a server-reported fault code carried in the second PDU
// byte of an exception response.
type ExceptionCode uint8

// Exception codes defined by the Modbus application protocol.
const (
	ExceptionIllegalFunction         ExceptionCode = 0x01
	ExceptionIllegalDataAddress      ExceptionCode = 0x02
	ExceptionIllegalDataValue        ExceptionCode = 0x03
	ExceptionServerDeviceFailure     ExceptionCode = 0x04
	ExceptionAcknowledge             ExceptionCode = 0x05
	ExceptionServerDeviceBusy        ExceptionCode = 0x06
	ExceptionNegativeAcknowledge     ExceptionCode = 0x07
	ExceptionMemoryParityError       ExceptionCode = 0x08
	ExceptionGatewayPathUnavailable  ExceptionCode = 0x0A
	ExceptionGatewayTargetNoResponse ExceptionCode = 0x0B
)

// Known reports whether the code is in the standard exception table.
func (e ExceptionCode) Known() bool {
	return (e >= ExceptionIllegalFunction && e <= ExceptionMemoryParityError) ||
		e == ExceptionGatewayPathUnavailable || e == ExceptionGatewayTargetNoResponse
}

func (e ExceptionCode) String() string {
	switch e {
	case ExceptionIllegalFunction:
		return "illegal function"
	case ExceptionIllegalDataAddress:
		return "illegal data address"
	case ExceptionIllegalDataValue:
		return "illegal data value"
	case ExceptionServerDeviceFailure:
		return "server device failure"
	case ExceptionAcknowledge:
		return "acknowledge"
	case ExceptionServerDeviceBusy:
		return "server device busy"
	case ExceptionNegativeAcknowledge:
		return "negative acknowledge"
	case ExceptionMemoryParityError:
		return "memory parity error"
	case ExceptionGatewayPathUnavailable:
		return "gateway path unavailable"
	case ExceptionGatewayTargetNoResponse:
		return "gateway target device failed to respond"
	default:
		return "unknown"
	}
}

// Exception is a server-reported application fault. It is a decoded outcome
// of a completed exchange, distinct from a protocol violation: the server is
// functioning and rejected the request. Unknown codes are preserved as-is.
type Exception struct {
	Function FunctionCode // function code of the rejected request
	Code     ExceptionCode
}

func (e *Exception) Error() string {
	return fmt.Sprintf("server exception 0x%02X (%s) for %s", uint8(e.Code), e.Code, e.Function)
}
