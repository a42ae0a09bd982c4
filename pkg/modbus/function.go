// Package modbus implements the client side of the Modbus TCP wire format
// for the four read function codes: coils, discrete inputs, holding
// registers and input registers. The package is pure data and logic: it
// builds wire-exact request frames and decodes response frames, but never
// opens, owns or closes a connection. Transports live in pkg/transport.
package modbus

// FunctionCode identifies a Modbus function.
type FunctionCode uint8

// Supported function codes (read-only subset).
const (
	FuncReadCoils            FunctionCode = 0x01
	FuncReadDiscreteInputs   FunctionCode = 0x02
	FuncReadHoldingRegisters FunctionCode = 0x03
	FuncReadInputRegisters   FunctionCode = 0x04
)

// Quantity limits per function class, from the Modbus application protocol
// specification.
const (
	// MaxBitQuantity is the maximum register quantity for bit-addressed
	// reads (FC 1 and 2).
	MaxBitQuantity = 2000

	// MaxWordQuantity is the maximum register quantity for word-addressed
	// reads (FC 3 and 4).
	MaxWordQuantity = 125
)

// errorMask is set on the echoed function code of an exception response.
const errorMask = 0x80

// IsSupported reports whether fc is one of the four supported read
// functions.
func (fc FunctionCode) IsSupported() bool {
	return fc >= FuncReadCoils && fc <= FuncReadInputRegisters
}

// IsBitFunction reports whether fc reads single-bit registers (coils or
// discrete inputs).
func (fc FunctionCode) IsBitFunction() bool {
	return fc == FuncReadCoils || fc == FuncReadDiscreteInputs
}

// IsWordFunction reports whether fc reads 16-bit word registers (holding
// or input registers).
func (fc FunctionCode) IsWordFunction() bool {
	return fc == FuncReadHoldingRegisters || fc == FuncReadInputRegisters
}

// MaxQuantity returns the maximum register quantity fc may request in a
// single frame. It returns 0 for unsupported function codes.
func (fc FunctionCode) MaxQuantity() uint16 {
	switch {
	case fc.IsBitFunction():
		return MaxBitQuantity
	case fc.IsWordFunction():
		return MaxWordQuantity
	default:
		return 0
	}
}

func (fc FunctionCode) String() string {
	switch fc {
	case FuncReadCoils:
		return "read-coils"
	case FuncReadDiscreteInputs:
		return "read-discrete-inputs"
	case FuncReadHoldingRegisters:
		return "read-holding-registers"
	case FuncReadInputRegisters:
		return "read-input-registers"
	default:
		return "unsupported"
	}
}
