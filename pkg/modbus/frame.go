package modbus

import (
	"encoding/binary"
	"fmt"
)

// Wire layout constants. All multi-byte fields are big-endian.
const (
	// MBAPHeaderSize is the fixed MBAP header size: transaction id (2),
	// protocol id (2), length (2), unit id (1).
	MBAPHeaderSize = 7

	// ProtocolID is the protocol identifier field value. Always 0 for
	// Modbus TCP; not caller-settable.
	ProtocolID = 0x0000

	// RequestSize is the total size of a read request ADU: MBAP header,
	// function code, starting address and register quantity.
	RequestSize = MBAPHeaderSize + 5

	// respHeaderSize covers the MBAP header plus the echoed function code.
	// The response payload (byte count and data, or exception code)
	// follows it.
	respHeaderSize = MBAPHeaderSize + 1

	// ExceptionResponseSize is the fixed size of an exception response
	// ADU and the minimum size of any response this package accepts.
	ExceptionResponseSize = respHeaderSize + 1
)

// Request holds the validated parameters of a single read request and
// derives its exact wire encoding. Values are immutable once constructed;
// build them with NewRequest so all cross-field invariants are checked
// against the complete parameter set.
type Request struct {
	// TransactionID correlates the response with this request. It is
	// caller-assigned, need not be globally unique, and must round-trip
	// unchanged.
	TransactionID uint16

	// UnitID addresses the target unit behind the server.
	UnitID uint8

	// Function is one of the four supported read function codes.
	Function FunctionCode

	// StartingAddress is the first register to read. The full uint16
	// range is valid.
	StartingAddress uint16

	// Quantity is the number of registers to read. Its valid range
	// depends on Function: 1..2000 for bit reads, 1..125 for word reads.
	Quantity uint16
}

// NewRequest validates all request parameters together and returns an
// immutable Request. Validating the complete parameter set in one step
// means the quantity check always runs against the final function code;
// there is no assignment order that can bypass it.
func NewRequest(transactionID uint16, unitID uint8, fc FunctionCode, address, quantity uint16) (Request, error) {
	r := Request{
		TransactionID:   transactionID,
		UnitID:          unitID,
		Function:        fc,
		StartingAddress: address,
		Quantity:        quantity,
	}
	if err := r.validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// validate checks the cross-field invariants of the request.
func (r Request) validate() error {
	if !r.Function.IsSupported() {
		return fmt.Errorf("%w: 0x%02X", ErrUnsupportedFunction, uint8(r.Function))
	}
	if r.Quantity < 1 || r.Quantity > r.Function.MaxQuantity() {
		return &OutOfRangeError{
			Field: "register quantity",
			Value: int(r.Quantity),
			Min:   1,
			Max:   int(r.Function.MaxQuantity()),
		}
	}
	return nil
}

// Bytes serializes the request into its 12-byte ADU. The cross-field
// invariants are re-checked here so a Request assembled by hand, or
// modified after construction, can never emit an invalid frame.
func (r Request) Bytes() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, RequestSize)
	binary.BigEndian.PutUint16(buf[0:2], r.TransactionID)
	binary.BigEndian.PutUint16(buf[2:4], ProtocolID)
	// Length counts the bytes that follow it: unit id, function code,
	// address and quantity.
	binary.BigEndian.PutUint16(buf[4:6], 6)
	buf[6] = r.UnitID
	buf[7] = byte(r.Function)
	binary.BigEndian.PutUint16(buf[8:10], r.StartingAddress)
	binary.BigEndian.PutUint16(buf[10:12], r.Quantity)
	return buf, nil
}

// payloadByteCount returns the data byte count a success response must
// declare for this request: one bit per register packed eight to a byte
// for bit functions, two bytes per register for word functions.
func (r Request) payloadByteCount() int {
	if r.Function.IsBitFunction() {
		return (int(r.Quantity) + 7) / 8
	}
	return int(r.Quantity) * 2
}

// ExpectedResponseLength returns the exact size in bytes of the success
// response for this request. Transports size their receive buffer from it
// instead of reading an unbounded amount; an exception response is shorter
// (ExceptionResponseSize) and still fits the same buffer.
func (r Request) ExpectedResponseLength() int {
	// header + byte-count field + data
	return respHeaderSize + 1 + r.payloadByteCount()
}
