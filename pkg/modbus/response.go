package modbus

import (
	"encoding/binary"
	"fmt"
)

// Response is a raw response frame split into its header fields. It is an
// intermediate value: built fresh for each exchange, validated against the
// originating Request and discarded once decoded into a Result.
type Response struct {
	TransactionID uint16
	ProtocolID    uint16
	Length        uint16 // declared byte count of unit id + function + data
	UnitID        uint8
	Function      uint8  // echoed function code, possibly with the error bit set
	Payload       []byte // bytes following the function code
}

// Result is the decoded outcome of one exchange. Exactly one of the three
// fields is set: Bits for coil/discrete-input reads, Words for register
// reads, Exception for a server-reported fault. Server faults are expected,
// recoverable outcomes and therefore part of the result rather than an
// error; protocol violations are returned as errors instead.
type Result struct {
	Bits      []bool
	Words     []uint16
	Exception *Exception
}

// ReadResponse splits a raw buffer into its MBAP header fields without
// validating it against any request. Most callers want ParseResponse.
func ReadResponse(raw []byte) (Response, error) {
	if len(raw) < ExceptionResponseSize {
		return Response{}, &MalformedResponseError{
			Reason: "frame shorter than an exception response",
		}
	}
	return Response{
		TransactionID: binary.BigEndian.Uint16(raw[0:2]),
		ProtocolID:    binary.BigEndian.Uint16(raw[2:4]),
		Length:        binary.BigEndian.Uint16(raw[4:6]),
		UnitID:        raw[6],
		Function:      raw[7],
		Payload:       raw[8:],
	}, nil
}

// ParseResponse validates a raw response buffer against the originating
// request and decodes it in a single pass. It returns:
//
//   - a Result with Bits or Words populated for a success response,
//   - a Result with Exception set when the server reported a fault,
//   - a *TransactionMismatchError, *UnrecognizedFunctionError or
//     *MalformedResponseError when the frame cannot be trusted.
//
// The buffer is expected to hold one complete frame; there is no partial
// frame handling or retry here.
func ParseResponse(req Request, raw []byte) (*Result, error) {
	resp, err := ReadResponse(raw)
	if err != nil {
		return nil, err
	}

	// Step 1: correlate. A mismatched transaction id is reported, not
	// silently dropped.
	if resp.TransactionID != req.TransactionID {
		return nil, &TransactionMismatchError{Want: req.TransactionID, Got: resp.TransactionID}
	}

	// Step 2: classify by the echoed function code.
	switch resp.Function {
	case byte(req.Function) | errorMask:
		return &Result{
			Exception: &Exception{
				Function: req.Function,
				Code:     ExceptionCode(resp.Payload[0]),
			},
		}, nil
	case byte(req.Function):
		// fall through to decode
	default:
		return nil, &UnrecognizedFunctionError{Want: req.Function, Got: resp.Function}
	}

	// Step 3: cross-check the declared sizes against the request.
	want := req.payloadByteCount()
	byteCount := int(resp.Payload[0])
	if byteCount != want {
		return nil, &MalformedResponseError{
			Reason: fmt.Sprintf("byte count %d does not match quantity %d (want %d)", byteCount, req.Quantity, want),
		}
	}
	// Length covers unit id, function code, byte count and data.
	if int(resp.Length) != want+3 {
		return nil, &MalformedResponseError{
			Reason: fmt.Sprintf("declared length %d, want %d", resp.Length, want+3),
		}
	}
	data := resp.Payload[1:]
	if len(data) < want {
		return nil, &MalformedResponseError{
			Reason: fmt.Sprintf("payload truncated: %d of %d bytes", len(data), want),
		}
	}
	data = data[:want]

	// Step 4: decode.
	if req.Function.IsBitFunction() {
		return &Result{Bits: unpackBits(data, int(req.Quantity))}, nil
	}
	return &Result{Words: unpackWords(data, int(req.Quantity))}, nil
}

// unpackBits expands packed coil bytes into quantity booleans. Bit i lives
// at bit position i%8 of byte i/8: least-significant bit first within each
// byte, bytes in ascending order.
func unpackBits(data []byte, quantity int) []bool {
	bits := make([]bool, quantity)
	for i := range bits {
		bits[i] = data[i/8]>>(i%8)&1 == 1
	}
	return bits
}

// unpackWords reads quantity consecutive big-endian 16-bit values.
func unpackWords(data []byte, quantity int) []uint16 {
	words := make([]uint16, quantity)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(data[i*2 : i*2+2])
	}
	return words
}
