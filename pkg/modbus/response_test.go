package modbus

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildResponse assembles a response ADU for tests. length is written as
// given so malformed frames can be produced deliberately.
func buildResponse(txID uint16, length uint16, unitID, fc uint8, payload ...byte) []byte {
	buf := make([]byte, MBAPHeaderSize+1+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], txID)
	binary.BigEndian.PutUint16(buf[2:4], ProtocolID)
	binary.BigEndian.PutUint16(buf[4:6], length)
	buf[6] = unitID
	buf[7] = fc
	copy(buf[8:], payload)
	return buf
}

func mustRequest(t *testing.T, txID uint16, fc FunctionCode, quantity uint16) Request {
	t.Helper()
	req, err := NewRequest(txID, 1, fc, 0, quantity)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func TestParseCoilsResponse(t *testing.T) {
	req := mustRequest(t, 7, FuncReadCoils, 8)
	// 0b10110010, least-significant bit is coil 0.
	raw := buildResponse(7, 4, 1, 0x01, 0x01, 0xB2)

	res, err := ParseResponse(req, raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if res.Words != nil || res.Exception != nil {
		t.Fatal("bit read produced a non-bit result")
	}

	want := []bool{false, true, false, false, true, true, false, true}
	if len(res.Bits) != len(want) {
		t.Fatalf("len(Bits) = %d, want %d", len(res.Bits), len(want))
	}
	for i := range want {
		if res.Bits[i] != want[i] {
			t.Errorf("bit %d = %v, want %v", i, res.Bits[i], want[i])
		}
	}
}

func TestParseCoilsPartialByte(t *testing.T) {
	// Nine coils span two payload bytes; only the low bit of the second
	// byte is meaningful.
	req := mustRequest(t, 3, FuncReadCoils, 9)
	raw := buildResponse(3, 5, 1, 0x01, 0x02, 0xFF, 0x01)

	res, err := ParseResponse(req, raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(res.Bits) != 9 {
		t.Fatalf("len(Bits) = %d, want 9", len(res.Bits))
	}
	if !res.Bits[8] {
		t.Error("bit 8 = false, want true")
	}
}

func TestParseHoldingRegistersResponse(t *testing.T) {
	req := mustRequest(t, 9, FuncReadHoldingRegisters, 2)
	raw := buildResponse(9, 7, 1, 0x03, 0x04, 0x00, 0x0A, 0x01, 0x2C)

	res, err := ParseResponse(req, raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if res.Bits != nil || res.Exception != nil {
		t.Fatal("word read produced a non-word result")
	}

	want := []uint16{10, 300}
	if len(res.Words) != len(want) {
		t.Fatalf("len(Words) = %d, want %d", len(res.Words), len(want))
	}
	for i := range want {
		if res.Words[i] != want[i] {
			t.Errorf("word %d = %d, want %d", i, res.Words[i], want[i])
		}
	}
}

func TestParseExceptionResponse(t *testing.T) {
	req := mustRequest(t, 5, FuncReadHoldingRegisters, 1)
	raw := buildResponse(5, 3, 1, 0x83, 0x02)

	res, err := ParseResponse(req, raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if res.Bits != nil || res.Words != nil {
		t.Fatal("exception response produced register values")
	}
	if res.Exception == nil {
		t.Fatal("Exception not set")
	}
	if res.Exception.Code != ExceptionIllegalDataAddress {
		t.Errorf("exception code = 0x%02X, want 0x02", uint8(res.Exception.Code))
	}
	if res.Exception.Function != FuncReadHoldingRegisters {
		t.Errorf("exception function = %s, want %s", res.Exception.Function, FuncReadHoldingRegisters)
	}
}

func TestParseUnknownExceptionCode(t *testing.T) {
	req := mustRequest(t, 5, FuncReadCoils, 1)
	raw := buildResponse(5, 3, 1, 0x81, 0x7F)

	res, err := ParseResponse(req, raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if res.Exception == nil {
		t.Fatal("Exception not set")
	}
	if res.Exception.Code != 0x7F {
		t.Errorf("exception code = 0x%02X, want 0x7F preserved", uint8(res.Exception.Code))
	}
	if res.Exception.Code.Known() {
		t.Error("code 0x7F reported as known")
	}
}

func TestParseTransactionMismatch(t *testing.T) {
	req := mustRequest(t, 100, FuncReadHoldingRegisters, 1)
	raw := buildResponse(101, 5, 1, 0x03, 0x02, 0x00, 0x01)

	res, err := ParseResponse(req, raw)
	if res != nil {
		t.Fatal("mismatched response produced a result")
	}
	var tm *TransactionMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("error = %v, want *TransactionMismatchError", err)
	}
	if tm.Want != 100 || tm.Got != 101 {
		t.Errorf("mismatch = sent %d / received %d, want 100 / 101", tm.Want, tm.Got)
	}
}

func TestParseUnrecognizedFunctionEcho(t *testing.T) {
	req := mustRequest(t, 1, FuncReadCoils, 1)
	raw := buildResponse(1, 4, 1, 0x02, 0x01, 0x00) // echoes FC 2 for an FC 1 request

	_, err := ParseResponse(req, raw)
	var uf *UnrecognizedFunctionError
	if !errors.As(err, &uf) {
		t.Fatalf("error = %v, want *UnrecognizedFunctionError", err)
	}
	if uf.Got != 0x02 {
		t.Errorf("echoed code = 0x%02X, want 0x02", uf.Got)
	}
}

func TestParseMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) Request
		raw  []byte
	}{
		{
			name: "short frame",
			req:  func(t *testing.T) Request { return mustRequest(t, 1, FuncReadCoils, 1) },
			raw:  []byte{0x00, 0x01, 0x00, 0x00, 0x00},
		},
		{
			name: "byte count disagrees with quantity",
			req:  func(t *testing.T) Request { return mustRequest(t, 1, FuncReadHoldingRegisters, 2) },
			raw:  buildResponse(1, 9, 1, 0x03, 0x06, 0, 1, 0, 2, 0, 3),
		},
		{
			name: "declared length disagrees with byte count",
			req:  func(t *testing.T) Request { return mustRequest(t, 1, FuncReadHoldingRegisters, 2) },
			raw:  buildResponse(1, 5, 1, 0x03, 0x04, 0, 1, 0, 2),
		},
		{
			name: "payload truncated",
			req:  func(t *testing.T) Request { return mustRequest(t, 1, FuncReadHoldingRegisters, 2) },
			raw:  buildResponse(1, 7, 1, 0x03, 0x04, 0, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.req(t), tt.raw)
			var mr *MalformedResponseError
			if !errors.As(err, &mr) {
				t.Fatalf("error = %v, want *MalformedResponseError", err)
			}
		})
	}
}

func TestReadResponseHeaderFields(t *testing.T) {
	raw := buildResponse(0xABCD, 4, 9, 0x01, 0x01, 0xFF)
	resp, err := ReadResponse(raw)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.TransactionID != 0xABCD {
		t.Errorf("TransactionID = 0x%04X, want 0xABCD", resp.TransactionID)
	}
	if resp.ProtocolID != ProtocolID {
		t.Errorf("ProtocolID = %d, want %d", resp.ProtocolID, ProtocolID)
	}
	if resp.Length != 4 {
		t.Errorf("Length = %d, want 4", resp.Length)
	}
	if resp.UnitID != 9 {
		t.Errorf("UnitID = %d, want 9", resp.UnitID)
	}
	if resp.Function != 0x01 {
		t.Errorf("Function = 0x%02X, want 0x01", resp.Function)
	}
	if len(resp.Payload) != 2 {
		t.Errorf("len(Payload) = %d, want 2", len(resp.Payload))
	}
}
