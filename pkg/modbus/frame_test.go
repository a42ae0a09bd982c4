package modbus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestNewRequestValidation(t *testing.T) {
	tests := []struct {
		name     string
		fc       FunctionCode
		quantity uint16
		wantErr  bool
	}{
		{"unsupported zero", 0x00, 1, true},
		{"unsupported write coil", 0x05, 1, true},
		{"unsupported write registers", 0x10, 1, true},
		{"coils min", FuncReadCoils, 1, false},
		{"coils max", FuncReadCoils, 2000, false},
		{"coils zero", FuncReadCoils, 0, true},
		{"coils over max", FuncReadCoils, 2001, true},
		{"discrete inputs max", FuncReadDiscreteInputs, 2000, false},
		{"discrete inputs over max", FuncReadDiscreteInputs, 2001, true},
		{"holding min", FuncReadHoldingRegisters, 1, false},
		{"holding max", FuncReadHoldingRegisters, 125, false},
		{"holding zero", FuncReadHoldingRegisters, 0, true},
		{"holding over max", FuncReadHoldingRegisters, 126, true},
		{"input max", FuncReadInputRegisters, 125, false},
		{"input over max", FuncReadInputRegisters, 126, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequest(1, 1, tt.fc, 0, tt.quantity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRequest(fc=0x%02X, quantity=%d) error = %v, wantErr %v",
					uint8(tt.fc), tt.quantity, err, tt.wantErr)
			}
		})
	}
}

func TestNewRequestErrorKinds(t *testing.T) {
	_, err := NewRequest(1, 1, 0x06, 0, 1)
	if !errors.Is(err, ErrUnsupportedFunction) {
		t.Errorf("function code 0x06: got %v, want ErrUnsupportedFunction", err)
	}

	_, err = NewRequest(1, 1, FuncReadCoils, 0, 0)
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("quantity 0: got %v, want *OutOfRangeError", err)
	}
	if oor.Min != 1 || oor.Max != 2000 {
		t.Errorf("coil quantity range = [%d, %d], want [1, 2000]", oor.Min, oor.Max)
	}
}

func TestRequestBytesLayout(t *testing.T) {
	req, err := NewRequest(0x1234, 0x11, FuncReadHoldingRegisters, 0x006B, 3)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	got, err := req.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	want := []byte{
		0x12, 0x34, // transaction id
		0x00, 0x00, // protocol id
		0x00, 0x06, // length (unit id + function + address + quantity)
		0x11,       // unit id
		0x03,       // function code
		0x00, 0x6B, // starting address
		0x00, 0x03, // register quantity
	}
	if !bytes.Equal(got, want) {
		t.Errorf("frame = % X, want % X", got, want)
	}
}

// TestRequestBytesRoundTrip asserts that for valid parameter combinations
// the emitted frame has the fixed request size and that every header field
// decodes back to the original value.
func TestRequestBytesRoundTrip(t *testing.T) {
	fcs := []FunctionCode{
		FuncReadCoils,
		FuncReadDiscreteInputs,
		FuncReadHoldingRegisters,
		FuncReadInputRegisters,
	}
	quantities := []uint16{1, 7, 8, 9, 125}

	for _, fc := range fcs {
		for _, q := range quantities {
			req, err := NewRequest(0xBEEF, 42, fc, 0xFFFF, q)
			if err != nil {
				t.Fatalf("NewRequest(%s, %d): %v", fc, q, err)
			}
			frame, err := req.Bytes()
			if err != nil {
				t.Fatalf("Bytes(%s, %d): %v", fc, q, err)
			}
			if len(frame) != RequestSize {
				t.Fatalf("len(frame) = %d, want %d", len(frame), RequestSize)
			}

			if got := binary.BigEndian.Uint16(frame[0:2]); got != req.TransactionID {
				t.Errorf("transaction id = %d, want %d", got, req.TransactionID)
			}
			if got := binary.BigEndian.Uint16(frame[2:4]); got != ProtocolID {
				t.Errorf("protocol id = %d, want %d", got, ProtocolID)
			}
			if frame[6] != req.UnitID {
				t.Errorf("unit id = %d, want %d", frame[6], req.UnitID)
			}
			if frame[7] != byte(req.Function) {
				t.Errorf("function = 0x%02X, want 0x%02X", frame[7], byte(req.Function))
			}
			if got := binary.BigEndian.Uint16(frame[8:10]); got != req.StartingAddress {
				t.Errorf("address = %d, want %d", got, req.StartingAddress)
			}
			if got := binary.BigEndian.Uint16(frame[10:12]); got != req.Quantity {
				t.Errorf("quantity = %d, want %d", got, req.Quantity)
			}
		}
	}
}

// TestRequestBytesRevalidates covers requests assembled without NewRequest:
// serialization must re-check the quantity against the bound function code.
func TestRequestBytesRevalidates(t *testing.T) {
	req := Request{
		TransactionID: 1,
		UnitID:        1,
		Function:      FuncReadHoldingRegisters,
		Quantity:      2000, // valid for coils, not for word reads
	}
	if _, err := req.Bytes(); err == nil {
		t.Fatal("Bytes() accepted quantity 2000 for a word function")
	}

	req.Function = 0x2B
	req.Quantity = 1
	if _, err := req.Bytes(); !errors.Is(err, ErrUnsupportedFunction) {
		t.Fatalf("Bytes() error = %v, want ErrUnsupportedFunction", err)
	}
}

func TestExpectedResponseLength(t *testing.T) {
	tests := []struct {
		name     string
		fc       FunctionCode
		quantity uint16
		want     int
	}{
		{"coils one bit", FuncReadCoils, 1, 10},
		{"coils full byte", FuncReadCoils, 8, 10},
		{"coils partial extra byte", FuncReadCoils, 9, 11},
		{"coils max", FuncReadCoils, 2000, 259},
		{"discrete inputs", FuncReadDiscreteInputs, 16, 11},
		{"holding one word", FuncReadHoldingRegisters, 1, 11},
		{"holding two words", FuncReadHoldingRegisters, 2, 13},
		{"input max", FuncReadInputRegisters, 125, 259},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest(1, 1, tt.fc, 0, tt.quantity)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			if got := req.ExpectedResponseLength(); got != tt.want {
				t.Errorf("ExpectedResponseLength() = %d, want %d", got, tt.want)
			}
		})
	}
}
