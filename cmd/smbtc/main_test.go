package main

import (
	"testing"

	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/modbus"
)

func TestParseFunction(t *testing.T) {
	tests := []struct {
		in      string
		want    modbus.FunctionCode
		wantErr bool
	}{
		{"1", modbus.FuncReadCoils, false},
		{"4", modbus.FuncReadInputRegisters, false},
		{"0x03", modbus.FuncReadHoldingRegisters, false},
		{"coils", modbus.FuncReadCoils, false},
		{"discrete", modbus.FuncReadDiscreteInputs, false},
		{"holding", modbus.FuncReadHoldingRegisters, false},
		{"input", modbus.FuncReadInputRegisters, false},
		{"HOLDING", modbus.FuncReadHoldingRegisters, false},
		{"5", 0, true},
		{"0", 0, true},
		{"write-coil", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFunction(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFunction(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseFunction(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

// A server exception is a failed read regardless of the output format.
func TestPrintResultExceptionFailsInBothModes(t *testing.T) {
	res := &modbus.Result{
		Exception: &modbus.Exception{
			Function: modbus.FuncReadHoldingRegisters,
			Code:     modbus.ExceptionIllegalDataAddress,
		},
	}

	for _, mode := range []bool{false, true} {
		jsonOutput = mode
		if err := printResult(modbus.FuncReadHoldingRegisters, 0, res); err == nil {
			t.Errorf("jsonOutput=%v: printResult returned nil for a server exception", mode)
		}
	}
	jsonOutput = false
}

func TestPrintResultSuccess(t *testing.T) {
	res := &modbus.Result{Words: []uint16{10, 300}}
	if err := printResult(modbus.FuncReadHoldingRegisters, 0, res); err != nil {
		t.Errorf("printResult: %v", err)
	}
}
