// Package client implements a synchronous Modbus TCP read client tying the
// pkg/modbus codec to a transport. One exchange is in flight at a time; the
// caller owns the transport's connect/close lifecycle.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/logger"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/metrics"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/modbus"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/transport"
)

// Client is a Modbus TCP read client. It is safe for concurrent use;
// exchanges are serialized internally because the protocol allows no
// pipelining on a single connection.
type Client struct {
	mu        sync.Mutex // serializes exchanges on the transport
	tr        transport.Transport
	unitID    uint8
	txCounter uint32
	log       *logger.Logger
}

// New creates a client for the given transport and unit id.
func New(tr transport.Transport, unitID uint8) *Client {
	return &Client{
		tr:     tr,
		unitID: unitID,
		log:    logger.Global().Component("client"),
	}
}

// UnitID returns the unit id requests are addressed to.
func (c *Client) UnitID() uint8 {
	return c.unitID
}

// ReadCoils reads quantity coils starting at address (FC 1).
func (c *Client) ReadCoils(ctx context.Context, address, quantity uint16) ([]bool, error) {
	return c.readBits(ctx, modbus.FuncReadCoils, address, quantity)
}

// ReadDiscreteInputs reads quantity discrete inputs starting at address (FC 2).
func (c *Client) ReadDiscreteInputs(ctx context.Context, address, quantity uint16) ([]bool, error) {
	return c.readBits(ctx, modbus.FuncReadDiscreteInputs, address, quantity)
}

// ReadHoldingRegisters reads quantity holding registers starting at address (FC 3).
func (c *Client) ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	return c.readWords(ctx, modbus.FuncReadHoldingRegisters, address, quantity)
}

// ReadInputRegisters reads quantity input registers starting at address (FC 4).
func (c *Client) ReadInputRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	return c.readWords(ctx, modbus.FuncReadInputRegisters, address, quantity)
}

// Read performs the read named by fc and returns the raw decoded result.
// Server exceptions are returned inside the result, not as an error.
func (c *Client) Read(ctx context.Context, fc modbus.FunctionCode, address, quantity uint16) (*modbus.Result, error) {
	req, err := modbus.NewRequest(c.nextTransactionID(), c.unitID, fc, address, quantity)
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, req)
}

// Exchange performs one complete request/response exchange: serialize the
// request, send it, read one response buffer of the predicted size, and
// parse it against the request. It is the low-level entry point for callers
// that assign their own transaction ids.
func (c *Client) Exchange(ctx context.Context, req modbus.Request) (*modbus.Result, error) {
	frame, err := req.Bytes()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fn := req.Function.String()
	if _, err := c.tr.Send(ctx, frame); err != nil {
		metrics.IncExchange(fn, metrics.StatusFailed)
		return nil, fmt.Errorf("send request: %w", err)
	}

	raw, err := c.tr.Receive(ctx, req.ExpectedResponseLength())
	if err != nil {
		metrics.IncExchange(fn, metrics.StatusFailed)
		return nil, fmt.Errorf("receive response: %w", err)
	}

	res, err := modbus.ParseResponse(req, raw)
	if err != nil {
		metrics.IncProtocolError(protocolErrorKind(err))
		metrics.IncExchange(fn, metrics.StatusFailed)
		return nil, err
	}

	if res.Exception != nil {
		metrics.IncException(res.Exception.Code.String())
		metrics.IncExchange(fn, metrics.StatusException)
		c.log.Debug("server exception",
			"function", fn,
			"code", uint8(res.Exception.Code),
			"kind", res.Exception.Code.String())
		return res, nil
	}

	metrics.IncExchange(fn, metrics.StatusSuccess)
	return res, nil
}

func (c *Client) readBits(ctx context.Context, fc modbus.FunctionCode, address, quantity uint16) ([]bool, error) {
	res, err := c.Read(ctx, fc, address, quantity)
	if err != nil {
		return nil, err
	}
	if res.Exception != nil {
		return nil, res.Exception
	}
	return res.Bits, nil
}

func (c *Client) readWords(ctx context.Context, fc modbus.FunctionCode, address, quantity uint16) ([]uint16, error) {
	res, err := c.Read(ctx, fc, address, quantity)
	if err != nil {
		return nil, err
	}
	if res.Exception != nil {
		return nil, res.Exception
	}
	return res.Words, nil
}

// nextTransactionID returns the next transaction id, wrapping at 65535.
func (c *Client) nextTransactionID() uint16 {
	return uint16(atomic.AddUint32(&c.txCounter, 1))
}

// protocolErrorKind maps a parse error to a metric label.
func protocolErrorKind(err error) string {
	var (
		tm *modbus.TransactionMismatchError
		uf *modbus.UnrecognizedFunctionError
		mr *modbus.MalformedResponseError
	)
	switch {
	case errors.As(err, &tm):
		return "transaction_mismatch"
	case errors.As(err, &uf):
		return "unrecognized_function"
	case errors.As(err, &mr):
		return "malformed_response"
	default:
		return "other"
	}
}
