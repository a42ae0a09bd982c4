// Package tcp provides the TCP client transport used for Modbus TCP.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/transport"
)

// Common errors.
var (
	ErrNotConnected = errors.New("not connected")
	ErrConnClosed   = errors.New("connection closed")
)

// Client implements transport.Transport over a TCP connection.
type Client struct {
	mu sync.RWMutex

	config transport.Config

	conn        net.Conn
	id          string
	state       transport.ConnectionState
	stats       transport.Statistics
	connectedAt *time.Time
	lastError   error
}

// NewClient creates a new TCP client transport. Zero timeout fields in the
// config are filled from transport.DefaultConfig.
func NewClient(config transport.Config) (*Client, error) {
	if config.Address == "" {
		return nil, errors.New("tcp address is required (host:port)")
	}
	if _, _, err := net.SplitHostPort(config.Address); err != nil {
		return nil, fmt.Errorf("invalid address format: %w", err)
	}

	defaults := transport.DefaultConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	return &Client{
		config: config,
		id:     "tcp-client-" + config.Address,
		state:  transport.StateDisconnected,
	}, nil
}

// Connect establishes the TCP connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == transport.StateConnected {
		return nil
	}
	c.state = transport.StateConnecting

	dialer := &net.Dialer{
		Timeout: c.config.ConnectTimeout,
	}
	if c.config.KeepAlive && c.config.KeepAlivePeriod > 0 {
		dialer.KeepAlive = c.config.KeepAlivePeriod
	}

	conn, err := dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		c.state = transport.StateError
		c.lastError = err
		return fmt.Errorf("connect %s: %w", c.config.Address, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if c.config.KeepAlive {
			tcpConn.SetKeepAlive(true)
			if c.config.KeepAlivePeriod > 0 {
				tcpConn.SetKeepAlivePeriod(c.config.KeepAlivePeriod)
			}
		}
		tcpConn.SetNoDelay(c.config.NoDelay)
	}

	now := time.Now()
	c.conn = conn
	c.connectedAt = &now
	c.state = transport.StateConnected
	return nil
}

// Close closes the TCP connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == transport.StateDisconnected {
		return nil
	}

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.state = transport.StateDisconnected
	c.connectedAt = nil
	return err
}

// IsConnected returns true if connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == transport.StateConnected
}

// Send writes data to the connection.
func (c *Client) Send(ctx context.Context, data []byte) (int, error) {
	conn, err := c.active()
	if err != nil {
		return 0, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	} else if c.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}

	n, err := conn.Write(data)
	c.mu.Lock()
	c.stats.BytesSent += uint64(n)
	if err != nil {
		c.stats.Errors++
		c.lastError = err
	}
	c.mu.Unlock()
	return n, err
}

// Receive performs one blocking read into a buffer of max bytes. A timed
// out read is returned as the deadline error from the net package.
func (c *Client) Receive(ctx context.Context, max int) ([]byte, error) {
	conn, err := c.active()
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	} else if c.config.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}

	buf := make([]byte, max)
	n, err := conn.Read(buf)
	if err != nil {
		if err == io.EOF {
			err = ErrConnClosed
		}
		c.mu.Lock()
		c.stats.Errors++
		c.lastError = err
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.stats.BytesReceived += uint64(n)
	c.mu.Unlock()
	return buf[:n], nil
}

// Info returns transport information.
func (c *Client) Info() transport.Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := transport.Info{
		ID:          c.id,
		Type:        "tcp",
		Address:     c.config.Address,
		State:       c.state,
		Statistics:  c.stats,
		ConnectedAt: c.connectedAt,
	}
	if c.lastError != nil {
		info.LastError = c.lastError.Error()
	}
	return info
}

// active returns the current connection or ErrNotConnected.
func (c *Client) active() (net.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != transport.StateConnected || c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}
