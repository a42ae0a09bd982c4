// Package metrics exposes Prometheus instrumentation for Modbus exchanges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	ExchangeCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smbtc_exchanges_total",
		Help: "The total number of request/response exchanges",
	}, []string{"function", "status"})

	ExceptionCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smbtc_exceptions_total",
		Help: "The total number of server-reported Modbus exceptions",
	}, []string{"kind"})

	ProtocolErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smbtc_protocol_errors_total",
		Help: "The total number of protocol-level decode failures",
	}, []string{"kind"})

	// Gauges
	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smbtc_connected",
		Help: "Whether the transport is currently connected (1 or 0)",
	})
)

// Status constants
const (
	StatusSuccess   = "success"
	StatusException = "exception"
	StatusFailed    = "failed"
)

// IncExchange increments the exchange counter.
func IncExchange(function, status string) {
	ExchangeCount.WithLabelValues(function, status).Inc()
}

// IncException increments the exception counter.
func IncException(kind string) {
	ExceptionCount.WithLabelValues(kind).Inc()
}

// IncProtocolError increments the protocol error counter.
func IncProtocolError(kind string) {
	ProtocolErrorCount.WithLabelValues(kind).Inc()
}

// SetConnected sets the connection gauge.
func SetConnected(connected bool) {
	if connected {
		Connected.Set(1)
	} else {
		Connected.Set(0)
	}
}
