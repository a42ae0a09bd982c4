// Package api serves the HTTP status surface for poll mode: liveness,
// Prometheus metrics, poller status and a WebSocket sample stream.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/logger"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/poller"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig holds API server configuration.
type ServerConfig struct {
	// Listen is the listen address, e.g. ":8080".
	Listen string `yaml:"listen" json:"listen"`

	// PingInterval is the WebSocket keepalive interval.
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval"`

	// WriteTimeout bounds each WebSocket write.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DefaultServerConfig returns default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Listen:       ":8080",
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server is the HTTP status server.
type Server struct {
	poller   *poller.Poller
	config   ServerConfig
	srv      *http.Server
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewServer creates a status server over the given poller.
func NewServer(p *poller.Poller, config ServerConfig) *Server {
	defaults := DefaultServerConfig()
	if config.Listen == "" {
		config.Listen = defaults.Listen
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	return &Server{
		poller: p,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger.Global().Component("api"),
	}
}

// Start starts the server. It returns immediately; serve errors are logged.
func (s *Server) Start() error {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods("GET")
	v1.HandleFunc("/live", s.handleLive).Methods("GET")

	s.srv = &http.Server{
		Addr:    s.config.Listen,
		Handler: r,
	}

	s.log.Info("status server listening", "addr", s.config.Listen)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("status server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"target": s.poller.Target().String(),
		"stats":  s.poller.Stats(),
	})
}

// handleLive upgrades to WebSocket and streams every poll sample to the
// client as a JSON message until the client disconnects or the poller
// stops.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	samples := s.poller.Subscribe()
	defer s.poller.Unsubscribe(samples)

	// Reader goroutine: we accept no client messages, but reading is
	// required to notice the close handshake.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case sample, ok := <-samples:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(sample)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
