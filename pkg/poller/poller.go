// Package poller runs a periodic read loop against a Modbus client and
// fans the decoded samples out to subscribers.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/client"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/logger"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/modbus"
	"github.com/google/uuid"
)

// Poller errors.
var (
	ErrAlreadyRunning = errors.New("poller already running")
	ErrNotRunning     = errors.New("poller not running")
)

// Target describes what the poller reads on each tick.
type Target struct {
	// Function is the read function code.
	Function modbus.FunctionCode `yaml:"function" json:"function"`

	// Address is the starting register address.
	Address uint16 `yaml:"address" json:"address"`

	// Quantity is the number of registers per read.
	Quantity uint16 `yaml:"quantity" json:"quantity"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s@%d+%d", t.Function, t.Address, t.Quantity)
}

// Sample is one decoded poll result. Exactly one of Bits, Words or
// Exception is populated, mirroring the codec's Result.
type Sample struct {
	// ID is a unique sample identifier.
	ID string `json:"id"`

	// Target describes the polled registers.
	Target string `json:"target"`

	// Bits holds decoded coil/discrete-input values.
	Bits []bool `json:"bits,omitempty"`

	// Words holds decoded register words.
	Words []uint16 `json:"words,omitempty"`

	// Exception names the server fault, empty on success.
	Exception string `json:"exception,omitempty"`

	// Timestamp is when the response was decoded.
	Timestamp time.Time `json:"timestamp"`

	// Latency is the request/response round-trip time.
	Latency time.Duration `json:"latency"`
}

// Stats holds poller statistics.
type Stats struct {
	Reads     uint64        `json:"reads"`
	Faults    uint64        `json:"faults"`
	Errors    uint64        `json:"errors"`
	Uptime    time.Duration `json:"uptime"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
}

// Poller drives one read target at a fixed interval. Exchanges are strictly
// sequential; the poller never reconnects, it only reports errors.
type Poller struct {
	mu sync.RWMutex

	client   *client.Client
	target   Target
	interval time.Duration
	log      *logger.Logger

	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	subscribers []chan *Sample
	subMu       sync.RWMutex

	stats     Stats
	startedAt time.Time
}

// New creates a poller for the given client, target and interval.
func New(c *client.Client, target Target, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		client:   c,
		target:   target,
		interval: interval,
		log:      logger.Global().Component("poller"),
	}
}

// Target returns the polled target.
func (p *Poller) Target() Target {
	return p.target
}

// Start launches the poll loop. It returns once the loop goroutine is
// running; Stop or context cancellation ends it.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.startedAt = time.Now()
	now := p.startedAt
	p.stats = Stats{StartedAt: &now}

	go p.loop(ctx)

	p.log.Info("poller started",
		"target", p.target.String(),
		"interval", p.interval.String())
	return nil
}

// Stop ends the poll loop and waits for it to finish. Subscriber channels
// are closed.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done

	p.subMu.Lock()
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
	p.subMu.Unlock()

	p.log.Info("poller stopped")
	return nil
}

// Subscribe returns a channel receiving every sample. Slow subscribers
// drop samples instead of stalling the loop. The channel is closed on Stop.
func (p *Poller) Subscribe() <-chan *Sample {
	ch := make(chan *Sample, 16)
	p.subMu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (p *Poller) Unsubscribe(ch <-chan *Sample) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	for i, sub := range p.subscribers {
		if sub == ch {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			close(sub)
			break
		}
	}
}

// Stats returns a snapshot of the poller statistics.
func (p *Poller) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.stats
	if p.running {
		s.Uptime = time.Since(p.startedAt)
	}
	return s
}

// loop runs reads until the context ends. The first read happens
// immediately, then one per tick.
func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll performs one exchange and publishes the outcome.
func (p *Poller) poll(ctx context.Context) {
	start := time.Now()
	res, err := p.client.Read(ctx, p.target.Function, p.target.Address, p.target.Quantity)
	latency := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.mu.Lock()
		p.stats.Errors++
		p.mu.Unlock()
		p.log.Error("poll failed", "target", p.target.String(), "error", err)
		return
	}

	sample := &Sample{
		ID:        uuid.NewString(),
		Target:    p.target.String(),
		Timestamp: time.Now(),
		Latency:   latency,
	}

	p.mu.Lock()
	if res.Exception != nil {
		sample.Exception = res.Exception.Code.String()
		p.stats.Faults++
	} else {
		sample.Bits = res.Bits
		sample.Words = res.Words
		p.stats.Reads++
	}
	p.mu.Unlock()

	if sample.Exception != "" {
		p.log.Warn("server exception", "target", p.target.String(), "exception", sample.Exception)
	} else {
		p.log.Debug("sample", "id", sample.ID, "latency", latency.String())
	}

	p.publish(sample)
}

// publish fans a sample out without blocking the loop.
func (p *Poller) publish(sample *Sample) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- sample:
		default:
			// subscriber is behind, drop
		}
	}
}
