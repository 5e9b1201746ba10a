// Package connectivity provides an edge-triggered network reachability
// monitor for the sync engine.
package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultProbeTimeout bounds a single reachability probe.
const DefaultProbeTimeout = 2 * time.Second

// DefaultPollInterval is how often the monitor re-probes.
const DefaultPollInterval = 15 * time.Second

// Prober answers whether the network is currently reachable. Probes must be
// bounded: return false rather than hang.
type Prober interface {
	Probe(ctx context.Context) bool
}

// DialProber probes reachability with a short-timeout TCP dial against a
// fixed address. It verifies reachability of the configured endpoint, not
// just generic internet access.
type DialProber struct {
	Addr    string
	Timeout time.Duration
}

// Probe dials the configured address and reports whether the connection
// succeeded within the timeout.
func (p *DialProber) Probe(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := net.DialTimeout("tcp", p.Addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Monitor observes network reachability and notifies subscribers on edge
// transitions only: repeated identical probe results are suppressed.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   zerolog.Logger

	mu          sync.RWMutex
	connected   bool
	subscribers []chan bool
	running     bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor polling the given prober. The monitor starts
// out disconnected until the first probe or SetConnected call.
func NewMonitor(prober Prober, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger.With().Str("component", "connectivity").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// IsConnected returns the last observed reachability state.
func (m *Monitor) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Subscribe returns a channel receiving the new state on every edge
// transition. The channel is buffered; a slow consumer drops intermediate
// transitions rather than blocking the monitor.
func (m *Monitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan bool, 4)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// SetConnected forces the reachability state, firing subscribers if it is an
// edge transition. Used when the host application has its own reachability
// signal, and by tests.
func (m *Monitor) SetConnected(connected bool) {
	m.transition(connected)
}

// transition updates state and notifies subscribers only when it changes.
func (m *Monitor) transition(connected bool) {
	m.mu.Lock()
	if m.connected == connected {
		m.mu.Unlock()
		return
	}
	m.connected = connected
	subs := make([]chan bool, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	m.logger.Info().Bool("connected", connected).Msg("connectivity changed")

	for _, ch := range subs {
		select {
		case ch <- connected:
		default:
		}
	}
}

// Start launches the background poll loop. Idempotent.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	// Establish the initial state before the first tick
	m.transition(m.probe(ctx))

	m.wg.Add(1)
	go m.pollLoop(ctx)
}

// Stop halts the poll loop and waits for it to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.transition(m.probe(ctx))
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	if m.prober == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()
	return m.prober.Probe(probeCtx)
}
