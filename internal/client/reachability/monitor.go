// Package reachability tracks whether the server can be reached by polling
// a cheap probe, and notifies listeners on transitions.
package reachability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/logging"
)

const probeTimeout = 3 * time.Second

// Prober answers nil when the server is reachable. api.Client.Ping fits.
type Prober func(ctx context.Context) error

type Monitor struct {
	probe    Prober
	interval time.Duration
	logger   logging.Logger

	online atomic.Bool

	mu        sync.Mutex
	listeners []func(online bool)
}

func NewMonitor(probe Prober, interval time.Duration, logger logging.Logger) *Monitor {
	return &Monitor{probe: probe, interval: interval, logger: logger}
}

// Online is the last observed state. It starts false until the first check.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnChange registers fn to run after every transition.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Check probes once, updates the state and returns it.
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := m.probe(pctx)
	cancel()

	now := err == nil
	if m.online.Swap(now) != now {
		m.logger.Info(ctx, "connectivity changed", "online", now)
		m.notify(now)
	} else if err != nil {
		m.logger.Debug(ctx, "probe failed", "error", err)
	}
	return now
}

func (m *Monitor) notify(online bool) {
	m.mu.Lock()
	ls := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range ls {
		fn(online)
	}
}

// Run checks immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
