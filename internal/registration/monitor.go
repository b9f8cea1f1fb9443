package registration

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the Monitor checks for expired leases
// when no interval is configured.
const DefaultSweepInterval = 5 * time.Second

// Monitor periodically removes registrations whose lifetime has lapsed and
// reports each removal as an EventDeregistered with ReasonExpired.
type Monitor struct {
	registry *Registry
	events   EventSink
	interval time.Duration

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// MonitorConfig holds configuration for the lifetime monitor.
type MonitorConfig struct {
	// Registry is swept on every tick. Required.
	Registry *Registry

	// Events receives one event per expired record. Optional.
	Events EventSink

	// Interval between sweeps.
	// Default: 5 seconds.
	Interval time.Duration

	// Logger (optional)
	Logger Logger
}

// NewMonitor creates a monitor. Call Start to begin sweeping.
func NewMonitor(cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Monitor{
		registry: cfg.Registry,
		events:   cfg.Events,
		interval: interval,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Start begins periodic sweeping until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.sweepLoop(ctx)
}

// Stop halts sweeping and waits for an in-progress sweep to finish.
// Safe to call multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}

// Sweep removes every record expired at the registry's current time and
// returns how many were removed.
func (m *Monitor) Sweep() int {
	now := m.registry.Now()
	removed := m.registry.SweepExpired(now)
	for _, c := range removed {
		m.logger.Info("registration expired",
			"endpoint", c.Endpoint,
			"location", c.Location,
			"expires_at", c.ExpiresAt,
		)
		if m.events != nil {
			m.events.Emit(Event{
				Type:   EventDeregistered,
				Reason: ReasonExpired,
				Client: *c,
				Time:   now,
			})
		}
	}
	return len(removed)
}

func (m *Monitor) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
