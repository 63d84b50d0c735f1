// Package netmon maintains the observable connectivity signal of the
// sync core and invokes synchronization when the connection recovers.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/batman3101/equipment-sync/internal/events"
	"github.com/batman3101/equipment-sync/internal/logging"
)

// Quality is a coarse, purely advisory bandwidth/latency classification.
// It informs UI surfaces and never gates sync behavior.
type Quality string

const (
	QualityUnknown  Quality = "unknown"
	QualityVerySlow Quality = "very-slow"
	QualitySlow     Quality = "slow"
	QualityMedium   Quality = "medium"
	QualityFast     Quality = "fast"
)

// Prober checks backend reachability. The API client satisfies this.
type Prober interface {
	Health(ctx context.Context) (time.Duration, error)
}

// Config holds monitor settings.
type Config struct {
	ProbeInterval time.Duration // how often to probe (default: 10s)
	ProbeTimeout  time.Duration // per-probe deadline (default: 5s)
}

// DefaultConfig returns default monitor configuration.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval: 10 * time.Second,
		ProbeTimeout:  5 * time.Second,
	}
}

// Monitor probes the backend health endpoint and tracks the two-state
// connectivity signal. On an offline-to-online transition it fires the
// registered recovery trigger and re-registers the best-effort
// background trigger; going offline never cancels an in-flight pass.
type Monitor struct {
	prober   Prober
	bus      *events.Bus
	interval time.Duration
	timeout  time.Duration

	mu        sync.RWMutex
	isRunning bool
	online    bool
	probed    bool // false until the first probe completes
	quality   Quality

	recovery   func()
	background func()

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor. The bus receives network.online and
// network.offline events on transitions.
func NewMonitor(prober Prober, bus *events.Bus, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		prober:   prober,
		bus:      bus,
		interval: config.ProbeInterval,
		timeout:  config.ProbeTimeout,
		quality:  QualityUnknown,
		stopCh:   make(chan struct{}),
	}
}

// OnRecovery registers the function invoked on each offline-to-online
// transition, typically the orchestrator's reconnect sync.
func (m *Monitor) OnRecovery(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovery = fn
}

// RegisterBackgroundTrigger registers an optional platform facility for
// requesting a sync attempt outside the foreground lifecycle. Its
// absence degrades gracefully to foreground-only sync.
func (m *Monitor) RegisterBackgroundTrigger(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.background = fn
}

// Start launches the probe loop. An immediate probe establishes the
// initial state before the interval ticks begin.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.probeLoop(ctx)

	logging.Info("Network monitor started",
		map[string]interface{}{"probe_interval": m.interval.String()})
}

// Stop stops the probe loop gracefully.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()

	logging.Info("Network monitor stopped", nil)
}

// probeLoop drives periodic probes until stopped.
func (m *Monitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()

	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe performs one health check and applies the resulting transition.
// Exposed so callers can force a re-check, e.g. after a failed request.
func (m *Monitor) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	latency, err := m.prober.Health(probeCtx)
	m.applyProbe(err == nil, latency)
}

// applyProbe moves the state machine and fires transition side effects.
func (m *Monitor) applyProbe(online bool, latency time.Duration) {
	m.mu.Lock()
	wasOnline := m.online
	first := !m.probed
	m.probed = true
	m.online = online
	if online {
		m.quality = classifyLatency(latency)
	} else {
		m.quality = QualityUnknown
	}
	recovery := m.recovery
	background := m.background
	m.mu.Unlock()

	if online == wasOnline && !first {
		return
	}

	if online {
		logging.Info("Connection restored",
			map[string]interface{}{"latency_ms": latency.Milliseconds()})
		m.bus.Publish(events.EventNetworkOnline,
			map[string]interface{}{"quality": string(m.CurrentQuality())})

		// Trigger an immediate sync attempt and re-register for
		// deferred sync, both outside the monitor's own goroutine.
		if recovery != nil {
			go recovery()
		}
		if background != nil {
			go background()
		}
	} else {
		logging.Warn("Connection lost", nil)
		// An in-flight pass is left to fail on its own request
		// timeouts rather than being preemptively aborted.
		m.bus.Publish(events.EventNetworkOffline, nil)
	}
}

// classifyLatency buckets a probe round trip into a Quality.
func classifyLatency(latency time.Duration) Quality {
	switch {
	case latency <= 0:
		return QualityUnknown
	case latency < 100*time.Millisecond:
		return QualityFast
	case latency < 300*time.Millisecond:
		return QualityMedium
	case latency < time.Second:
		return QualitySlow
	default:
		return QualityVerySlow
	}
}

// IsOnline returns the current connectivity signal.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// CurrentQuality returns the advisory connection quality.
func (m *Monitor) CurrentQuality() Quality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quality
}
