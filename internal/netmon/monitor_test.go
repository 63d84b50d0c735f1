// Package netmon provides unit tests for the connectivity monitor.
package netmon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/batman3101/equipment-sync/internal/events"
)

// fakeProber scripts probe outcomes.
type fakeProber struct {
	mu      sync.Mutex
	online  bool
	latency time.Duration
}

func (p *fakeProber) Health(ctx context.Context) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online {
		return 0, errors.New("connection refused")
	}
	return p.latency, nil
}

func (p *fakeProber) set(online bool, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
	p.latency = latency
}

// TestProbeEstablishesState tests the initial probe outcome.
func TestProbeEstablishesState(t *testing.T) {
	prober := &fakeProber{online: true, latency: 40 * time.Millisecond}
	bus := events.NewBus(10)
	defer bus.Close()

	m := NewMonitor(prober, bus, nil)
	m.Probe(context.Background())

	if !m.IsOnline() {
		t.Error("Expected online after successful probe")
	}
	if m.CurrentQuality() != QualityFast {
		t.Errorf("Expected fast quality for 40ms, got %s", m.CurrentQuality())
	}
}

// TestRecoveryTriggersSync tests the offline-to-online side effects.
func TestRecoveryTriggersSync(t *testing.T) {
	prober := &fakeProber{online: false}
	bus := events.NewBus(10)
	defer bus.Close()

	onlineEvents := make(chan events.Event, 1)
	bus.Subscribe(events.EventNetworkOnline, func(e events.Event) {
		onlineEvents <- e
	})

	m := NewMonitor(prober, bus, nil)

	synced := make(chan struct{}, 1)
	m.OnRecovery(func() { synced <- struct{}{} })
	registered := make(chan struct{}, 1)
	m.RegisterBackgroundTrigger(func() { registered <- struct{}{} })

	m.Probe(context.Background())
	if m.IsOnline() {
		t.Fatal("Expected offline initially")
	}

	prober.set(true, 150*time.Millisecond)
	m.Probe(context.Background())

	if !m.IsOnline() {
		t.Fatal("Expected online after recovery probe")
	}

	select {
	case <-synced:
	case <-time.After(time.Second):
		t.Error("Recovery did not trigger sync")
	}
	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Error("Recovery did not re-register background trigger")
	}
	select {
	case <-onlineEvents:
	case <-time.After(time.Second):
		t.Error("network.online event not published")
	}
}

// TestOfflineTransitionOnlySignals tests that going offline publishes
// the event but fires no triggers.
func TestOfflineTransitionOnlySignals(t *testing.T) {
	prober := &fakeProber{online: true, latency: 50 * time.Millisecond}
	bus := events.NewBus(10)
	defer bus.Close()

	offlineEvents := make(chan events.Event, 1)
	bus.Subscribe(events.EventNetworkOffline, func(e events.Event) {
		offlineEvents <- e
	})

	m := NewMonitor(prober, bus, nil)
	triggered := make(chan struct{}, 2)
	m.OnRecovery(func() { triggered <- struct{}{} })

	m.Probe(context.Background())
	<-time.After(50 * time.Millisecond) // drain the initial recovery trigger
	for len(triggered) > 0 {
		<-triggered
	}

	prober.set(false, 0)
	m.Probe(context.Background())

	if m.IsOnline() {
		t.Fatal("Expected offline after failed probe")
	}
	if m.CurrentQuality() != QualityUnknown {
		t.Errorf("Expected unknown quality offline, got %s", m.CurrentQuality())
	}

	select {
	case <-offlineEvents:
	case <-time.After(time.Second):
		t.Error("network.offline event not published")
	}
	select {
	case <-triggered:
		t.Error("Recovery trigger fired on offline transition")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestSteadyStateDoesNotRefire tests that repeated online probes don't
// re-trigger recovery.
func TestSteadyStateDoesNotRefire(t *testing.T) {
	prober := &fakeProber{online: true, latency: 50 * time.Millisecond}
	bus := events.NewBus(10)
	defer bus.Close()

	m := NewMonitor(prober, bus, nil)
	var mu sync.Mutex
	count := 0
	m.OnRecovery(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	m.Probe(context.Background())
	m.Probe(context.Background())
	m.Probe(context.Background())
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("Expected 1 recovery trigger (initial), got %d", count)
	}
}

// TestClassifyLatency tests the quality buckets.
func TestClassifyLatency(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    Quality
	}{
		{50 * time.Millisecond, QualityFast},
		{200 * time.Millisecond, QualityMedium},
		{600 * time.Millisecond, QualitySlow},
		{2 * time.Second, QualityVerySlow},
		{0, QualityUnknown},
	}
	for _, tt := range tests {
		if got := classifyLatency(tt.latency); got != tt.want {
			t.Errorf("classifyLatency(%v) = %s, want %s", tt.latency, got, tt.want)
		}
	}
}

// TestStartStop tests the probe loop lifecycle.
func TestStartStop(t *testing.T) {
	prober := &fakeProber{online: true, latency: 10 * time.Millisecond}
	bus := events.NewBus(10)
	defer bus.Close()

	m := NewMonitor(prober, bus, &Config{
		ProbeInterval: 10 * time.Millisecond,
		ProbeTimeout:  time.Second,
	})

	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	if !m.IsOnline() {
		t.Error("Expected online while loop runs")
	}
	m.Stop()

	// Stop again must be a no-op
	m.Stop()
}
