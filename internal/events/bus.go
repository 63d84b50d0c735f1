// Package events provides the notification surface of the sync core: a
// generic publish/subscribe bus decoupled from any particular transport,
// so the same events drive UI toasts, log sinks, or test harnesses.
package events

import (
	"sync"
	"time"
)

// EventType represents the kind of event being published.
type EventType string

const (
	// EventSyncStarted is published when a sync pass begins.
	EventSyncStarted EventType = "sync.started"
	// EventSyncProgress is published after each replayed item.
	EventSyncProgress EventType = "sync.progress"
	// EventSyncItemFailed is published when an item fails replay; for
	// queue entries that exhausted their retries the data carries
	// "permanent": true.
	EventSyncItemFailed EventType = "sync.item_failed"
	// EventSyncCompleted is published once per pass with the summary.
	EventSyncCompleted EventType = "sync.completed"
	// EventNetworkOnline is published on an offline-to-online transition.
	EventNetworkOnline EventType = "network.online"
	// EventNetworkOffline is published on an online-to-offline transition.
	EventNetworkOffline EventType = "network.offline"
)

// Event represents a system event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

// Bus is a non-blocking event bus using the publish/subscribe pattern.
// Events are delivered asynchronously via buffered channels. If a
// subscriber's channel is full, the event is dropped silently.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
}

// NewBus creates a new event bus with the specified buffer size per
// subscriber.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber for a specific event type. The
// subscriber function is called asynchronously in a goroutine.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			// Recover from subscriber panics to keep the bus alive
			func() {
				defer func() {
					_ = recover()
				}()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish sends an event to all subscribers of the given type. Uses a
// non-blocking send; if a subscriber's channel is full the event is
// dropped for that subscriber.
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes all subscriber channels and clears subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}
