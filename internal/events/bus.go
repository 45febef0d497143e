package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventBus defines the interface for the event bus system
type EventBus interface {
	// Publish publishes an event, blocking until it is queued or ctx ends
	Publish(ctx context.Context, event Event) error

	// PublishAsync publishes an event without blocking; events are dropped
	// when the buffer is full
	PublishAsync(event Event) error

	// Subscribe registers a handler for events matching the filter
	Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error)

	// Unsubscribe removes a subscription
	Unsubscribe(subscriptionID string) error

	// GetStats returns event bus statistics
	GetStats() Stats

	// Start starts the dispatcher
	Start(ctx context.Context) error

	// Stop stops the dispatcher gracefully
	Stop(ctx context.Context) error
}

type eventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventChannel  chan Event
	running       bool
	wg            sync.WaitGroup

	statsMu      sync.Mutex
	totalEvents  int64
	eventsByType map[string]int64
	dropped      int64
}

// NewEventBus creates a new event bus with the given buffer size.
func NewEventBus(bufferSize int) EventBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &eventBus{
		subscriptions: make(map[string]*Subscription),
		eventChannel:  make(chan Event, bufferSize),
		eventsByType:  make(map[string]int64),
	}
}

// Start starts the event dispatcher goroutine.
func (eb *eventBus) Start(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.running {
		return fmt.Errorf("event bus is already running")
	}
	eb.running = true

	eb.wg.Add(1)
	go eb.dispatch(ctx)
	return nil
}

// Stop drains and stops the dispatcher.
func (eb *eventBus) Stop(ctx context.Context) error {
	eb.mu.Lock()
	if !eb.running {
		eb.mu.Unlock()
		return nil
	}
	eb.running = false
	eb.mu.Unlock()

	close(eb.eventChannel)

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (eb *eventBus) dispatch(ctx context.Context) {
	defer eb.wg.Done()

	for {
		select {
		case event, ok := <-eb.eventChannel:
			if !ok {
				return
			}
			eb.deliver(event)
		case <-ctx.Done():
			// Drain whatever is already queued before exiting.
			for {
				select {
				case event, ok := <-eb.eventChannel:
					if !ok {
						return
					}
					eb.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (eb *eventBus) deliver(event Event) {
	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.subscriptions))
	for _, sub := range eb.subscriptions {
		if sub.Filter.matches(event) {
			handlers = append(handlers, sub.Handler)
		}
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

func (eb *eventBus) record(event Event) {
	eb.statsMu.Lock()
	eb.totalEvents++
	eb.eventsByType[string(event.Type)]++
	eb.statsMu.Unlock()
}

// Publish queues an event, blocking until accepted or the context ends.
// The read lock is held across the send: Stop takes the write lock before
// closing the channel, so no send can race the close.
func (eb *eventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if !eb.running {
		return fmt.Errorf("event bus is not running")
	}

	select {
	case eb.eventChannel <- event:
		eb.record(event)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAsync queues an event without blocking the caller.
func (eb *eventBus) PublishAsync(event Event) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if !eb.running {
		return fmt.Errorf("event bus is not running")
	}

	select {
	case eb.eventChannel <- event:
		eb.record(event)
		return nil
	default:
		eb.statsMu.Lock()
		eb.dropped++
		eb.statsMu.Unlock()
		return fmt.Errorf("event buffer full, dropped %s", event.Type)
	}
}

// Subscribe registers a handler for events matching the filter.
func (eb *eventBus) Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler must not be nil")
	}

	sub := &Subscription{
		ID:      uuid.NewString(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}

	eb.mu.Lock()
	eb.subscriptions[sub.ID] = sub
	eb.mu.Unlock()

	return sub, nil
}

// Unsubscribe removes a subscription by id.
func (eb *eventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, ok := eb.subscriptions[subscriptionID]; !ok {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(eb.subscriptions, subscriptionID)
	return nil
}

// GetStats returns event bus statistics.
func (eb *eventBus) GetStats() Stats {
	eb.statsMu.Lock()
	byType := make(map[string]int64, len(eb.eventsByType))
	for k, v := range eb.eventsByType {
		byType[k] = v
	}
	total := eb.totalEvents
	dropped := eb.dropped
	eb.statsMu.Unlock()

	eb.mu.RLock()
	active := len(eb.subscriptions)
	eb.mu.RUnlock()

	return Stats{
		TotalEvents:         total,
		EventsByType:        byType,
		ActiveSubscriptions: active,
		Dropped:             dropped,
	}
}
