package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher is the write side of the bus.
type Publisher interface {
	// Publish sends an event to all matching subscribers. It never blocks
	// on slow subscribers and fails only when the bus is closed.
	Publish(ctx context.Context, event Event) error
}

// EventBus manages event distribution to subscribers with filtering support.
type EventBus interface {
	Publisher

	// Subscribe returns a channel of matching events and the function that
	// ends the subscription. A bufferSize of 0 selects the default.
	Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func())

	// Close ends every subscription. Publish fails afterwards.
	Close() error
}

// DefaultEventBus implements EventBus with buffered channels and non-blocking sends.
type DefaultEventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscription
	nextID      uint64
	options     eventBusOptions
	closed      bool
}

type subscription struct {
	id      uint64
	ch      chan Event
	filter  Filter
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64
}

type eventBusOptions struct {
	defaultBufferSize int
	errorHandler      ErrorHandler
	metricsRecorder   MetricsRecorder
}

// ErrorHandler is called when an event is dropped for a slow subscriber.
type ErrorHandler func(err error, context map[string]any)

// MetricsRecorder records metrics about event bus operations.
type MetricsRecorder interface {
	RecordEventPublished(eventType string, subscriberCount int)
	RecordEventDropped(eventType string)
}

// Option is a functional option for configuring DefaultEventBus.
type Option func(*eventBusOptions)

// WithDefaultBufferSize sets the buffer used when Subscribe gets 0.
// Default: 256 events.
func WithDefaultBufferSize(size int) Option {
	return func(opts *eventBusOptions) {
		if size > 0 {
			opts.defaultBufferSize = size
		}
	}
}

// WithErrorHandler sets the error handler for event bus operations.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(opts *eventBusOptions) {
		if handler != nil {
			opts.errorHandler = handler
		}
	}
}

// WithMetrics sets the metrics recorder for event bus operations.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(opts *eventBusOptions) {
		if recorder != nil {
			opts.metricsRecorder = recorder
		}
	}
}

// NewEventBus creates a new DefaultEventBus with the given options.
func NewEventBus(opts ...Option) *DefaultEventBus {
	options := eventBusOptions{
		defaultBufferSize: 256,
		errorHandler:      func(error, map[string]any) {},
		metricsRecorder:   noopMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &DefaultEventBus{
		subscribers: make(map[uint64]*subscription),
		options:     options,
	}
}

// Publish sends an event to all matching subscribers.
func (eb *DefaultEventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return fmt.Errorf("event bus is closed")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	sent := 0
	for _, sub := range eb.subscribers {
		if sub.ctx.Err() != nil || !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
			sent++
		case <-ctx.Done():
			return ctx.Err()
		default:
			sub.dropped.Add(1)
			eb.options.metricsRecorder.RecordEventDropped(string(event.Type))
			eb.options.errorHandler(
				fmt.Errorf("dropped event for slow subscriber"),
				map[string]any{
					"subscriber_id": sub.id,
					"event_type":    event.Type,
					"session_id":    event.SessionID,
					"agent_id":      event.AgentID,
				},
			)
		}
	}

	eb.options.metricsRecorder.RecordEventPublished(string(event.Type), sent)
	return nil
}

// Subscribe creates a new subscription. The channel stays open until the
// returned cleanup function runs or the bus is closed.
func (eb *DefaultEventBus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = eb.options.defaultBufferSize
	}

	ch := make(chan Event, bufferSize)
	if eb.closed {
		close(ch)
		return ch, func() {}
	}

	eb.nextID++
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:     eb.nextID,
		ch:     ch,
		filter: filter,
		ctx:    subCtx,
		cancel: cancel,
	}
	eb.subscribers[sub.id] = sub

	return ch, func() { eb.unsubscribe(sub.id) }
}

func (eb *DefaultEventBus) unsubscribe(id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub, exists := eb.subscribers[id]
	if !exists {
		return
	}
	sub.cancel()
	close(sub.ch)
	delete(eb.subscribers, id)
}

// Close shuts down the event bus and closes all subscriber channels.
// Close is idempotent.
func (eb *DefaultEventBus) Close() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return nil
	}
	eb.closed = true

	for id, sub := range eb.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(eb.subscribers, id)
	}
	return nil
}

// SubscriberCount returns the current number of active subscribers.
func (eb *DefaultEventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) RecordEventPublished(string, int) {}
func (noopMetricsRecorder) RecordEventDropped(string)        {}

// Ensure DefaultEventBus implements EventBus at compile time.
var _ EventBus = (*DefaultEventBus)(nil)
