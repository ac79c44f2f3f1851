// Package eventbus delivers run lifecycle events to asynchronous subscribers.
package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("event bus is closed")

type subscription struct {
	id      string
	types   map[EventType]struct{} // nil means every type
	handler Handler
}

func (s subscription) matches(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

type queuedEvent struct {
	ctx   context.Context
	event Event
}

// ChannelEventBus is an EventBus backed by a buffered channel and a fixed worker pool.
type ChannelEventBus struct {
	mu   sync.RWMutex // guards subs
	subs []subscription

	// stateMu guards closed and the queue's lifetime; workers never take it.
	stateMu sync.RWMutex
	closed  bool

	queue chan queuedEvent
	wg    sync.WaitGroup

	bufferSize    int
	workerCount   int
	maxRetries    int
	retryInterval time.Duration
	logger        *slog.Logger
}

// Option configures the channel-based event bus
type Option func(*ChannelEventBus)

// WithBufferSize sets the event channel buffer size
func WithBufferSize(size int) Option {
	return func(eb *ChannelEventBus) {
		eb.bufferSize = size
	}
}

// WithWorkerCount sets the number of event processing workers
func WithWorkerCount(count int) Option {
	return func(eb *ChannelEventBus) {
		eb.workerCount = count
	}
}

// WithRetries configures the retry behavior for event handlers
func WithRetries(maxRetries int, retryInterval time.Duration) Option {
	return func(eb *ChannelEventBus) {
		eb.maxRetries = maxRetries
		eb.retryInterval = retryInterval
	}
}

// WithLogger sets the logger used to report handler failures.
func WithLogger(logger *slog.Logger) Option {
	return func(eb *ChannelEventBus) {
		eb.logger = logger
	}
}

// NewChannelEventBus creates a bus and starts its workers.
func NewChannelEventBus(options ...Option) *ChannelEventBus {
	eb := &ChannelEventBus{
		bufferSize:    100,
		workerCount:   2,
		maxRetries:    2,
		retryInterval: 50 * time.Millisecond,
	}
	for _, option := range options {
		option(eb)
	}
	if eb.workerCount < 1 {
		eb.workerCount = 1
	}
	if eb.bufferSize < 0 {
		eb.bufferSize = 0
	}
	if eb.logger == nil {
		eb.logger = slog.Default()
	}

	eb.queue = make(chan queuedEvent, eb.bufferSize)
	for i := 0; i < eb.workerCount; i++ {
		eb.wg.Add(1)
		go eb.worker()
	}
	return eb
}

func (eb *ChannelEventBus) worker() {
	defer eb.wg.Done()
	for qe := range eb.queue {
		eb.dispatch(qe)
	}
}

func (eb *ChannelEventBus) dispatch(qe queuedEvent) {
	eb.mu.RLock()
	handlers := make([]Handler, 0, len(eb.subs))
	for _, s := range eb.subs {
		if s.matches(qe.event.Type) {
			handlers = append(handlers, s.handler)
		}
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		eb.runHandler(qe.ctx, qe.event, h)
	}
}

func (eb *ChannelEventBus) runHandler(ctx context.Context, event Event, handler Handler) {
	var err error
	for attempt := 0; attempt <= eb.maxRetries; attempt++ {
		if err = handler(ctx, event); err == nil {
			return
		}
		if attempt < eb.maxRetries {
			time.Sleep(eb.retryInterval)
		}
	}
	eb.logger.Warn("event handler failed",
		"event_type", event.Type,
		"run_id", event.RunID,
		"attempts", eb.maxRetries+1,
		"error", err)
}

// Publish queues the event. It blocks while the buffer is full, until ctx is done.
// Handlers run with ctx's values but not its cancellation, so events published
// at the very end of a run are still delivered.
func (eb *ChannelEventBus) Publish(ctx context.Context, event Event) error {
	eb.stateMu.RLock()
	defer eb.stateMu.RUnlock()
	if eb.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	qe := queuedEvent{ctx: context.WithoutCancel(ctx), event: event}
	select {
	case eb.queue <- qe:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler for specific event types
func (eb *ChannelEventBus) Subscribe(eventTypes []EventType, handler Handler) (string, error) {
	if len(eventTypes) == 0 {
		return "", errors.New("at least one event type is required")
	}
	types := make(map[EventType]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = struct{}{}
	}
	return eb.add(types, handler)
}

// SubscribeAll registers a handler for all event types
func (eb *ChannelEventBus) SubscribeAll(handler Handler) (string, error) {
	return eb.add(nil, handler)
}

func (eb *ChannelEventBus) add(types map[EventType]struct{}, handler Handler) (string, error) {
	if handler == nil {
		return "", errors.New("handler cannot be nil")
	}
	eb.stateMu.RLock()
	defer eb.stateMu.RUnlock()
	if eb.closed {
		return "", ErrClosed
	}
	id := uuid.NewString()
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subs = append(eb.subs, subscription{id: id, types: types, handler: handler})
	return id, nil
}

// Unsubscribe removes a subscription by ID
func (eb *ChannelEventBus) Unsubscribe(subscriptionID string) error {
	eb.stateMu.RLock()
	defer eb.stateMu.RUnlock()
	if eb.closed {
		return ErrClosed
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	kept := eb.subs[:0]
	for _, s := range eb.subs {
		if s.id != subscriptionID {
			kept = append(kept, s)
		}
	}
	eb.subs = kept
	return nil
}

// Close stops accepting events, delivers what is already queued and waits for the workers.
func (eb *ChannelEventBus) Close() error {
	eb.stateMu.Lock()
	if eb.closed {
		eb.stateMu.Unlock()
		return nil
	}
	eb.closed = true
	close(eb.queue)
	eb.stateMu.Unlock()

	eb.wg.Wait()
	return nil
}
