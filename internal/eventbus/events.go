package eventbus

import (
	"context"
	"time"
)

// EventType represents the type of an event
type EventType string

// Run lifecycle event types
const (
	EventRunStarted   EventType = "run_started"
	EventRunCompleted EventType = "run_completed"
	EventRunFailed    EventType = "run_failed"
	EventRunCancelled EventType = "run_cancelled"

	// One LLM request/response cycle
	EventRoundStarted EventType = "round_started"
	EventLLMReplied   EventType = "llm_replied"

	// Tool dispatch
	EventToolDispatched EventType = "tool_dispatched"
	EventToolCompleted  EventType = "tool_completed"
	EventToolFailed     EventType = "tool_failed"
	EventToolUnknown    EventType = "tool_unknown"
	EventToolRejected   EventType = "tool_rejected"
)

// Handler is a function that handles events
type Handler func(context.Context, Event) error

// Event records something that happened during a run.
type Event struct {
	Type   EventType
	RunID  string
	Round  int
	Tool   string // tool events only
	CallID string // tool events only
	Detail string
	Attrs  map[string]any
	At     time.Time
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, runID string, round int) Event {
	return Event{
		Type:  eventType,
		RunID: runID,
		Round: round,
		Attrs: make(map[string]any),
		At:    time.Now(),
	}
}

// WithTool sets the tool fields and returns the event.
func (e Event) WithTool(name, callID string) Event {
	e.Tool = name
	e.CallID = callID
	return e
}

// WithDetail sets a human readable detail and returns the event.
func (e Event) WithDetail(detail string) Event {
	e.Detail = detail
	return e
}

// WithAttr adds an attribute and returns the event.
func (e Event) WithAttr(key string, value any) Event {
	attrs := make(map[string]any, len(e.Attrs)+1)
	for k, v := range e.Attrs {
		attrs[k] = v
	}
	attrs[key] = value
	e.Attrs = attrs
	return e
}

// EventBus is the central event dispatch system
type EventBus interface {
	// Publish queues an event for all subscribed handlers
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for specific event types and returns a subscription ID
	Subscribe(eventTypes []EventType, handler Handler) (string, error)

	// SubscribeAll registers a handler for all event types and returns a subscription ID
	SubscribeAll(handler Handler) (string, error)

	// Unsubscribe removes a subscription by ID
	Unsubscribe(subscriptionID string) error

	// Close drains queued events and stops the workers
	Close() error
}
