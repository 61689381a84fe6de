// Package pubsub provides a generic publish/subscribe event system.
//
// Representation caches publish on it when an instance is created or when the
// authoritative kind changes, and the logger publishes every entry it writes.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// CreatedEvent reports that a new instance exists (a representation, a log line).
	CreatedEvent EventType = "created"
	// AuthoritativeEvent reports that a different representation now holds the latest content.
	AuthoritativeEvent EventType = "authoritative"
	// InvalidatedEvent reports that instances were marked stale.
	InvalidatedEvent EventType = "invalidated"
	// ReleasedEvent reports that a registration was withdrawn.
	ReleasedEvent EventType = "released"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc[T any] func(eventType EventType, payload T)

// Publish calls f(eventType, payload).
func (f PublisherFunc[T]) Publish(eventType EventType, payload T) {
	f(eventType, payload)
}
