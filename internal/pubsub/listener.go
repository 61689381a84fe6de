package pubsub

import "context"

// Listener wraps a broker subscription and hands events to a callback
// on its own goroutine until the context is cancelled or the broker closes.
type Listener[T any] struct {
	ctx  context.Context
	ch   <-chan Event[T]
	done chan struct{}
}

// NewListener subscribes to the broker. The subscription is cleaned up when ctx is cancelled.
func NewListener[T any](ctx context.Context, sub Subscriber[T]) *Listener[T] {
	return &Listener[T]{
		ctx:  ctx,
		ch:   sub.Subscribe(ctx),
		done: make(chan struct{}),
	}
}

// Next blocks for the next event. Returns false once the context is done
// or the subscription channel is closed.
func (l *Listener[T]) Next() (Event[T], bool) {
	select {
	case <-l.ctx.Done():
		var zero Event[T]
		return zero, false
	case event, ok := <-l.ch:
		return event, ok
	}
}

// Run calls fn for each event, optionally filtered by type, until Next reports false.
// Done is closed when Run returns.
func (l *Listener[T]) Run(fn func(Event[T]), types ...EventType) {
	defer close(l.done)
	for {
		event, ok := l.Next()
		if !ok {
			return
		}
		if len(types) > 0 && !containsType(types, event.Type) {
			continue
		}
		fn(event)
	}
}

// Done returns a channel closed once Run has returned.
func (l *Listener[T]) Done() <-chan struct{} {
	return l.done
}

func containsType(types []EventType, t EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
