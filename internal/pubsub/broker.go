package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// defaultBufferSize holds a burst of cache changes from one conversion path
// (created, authoritative, invalidated per hop) with room to spare.
const defaultBufferSize = 64

// Broker fans each event out to every live subscription. A cache or the logger
// publishes from inside its own critical section, so Publish never waits: a
// subscription whose buffer is full misses the event and the miss is counted.
type Broker[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event[T]
	nextID  uint64
	done    chan struct{}
	buffer  int
	dropped atomic.Uint64
}

// NewBroker returns a broker whose subscriptions buffer defaultBufferSize events.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](defaultBufferSize)
}

// NewBrokerWithBuffer returns a broker whose subscriptions buffer size events.
// A size of 0 delivers only to subscribers already waiting on their channel.
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return &Broker[T]{
		subs:   make(map[uint64]chan Event[T]),
		done:   make(chan struct{}),
		buffer: max(size, 0),
	}
}

// Subscribe returns a channel of every event published from now on. It is
// closed when ctx ends or the broker closes; on a closed broker it is closed already.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed() {
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	b.nextID++
	id := b.nextID
	ch := make(chan Event[T], b.buffer)
	b.subs[id] = ch

	go b.expire(ctx, id)
	return ch
}

// expire drops subscription id once ctx ends. Close owns the channels when the
// broker shuts down first.
func (b *Broker[T]) expire(ctx context.Context, id uint64) {
	select {
	case <-ctx.Done():
	case <-b.done:
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish stamps the event and offers it to every subscription.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.isClosed() {
		return
	}

	event := Event[T]{Type: eventType, Payload: payload, Timestamp: time.Now()}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Close ends every subscription. Later calls do nothing.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed() {
		return
	}
	close(b.done)
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscription was full.
func (b *Broker[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// isClosed must be called with mu held.
func (b *Broker[T]) isClosed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
