// Package eventbus is an in-process fan-out bus for run lifecycle events.
package eventbus

import "sync"

// DefaultBuffer is the channel capacity given to each subscriber.
const DefaultBuffer = 8

// Bus is a type-safe publish/subscribe bus for events of type T. A slow
// subscriber misses events instead of blocking publishers.
type Bus[T any] struct {
	mu      sync.RWMutex
	subs    []chan T
	buffer  int
	closed  bool
	dropped int
}

// New creates a bus whose subscribers buffer up to buffer events
// (DefaultBuffer when buffer <= 0).
func New[T any](buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus[T]{buffer: buffer}
}

// Publish delivers e to every subscriber with room and returns how many
// received it.
func (b *Bus[T]) Publish(e T) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	n := 0
	for _, ch := range b.subs {
		select {
		case ch <- e:
			n++
		default:
			b.dropped++
		}
	}
	return n
}

// Dropped returns the number of deliveries skipped because a subscriber
// was full.
func (b *Bus[T]) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Subscribe registers a subscriber and returns its channel. Subscribing to a
// closed bus yields a closed channel.
func (b *Bus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes the bus and all subscriber channels.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
