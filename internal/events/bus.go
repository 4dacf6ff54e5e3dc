package events

import (
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 256

// Bus is a simple pub/sub event bus
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]filter
	bufferSize  int
	closed      bool

	dropped atomic.Uint64
}

// filter holds the event types a subscriber wants; nil means all
type filter map[EventType]struct{}

func (f filter) match(t EventType) bool {
	if f == nil {
		return true
	}
	_, ok := f[t]
	return ok
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return NewBusWithBuffer(defaultBufferSize)
}

// NewBusWithBuffer creates a bus whose subscriber channels hold size events
func NewBusWithBuffer(size int) *Bus {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Bus{
		subscribers: make(map[chan Event]filter),
		bufferSize:  size,
	}
}

// Subscribe returns a channel that receives events of the given types.
// With no types the subscriber receives every event.
func (b *Bus) Subscribe(types ...EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}

	var f filter
	if len(types) > 0 {
		f = make(filter, len(types))
		for _, t := range types {
			f[t] = struct{}{}
		}
	}
	b.subscribers[ch] = f
	return ch
}

// Unsubscribe removes a subscriber channel
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub == ch {
			delete(b.subscribers, sub)
			close(sub)
			return
		}
	}
}

// Publish sends an event to all matching subscribers.
// Non-blocking: if a subscriber's buffer is full, the event is dropped for that subscriber
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, f := range b.subscribers {
		if !f.match(event.Type) {
			continue
		}
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a buffer was full
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels. Later subscriptions get a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
