// Package eventbus is an in-memory publish/subscribe bus. Status transitions
// are published here after the history row is committed; subscribers
// (metrics, logging) consume them asynchronously.
//
// Publish never blocks: an event is dropped for a subscriber whose buffer
// is full. Events are not persisted; the history table is the durable record.
package eventbus

import "sync"

// Event is a single published message.
type Event struct {
	Topic   string
	Payload any
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
}

const defaultBufferSize = 100

// Bus is the in-memory implementation of EventBus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	dropped     map[string]int
	closed      bool
}

// New returns a new in-memory Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan Event),
		dropped:     make(map[string]int),
	}
}

// Subscribe registers a subscriber for topic. The caller must drain the
// channel; it is closed by Close. Subscribing to a closed bus returns a
// closed channel.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, defaultBufferSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Publish sends an Event to all subscribers of topic.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- evt:
		default:
			b.dropped[topic]++
		}
	}
}

// Dropped reports how many deliveries to topic were discarded on full buffers.
func (b *Bus) Dropped(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped[topic]
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
}
