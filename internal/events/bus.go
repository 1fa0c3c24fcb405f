// internal/events/bus.go
package events

import (
	"sync"
	"time"
)

// Topic identifies a named event stream on the bus.
type Topic string

const (
	TopicSession       Topic = "session"
	TopicConnectivity  Topic = "connectivity"
	TopicNotifications Topic = "notifications"
)

// CollectionTopic returns the topic carrying change events for one entity collection.
func CollectionTopic(collection string) Topic {
	return Topic("collection:" + collection)
}

// Event is what subscribers receive.
type Event struct {
	Topic   Topic
	At      time.Time
	Payload interface{}
}

// Handler handles a published event.
type Handler func(Event)

// Bus is a synchronous in-process publish/subscribe dispatcher. Handlers for a
// topic run in subscription order on the publishing goroutine.
type Bus struct {
	mu   sync.RWMutex
	seq  int
	subs map[Topic][]subscription
}

type subscription struct {
	id      int
	handler Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers a handler for the topic and returns an unsubscribe func.
func (b *Bus) Subscribe(topic Topic, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	id := b.seq
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, sub := range subs {
			if sub.id == id {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every handler subscribed to its topic.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Topic]))
	for _, sub := range b.subs[event.Topic] {
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
