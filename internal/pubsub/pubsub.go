// Package pubsub implements the in-memory topic registry: a concurrent
// mapping from topic name to a bounded, multi-producer/multi-consumer
// broadcast fan-out. It has no knowledge of HTTP or WebSocket; those live
// in internal/stream, which subscribes/publishes through this package.
package pubsub

import (
	"sync"
)

// Capacity is the number of pending messages each subscriber may buffer
// before it is considered lagging and disconnected, matching the bounded
// broadcast channel described by the consistency model.
const Capacity = 1024

// Registry is a concurrent map from topic name to *Topic, created lazily
// on first publish or subscribe and never removed for the life of the
// process.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]*Topic
}

// NewRegistry constructs an empty topic registry.
func NewRegistry() *Registry {
	return &Registry{topics: make(map[string]*Topic)}
}

// topic returns the named Topic, creating it if it does not yet exist.
func (r *Registry) topic(name string) *Topic {
	r.mu.RLock()
	t, ok := r.topics[name]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.topics[name]; ok {
		return t
	}
	t = newTopic()
	r.topics[name] = t
	return t
}

// Publish sends message to every current subscriber of name, creating the
// topic if it does not exist. Publishing to a topic with no subscribers
// is not an error; a subscriber whose buffer is full lags and is
// disconnected rather than blocking the publisher.
func (r *Registry) Publish(name string, message []byte) {
	r.topic(name).publish(message)
}

// Subscribe registers a new subscriber to name from this moment forward;
// messages published before Subscribe is called are never delivered to
// it. The returned Subscription must be closed by the caller when the
// connection ends.
func (r *Registry) Subscribe(name string) *Subscription {
	return r.topic(name).subscribe()
}

// Topic is a single named broadcast channel.
type Topic struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
}

func newTopic() *Topic {
	return &Topic{subscribers: make(map[*Subscription]struct{})}
}

func (t *Topic) publish(message []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subscribers {
		select {
		case sub.messages <- message:
		default:
			// Subscriber's buffer is full: it has lagged. Signal it and
			// drop it from the topic rather than blocking the publisher
			// or buffering unboundedly.
			t.removeLocked(sub)
			sub.lag()
		}
	}
}

func (t *Topic) subscribe() *Subscription {
	sub := &Subscription{
		messages: make(chan []byte, Capacity),
		lagged:   make(chan struct{}),
		topic:    t,
	}
	t.mu.Lock()
	t.subscribers[sub] = struct{}{}
	t.mu.Unlock()
	return sub
}

func (t *Topic) unsubscribe(sub *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(sub)
}

// removeLocked must be called with t.mu held.
func (t *Topic) removeLocked(sub *Subscription) {
	if _, ok := t.subscribers[sub]; ok {
		delete(t.subscribers, sub)
	}
}

// Subscription is a single subscriber's view of a Topic: a channel of
// forwarded messages, plus a lag signal closed when the subscriber falls
// behind and is disconnected.
type Subscription struct {
	messages chan []byte
	lagged   chan struct{}
	lagOnce  sync.Once
	topic    *Topic
}

// Messages returns the channel messages are forwarded on.
func (s *Subscription) Messages() <-chan []byte { return s.messages }

// Lagged returns a channel that is closed when the subscriber has been
// disconnected for lagging (its buffer overflowed).
func (s *Subscription) Lagged() <-chan struct{} { return s.lagged }

func (s *Subscription) lag() {
	s.lagOnce.Do(func() { close(s.lagged) })
}

// Close removes the subscription from its topic. Safe to call more than
// once.
func (s *Subscription) Close() {
	s.topic.unsubscribe(s)
}
