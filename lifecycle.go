package fiberbundle

import (
	"regexp"
	"sync"
)

// LifecycleEvent is one notification published on the lifecycle bus:
// a fiber spawned or exited, a panic was contained, a bundle came up,
// or a relay target turned out to be unknown. Subscribers are plain
// callbacks rather than fiber sends, since lifecycle subscribers here
// are typically host-side monitoring code or tests, not fibers.
type LifecycleEvent struct {
	Topic   string
	Payload interface{}
}

type lifecycleSubscriber struct {
	pattern *regexp.Regexp
	fn      func(LifecycleEvent)
}

// LifecycleBus is a small topic-filtered pub/sub bus owned by the
// coordinator. It surfaces diagnostics such as the
// unknown-receiver-on-relay case, and gives host code a way to
// observe fiber panics and spawns without needing a logger fiber.
type LifecycleBus struct {
	mu          sync.Mutex
	subscribers []lifecycleSubscriber
}

// NewLifecycleBus creates an empty bus.
func NewLifecycleBus() *LifecycleBus {
	return &LifecycleBus{}
}

// Subscribe registers fn to be called for every published event whose
// topic matches pattern (a regexp; "" matches everything). Subscribe
// and Publish may be called concurrently from any goroutine.
func (b *LifecycleBus) Subscribe(pattern string, fn func(LifecycleEvent)) error {
	var rx *regexp.Regexp
	if pattern != "" {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return err
		}
		rx = compiled
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, lifecycleSubscriber{pattern: rx, fn: fn})
	return nil
}

// Publish notifies every subscriber whose pattern matches topic.
// Subscriber callbacks run synchronously, on the publishing goroutine
// — callbacks must not block or they will stall whichever bundle or
// coordinator call published the event.
func (b *LifecycleBus) Publish(topic string, payload interface{}) {
	b.mu.Lock()
	subs := make([]lifecycleSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	event := LifecycleEvent{Topic: topic, Payload: payload}
	for _, s := range subs {
		if s.pattern == nil || s.pattern.MatchString(topic) {
			s.fn(event)
		}
	}
}
