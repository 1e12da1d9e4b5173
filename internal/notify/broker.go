// Package notify is the process-owned publish/subscribe channel behind the
// realtime fan-out. Events are recompute signals only: they identify the
// affected user or provider and carry no business data, so every subscriber
// re-reads current durable state before pushing anything. The broker lives
// in memory; subscribers re-subscribe and refetch on reconnect.
package notify

import (
	"sync"

	"github.com/google/uuid"
)

// Semantic event names published by the fulfillment service.
const (
	EventAssigned    = "order.assigned"
	EventAccepted    = "order.accepted"
	EventCancelled   = "order.cancelled"
	EventRescheduled = "order.rescheduled"
	EventStarted     = "order.workStarted"
	EventCompleted   = "order.workCompleted"
	EventPayment     = "order.paymentReceived"
)

// Event identifies a state change relevant to one subject.
type Event struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	SubjectID uuid.UUID `json:"subjectId"`
}

// Subscription is one live listener for a (role, subject) pair.
type Subscription struct {
	role      string
	subjectID uuid.UUID
	events    chan Event
}

// Events is the stream of matching events; closed on Unsubscribe or when
// the broker shuts down.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Broker routes events to subscriptions keyed by (role, subject id).
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]bool

	register   chan *Subscription
	unregister chan *Subscription
	publish    chan Event
	done       chan struct{}
	closeOnce  sync.Once
}

// NewBroker creates a Broker; call Run in a goroutine before use.
func NewBroker() *Broker {
	return &Broker{
		subs:       make(map[string]map[*Subscription]bool),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		publish:    make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

// Run is the broker's main loop: go broker.Run().
func (b *Broker) Run() {
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			k := key(sub.role, sub.subjectID)
			if b.subs[k] == nil {
				b.subs[k] = make(map[*Subscription]bool)
			}
			b.subs[k][sub] = true
			b.mu.Unlock()

		case sub := <-b.unregister:
			b.mu.Lock()
			b.drop(sub)
			b.mu.Unlock()

		case ev := <-b.publish:
			b.mu.Lock()
			for sub := range b.subs[key(ev.Role, ev.SubjectID)] {
				select {
				case sub.events <- ev:
				default:
					// Listener is not draining; drop it. It will
					// refetch current state on reconnect anyway.
					b.drop(sub)
				}
			}
			b.mu.Unlock()

		case <-b.done:
			b.mu.Lock()
			for _, set := range b.subs {
				for sub := range set {
					close(sub.events)
				}
			}
			b.subs = make(map[string]map[*Subscription]bool)
			b.mu.Unlock()
			return
		}
	}
}

// Close stops the loop and closes every live subscription.
func (b *Broker) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Subscribe registers a listener for events addressed to (role, subjectID).
func (b *Broker) Subscribe(role string, subjectID uuid.UUID) *Subscription {
	sub := &Subscription{
		role:      role,
		subjectID: subjectID,
		events:    make(chan Event, 16),
	}
	select {
	case b.register <- sub:
	case <-b.done:
		close(sub.events)
	}
	return sub
}

// Unsubscribe deregisters the listener and closes its event stream.
func (b *Broker) Unsubscribe(sub *Subscription) {
	select {
	case b.unregister <- sub:
	case <-b.done:
	}
}

// Publish routes ev to all matching subscriptions; never blocks after Close.
func (b *Broker) Publish(ev Event) {
	select {
	case b.publish <- ev:
	case <-b.done:
	}
}

// drop removes sub and closes its channel; caller holds b.mu.
func (b *Broker) drop(sub *Subscription) {
	k := key(sub.role, sub.subjectID)
	set, ok := b.subs[k]
	if !ok {
		return
	}
	if _, exists := set[sub]; !exists {
		return
	}
	delete(set, sub)
	close(sub.events)
	if len(set) == 0 {
		delete(b.subs, k)
	}
}

func key(role string, id uuid.UUID) string {
	return role + ":" + id.String()
}
