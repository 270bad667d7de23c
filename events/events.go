// Package events delivers auth state changes to subscribers scoped by browser context.
package events

import (
	"sync"
	"time"

	"github.com/jrsteele09/study-assistant/sessions"
)

// Type is the kind of auth state change.
type Type string

const (
	InitialSession Type = "INITIAL_SESSION"
	SignedIn       Type = "SIGNED_IN"
	SignedOut      Type = "SIGNED_OUT"
	TokenRefreshed Type = "TOKEN_REFRESHED"
	UserUpdated    Type = "USER_UPDATED"
)

// Event is a single auth state change for one browser context.
// Session is nil for SignedOut.
type Event struct {
	Type     Type
	ClientID string
	Session  *sessions.Session
	At       time.Time
}

// Broker fans events out to the subscriptions of the event's client ID.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a subscription for clientID. The caller owns the subscription and
// must call Unsubscribe when done.
func (b *Broker) Subscribe(clientID string) *Subscription {
	s := &Subscription{
		broker:   b,
		clientID: clientID,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		out:      make(chan Event),
	}

	b.mu.Lock()
	if b.subs[clientID] == nil {
		b.subs[clientID] = make(map[*Subscription]struct{})
	}
	b.subs[clientID][s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
	return s
}

// Publish queues the event on every subscription for its client ID. It never blocks on
// slow subscribers. Publishes are serialised so all subscribers observe the same order.
func (b *Broker) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs[e.ClientID] {
		s.enqueue(e)
	}
}

// SubscriberCount returns the number of live subscriptions for clientID.
func (b *Broker) SubscriberCount(clientID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[clientID])
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[s.clientID]
	delete(subs, s)
	if len(subs) == 0 {
		delete(b.subs, s.clientID)
	}
}

// Subscription is a handle on an ordered stream of events.
type Subscription struct {
	broker   *Broker
	clientID string

	mu     sync.Mutex
	queue  []Event
	notify chan struct{}

	done chan struct{}
	out  chan Event
	once sync.Once
}

// C returns the event channel. It is closed after Unsubscribe.
func (s *Subscription) C() <-chan Event {
	return s.out
}

// Done is closed once the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe stops delivery and releases the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.done)
	})
}

func (s *Subscription) enqueue(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return Event{}, false
	}
	e := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return e, true
}

// pump moves queued events to the output channel in order until the subscription ends.
func (s *Subscription) pump() {
	defer close(s.out)
	for {
		e, ok := s.next()
		if !ok {
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- e:
		case <-s.done:
			return
		}
	}
}
