package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is a single subscriber's cursor over one topic.
type Subscription struct {
	router *Router
	topic  string

	mu     sync.Mutex
	queue  []Event
	closed bool
	notify chan struct{}
}

func newSubscription(router *Router, topic string) *Subscription {
	return &Subscription{
		router: router,
		topic:  topic,
		notify: make(chan struct{}, 1),
	}
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Next blocks until an event is available, the subscription is closed or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	return s.next(ctx, nil)
}

// next is Next that bumps inFlight when an event is taken off the queue.
func (s *Subscription) next(ctx context.Context, inFlight *atomic.Int64) (Event, error) {
	for {
		if ev, ok, err := s.pop(inFlight); ok || err != nil {
			return ev, err
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// TryNext returns the next queued event without waiting.
func (s *Subscription) TryNext() (Event, bool) {
	ev, ok, _ := s.pop(nil)
	return ev, ok
}

// Pending reports the number of queued, undelivered events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close detaches the subscription; queued events are dropped.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	s.router.detach(s)
	s.wake()
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	s.wake()
}

func (s *Subscription) pop(inFlight *atomic.Int64) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Event{}, false, ErrSubscriptionClosed
	}
	if len(s.queue) == 0 {
		return Event{}, false, nil
	}

	if inFlight != nil {
		inFlight.Add(1)
	}
	ev := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return ev, true, nil
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
