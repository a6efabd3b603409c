package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type topic struct {
	name        string
	seq         uint64
	subscribers []*Subscription
}

// Router is a topic keyed publish/subscribe bus. Every subscriber owns an
// unbounded FIFO queue, so Publish never blocks and never fails.
type Router struct {
	logger *zap.Logger

	mu     sync.Mutex
	topics map[string]*topic

	created time.Time

	// Statistics
	postCount     atomic.Uint64
	dispatchCount atomic.Uint64
	dispatchFails atomic.Uint64
	inFlight      atomic.Int64
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		logger:  logger,
		topics:  make(map[string]*topic),
		created: time.Now(),
	}
}

// Publish appends payload to the queue of every current subscriber of name.
// Subscribers that join later never see it.
func (r *Router) Publish(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.topicLocked(name)
	t.seq++
	r.postCount.Add(1)

	ev := Event{
		Topic:     name,
		Payload:   payload,
		Seq:       t.seq,
		TimeStamp: time.Now(),
	}
	for _, sub := range t.subscribers {
		sub.push(ev)
	}
}

// Subscribe returns an independent cursor that receives every event published
// to name from now on.
func (r *Router) Subscribe(name string) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.topicLocked(name)
	sub := newSubscription(r, name)
	t.subscribers = append(t.subscribers, sub)
	return sub
}

// Topics lists every topic referenced so far.
func (r *Router) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	return names
}

// SubscriberCount reports the number of attached subscribers of name.
func (r *Router) SubscriberCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.topics[name]; ok {
		return len(t.subscribers)
	}
	return 0
}

// Pending reports the number of events queued across all subscriptions.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.topics {
		for _, sub := range t.subscribers {
			n += sub.Pending()
		}
	}
	return n
}

// Idle reports whether nothing is queued and no Listen handler is running.
// It is a snapshot; callers that need quiescence should observe it repeatedly.
func (r *Router) Idle() bool {
	return r.Pending() == 0 && r.inFlight.Load() == 0
}

func (r *Router) Statistics() Statistics {
	runTime := time.Since(r.created)
	stats := Statistics{
		RunTime:       runTime,
		PostCount:     r.postCount.Load(),
		DispatchCount: r.dispatchCount.Load(),
		DispatchFails: r.dispatchFails.Load(),
	}
	if runTime > 0 {
		stats.Throughput = float64(stats.PostCount) / runTime.Seconds()
	}
	return stats
}

func (r *Router) PrintStatistics() {
	r.Statistics().Print(r.logger)
}

func (r *Router) topicLocked(name string) *topic {
	t, ok := r.topics[name]
	if !ok {
		t = &topic{name: name}
		r.topics[name] = t
	}
	return t
}

func (r *Router) detach(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.topics[sub.topic]
	if !ok {
		return
	}
	for idx, s := range t.subscribers {
		if s == sub {
			t.subscribers = append(t.subscribers[:idx], t.subscribers[idx+1:]...)
			return
		}
	}
}
