package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenlearn/lumen-api/internal/events"
)

// subscriberBuffer is the per-subscription event buffer. A subscriber
// that falls this far behind is dropped rather than blocking delivery.
const subscriberBuffer = 16

// retainedGrace is how long a terminal event stays replayable after the
// job finishes. Retained entries are evicted after the window so topics
// do not accumulate for the life of the process.
const retainedGrace = time.Minute

// Subscription is one live observer of one or more topics. Events arrive
// on C; the channel is closed when the subscription is dropped or
// unsubscribed.
type Subscription struct {
	C <-chan events.Event

	ch     chan events.Event
	topics []string
	once   sync.Once
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub is the notification bridge: it maps topics to connected
// subscribers, fans out every published event, and retains the latest
// event per topic so a late joiner immediately receives a snapshot of
// current state instead of waiting for the next increment.
//
// The hub is purely an observer layer; subscriber connects and
// disconnects never affect job execution.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
	retained    map[string]events.Event
	retainGrace time.Duration
	logger      *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		retained:    make(map[string]events.Event),
		retainGrace: retainedGrace,
		logger:      logger.With("component", "notify_hub"),
	}
}

// Subscribe attaches a new subscriber to the given topics. The latest
// retained event for each topic is replayed into the subscription
// before any subsequent delivery, as a snapshot for non-terminal state.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		ch:     make(chan events.Event, subscriberBuffer),
		topics: topics,
	}
	sub.C = sub.ch

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		set, ok := h.subscribers[topic]
		if !ok {
			set = make(map[*Subscription]struct{})
			h.subscribers[topic] = set
		}
		set[sub] = struct{}{}

		if ev, ok := h.retained[topic]; ok {
			sub.ch <- replayEvent(ev)
		}
	}

	return sub
}

// Unsubscribe detaches the subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	for _, topic := range sub.topics {
		h.removeLocked(topic, sub)
	}
	h.mu.Unlock()

	sub.close()
}

// Publish implements events.Publisher: the event is retained as the
// latest state of each topic and delivered to every current subscriber.
// Delivery is non-blocking; a subscriber whose buffer is full is dropped
// so one slow client never stalls the pipeline.
func (h *Hub) Publish(_ context.Context, topics []string, ev events.Event) {
	var dropped []*Subscription

	h.mu.Lock()
	for _, topic := range topics {
		h.retained[topic] = ev

		for sub := range h.subscribers[topic] {
			select {
			case sub.ch <- ev:
			default:
				h.removeAllLocked(sub)
				dropped = append(dropped, sub)
			}
		}
	}
	h.mu.Unlock()

	for _, sub := range dropped {
		sub.close()
		h.logger.Warn("dropped slow subscriber", "topics", sub.topics)
	}

	if isTerminal(ev) {
		h.scheduleEviction(topics, ev)
	}
}

// scheduleEviction drops the retained terminal event once the grace
// window passes. A subscriber joining within the window still learns the
// outcome; afterwards the topic is gone and status queries go to the job
// record. A newer event on the topic (a regenerated content key, say)
// keeps its own retention.
func (h *Hub) scheduleEviction(topics []string, ev events.Event) {
	evict := make([]string, len(topics))
	copy(evict, topics)

	time.AfterFunc(h.retainGrace, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, topic := range evict {
			if cur, ok := h.retained[topic]; ok && cur == ev {
				delete(h.retained, topic)
			}
		}
	})
}

func isTerminal(ev events.Event) bool {
	return ev.Type == events.TypeCompleted || ev.Type == events.TypeFailed
}

// SubscriberCount reports how many subscribers a topic currently has.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}

func (h *Hub) removeLocked(topic string, sub *Subscription) {
	set, ok := h.subscribers[topic]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subscribers, topic)
	}
}

func (h *Hub) removeAllLocked(sub *Subscription) {
	for _, topic := range sub.topics {
		h.removeLocked(topic, sub)
	}
}

// replayEvent converts a retained non-terminal event into the initial
// snapshot a new subscriber receives. Terminal events replay unchanged
// so a client joining after the job finished learns the outcome.
func replayEvent(ev events.Event) events.Event {
	if isTerminal(ev) {
		return ev
	}
	ev.Type = events.TypeSnapshot
	return ev
}
