// Package broker provides real-time fan-out of ingested log records and
// ticket events to connected subscribers.
package broker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/logtower/logtower/internal/metrics"
	"github.com/logtower/logtower/internal/models"
)

// DefaultQueueDepth is the per-subscriber outbound queue bound used when none
// is configured.
const DefaultQueueDepth = 1000

// Message is the envelope delivered to subscribers. Exactly one field is set:
// Record for a newly ingested log, Ticket for a newly created ticket.
type Message struct {
	Record *models.LogRecord
	Ticket *models.Ticket
}

// Subscriber represents one live connection receiving fan-out messages.
// Its queue is owned by the subscriber's delivery task; the broker only
// performs non-blocking sends into it.
type Subscriber struct {
	ID        string
	Ch        chan Message
	CreatedAt time.Time

	dropped atomic.Int64
}

// Dropped returns the number of messages dropped for this subscriber because
// its queue was full.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Broker manages the set of active subscribers and publishes messages to all
// of them. One slow consumer never blocks publishing or other subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	queueDepth  int
	logger      *slog.Logger
}

// New creates a Broker whose subscribers get outbound queues of the given
// depth. Non-positive depths fall back to DefaultQueueDepth.
func New(queueDepth int, logger *slog.Logger) *Broker {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		queueDepth:  queueDepth,
		logger:      logger,
	}
}

// Subscribe registers a new subscriber and returns it. The subscriber only
// receives messages published after this call returns.
func (b *Broker) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:        uuid.NewString(),
		Ch:        make(chan Message, b.queueDepth),
		CreatedAt: time.Now(),
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "subscriber_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Calling it for an
// already-removed subscriber is a no-op.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sub.ID]; exists {
		close(sub.Ch)
		delete(b.subscribers, sub.ID)
		b.logger.Debug("subscriber removed", "subscriber_id", sub.ID, "dropped", sub.Dropped())
	}
}

// Publish enqueues the message for every current subscriber. When a
// subscriber's queue is full the oldest queued message is discarded to make
// room (sliding window) and the subscriber's dropped counter is incremented.
// Publish never blocks.
func (b *Broker) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Ch <- msg:
		default:
			// Queue full: evict the oldest entry, then retry once. The
			// second send can only fail if the delivery task drained the
			// queue concurrently, in which case there is room again on the
			// next iteration and the message is counted as dropped.
			select {
			case <-sub.Ch:
				sub.dropped.Add(1)
				metrics.MessagesDropped.Inc()
			default:
			}
			select {
			case sub.Ch <- msg:
			default:
				sub.dropped.Add(1)
				metrics.MessagesDropped.Inc()
			}
		}
	}
}

// PublishRecord publishes a log record to all subscribers.
func (b *Broker) PublishRecord(rec *models.LogRecord) {
	if rec == nil {
		return
	}
	b.Publish(Message{Record: rec})
}

// PublishTicket publishes a ticket-created event to all subscribers.
func (b *Broker) PublishTicket(t *models.Ticket) {
	if t == nil {
		return
	}
	b.Publish(Message{Ticket: t})
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close removes all subscribers and closes their channels. Publishing after
// Close is a no-op since no subscribers remain.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		close(sub.Ch)
		delete(b.subscribers, id)
	}
	return nil
}
