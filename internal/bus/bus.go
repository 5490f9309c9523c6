// Package bus implements the in-process pub/sub broadcaster: each
// subscriber owns a bounded mailbox, the publisher fans out by message
// tag, and there is no reply channel.
package bus

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// DefaultMailboxDepth is the per-subscriber buffered channel size used
// when a subscriber does not request a specific depth.
const DefaultMailboxDepth = 32

// Message is one published event. Tag names the event kind (e.g.
// "alert_state_change"); Payload is the event-specific body.
type Message struct {
	Tag     string
	Payload any
}

type subscriber struct {
	id    uuid.UUID
	ch    chan Message
	tags  map[string]struct{} // empty map = subscribed to all tags
}

// Bus is a bounded-mailbox, per-subscriber-FIFO publisher. It never
// blocks a publisher past the send itself: a full mailbox drops the
// oldest buffered message to make room, and the drop is logged.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*subscriber
	logger      *log.Logger
}

// New returns a ready-to-use Bus.
func New(logger *log.Logger) *Bus {
	return &Bus{
		subscribers: make(map[uuid.UUID]*subscriber),
		logger:      logger,
	}
}

// Subscribe registers a new mailbox and returns its receive channel and a
// handle for Unsubscribe. An empty tags list subscribes to every tag.
func (b *Bus) Subscribe(depth int, tags ...string) (<-chan Message, uuid.UUID) {
	if depth <= 0 {
		depth = DefaultMailboxDepth
	}
	id := uuid.New()
	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}
	sub := &subscriber{id: id, ch: make(chan Message, depth), tags: tagSet}

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	return sub.ch, id
}

// Unsubscribe removes and closes a subscriber's mailbox.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish fans a message out to every subscriber interested in tag.
// Cross-subscriber ordering is not guaranteed; per-subscriber FIFO is.
func (b *Bus) Publish(tag string, payload any) {
	msg := Message{Tag: tag, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.tags) > 0 {
			if _, ok := sub.tags[tag]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- msg:
		default:
			// Mailbox full: drop the oldest to make room rather than
			// block the publisher.
			select {
			case <-sub.ch:
				if b.logger != nil {
					b.logger.Printf("bus: subscriber %s mailbox full, dropped oldest message", sub.id)
				}
			default:
			}
			select {
			case sub.ch <- msg:
			default:
				if b.logger != nil {
					b.logger.Printf("bus: subscriber %s mailbox still full after drop, dropping new message", sub.id)
				}
			}
		}
	}
}
