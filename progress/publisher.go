// Package progress fans task and document progress events out to
// subscribers. Topics are identified by the entity id (task or document); a
// terminal event closes every subscriber channel on its topic exactly once.
package progress

import (
	"sync"

	"github.com/contractguard/contractguard/core"
	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind is dropped rather than allowed to stall publishers.
const DefaultBuffer = 64

// Options configures a Publisher.
type Options struct {
	// Buffer is the per-subscriber channel capacity.
	Buffer int
}

type subscriber struct {
	id     string
	ch     chan core.ProgressEvent
	closed bool
}

// closeLocked closes the subscriber channel once; caller holds the lock.
func (s *subscriber) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Publisher is a topic-keyed fan-out for progress events. Publishing never
// blocks: a subscriber whose buffer is full is disconnected and its channel
// closed. Safe for concurrent use.
type Publisher struct {
	mu     sync.Mutex
	topics map[string][]*subscriber
	buffer int
}

// NewPublisher creates a publisher.
func NewPublisher(optFns ...func(o *Options)) *Publisher {
	opts := Options{Buffer: DefaultBuffer}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Publisher{
		topics: make(map[string][]*subscriber),
		buffer: opts.Buffer,
	}
}

// Subscribe registers a listener on a topic. The returned cancel function is
// idempotent and must be called when the listener is done; the channel is
// closed on cancel, on terminal events and on buffer overflow.
func (p *Publisher) Subscribe(topicID string) (<-chan core.ProgressEvent, func()) {
	sub := &subscriber{
		id: uuid.NewString(),
		ch: make(chan core.ProgressEvent, p.buffer),
	}

	p.mu.Lock()
	p.topics[topicID] = append(p.topics[topicID], sub)
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.remove(topicID, sub.id)
		sub.closeLocked()
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber of its topic. Subscribers
// with full buffers are dropped and their channels closed. A terminal event
// closes the whole topic after delivery.
func (p *Publisher) Publish(event core.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.topics[event.TopicID]
	kept := subs[:0]
	for _, sub := range subs {
		select {
		case sub.ch <- event:
			kept = append(kept, sub)
		default:
			sub.closeLocked()
		}
	}

	if event.Terminal {
		for _, sub := range kept {
			sub.closeLocked()
		}
		delete(p.topics, event.TopicID)
		return
	}
	p.topics[event.TopicID] = kept
}

// Subscribers reports how many listeners a topic currently has.
func (p *Publisher) Subscribers(topicID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics[topicID])
}

// remove drops one subscriber from a topic; caller holds the lock.
func (p *Publisher) remove(topicID, subID string) {
	subs := p.topics[topicID]
	for i, sub := range subs {
		if sub.id == subID {
			p.topics[topicID] = append(subs[:i], subs[i+1:]...)
			if len(p.topics[topicID]) == 0 {
				delete(p.topics, topicID)
			}
			return
		}
	}
}
