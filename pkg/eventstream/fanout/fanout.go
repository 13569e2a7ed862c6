// Package fanout provides an in-process eventstream publisher that
// broadcasts events to live subscribers. It backs the API's /events feed.
package fanout

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/eventstream"
)

const defaultBuffer = 16

// Publisher broadcasts person events to any number of subscribers.
// Subscribers that fall behind have events dropped rather than blocking
// the publishing path.
type Publisher struct {
	mu     sync.Mutex
	subs   map[int]chan *eventstream.PersonEvent
	nextID int
	closed bool
	logger *zap.Logger
}

// New creates a fanout publisher with no subscribers.
func New(logger *zap.Logger) *Publisher {
	return &Publisher{
		subs:   make(map[int]chan *eventstream.PersonEvent),
		logger: logger,
	}
}

// PublishPerson delivers the event to every live subscriber.
func (p *Publisher) PublishPerson(_ context.Context, event *eventstream.PersonEvent) error {
	if event == nil {
		return eventstream.ErrNilPersonEvent
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	for id, ch := range p.subs {
		select {
		case ch <- event:
		default:
			p.logger.Warn("event feed subscriber lagging, dropping event",
				zap.Int("subscriber_id", id),
				zap.String("event_type", event.EventType),
			)
		}
	}

	return nil
}

// Subscribe registers a new subscriber and returns its channel along with a
// cancel function. The channel is closed when cancel is called or the
// publisher shuts down.
func (p *Publisher) Subscribe() (<-chan *eventstream.PersonEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan *eventstream.PersonEvent, defaultBuffer)
	if p.closed {
		close(ch)
		return ch, func() {}
	}

	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Close shuts down the publisher and closes all subscriber channels.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}

	return nil
}
