package nop

import (
	"context"

	"github.com/solacelabs/solace/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishPerson validates input and otherwise does nothing.
func (p *Publisher) PublishPerson(_ context.Context, event *eventstream.PersonEvent) error {
	if event == nil {
		return eventstream.ErrNilPersonEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
