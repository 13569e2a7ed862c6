package eventstream

import "context"

// Publisher publishes identity lifecycle events to an event stream backend.
type Publisher interface {
	PublishPerson(ctx context.Context, event *PersonEvent) error
	Close() error
}
