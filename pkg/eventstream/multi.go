package eventstream

import (
	"context"
	"errors"
)

// multiPublisher fans a publish out to several backends, e.g. the
// in-process feed plus an external broker.
type multiPublisher struct {
	pubs []Publisher
}

// Multi combines publishers into one. Publish and Close errors are joined
// so one failing backend does not hide the others.
func Multi(pubs ...Publisher) Publisher {
	if len(pubs) == 1 {
		return pubs[0]
	}
	return &multiPublisher{pubs: pubs}
}

func (m *multiPublisher) PublishPerson(ctx context.Context, event *PersonEvent) error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.PublishPerson(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiPublisher) Close() error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
