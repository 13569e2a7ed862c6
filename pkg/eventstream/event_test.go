package eventstream_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/solacelabs/solace/pkg/eventstream"
	"github.com/solacelabs/solace/pkg/eventstream/nop"
)

var _ = Describe("NewPersonEvent", func() {
	It("stamps schema metadata", func() {
		ev := eventstream.NewPersonEvent(eventstream.EventTypePersonConfirmed, "evt-1", "person-1")

		Expect(ev.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(ev.EventType).To(Equal(eventstream.EventTypePersonConfirmed))
		Expect(ev.EventID).To(Equal("evt-1"))
		Expect(ev.PersonID).To(Equal("person-1"))
		Expect(ev.EmittedAt).To(BeTemporally("~", time.Now(), time.Minute))
	})
})

var _ = Describe("nop publisher", func() {
	It("accepts events silently", func() {
		p := nop.NewPublisher()
		ev := eventstream.NewPersonEvent(eventstream.EventTypeMemorySaved, "evt-1", "person-1")

		Expect(p.PublishPerson(context.Background(), ev)).To(Succeed())
		Expect(p.Close()).To(Succeed())
	})

	It("rejects nil events", func() {
		p := nop.NewPublisher()

		err := p.PublishPerson(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilPersonEvent))
	})
})

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	events []*eventstream.PersonEvent
	err    error
	closed bool
}

func (r *recordingPublisher) PublishPerson(_ context.Context, ev *eventstream.PersonEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

var _ = Describe("Multi", func() {
	It("returns the sole publisher unwrapped", func() {
		p := &recordingPublisher{}

		Expect(eventstream.Multi(p)).To(BeIdenticalTo(p))
	})

	It("fans a publish out to every backend", func() {
		a := &recordingPublisher{}
		b := &recordingPublisher{}
		m := eventstream.Multi(a, b)

		ev := eventstream.NewPersonEvent(eventstream.EventTypePersonEnrolled, "evt-1", "person-1")
		Expect(m.PublishPerson(context.Background(), ev)).To(Succeed())

		Expect(a.events).To(HaveLen(1))
		Expect(b.events).To(HaveLen(1))
	})

	It("still publishes to healthy backends when one fails", func() {
		bad := &recordingPublisher{err: errors.New("broker down")}
		good := &recordingPublisher{}
		m := eventstream.Multi(bad, good)

		ev := eventstream.NewPersonEvent(eventstream.EventTypePersonEnrolled, "evt-1", "person-1")
		err := m.PublishPerson(context.Background(), ev)

		Expect(err).To(HaveOccurred())
		Expect(good.events).To(HaveLen(1))
	})

	It("closes every backend", func() {
		a := &recordingPublisher{}
		b := &recordingPublisher{}
		m := eventstream.Multi(a, b)

		Expect(m.Close()).To(Succeed())
		Expect(a.closed).To(BeTrue())
		Expect(b.closed).To(BeTrue())
	})
})
