package whisper_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/llm"
	"github.com/solacelabs/solace/pkg/storage/inmemory"
	"github.com/solacelabs/solace/pkg/whisper"
)

// scriptedSynth returns fixed audio or a scripted failure.
type scriptedSynth struct {
	fail bool
}

func (s *scriptedSynth) Synthesize(_ context.Context, text string) ([]byte, string, error) {
	if s.fail {
		return nil, "", errors.New("tts unreachable")
	}
	return []byte("audio:" + text), "audio/ogg", nil
}

var _ = Describe("Composer", func() {
	var (
		ctx   context.Context
		store *inmemory.Store
	)

	newComposer := func(call llm.CallFunc, synth whisper.Synthesizer) *whisper.Composer {
		assist := llm.NewAssist(call, zap.NewNop())
		return whisper.NewComposer(store, assist, synth, zap.NewNop())
	}

	whisperCall := func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Pick the single") {
			return `{"index": 2}`, nil
		}
		return `{"text": "This is your daughter Sarah, who visits every Sunday."}`, nil
	}

	seedPerson := func(id string, status identity.Status, name, relation string) {
		now := time.Now().UTC()
		confirmedAt := &now
		if status != identity.StatusConfirmed {
			confirmedAt = nil
		}
		Expect(store.CreatePerson(ctx, &identity.Person{
			ID:          id,
			Status:      status,
			Name:        name,
			Relation:    relation,
			CreatedAt:   now,
			ConfirmedAt: confirmedAt,
			LastSeenAt:  now,
		})).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
	})

	It("composes a whisper for a confirmed person", func() {
		seedPerson("p1", identity.StatusConfirmed, "Sarah", "daughter")

		w, err := newComposer(whisperCall, nil).Compose(ctx, "p1")
		Expect(err).NotTo(HaveOccurred())
		Expect(w.PersonID).To(Equal("p1"))
		Expect(w.Name).To(Equal("Sarah"))
		Expect(w.Relation).To(Equal("daughter"))
		Expect(w.Text).To(Equal("This is your daughter Sarah, who visits every Sunday."))
		Expect(w.RoutineText).To(BeEmpty())
		Expect(w.Audio).To(BeNil())
	})

	It("rejects temporary persons", func() {
		seedPerson("p1", identity.StatusTemporary, "", "")

		_, err := newComposer(whisperCall, nil).Compose(ctx, "p1")
		Expect(err).To(MatchError(ContainSubstring("not confirmed")))
	})

	It("fails for an unknown person", func() {
		_, err := newComposer(whisperCall, nil).Compose(ctx, "ghost")
		Expect(err).To(HaveOccurred())
	})

	It("builds the whisper from the model-selected routine", func() {
		seedPerson("p1", identity.StatusConfirmed, "Sarah", "daughter")
		Expect(store.ReplaceRoutines(ctx, "p1", []*identity.Routine{
			{ID: "r1", PersonID: "p1", Text: "Visits every Sunday", Confidence: 0.9},
			{ID: "r2", PersonID: "p1", Text: "Brings tea", Confidence: 0.6},
		})).To(Succeed())

		w, err := newComposer(whisperCall, nil).Compose(ctx, "p1")
		Expect(err).NotTo(HaveOccurred())
		// Routines are served highest-confidence first, so index 2 is
		// the lower-confidence one.
		Expect(w.RoutineText).To(Equal("Brings tea"))
	})

	It("hands the latest memory to the routine selection", func() {
		seedPerson("p1", identity.StatusConfirmed, "Sarah", "daughter")
		Expect(store.ReplaceRoutines(ctx, "p1", []*identity.Routine{
			{ID: "r1", PersonID: "p1", Text: "Visits every Sunday", Confidence: 0.9},
			{ID: "r2", PersonID: "p1", Text: "Brings tea", Confidence: 0.6},
		})).To(Succeed())

		now := time.Now().UTC()
		Expect(store.CreateMemory(ctx, &identity.Memory{
			ID:        "m1",
			PersonID:  "p1",
			Summary:   "Planned a trip to the garden center.",
			CreatedAt: now.Add(-time.Hour),
		})).To(Succeed())
		Expect(store.CreateMemory(ctx, &identity.Memory{
			ID:        "m2",
			PersonID:  "p1",
			Summary:   "Shared tea and biscuits.",
			CreatedAt: now,
		})).To(Succeed())

		var selectionPrompt string
		call := func(c context.Context, prompt string) (string, error) {
			if strings.Contains(prompt, "Pick the single") {
				selectionPrompt = prompt
			}
			return whisperCall(c, prompt)
		}

		_, err := newComposer(call, nil).Compose(ctx, "p1")
		Expect(err).NotTo(HaveOccurred())
		Expect(selectionPrompt).To(ContainSubstring("Shared tea and biscuits."))
		Expect(selectionPrompt).NotTo(ContainSubstring("garden center"))
	})

	It("uses the sole routine without a selection call", func() {
		seedPerson("p1", identity.StatusConfirmed, "Sarah", "daughter")
		Expect(store.ReplaceRoutines(ctx, "p1", []*identity.Routine{
			{ID: "r1", PersonID: "p1", Text: "Visits every Sunday", Confidence: 0.9},
		})).To(Succeed())

		selectionCalls := 0
		call := func(c context.Context, prompt string) (string, error) {
			if strings.Contains(prompt, "Pick the single") {
				selectionCalls++
			}
			return whisperCall(c, prompt)
		}

		w, err := newComposer(call, nil).Compose(ctx, "p1")
		Expect(err).NotTo(HaveOccurred())
		Expect(w.RoutineText).To(Equal("Visits every Sunday"))
		Expect(selectionCalls).To(BeZero())
	})

	It("falls back to a generic line when the model is unreachable", func() {
		seedPerson("p1", identity.StatusConfirmed, "Sarah", "daughter")

		failing := func(context.Context, string) (string, error) {
			return "", errors.New("model unreachable")
		}

		w, err := newComposer(failing, nil).Compose(ctx, "p1")
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Text).To(Equal("This is Sarah. You're safe with them."))
	})

	Describe("audio synthesis", func() {
		It("attaches audio when the synthesizer succeeds", func() {
			seedPerson("p1", identity.StatusConfirmed, "Sarah", "daughter")

			w, err := newComposer(whisperCall, &scriptedSynth{}).Compose(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Audio).To(Equal([]byte("audio:" + w.Text)))
			Expect(w.AudioMIME).To(Equal("audio/ogg"))
		})

		It("degrades to text-only when synthesis fails", func() {
			seedPerson("p1", identity.StatusConfirmed, "Sarah", "daughter")

			w, err := newComposer(whisperCall, &scriptedSynth{fail: true}).Compose(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Text).NotTo(BeEmpty())
			Expect(w.Audio).To(BeNil())
			Expect(w.AudioMIME).To(BeEmpty())
		})
	})
})
