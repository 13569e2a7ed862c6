package routine_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/eventstream/nop"
	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/llm"
	"github.com/solacelabs/solace/pkg/routine"
	"github.com/solacelabs/solace/pkg/storage/inmemory"
)

var _ = Describe("Engine", func() {
	var (
		ctx   context.Context
		store *inmemory.Store
	)

	newEngine := func(call llm.CallFunc) *routine.Engine {
		assist := llm.NewAssist(call, zap.NewNop())
		return routine.NewEngine(routine.Config{}, store, assist, nop.NewPublisher(), zap.NewNop())
	}

	staticCall := func(response string) llm.CallFunc {
		return func(_ context.Context, _ string) (string, error) {
			return response, nil
		}
	}

	seedPerson := func(id, name, note string) {
		now := time.Now().UTC()
		Expect(store.CreatePerson(ctx, &identity.Person{
			ID:             id,
			Status:         identity.StatusConfirmed,
			Name:           name,
			ContextualNote: note,
			CreatedAt:      now,
			LastSeenAt:     now,
		})).To(Succeed())
	}

	seedMemory := func(id, personID, summary string) {
		Expect(store.CreateMemory(ctx, &identity.Memory{
			ID:        id,
			PersonID:  personID,
			Summary:   summary,
			CreatedAt: time.Now().UTC(),
		})).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
	})

	It("fails for a missing person", func() {
		engine := newEngine(staticCall(`{}`))

		_, err := engine.Consolidate(ctx, "ghost")
		Expect(err).To(HaveOccurred())
	})

	Context("with no memories", func() {
		It("does nothing when there is no caregiver note either", func() {
			seedPerson("p1", "Ruth", "")
			engine := newEngine(staticCall(`{}`))

			changed, err := engine.Consolidate(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())

			routines, err := store.Routines(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(routines).To(BeEmpty())
		})

		It("derives a single routine from the caregiver note", func() {
			seedPerson("p1", "Sarah", "daughter, visits sundays")
			engine := newEngine(staticCall(`{"text": "Your daughter Sarah visits on Sundays."}`))

			changed, err := engine.Consolidate(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())

			routines, err := store.Routines(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(routines).To(HaveLen(1))
			Expect(routines[0].Text).To(Equal("Your daughter Sarah visits on Sundays."))
			Expect(routines[0].Confidence).To(Equal(routine.NoteConfidence))
			Expect(routines[0].Source).To(Equal(identity.SourceContextualNote))
		})
	})

	Context("with memories", func() {
		It("replaces the routine set from extracted candidates", func() {
			seedPerson("p1", "Sarah", "")
			seedMemory("m1", "p1", "Talked about Sunday lunch.")
			seedMemory("m2", "p1", "Sarah brought tea again.")
			Expect(store.ReplaceRoutines(ctx, "p1", []*identity.Routine{
				{ID: "stale", PersonID: "p1", Text: "old fact", Confidence: 0.9},
			})).To(Succeed())

			engine := newEngine(staticCall(`{"routines": [
				{"text": "Visits every Sunday", "confidence": 0.9},
				{"text": "Brings tea", "confidence": 0.6}
			]}`))

			changed, err := engine.Consolidate(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())

			routines, err := store.Routines(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(routines).To(HaveLen(2))
			Expect(routines[0].Text).To(Equal("Visits every Sunday"))
			Expect(routines[0].Source).To(Equal(identity.SourceMemories))
			Expect(routines[1].Text).To(Equal("Brings tea"))
		})

		It("falls back to the note when extraction finds nothing", func() {
			seedPerson("p1", "Sarah", "daughter, visits sundays")
			seedMemory("m1", "p1", "Short chat.")

			calls := 0
			engine := newEngine(func(_ context.Context, _ string) (string, error) {
				calls++
				if calls == 1 {
					return `{"routines": []}`, nil
				}
				return `{"text": "Your daughter Sarah visits on Sundays."}`, nil
			})

			changed, err := engine.Consolidate(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())

			routines, err := store.Routines(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(routines).To(HaveLen(1))
			Expect(routines[0].Confidence).To(Equal(routine.NoteFallbackConfidence))
			Expect(routines[0].Source).To(Equal(identity.SourceContextualNote))
		})

		It("leaves the existing set untouched when extraction finds nothing and there is no note", func() {
			seedPerson("p1", "Sarah", "")
			seedMemory("m1", "p1", "Short chat.")
			Expect(store.ReplaceRoutines(ctx, "p1", []*identity.Routine{
				{ID: "keep", PersonID: "p1", Text: "existing fact", Confidence: 0.8},
			})).To(Succeed())

			engine := newEngine(staticCall(`{"routines": []}`))

			changed, err := engine.Consolidate(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())

			routines, err := store.Routines(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(routines).To(HaveLen(1))
			Expect(routines[0].ID).To(Equal("keep"))
		})

		It("treats a failed extraction like an empty one", func() {
			seedPerson("p1", "Sarah", "")
			seedMemory("m1", "p1", "Short chat.")

			engine := newEngine(func(_ context.Context, _ string) (string, error) {
				return "", errors.New("model unreachable")
			})

			changed, err := engine.Consolidate(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})
	})
})
