package inmemory_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/storage"
	"github.com/solacelabs/solace/pkg/storage/inmemory"
)

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		store *inmemory.Store
	)

	newPerson := func(id string, status identity.Status) *identity.Person {
		now := time.Now().UTC()
		return &identity.Person{
			ID:         id,
			Status:     status,
			CreatedAt:  now,
			LastSeenAt: now,
		}
	}

	newMemory := func(id, personID, summary string, createdAt time.Time) *identity.Memory {
		return &identity.Memory{
			ID:        id,
			PersonID:  personID,
			Summary:   summary,
			CreatedAt: createdAt,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
	})

	Describe("persons", func() {
		It("round-trips a person", func() {
			p := newPerson("p1", identity.StatusTemporary)
			Expect(store.CreatePerson(ctx, p)).To(Succeed())

			got, err := store.GetPerson(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("p1"))
			Expect(got.Status).To(Equal(identity.StatusTemporary))
		})

		It("returns NotFoundError for a missing person", func() {
			_, err := store.GetPerson(ctx, "ghost")

			var nf storage.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nf))
		})

		It("returns copies that do not alias store state", func() {
			Expect(store.CreatePerson(ctx, newPerson("p1", identity.StatusTemporary))).To(Succeed())

			got, err := store.GetPerson(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			got.Name = "mutated"

			again, err := store.GetPerson(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Name).To(BeEmpty())
		})

		It("applies only non-nil update fields", func() {
			Expect(store.CreatePerson(ctx, newPerson("p1", identity.StatusTemporary))).To(Succeed())

			name := "Ruth"
			confirmed := identity.StatusConfirmed
			now := time.Now().UTC()
			Expect(store.UpdatePerson(ctx, "p1", storage.PersonUpdate{
				Name:        &name,
				Status:      &confirmed,
				ConfirmedAt: &now,
			})).To(Succeed())

			got, err := store.GetPerson(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Ruth"))
			Expect(got.Status).To(Equal(identity.StatusConfirmed))
			Expect(got.ConfirmedAt).NotTo(BeNil())
			Expect(got.Relation).To(BeEmpty())
		})

		It("bumps familiarity with a clamp at 1.0", func() {
			Expect(store.CreatePerson(ctx, newPerson("p1", identity.StatusConfirmed))).To(Succeed())

			for range 25 {
				Expect(store.BumpFamiliarity(ctx, "p1", identity.FamiliarityIncrement)).To(Succeed())
			}

			got, err := store.GetPerson(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FamiliarityScore).To(Equal(1.0))
		})

		It("touches last seen", func() {
			Expect(store.CreatePerson(ctx, newPerson("p1", identity.StatusConfirmed))).To(Succeed())

			later := time.Now().UTC().Add(time.Hour)
			Expect(store.TouchLastSeen(ctx, "p1", later)).To(Succeed())

			got, err := store.GetPerson(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.LastSeenAt).To(BeTemporally("==", later))
		})
	})

	Describe("listings", func() {
		It("lists pending persons with interaction context, most recent first", func() {
			older := newPerson("p1", identity.StatusTemporary)
			older.LastSeenAt = time.Now().UTC().Add(-time.Hour)
			newer := newPerson("p2", identity.StatusTemporary)
			confirmed := newPerson("p3", identity.StatusConfirmed)

			Expect(store.CreatePerson(ctx, older)).To(Succeed())
			Expect(store.CreatePerson(ctx, newer)).To(Succeed())
			Expect(store.CreatePerson(ctx, confirmed)).To(Succeed())

			base := time.Now().UTC()
			Expect(store.CreateMemory(ctx, newMemory("m1", "p1", "first chat", base.Add(-2*time.Minute)))).To(Succeed())
			Expect(store.CreateMemory(ctx, newMemory("m2", "p1", "second chat", base))).To(Succeed())

			pending, err := store.ListPending(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(2))
			Expect(pending[0].Person.ID).To(Equal("p2"))
			Expect(pending[1].Person.ID).To(Equal("p1"))
			Expect(pending[1].InteractionCount).To(Equal(2))
			Expect(pending[1].LastMemorySummary).To(Equal("second chat"))
		})

		It("lists confirmed persons ordered by name", func() {
			a := newPerson("p1", identity.StatusConfirmed)
			a.Name = "Walter"
			b := newPerson("p2", identity.StatusConfirmed)
			b.Name = "Agnes"
			Expect(store.CreatePerson(ctx, a)).To(Succeed())
			Expect(store.CreatePerson(ctx, b)).To(Succeed())
			Expect(store.CreatePerson(ctx, newPerson("p3", identity.StatusTemporary))).To(Succeed())

			confirmed, err := store.ListConfirmed(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(confirmed).To(HaveLen(2))
			Expect(confirmed[0].Name).To(Equal("Agnes"))
			Expect(confirmed[1].Name).To(Equal("Walter"))
		})
	})

	Describe("dirty tracking", func() {
		seed := func(id string, savedAgo time.Duration) {
			p := newPerson(id, identity.StatusConfirmed)
			Expect(store.CreatePerson(ctx, p)).To(Succeed())
			Expect(store.CreateMemory(ctx, newMemory(id+"-m", id, "chat", time.Now().UTC()))).To(Succeed())
			Expect(store.MarkMemorySaved(ctx, id, time.Now().UTC().Add(-savedAgo))).To(Succeed())
		}

		It("returns candidates oldest pending memory first", func() {
			seed("p1", time.Minute)
			seed("p2", time.Hour)

			dirty, err := store.ListDirty(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(dirty).To(HaveLen(2))
			Expect(dirty[0].PersonID).To(Equal("p2"))
			Expect(dirty[1].PersonID).To(Equal("p1"))
			Expect(dirty[0].MemoryCount).To(Equal(1))
		})

		It("honors the limit", func() {
			for i := range 5 {
				seed(fmt.Sprintf("p%d", i), time.Duration(i)*time.Minute)
			}

			dirty, err := store.ListDirty(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(dirty).To(HaveLen(3))
		})

		It("excludes persons whose analysis is current", func() {
			seed("p1", time.Hour)
			Expect(store.MarkRoutineAnalysis(ctx, "p1", time.Now().UTC())).To(Succeed())

			dirty, err := store.ListDirty(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(dirty).To(BeEmpty())
		})

		It("excludes persons with no memories at all", func() {
			Expect(store.CreatePerson(ctx, newPerson("p1", identity.StatusConfirmed))).To(Succeed())
			Expect(store.MarkMemorySaved(ctx, "p1", time.Now().UTC())).To(Succeed())

			dirty, err := store.ListDirty(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(dirty).To(BeEmpty())
		})
	})

	Describe("memories", func() {
		It("returns recent memories newest first, capped at the limit", func() {
			Expect(store.CreatePerson(ctx, newPerson("p1", identity.StatusConfirmed))).To(Succeed())
			base := time.Now().UTC()
			for i := range 5 {
				id := fmt.Sprintf("m%d", i)
				Expect(store.CreateMemory(ctx, newMemory(id, "p1", id, base.Add(time.Duration(i)*time.Minute)))).To(Succeed())
			}

			recent, err := store.RecentMemories(ctx, "p1", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(HaveLen(3))
			Expect(recent[0].ID).To(Equal("m4"))
			Expect(recent[2].ID).To(Equal("m2"))
		})

		It("counts memories per person", func() {
			Expect(store.CreatePerson(ctx, newPerson("p1", identity.StatusConfirmed))).To(Succeed())
			Expect(store.CreateMemory(ctx, newMemory("m1", "p1", "a", time.Now().UTC()))).To(Succeed())
			Expect(store.CreateMemory(ctx, newMemory("m2", "other", "b", time.Now().UTC()))).To(Succeed())

			count, err := store.MemoryCount(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("deletes a memory by id", func() {
			Expect(store.CreateMemory(ctx, newMemory("m1", "p1", "a", time.Now().UTC()))).To(Succeed())

			Expect(store.DeleteMemory(ctx, "m1")).To(Succeed())

			var nf storage.NotFoundError
			Expect(store.DeleteMemory(ctx, "m1")).To(BeAssignableToTypeOf(nf))
		})
	})

	Describe("routines", func() {
		routine := func(id string, confidence float64) *identity.Routine {
			return &identity.Routine{
				ID:         id,
				PersonID:   "p1",
				Text:       "likes morning walks",
				Confidence: confidence,
				Source:     identity.SourceMemories,
				CreatedAt:  time.Now().UTC(),
			}
		}

		It("replaces the whole set as a unit", func() {
			Expect(store.ReplaceRoutines(ctx, "p1", []*identity.Routine{
				routine("r1", 0.9), routine("r2", 0.4),
			})).To(Succeed())

			Expect(store.ReplaceRoutines(ctx, "p1", []*identity.Routine{
				routine("r3", 0.7),
			})).To(Succeed())

			got, err := store.Routines(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].ID).To(Equal("r3"))
		})

		It("orders routines by confidence, highest first", func() {
			Expect(store.ReplaceRoutines(ctx, "p1", []*identity.Routine{
				routine("low", 0.3), routine("high", 0.9), routine("mid", 0.6),
			})).To(Succeed())

			got, err := store.Routines(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(3))
			Expect(got[0].ID).To(Equal("high"))
			Expect(got[2].ID).To(Equal("low"))
		})
	})

	Describe("DeletePerson", func() {
		It("cascades to memories and routines", func() {
			Expect(store.CreatePerson(ctx, newPerson("p1", identity.StatusConfirmed))).To(Succeed())
			Expect(store.CreateMemory(ctx, newMemory("m1", "p1", "a", time.Now().UTC()))).To(Succeed())
			Expect(store.ReplaceRoutines(ctx, "p1", []*identity.Routine{{ID: "r1", PersonID: "p1"}})).To(Succeed())

			Expect(store.DeletePerson(ctx, "p1")).To(Succeed())

			count, err := store.MemoryCount(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())

			routines, err := store.Routines(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(routines).To(BeEmpty())
		})

		It("returns NotFoundError for a missing person", func() {
			var nf storage.NotFoundError
			Expect(store.DeletePerson(ctx, "ghost")).To(BeAssignableToTypeOf(nf))
		})
	})
})
