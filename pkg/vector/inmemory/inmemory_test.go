package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/solacelabs/solace/pkg/identity"
	testutils "github.com/solacelabs/solace/pkg/utils/test"
	"github.com/solacelabs/solace/pkg/vector"
	"github.com/solacelabs/solace/pkg/vector/inmemory"
)

var _ = Describe("Index", func() {
	var (
		ctx   context.Context
		index *inmemory.Index
	)

	faceVec := func(seed string) []float32 {
		return testutils.DeterministicVector(seed, vector.FaceDimensions)
	}
	memVec := func(seed string) []float32 {
		return testutils.DeterministicVector(seed, vector.MemoryDimensions)
	}

	BeforeEach(func() {
		ctx = context.Background()
		index = inmemory.NewIndex()
	})

	Describe("faces", func() {
		It("rejects vectors with the wrong dimensions", func() {
			err := index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p1",
				Vector:   []float32{1, 2, 3},
			})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("finds the exact face with a perfect score", func() {
			Expect(index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p1",
				Status:   identity.StatusConfirmed,
				Vector:   faceVec("alice"),
			})).To(Succeed())

			match, err := index.SearchFace(ctx, vector.FaceQuery{Vector: faceVec("alice")})
			Expect(err).NotTo(HaveOccurred())
			Expect(match).NotTo(BeNil())
			Expect(match.PersonID).To(Equal("p1"))
			Expect(match.Score).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("returns the best match across stored faces", func() {
			Expect(index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p1", Status: identity.StatusConfirmed, Vector: faceVec("alice"),
			})).To(Succeed())
			Expect(index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p2", Status: identity.StatusConfirmed, Vector: faceVec("bob"),
			})).To(Succeed())

			match, err := index.SearchFace(ctx, vector.FaceQuery{Vector: faceVec("bob")})
			Expect(err).NotTo(HaveOccurred())
			Expect(match.PersonID).To(Equal("p2"))
		})

		It("filters to confirmed persons when asked", func() {
			Expect(index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p1", Status: identity.StatusTemporary, Vector: faceVec("alice"),
			})).To(Succeed())

			match, err := index.SearchFace(ctx, vector.FaceQuery{
				Vector:        faceVec("alice"),
				ConfirmedOnly: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(match).To(BeNil())
		})

		It("returns temporary matches on unfiltered searches", func() {
			Expect(index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p1", Status: identity.StatusTemporary, Vector: faceVec("alice"),
			})).To(Succeed())

			match, err := index.SearchFace(ctx, vector.FaceQuery{Vector: faceVec("alice")})
			Expect(err).NotTo(HaveOccurred())
			Expect(match).NotTo(BeNil())
			Expect(match.Status).To(Equal(identity.StatusTemporary))
		})

		It("returns nil when the index is empty", func() {
			match, err := index.SearchFace(ctx, vector.FaceQuery{Vector: faceVec("alice")})
			Expect(err).NotTo(HaveOccurred())
			Expect(match).To(BeNil())
		})
	})

	Describe("SetPersonStatus", func() {
		It("flips every face point for the person", func() {
			Expect(index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p1", Status: identity.StatusTemporary, Vector: faceVec("sighting-1"),
			})).To(Succeed())
			Expect(index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p1", Status: identity.StatusTemporary, Vector: faceVec("sighting-2"),
			})).To(Succeed())

			Expect(index.SetPersonStatus(ctx, "p1", identity.StatusConfirmed)).To(Succeed())

			match, err := index.SearchFace(ctx, vector.FaceQuery{
				Vector:        faceVec("sighting-1"),
				ConfirmedOnly: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(match).NotTo(BeNil())
			Expect(match.Status).To(Equal(identity.StatusConfirmed))
		})
	})

	Describe("memories", func() {
		It("rejects vectors with the wrong dimensions", func() {
			err := index.UpsertMemory(ctx, vector.MemoryPoint{
				PersonID: "p1",
				Vector:   []float32{1},
			})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("searches within one person's memories only", func() {
			Expect(index.UpsertMemory(ctx, vector.MemoryPoint{
				ID: "m1", PersonID: "p1", Summary: "garden talk", Vector: memVec("garden"),
			})).To(Succeed())
			Expect(index.UpsertMemory(ctx, vector.MemoryPoint{
				ID: "m2", PersonID: "p2", Summary: "garden talk too", Vector: memVec("garden"),
			})).To(Succeed())

			matches, err := index.SearchMemories(ctx, "p1", memVec("garden"), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].ID).To(Equal("m1"))
		})

		It("caps results at the limit, best first", func() {
			for _, seed := range []string{"a", "b", "c", "d"} {
				Expect(index.UpsertMemory(ctx, vector.MemoryPoint{
					ID: seed, PersonID: "p1", Vector: memVec(seed),
				})).To(Succeed())
			}

			matches, err := index.SearchMemories(ctx, "p1", memVec("a"), 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].ID).To(Equal("a"))
		})
	})

	Describe("DeletePerson", func() {
		It("removes all face and memory points for the person", func() {
			Expect(index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p1", Status: identity.StatusConfirmed, Vector: faceVec("alice"),
			})).To(Succeed())
			Expect(index.UpsertMemory(ctx, vector.MemoryPoint{
				ID: "m1", PersonID: "p1", Vector: memVec("chat"),
			})).To(Succeed())
			Expect(index.UpsertFace(ctx, vector.FacePoint{
				PersonID: "p2", Status: identity.StatusConfirmed, Vector: faceVec("bob"),
			})).To(Succeed())

			Expect(index.DeletePerson(ctx, "p1")).To(Succeed())

			Expect(index.FaceCount()).To(Equal(1))
			Expect(index.MemoryCount()).To(BeZero())
		})
	})
})
