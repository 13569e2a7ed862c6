package keylock_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/solacelabs/solace/pkg/keylock"
)

var _ = Describe("KeyLock", func() {
	var locks *keylock.KeyLock

	BeforeEach(func() {
		locks = keylock.New()
	})

	It("allows locking distinct keys independently", func() {
		locks.Lock("a")
		defer locks.Unlock("a")

		Expect(locks.TryLock("b")).To(BeTrue())
		locks.Unlock("b")
	})

	It("refuses TryLock on a held key", func() {
		locks.Lock("a")
		defer locks.Unlock("a")

		Expect(locks.TryLock("a")).To(BeFalse())
	})

	It("allows TryLock again after Unlock", func() {
		Expect(locks.TryLock("a")).To(BeTrue())
		locks.Unlock("a")

		Expect(locks.TryLock("a")).To(BeTrue())
		locks.Unlock("a")
	})

	It("blocks Lock until the holder releases", func() {
		locks.Lock("a")

		acquired := make(chan struct{})
		go func() {
			locks.Lock("a")
			close(acquired)
			locks.Unlock("a")
		}()

		Consistently(acquired).ShouldNot(BeClosed())

		locks.Unlock("a")
		Eventually(acquired).Should(BeClosed())
	})

	It("panics when unlocking an unheld key", func() {
		Expect(func() { locks.Unlock("nope") }).To(Panic())
	})
})
