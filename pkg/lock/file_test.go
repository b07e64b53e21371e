package lock_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reflex/pkg/lock"
	"github.com/papercomputeco/reflex/pkg/logger"
	"github.com/papercomputeco/reflex/pkg/state"
)

var _ = Describe("FileLocker", func() {
	var (
		store  *state.Store
		first  *lock.FileLocker
		second *lock.FileLocker
		ctx    context.Context
	)

	// newLocker simulates a separate hook process via a distinct owner id.
	newLocker := func(owner string, timeout, stale time.Duration) *lock.FileLocker {
		return lock.NewFileLocker(store, lock.Options{
			Timeout:      timeout,
			Stale:        stale,
			PollInterval: 10 * time.Millisecond,
			Owner:        owner,
		}, logger.Nop())
	}

	BeforeEach(func() {
		var err error
		store, err = state.New(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
		first = newLocker("111", 100*time.Millisecond, 10*time.Second)
		second = newLocker("222", 100*time.Millisecond, 10*time.Second)
	})

	It("writes the owner id into the lock file", func() {
		Expect(first.Acquire(ctx, "s1")).To(BeTrue())

		data, err := store.Read(state.KindLock, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("111"))
	})

	It("excludes a second owner until release", func() {
		Expect(first.Acquire(ctx, "s1")).To(BeTrue())

		start := time.Now()
		Expect(second.Acquire(ctx, "s1")).To(BeFalse())
		Expect(time.Since(start)).To(BeNumerically(">=", 100*time.Millisecond))

		first.Release(ctx, "s1")
		Expect(second.Acquire(ctx, "s1")).To(BeTrue())
	})

	It("rejects a second acquire by the same owner", func() {
		Expect(first.Acquire(ctx, "s1")).To(BeTrue())
		Expect(first.Acquire(ctx, "s1")).To(BeFalse())
	})

	It("keeps sessions independent", func() {
		Expect(first.Acquire(ctx, "s1")).To(BeTrue())
		Expect(second.Acquire(ctx, "s2")).To(BeTrue())
	})

	It("acquires once the holder releases during the wait", func() {
		Expect(first.Acquire(ctx, "s1")).To(BeTrue())
		patient := newLocker("333", 2*time.Second, 10*time.Second)

		go func() {
			defer GinkgoRecover()
			time.Sleep(50 * time.Millisecond)
			first.Release(ctx, "s1")
		}()

		Expect(patient.Acquire(ctx, "s1")).To(BeTrue())
	})

	It("reclaims a stale lock", func() {
		Expect(first.Acquire(ctx, "s1")).To(BeTrue())

		old := time.Now().Add(-time.Minute)
		Expect(os.Chtimes(store.Path(state.KindLock, "s1"), old, old)).To(Succeed())

		Expect(second.Acquire(ctx, "s1")).To(BeTrue())

		data, err := store.Read(state.KindLock, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("222"))
	})

	It("never releases a lock it does not own", func() {
		Expect(first.Acquire(ctx, "s1")).To(BeTrue())

		second.Release(ctx, "s1")
		Expect(store.Path(state.KindLock, "s1")).To(BeAnExistingFile())
	})

	It("treats releasing a missing lock as a no-op", func() {
		Expect(func() { first.Release(ctx, "missing") }).NotTo(Panic())
	})

	It("gives up when the context is cancelled", func() {
		Expect(first.Acquire(ctx, "s1")).To(BeTrue())

		patient := newLocker("333", 5*time.Second, 10*time.Second)
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		Expect(patient.Acquire(cctx, "s1")).To(BeFalse())
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
	})

	It("satisfies the Locker interface", func() {
		var l lock.Locker = first
		Expect(l).NotTo(BeNil())
	})
})
