package lock_test

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reflex/pkg/lock"
	"github.com/papercomputeco/reflex/pkg/logger"
)

var _ = Describe("RedisLocker", func() {
	var (
		redisURL string
		ctx      context.Context
		session  string
	)

	BeforeEach(func() {
		redisURL = os.Getenv("REFLEX_TEST_REDIS_URL")
		if redisURL == "" {
			Skip("REFLEX_TEST_REDIS_URL not set")
		}
		ctx = context.Background()
		session = "test-" + uuid.NewString()
	})

	newLocker := func(owner string) *lock.RedisLocker {
		l, err := lock.NewRedisLocker(ctx, redisURL, lock.Options{
			Timeout:      100 * time.Millisecond,
			Stale:        time.Second,
			PollInterval: 10 * time.Millisecond,
			Owner:        owner,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(l.Close)
		return l
	}

	It("excludes a second owner until release", func() {
		first := newLocker("111")
		second := newLocker("222")

		Expect(first.Acquire(ctx, session)).To(BeTrue())
		Expect(second.Acquire(ctx, session)).To(BeFalse())

		second.Release(ctx, session)
		Expect(second.Acquire(ctx, session)).To(BeFalse())

		first.Release(ctx, session)
		Expect(second.Acquire(ctx, session)).To(BeTrue())
		second.Release(ctx, session)
	})

	It("reclaims after the stale threshold", func() {
		first := newLocker("111")
		second := newLocker("222")

		Expect(first.Acquire(ctx, session)).To(BeTrue())
		Eventually(func() bool {
			return second.Acquire(ctx, session)
		}, 3*time.Second, 200*time.Millisecond).Should(BeTrue())
		second.Release(ctx, session)
	})
})
