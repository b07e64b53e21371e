// Package storagetest holds shared ginkgo specs every storage.Driver must pass.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reflex/pkg/storage"
)

// DriverSpecs registers the shared behaviour specs. newDriver is called before
// each spec and must return an empty store.
func DriverSpecs(newDriver func(ctx context.Context) storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver(ctx)
		base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		DeferCleanup(func() {
			Expect(driver.Close()).To(Succeed())
		})
	})

	Describe("captures", func() {
		It("returns captures for one session in order", func() {
			Expect(driver.PutCapture(ctx, &storage.Capture{
				ID: "c1", SessionID: "s1", UserID: "u1", UserQuery: "q1", AssistantResponse: "r1",
				PatternsRetrieved: []string{"p1", "p2"}, PatternsApplied: []string{"p1"},
				CreatedAt: base,
			})).To(Succeed())
			Expect(driver.PutCapture(ctx, &storage.Capture{
				ID: "c2", SessionID: "s2", UserQuery: "other", AssistantResponse: "other",
				CreatedAt: base.Add(time.Second),
			})).To(Succeed())
			Expect(driver.PutCapture(ctx, &storage.Capture{
				ID: "c3", SessionID: "s1", UserQuery: "q2", AssistantResponse: "r2",
				CreatedAt: base.Add(2 * time.Second),
			})).To(Succeed())

			got, err := driver.Captures(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
			Expect(got[0].ID).To(Equal("c1"))
			Expect(got[0].UserID).To(Equal("u1"))
			Expect(got[0].PatternsRetrieved).To(Equal([]string{"p1", "p2"}))
			Expect(got[0].PatternsApplied).To(Equal([]string{"p1"}))
			Expect(got[0].CreatedAt.Equal(base)).To(BeTrue())
			Expect(got[1].ID).To(Equal("c3"))

			all, err := driver.Captures(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
		})

		It("rejects a nil capture", func() {
			Expect(driver.PutCapture(ctx, nil)).NotTo(Succeed())
		})
	})

	Describe("patterns", func() {
		It("stores, replaces and lists patterns newest first", func() {
			Expect(driver.PutPattern(ctx, &storage.Pattern{
				ID: "p1", Title: "Old", Tags: []string{"go"}, CreatedAt: base,
			})).To(Succeed())
			Expect(driver.PutPattern(ctx, &storage.Pattern{
				ID: "p2", Title: "New", SuccessRate: 0.75, Source: "stop", CreatedAt: base.Add(time.Minute),
			})).To(Succeed())

			got, err := driver.GetPattern(ctx, "p2")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("New"))
			Expect(got.SuccessRate).To(BeNumerically("~", 0.75))
			Expect(got.Source).To(Equal("stop"))

			Expect(driver.PutPattern(ctx, &storage.Pattern{
				ID: "p1", Title: "Renamed", Tags: []string{"go", "tests"}, CreatedAt: base,
			})).To(Succeed())

			list, err := driver.Patterns(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].ID).To(Equal("p2"))
			Expect(list[1].Title).To(Equal("Renamed"))
			Expect(list[1].Tags).To(Equal([]string{"go", "tests"}))
		})

		It("returns NotFoundError for an unknown id", func() {
			_, err := driver.GetPattern(ctx, "missing")
			Expect(err).To(HaveOccurred())

			var notFoundErr storage.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(notFoundErr))
		})
	})

	Describe("reflex logs", func() {
		It("stores turn summaries per session", func() {
			Expect(driver.PutReflexLog(ctx, &storage.ReflexLog{
				ID: "l1", SessionID: "s1", PatternsRetrieved: 4, PatternsApplied: 2, PatternsSkipped: 1,
				PatternsForged: 1, Coverage: 0.75, LegacyFallback: true, CreatedAt: base,
			})).To(Succeed())
			Expect(driver.PutReflexLog(ctx, &storage.ReflexLog{
				ID: "l2", SessionID: "s2", CreatedAt: base,
			})).To(Succeed())

			got, err := driver.ReflexLogs(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].PatternsRetrieved).To(Equal(4))
			Expect(got[0].PatternsApplied).To(Equal(2))
			Expect(got[0].PatternsSkipped).To(Equal(1))
			Expect(got[0].PatternsForged).To(Equal(1))
			Expect(got[0].Coverage).To(BeNumerically("~", 0.75))
			Expect(got[0].LegacyFallback).To(BeTrue())

			all, err := driver.ReflexLogs(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})
	})
}
