package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reflex/pkg/storage"
	"github.com/papercomputeco/reflex/pkg/storage/inmemory"
	"github.com/papercomputeco/reflex/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverSpecs(func(context.Context) storage.Driver {
		return inmemory.NewDriver()
	})

	It("returns copies callers cannot mutate", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()
		Expect(d.PutPattern(ctx, &storage.Pattern{ID: "p1", Title: "Original"})).To(Succeed())

		got, err := d.GetPattern(ctx, "p1")
		Expect(err).NotTo(HaveOccurred())
		got.Title = "Changed"

		again, err := d.GetPattern(ctx, "p1")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Title).To(Equal("Original"))
	})
})
