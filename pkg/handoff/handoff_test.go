package handoff_test

import (
	"encoding/json"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reflex/pkg/handoff"
	"github.com/papercomputeco/reflex/pkg/logger"
	"github.com/papercomputeco/reflex/pkg/pattern"
	"github.com/papercomputeco/reflex/pkg/state"
)

var _ = Describe("Handoff store", func() {
	var (
		store    *state.Store
		handoffs *handoff.Store
		patterns []pattern.Pattern
	)

	BeforeEach(func() {
		var err error
		store, err = state.New(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		handoffs = handoff.NewStore(store, logger.Nop())

		patterns = []pattern.Pattern{
			{ID: "abcdef12", Title: "Retry with backoff", SuccessRate: 0.8},
			{ID: "ffee0099", Title: "Table driven tests", Extra: map[string]json.RawMessage{"layer": json.RawMessage(`"patterns"`)}},
		}
	})

	It("round-trips patterns and model", func() {
		Expect(handoffs.Save("s1", patterns, "claude-sonnet", "")).To(Succeed())

		h := handoffs.Load("s1")
		Expect(h.Patterns).To(Equal(patterns))
		Expect(h.ModelUsed).To(Equal("claude-sonnet"))
		Expect(h.TaskID).To(BeEmpty())
		Expect(h.SavedAt).NotTo(BeZero())
		Expect(h.Empty()).To(BeFalse())
	})

	It("keeps the task id", func() {
		Expect(handoffs.Save("s1", patterns, "m", "task-42")).To(Succeed())
		Expect(handoffs.Load("s1").TaskID).To(Equal("task-42"))
	})

	It("overwrites a prior snapshot", func() {
		Expect(handoffs.Save("s1", patterns, "m1", "")).To(Succeed())
		Expect(handoffs.Save("s1", patterns[:1], "m2", "")).To(Succeed())

		h := handoffs.Load("s1")
		Expect(h.Patterns).To(HaveLen(1))
		Expect(h.ModelUsed).To(Equal("m2"))
	})

	It("writes an empty list rather than null", func() {
		Expect(handoffs.Save("s1", nil, "m", "")).To(Succeed())

		data, err := store.Read(state.KindPatterns, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"patterns": []`))
	})

	It("loads an empty handoff when none exists", func() {
		Expect(handoffs.Load("missing").Empty()).To(BeTrue())
	})

	It("swallows malformed snapshots", func() {
		Expect(os.WriteFile(store.Path(state.KindPatterns, "s1"), []byte("{not json"), 0o644)).To(Succeed())
		Expect(handoffs.Load("s1").Empty()).To(BeTrue())
	})

	It("clears idempotently", func() {
		Expect(handoffs.Save("s1", patterns, "m", "")).To(Succeed())

		Expect(handoffs.Clear("s1")).To(Succeed())
		Expect(handoffs.Load("s1").Empty()).To(BeTrue())
		Expect(handoffs.Clear("s1")).To(Succeed())
	})
})
