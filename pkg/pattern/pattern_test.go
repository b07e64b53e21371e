package pattern_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reflex/pkg/pattern"
)

var _ = Describe("Pattern", func() {
	It("keeps unknown fields through a round-trip", func() {
		in := `{"id":"abcdef12","title":"Retry with backoff","success_rate":0.9,"layer":"patterns","score":0.42}`

		var p pattern.Pattern
		Expect(json.Unmarshal([]byte(in), &p)).To(Succeed())
		Expect(p.ID).To(Equal("abcdef12"))
		Expect(p.Title).To(Equal("Retry with backoff"))
		Expect(p.SuccessRate).To(Equal(0.9))
		Expect(p.Extra).To(HaveKey("layer"))
		Expect(p.Extra).To(HaveKey("score"))

		out, err := json.Marshal(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(in))
	})

	It("leaves Extra nil when there is nothing extra", func() {
		var p pattern.Pattern
		Expect(json.Unmarshal([]byte(`{"id":"abcdef12","title":"t"}`), &p)).To(Succeed())
		Expect(p.Extra).To(BeNil())
	})

	It("accepts numeric ids", func() {
		var p pattern.Pattern
		Expect(json.Unmarshal([]byte(`{"id":12345678,"title":"t"}`), &p)).To(Succeed())
		Expect(p.ID).To(Equal("12345678"))
	})

	It("rejects non-object input", func() {
		var p pattern.Pattern
		Expect(json.Unmarshal([]byte(`[1,2]`), &p)).NotTo(Succeed())
	})

	It("lists ids in order", func() {
		Expect(pattern.IDs([]pattern.Pattern{{ID: "a"}, {ID: "b"}})).To(Equal([]string{"a", "b"}))
	})
})
