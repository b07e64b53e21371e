package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reflex/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("returns the function's error and prints the message", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "Sweeping state", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("Sweeping state"))
		Expect(buf.String()).To(HaveSuffix(")\n"))
	})
})

var _ = Describe("Mark", func() {
	It("distinguishes success from failure", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
	})
})

var _ = DescribeTable("FormatDuration",
	func(d time.Duration, want string) {
		Expect(cliui.FormatDuration(d)).To(Equal(want))
	},
	Entry("milliseconds", 12*time.Millisecond, "12ms"),
	Entry("seconds", 3200*time.Millisecond, "3.2s"),
)

var _ = DescribeTable("FormatAge",
	func(d time.Duration, want string) {
		Expect(cliui.FormatAge(d)).To(Equal(want))
	},
	Entry("seconds", 42*time.Second, "42s"),
	Entry("minutes", 3*time.Minute, "3m"),
	Entry("hours", 5*time.Hour, "5h"),
	Entry("days", 72*time.Hour, "3d"),
)
