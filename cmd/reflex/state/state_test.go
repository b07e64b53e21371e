package statecmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	statecmder "github.com/papercomputeco/reflex/cmd/reflex/state"
)

var _ = Describe("state command", func() {
	var project, stateDir string

	BeforeEach(func() {
		project = GinkgoT().TempDir()
		stateDir = filepath.Join(project, ".claude", "state")
		Expect(os.MkdirAll(stateDir, 0o755)).To(Succeed())

		for _, name := range []string{"patterns-s1.json", "captures-s1.log", "patterns-s2.json"} {
			Expect(os.WriteFile(filepath.Join(stateDir, name), []byte("[]"), 0o600)).To(Succeed())
		}
	})

	run := func(args ...string) string {
		var out bytes.Buffer
		cmd := statecmder.NewStateCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"--project", project}, args...))
		Expect(cmd.Execute()).To(Succeed())
		return out.String()
	}

	It("lists every state file", func() {
		out := run()
		Expect(out).To(ContainSubstring("patterns-s1.json"))
		Expect(out).To(ContainSubstring("captures-s1.log"))
		Expect(out).To(ContainSubstring("patterns-s2.json"))
	})

	It("filters by session", func() {
		out := run("--session", "s2")
		Expect(out).To(ContainSubstring("patterns-s2.json"))
		Expect(out).NotTo(ContainSubstring("patterns-s1.json"))
	})

	It("reports an empty directory", func() {
		out := run("--session", "none")
		Expect(out).To(ContainSubstring("No state files."))
	})
})
