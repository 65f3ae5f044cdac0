package fixtures

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
)

var _ = Describe("Fixture result formatting", func() {
	DescribeTable("renders fixture results",
		func(result FixtureResult, contains []string) {
			output, err := clicky.Format(result)
			Expect(err).NotTo(HaveOccurred())
			Expect(output).NotTo(BeEmpty())

			text := result.Pretty().String()
			for _, s := range contains {
				Expect(text).To(ContainSubstring(s))
			}
		},
		Entry("pass",
			FixtureResult{
				Name:     "test/basic.c",
				Fixture:  Fixture{Name: "test/basic.c"},
				Status:   task.StatusPASS,
				Duration: 1200 * time.Millisecond,
			},
			[]string{"test/basic.c"}),

		Entry("check mismatch",
			FixtureResult{
				Name:    "test/loops.c",
				Fixture: Fixture{Name: "test/loops.c"},
				Status:  task.StatusFAIL,
				Error:   "test/loops.c:4: failed CHECK: y",
			},
			[]string{"test/loops.c", "failed CHECK: y"}),

		Entry("expected failure",
			FixtureResult{
				Name:    "test/xfail.c",
				Fixture: Fixture{Name: "test/xfail.c"},
				Status:  task.StatusSKIP,
				XFail:   &Location{Path: "test/xfail.c", Line: 2},
			},
			[]string{"test/xfail.c", "xfail at line 2"}),
	)

	It("renders section nodes with their stats", func() {
		tree := BuildTree("Fixtures", []Fixture{{Name: "a/one.c"}})
		tree.Walk(func(n *FixtureNode) {
			n.Results = &FixtureResult{Name: n.Fixture.Name, Fixture: *n.Fixture, Status: task.StatusPASS}
		})
		tree.UpdateStats()

		Expect(tree.Children[0].Pretty().String()).To(ContainSubstring("1 passed"))
		Expect(tree.Children[0].Children[0].Pretty().String()).To(ContainSubstring("a/one.c"))
	})
})
