package fixtures

import (
	"errors"

	"github.com/flanksource/clicky/task"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FixtureResult", func() {
	fixture := Fixture{Name: "test/basic.c", Path: "/src/test/basic.c", Syntax: "c"}

	DescribeTable("maps outcomes to statuses",
		func(err error, status task.Status) {
			r := NewFixtureResult(fixture, Result{Directives: 2}, err)
			Expect(r.Status).To(Equal(status))
			Expect(r.Name).To(Equal(fixture.Name))
			Expect(r.Directives).To(Equal(2))
		},
		Entry("pass", nil, task.StatusPASS),
		Entry("command failure", &FixtureError{Kind: CommandFailure}, task.StatusFAIL),
		Entry("check mismatch", &FixtureError{Kind: CheckMismatch}, task.StatusFAIL),
		Entry("unexpected pass", &FixtureError{Kind: UnexpectedPass}, task.StatusFAIL),
		Entry("unrecognised directive", &FixtureError{Kind: UnrecognizedDirective}, task.StatusERR),
		Entry("no directives", &FixtureError{Kind: NoDirectivesFound}, task.StatusERR),
		Entry("invalid condition", &FixtureError{Kind: InvalidCondition}, task.StatusERR),
		Entry("read failure", &FixtureError{Kind: ReadFailure}, task.StatusERR),
		Entry("other error", errors.New("boom"), task.StatusERR),
	)

	It("reports expected failures as skipped with their marker", func() {
		xfail := &Location{Path: fixture.Path, Line: 3}
		r := NewFixtureResult(fixture, Result{
			Outcome:  ExpectedFailure,
			XFail:    xfail,
			Absorbed: &FixtureError{Kind: CommandFailure, Line: 4},
		}, nil)
		Expect(r.Status).To(Equal(task.StatusSKIP))
		Expect(r.IsXFail()).To(BeTrue())
		Expect(r.IsOK()).To(BeTrue())
		Expect(r.Line).To(Equal(4))
		Expect(r.String()).To(ContainSubstring("XFAIL"))
		Expect(r.Stats()).To(Equal(Stats{Total: 1, XFailed: 1}))
	})

	It("carries CHECK mismatch details", func() {
		r := NewFixtureResult(fixture, Result{}, &FixtureError{
			Kind: CheckMismatch, Path: fixture.Path, Line: 5, Expected: "y", Actual: "x",
		})
		Expect(r.Expected).To(Equal("y"))
		Expect(r.Actual).To(Equal("x"))
		Expect(r.Diff).NotTo(BeEmpty())
		Expect(r.Error).To(ContainSubstring("basic.c:5: failed CHECK: y"))
		Expect(r.IsOK()).To(BeFalse())
	})
})

var _ = Describe("Stats", func() {
	It("counts every status bucket", func() {
		s := Stats{}
		for _, st := range []task.Status{task.StatusPASS, task.StatusPASS, task.StatusFAIL, task.StatusSKIP, task.StatusERR} {
			s = s.Add(&FixtureResult{Status: st})
		}
		Expect(s).To(Equal(Stats{Total: 5, Passed: 2, Failed: 1, XFailed: 1, Error: 1}))
		Expect(s.HasFailures()).To(BeTrue())
		Expect(s.IsOK()).To(BeFalse())
		Expect(s.String()).To(Equal("2/4 1 xfailed 1 error"))
		Expect(s.Add(nil)).To(Equal(s))
	})

	It("is healthy when nothing failed", func() {
		s := Stats{Total: 2, Passed: 1, XFailed: 1}
		Expect(s.IsOK()).To(BeTrue())
		Expect(s.Health()).To(Equal(task.HealthOK))
		Expect(Stats{}.Health()).To(Equal(task.HealthWarning))
		Expect(Stats{}.String()).To(Equal("-"))
		Expect(s.Merge(Stats{Total: 1, Failed: 1})).To(Equal(Stats{Total: 3, Passed: 1, Failed: 1, XFailed: 1}))
	})
})

var _ = Describe("FixtureNode", func() {
	fixtures := []Fixture{
		{Name: "a/one.c"},
		{Name: "a/two.c"},
		{Name: "b/three.py"},
	}

	It("groups fixtures by directory", func() {
		tree := BuildTree("Fixtures", fixtures)
		Expect(tree.Children).To(HaveLen(2))
		Expect(tree.Children[0].Name).To(Equal("a"))
		Expect(tree.Children[0].Children).To(HaveLen(2))
		Expect(tree.Children[0].Children[1].Name).To(Equal("two.c"))
		Expect(tree.Children[0].Children[1].Parent).To(BeIdenticalTo(tree.Children[0]))
		Expect(tree.GetChildren()).To(HaveLen(2))

		var walked []string
		tree.Walk(func(n *FixtureNode) { walked = append(walked, n.Fixture.Name) })
		Expect(walked).To(Equal([]string{"a/one.c", "a/two.c", "b/three.py"}))
	})

	It("aggregates results into section stats", func() {
		tree := BuildTree("Fixtures", fixtures)
		statuses := []task.Status{task.StatusPASS, task.StatusFAIL, task.StatusSKIP}
		i := 0
		tree.Walk(func(n *FixtureNode) {
			n.Results = &FixtureResult{Name: n.Fixture.Name, Status: statuses[i]}
			i++
		})
		tree.UpdateStats()

		Expect(*tree.Stats).To(Equal(Stats{Total: 3, Passed: 1, Failed: 1, XFailed: 1}))
		Expect(*tree.Children[0].Stats).To(Equal(Stats{Total: 2, Passed: 1, Failed: 1}))
		Expect(tree.AllResults()).To(HaveLen(3))
		Expect(tree.Children[1].Children[0].Stats).To(BeNil())
	})
})
