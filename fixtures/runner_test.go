package fixtures

import (
	"context"
	"os"
	"path/filepath"

	"github.com/flanksource/clicky/task"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
)

var _ = Describe("Runner", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "lit-runner-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		writeFixture(dir, "test/basic.c", "// RUN: true")
		writeFixture(dir, "test/basic.py", "# RUN: true")
		writeFixture(dir, "test/nested/deep.cpp", "// RUN: true")
		writeFixture(dir, "test/notes.txt", "// RUN: true")
		writeFixture(dir, "other/single.c", "// RUN: true")
	})

	names := func(fixtures []Fixture) []string {
		return lo.Map(fixtures, func(f Fixture, _ int) string { return f.Name })
	}

	discover := func(opts RunnerOptions) []Fixture {
		opts.WorkDir = dir
		runner, err := NewRunner(opts)
		Expect(err).NotTo(HaveOccurred())
		fixtures, err := runner.Discover()
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.Fixtures()).To(Equal(fixtures))
		return fixtures
	}

	It("collects fixtures recursively from directories by extension", func() {
		fixtures := discover(RunnerOptions{Paths: []string{"test"}})
		Expect(names(fixtures)).To(Equal([]string{"test/basic.c", "test/basic.py", "test/nested/deep.cpp"}))
		Expect(fixtures[0].Path).To(Equal(filepath.Join(dir, "test/basic.c")))
		Expect(fixtures[0].Syntax).To(Equal("c"))
		Expect(fixtures[1].Syntax).To(Equal("script"))
	})

	It("honours configured extensions", func() {
		fixtures := discover(RunnerOptions{Paths: []string{"test"}, Extensions: []string{".txt"}})
		Expect(names(fixtures)).To(Equal([]string{"test/notes.txt"}))
	})

	It("accepts files of any extension when named directly", func() {
		fixtures := discover(RunnerOptions{Paths: []string{"test/notes.txt", filepath.Join(dir, "other/single.c")}})
		Expect(names(fixtures)).To(Equal([]string{"other/single.c", "test/notes.txt"}))
	})

	It("expands glob patterns", func() {
		fixtures := discover(RunnerOptions{Paths: []string{"**/*.c"}})
		Expect(names(fixtures)).To(Equal([]string{"other/single.c", "test/basic.c"}))
	})

	It("removes duplicates", func() {
		fixtures := discover(RunnerOptions{Paths: []string{"test", "test/basic.c", "test/*.c"}})
		Expect(names(fixtures)).To(Equal([]string{"test/basic.c", "test/basic.py", "test/nested/deep.cpp"}))
	})

	It("returns nothing for patterns without matches", func() {
		Expect(discover(RunnerOptions{Paths: []string{"nothing/*.c"}})).To(BeEmpty())
	})

	It("filters by full name or base name", func() {
		Expect(names(discover(RunnerOptions{Paths: []string{"."}, Filter: "test/**"}))).
			To(Equal([]string{"test/basic.c", "test/basic.py", "test/nested/deep.cpp"}))
		Expect(names(discover(RunnerOptions{Paths: []string{"."}, Filter: "basic.*"}))).
			To(Equal([]string{"test/basic.c", "test/basic.py"}))
		Expect(discover(RunnerOptions{Paths: []string{"."}, Filter: "[invalid"})).To(BeEmpty())
	})

	DescribeTable("extensionPattern",
		func(exts []string, pattern string) {
			Expect(extensionPattern(exts)).To(Equal(pattern))
		},
		Entry("single", []string{".c"}, "**/*.c"),
		Entry("several", []string{".c", ".py"}, "**/*{.c,.py}"),
		Entry("duplicates", []string{".c", ".c"}, "**/*.c"),
	)

	It("renders the build command template", func() {
		out, err := renderBuildTemplate("make -C {{ .WorkDir }} LLVM={{ .Vars.LLVM }}", map[string]interface{}{
			"WorkDir": "/src",
			"Vars":    map[string]string{"LLVM": "18"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("make -C /src LLVM=18"))
	})

	Describe("Run", func() {
		var batch string

		BeforeEach(func() {
			batch = filepath.Join(dir, "batch")
			writeFixture(batch, "bad.c", "// RUN: exit 3")
			writeFixture(batch, "good.c", "// RUN: echo hello", "// CHECK: hello")
			writeFixture(batch, "xf.c", "// XFAIL: True", "// RUN: exit 3")
		})

		run := func(opts RunnerOptions) (map[string]FixtureResult, error) {
			opts.Paths = []string{"batch"}
			opts.WorkDir = dir
			opts.TempRoot = filepath.Join(dir, "work")
			opts.Shell = newFakeShell(map[string]ShellResult{
				"echo hello": stdout("hello\n"),
				"exit 3":     exitCode(3),
			})
			runner, err := NewRunner(opts)
			Expect(err).NotTo(HaveOccurred())

			tree, err := runner.Run(context.Background())
			Expect(tree).NotTo(BeNil())
			results := map[string]FixtureResult{}
			for _, r := range tree.AllResults() {
				results[filepath.Base(r.Name)] = r
			}
			return results, err
		}

		It("keeps evaluating after a fixture fails", func() {
			results, err := run(RunnerOptions{})
			Expect(err).To(HaveOccurred())
			Expect(results).To(HaveLen(3))

			Expect(results["bad.c"].Status).To(Equal(task.StatusFAIL))
			Expect(results["bad.c"].Kind).To(Equal(CommandFailure.String()))
			Expect(results["bad.c"].ExitCode).To(Equal(3))
			Expect(results["good.c"].Status).To(Equal(task.StatusPASS))
			Expect(results["xf.c"].Status).To(Equal(task.StatusSKIP))
			Expect(results["xf.c"].IsXFail()).To(BeTrue())
		})

		It("reports every fixture as not run when the build fails", func() {
			results, err := run(RunnerOptions{Build: "exit 1"})
			Expect(err).To(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for name, r := range results {
				Expect(r.Status).To(Equal(task.StatusERR), name)
				Expect(r.Error).To(ContainSubstring("fixture did not run"), name)
			}
		})
	})
})
