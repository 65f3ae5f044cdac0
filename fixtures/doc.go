// Package fixtures runs directive-driven fixture tests: plain source files that carry
// their own test instructions in line comments.
//
// # Directives
//
// A directive is a comment line of the form
//
//	// RUN: clink --build-only --database={%t} {%s}
//	// RUN: echo "select name from symbols;" | sqlite3 {%t}
//	// CHECK: main
//	// XFAIL: versionLess(env.LLVM_VERSION, "10.0.0")
//
// The comment marker depends on the file extension ("#" for scripts, "//" otherwise, see
// SyntaxRegistry). Only RUN, CHECK and XFAIL are accepted; any other uppercase name is an
// error.
//
//   - RUN executes its content with `bash -o pipefail -c`, stdin closed, inside a private
//     temporary directory, and appends stdout to the fixture's output buffer.
//   - CHECK trims leading whitespace from the buffer and consumes its content as a literal
//     prefix. Checks are ordered: each starts where the previous one stopped.
//   - XFAIL evaluates a CEL condition. When true, the first subsequent RUN or CHECK failure
//     ends the fixture as an expected failure; finishing without one is an XPASS error.
//
// # Substitutions
//
//	{%s}       absolute path of the fixture
//	{%S}       directory containing the fixture
//	{%t}       a temporary file path inside the workspace (not created)
//	{%T}       the workspace directory
//	{%timeout} path of timeout(1), or a path that does not exist
//
// # Running fixtures
//
//	result, err := fixtures.Evaluate(ctx, "cases/basic.c", fixtures.EvaluateOptions{TempRoot: tmp})
//
// or, for many fixtures in parallel,
//
//	runner, _ := fixtures.NewRunner(fixtures.RunnerOptions{Paths: []string{"test/cases"}})
//	tree, err := runner.Run(ctx)
//
// and from go test:
//
//	func TestCases(t *testing.T) {
//		fixtures.RunT(t, fixtures.RunnerOptions{Paths: []string{"testdata"}})
//	}
package fixtures
