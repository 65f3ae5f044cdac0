package fixtures

import (
	"testing"
)

// RunT evaluates every fixture matched by opts as a parallel subtest of t. Expected
// failures are reported as skips. opts.Build and opts.TempRoot are ignored: each subtest
// uses its own t.TempDir().
func RunT(t *testing.T, opts RunnerOptions) {
	t.Helper()

	runner, err := NewRunner(opts)
	if err != nil {
		t.Fatalf("failed to create fixture runner: %v", err)
	}
	fixtures, err := runner.Discover()
	if err != nil {
		t.Fatalf("failed to discover fixtures: %v", err)
	}
	if len(fixtures) == 0 {
		t.Fatalf("no fixtures found in %v", opts.Paths)
	}

	for _, fixture := range fixtures {
		t.Run(fixture.Name, func(t *testing.T) {
			t.Parallel()

			result, err := Evaluate(t.Context(), fixture.Path, EvaluateOptions{
				TempRoot:   t.TempDir(),
				Registry:   runner.options.Registry,
				Conditions: runner.conditions,
				Shell:      runner.options.Shell,
			})
			if err != nil {
				t.Fatal(err)
			}
			if result.Outcome == ExpectedFailure {
				t.Skipf("XFAIL %s: %v", result.XFail, result.Absorbed)
			}
		})
	}
}
