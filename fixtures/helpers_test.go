package fixtures

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// fakeShell answers RUN commands from a table instead of spawning bash.
// Commands missing from the table succeed with no output.
type fakeShell struct {
	mu       sync.Mutex
	results  map[string]ShellResult
	commands []string
	dirs     []string
}

func newFakeShell(results map[string]ShellResult) *fakeShell {
	return &fakeShell{results: results}
}

func (f *fakeShell) Run(_ context.Context, command, dir string) ShellResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	f.dirs = append(f.dirs, dir)
	if r, ok := f.results[command]; ok {
		return r
	}
	return ShellResult{}
}

func (f *fakeShell) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func stdout(s string) ShellResult {
	return ShellResult{Stdout: s}
}

func exitCode(code int) ShellResult {
	return ShellResult{ExitCode: code, Stderr: "failed\n"}
}

func writeFixture(dir, name string, lines ...string) string {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		panic(err)
	}
	return path
}

func testConditions(env map[string]string) *ConditionEvaluator {
	e, err := NewConditionEvaluator(Facts{OS: "linux", Arch: "amd64", PlatformFamily: "debian", Env: env})
	if err != nil {
		panic(err)
	}
	return e
}

func dirEntries(dir string) []string {
	entries, _ := os.ReadDir(dir)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
