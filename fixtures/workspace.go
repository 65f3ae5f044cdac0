package fixtures

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/flanksource/commons/logger"
)

// Substitution tokens recognised inside directive content.
const (
	TokenFixture    = "{%s}"
	TokenFixtureDir = "{%S}"
	TokenTempFile   = "{%t}"
	TokenTempDir    = "{%T}"
	TokenTimeout    = "{%timeout}"
)

// MissingTimeout is substituted for {%timeout} when no timeout utility is installed, so that
// a RUN relying on it fails instead of running unbounded.
const MissingTimeout = "/nonexistent/timeout-utility-not-found"

var timeoutUtilities = []string{"timeout", "gtimeout"}

// Workspace is the private scratch area of one fixture evaluation together with the
// token table derived from it.
type Workspace struct {
	Fixture  string
	Dir      string
	TempFile string
	Timeout  string

	tokens   map[string]string
	replacer *strings.Replacer
	keep     bool
}

// NewWorkspace creates a fresh directory under root for the fixture at path.
// The directory is unique per call and never shared between fixtures.
func NewWorkspace(root, path string) (*Workspace, error) {
	fixture, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fixture path %s: %w", path, err)
	}

	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work root %s: %w", root, err)
	}

	dir, err := os.MkdirTemp(root, workspacePrefix(fixture))
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace for %s: %w", path, err)
	}

	w := &Workspace{
		Fixture:  fixture,
		Dir:      dir,
		TempFile: filepath.Join(dir, "tempfile"),
		Timeout:  lookupTimeout(),
	}
	w.tokens = map[string]string{
		TokenFixture:    w.Fixture,
		TokenFixtureDir: filepath.Dir(w.Fixture),
		TokenTempFile:   w.TempFile,
		TokenTempDir:    w.Dir,
		TokenTimeout:    w.Timeout,
	}

	pairs := make([]string, 0, len(w.tokens)*2)
	for token, value := range w.tokens {
		pairs = append(pairs, token, value)
	}
	w.replacer = strings.NewReplacer(pairs...)
	return w, nil
}

func workspacePrefix(fixture string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '*':
			return '_'
		}
		return r
	}, filepath.Base(fixture))
	return name + "-*"
}

func lookupTimeout() string {
	for _, name := range timeoutUtilities {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return MissingTimeout
}

// Tokens returns a copy of the substitution table.
func (w *Workspace) Tokens() map[string]string {
	out := make(map[string]string, len(w.tokens))
	for k, v := range w.tokens {
		out[k] = v
	}
	return out
}

// Substitute replaces every known token in s; unknown tokens are left as written.
func (w *Workspace) Substitute(s string) string {
	return w.replacer.Replace(s)
}

// Keep disables removal of the directory on Close.
func (w *Workspace) Keep() {
	w.keep = true
}

// Close removes the workspace directory unless Keep was called.
func (w *Workspace) Close() error {
	if w.keep {
		logger.Infof("Keeping workspace for %s at %s", w.Fixture, w.Dir)
		return nil
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", w.Dir, err)
	}
	return nil
}
