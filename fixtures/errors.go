package fixtures

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ErrorKind classifies why a fixture evaluation failed.
type ErrorKind int

const (
	// CommandFailure: a RUN command exited non-zero with no expected failure active.
	CommandFailure ErrorKind = iota + 1
	// CheckMismatch: a CHECK prefix was not at the head of the output buffer.
	CheckMismatch
	// UnrecognizedDirective: a directive-shaped line used an unknown name.
	UnrecognizedDirective
	// NoDirectivesFound: the fixture contains no directive lines at all.
	NoDirectivesFound
	// UnexpectedPass: the fixture was marked XFAIL but every directive succeeded.
	UnexpectedPass
	// InvalidCondition: an XFAIL expression could not be compiled or did not yield a bool.
	InvalidCondition
	// ReadFailure: the fixture could not be read.
	ReadFailure
)

func (k ErrorKind) String() string {
	switch k {
	case CommandFailure:
		return "command failed"
	case CheckMismatch:
		return "failed CHECK"
	case UnrecognizedDirective:
		return "unrecognised directive"
	case NoDirectivesFound:
		return "no directives recognised"
	case UnexpectedPass:
		return "XPASS"
	case InvalidCondition:
		return "invalid XFAIL condition"
	case ReadFailure:
		return "read failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Absorbable reports whether an active expected failure turns this kind into an xfail outcome.
func (k ErrorKind) Absorbable() bool {
	return k == CommandFailure || k == CheckMismatch
}

// IsConfiguration reports whether the kind points at a broken fixture rather than a failing tool.
func (k ErrorKind) IsConfiguration() bool {
	switch k {
	case UnrecognizedDirective, NoDirectivesFound, InvalidCondition, ReadFailure:
		return true
	}
	return false
}

// Sentinels for errors.Is; a *FixtureError matches the sentinel of its kind.
var (
	ErrCommandFailure        = &FixtureError{Kind: CommandFailure}
	ErrCheckMismatch         = &FixtureError{Kind: CheckMismatch}
	ErrUnrecognizedDirective = &FixtureError{Kind: UnrecognizedDirective}
	ErrNoDirectivesFound     = &FixtureError{Kind: NoDirectivesFound}
	ErrUnexpectedPass        = &FixtureError{Kind: UnexpectedPass}
	ErrInvalidCondition      = &FixtureError{Kind: InvalidCondition}
	ErrReadFailure           = &FixtureError{Kind: ReadFailure}
)

// FixtureError is the fatal outcome of evaluating one fixture.
type FixtureError struct {
	Kind    ErrorKind `json:"kind"`
	Path    string    `json:"path"`
	Line    int       `json:"line,omitempty"`
	Message string    `json:"message,omitempty"`

	// CheckMismatch
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`

	// CommandFailure
	Command  string `json:"command,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Stderr   string `json:"stderr,omitempty"`

	Err error `json:"-"`
}

func (e *FixtureError) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())

	switch e.Kind {
	case CheckMismatch:
		fmt.Fprintf(&b, ": %s\n  output: %q", e.Expected, e.Actual)
	case CommandFailure:
		fmt.Fprintf(&b, ": %s (exit code %d)", e.Command, e.ExitCode)
		if e.Stderr != "" {
			fmt.Fprintf(&b, "\n%s", strings.TrimRight(e.Stderr, "\n"))
		}
	default:
		if e.Message != "" && e.Message != e.Kind.String() {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FixtureError) Unwrap() error {
	return e.Err
}

// Is matches any *FixtureError of the same kind.
func (e *FixtureError) Is(target error) bool {
	t, ok := target.(*FixtureError)
	return ok && t.Kind == e.Kind
}

func (e *FixtureError) Location() Location {
	return Location{Path: e.Path, Line: e.Line}
}

// Diff renders a character diff between the expected CHECK text and the buffer head.
func (e *FixtureError) Diff() string {
	if e.Kind != CheckMismatch {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(e.Expected, e.Actual, false)
	return dmp.DiffPrettyText(dmp.DiffCleanupSemantic(diffs))
}

// AsFixtureError unwraps err to a *FixtureError if it is one.
func AsFixtureError(err error) (*FixtureError, bool) {
	var fe *FixtureError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
