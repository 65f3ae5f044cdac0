package fixtures

import (
	"context"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/flanksource/commons/logger"
)

// Outcome is the non-error result of evaluating a fixture.
type Outcome int

const (
	// Pass: every directive succeeded and no expected failure was declared.
	Pass Outcome = iota
	// ExpectedFailure: a RUN or CHECK failed while an XFAIL marker was active.
	ExpectedFailure
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case ExpectedFailure:
		return "xfail"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result describes a fixture that did not fail.
type Result struct {
	Path    string  `json:"path"`
	Outcome Outcome `json:"outcome"`
	// XFail is the marker that absorbed the failure when Outcome is ExpectedFailure
	XFail *Location `json:"xfail,omitempty"`
	// Absorbed is the failure that was tolerated
	Absorbed   *FixtureError `json:"absorbed,omitempty"`
	Directives int           `json:"directives"`
	WorkDir    string        `json:"work_dir,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// EvaluateOptions configures a single fixture evaluation.
type EvaluateOptions struct {
	// TempRoot is the directory under which the fixture's private workspace is created
	TempRoot string
	// Registry selects the comment syntax; DefaultRegistry when nil
	Registry *SyntaxRegistry
	// Conditions evaluates XFAIL expressions; host facts are used when nil
	Conditions *ConditionEvaluator
	// Shell runs RUN directives; BashShell when nil
	Shell Shell
	// KeepWork leaves the workspace on disk after evaluation
	KeepWork bool
}

// evaluation holds the mutable state of one fixture run.
type evaluation struct {
	ctx        context.Context
	path       string
	workspace  *Workspace
	shell      Shell
	conditions *ConditionEvaluator

	output       string
	xfail        *Location
	sawDirective bool
	directives   int
}

// errAbsorbed ends the directive loop after a tolerated failure.
type errAbsorbed struct {
	cause *FixtureError
}

func (e *errAbsorbed) Error() string {
	return "expected failure: " + e.cause.Error()
}

// Evaluate runs the directives of the fixture at path. It returns a Result for a pass or an
// expected failure, and a *FixtureError for every fatal outcome.
func Evaluate(ctx context.Context, path string, opts EvaluateOptions) (Result, error) {
	start := time.Now()
	result := Result{Path: path}

	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry
	}
	shell := opts.Shell
	if shell == nil {
		shell = BashShell{}
	}
	conditions := opts.Conditions
	if conditions == nil {
		var err error
		if conditions, err = NewConditionEvaluator(HostFacts(nil)); err != nil {
			return result, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return result, &FixtureError{Kind: ReadFailure, Path: path, Message: "failed to open fixture", Err: err}
	}
	defer func() { _ = f.Close() }()

	workspace, err := NewWorkspace(opts.TempRoot, path)
	if err != nil {
		return result, err
	}
	if opts.KeepWork {
		workspace.Keep()
	}
	defer func() {
		if err := workspace.Close(); err != nil {
			logger.Warnf("%v", err)
		}
	}()
	result.WorkDir = workspace.Dir

	e := &evaluation{
		ctx:        ctx,
		path:       path,
		workspace:  workspace,
		shell:      shell,
		conditions: conditions,
	}

	parser := &Parser{Syntax: registry.ForPath(path), Substitute: workspace.Substitute}
	err = e.run(parser.Directives(f, path))
	result.Directives = e.directives
	result.Duration = time.Since(start)

	if absorbed, ok := err.(*errAbsorbed); ok {
		result.Outcome = ExpectedFailure
		result.XFail = e.xfail
		result.Absorbed = absorbed.cause
		logger.Debugf("%s: expected failure (%s): %v", path, e.xfail, absorbed.cause)
		return result, nil
	}
	if err != nil {
		return result, err
	}
	result.Outcome = Pass
	return result, nil
}

func (e *evaluation) run(directives iter.Seq2[Directive, error]) error {
	for d, err := range directives {
		if err != nil {
			if fe, ok := AsFixtureError(err); ok && fe.Kind == UnrecognizedDirective {
				e.sawDirective = true
			}
			return err
		}
		if err := e.ctx.Err(); err != nil {
			return fmt.Errorf("%s:%d: %w", d.Source, d.Line, err)
		}

		e.sawDirective = true
		e.directives++

		if err := e.apply(d); err != nil {
			return err
		}
	}

	if !e.sawDirective {
		return &FixtureError{Kind: NoDirectivesFound, Path: e.path}
	}
	if e.xfail != nil {
		return &FixtureError{
			Kind:    UnexpectedPass,
			Path:    e.xfail.Path,
			Line:    e.xfail.Line,
			Message: "fixture is marked XFAIL but passed",
		}
	}
	return nil
}

func (e *evaluation) apply(d Directive) error {
	switch d.Kind {
	case KindRun:
		return e.fail(e.runCommand(d))
	case KindCheck:
		return e.fail(e.check(d))
	case KindXFail:
		return e.expectFailure(d)
	default:
		return &FixtureError{Kind: UnrecognizedDirective, Path: d.Source, Line: d.Line, Message: d.Kind.String()}
	}
}

// fail converts an absorbable failure into errAbsorbed while an XFAIL marker is active.
func (e *evaluation) fail(fe *FixtureError) error {
	if fe == nil {
		return nil
	}
	if e.xfail != nil && fe.Kind.Absorbable() {
		return &errAbsorbed{cause: fe}
	}
	return fe
}

func (e *evaluation) runCommand(d Directive) *FixtureError {
	res := e.shell.Run(e.ctx, d.Content, e.workspace.Dir)
	if !res.OK() {
		return &FixtureError{
			Kind:     CommandFailure,
			Path:     d.Source,
			Line:     d.Line,
			Command:  d.Content,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      res.Err,
		}
	}
	e.output += res.Stdout
	return nil
}

// check consumes expected from the head of the output buffer after trimming leading space.
func (e *evaluation) check(d Directive) *FixtureError {
	remainder, ok := consumePrefix(e.output, d.Content)
	if !ok {
		return &FixtureError{
			Kind:     CheckMismatch,
			Path:     d.Source,
			Line:     d.Line,
			Expected: d.Content,
			Actual:   bufferHead(strings.TrimLeftFunc(e.output, unicode.IsSpace), d.Content),
		}
	}
	e.output = remainder
	return nil
}

func (e *evaluation) expectFailure(d Directive) error {
	ok, err := e.conditions.Evaluate(d.Content)
	if err != nil {
		return &FixtureError{
			Kind:    InvalidCondition,
			Path:    d.Source,
			Line:    d.Line,
			Message: d.Content,
			Err:     err,
		}
	}
	if ok && e.xfail == nil {
		loc := d.Location()
		e.xfail = &loc
	}
	return nil
}

// consumePrefix left-trims buffer and removes expected from its head.
func consumePrefix(buffer, expected string) (string, bool) {
	trimmed := strings.TrimLeftFunc(buffer, unicode.IsSpace)
	if !strings.HasPrefix(trimmed, expected) {
		return trimmed, false
	}
	return trimmed[len(expected):], true
}

// bufferHead returns the first line of the buffer, extended to at least the expected length.
func bufferHead(buffer, expected string) string {
	n := len(expected)
	if i := strings.IndexByte(buffer, '\n'); i > n {
		n = i
	}
	if n < 80 {
		n = 80
	}
	if n >= len(buffer) {
		return buffer
	}
	for n > 0 && !utf8.RuneStart(buffer[n]) {
		n--
	}
	return buffer[:n] + "…"
}
