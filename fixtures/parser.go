package fixtures

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// Parser extracts directives from fixture source.
type Parser struct {
	Syntax Syntax
	// Substitute rewrites directive content before it is yielded; nil leaves content as written.
	Substitute func(string) string
}

// NewParser returns a parser for the given syntax without substitution.
func NewParser(syntax Syntax) *Parser {
	return &Parser{Syntax: syntax}
}

// Directives lazily yields the directives of r in file order. Lines that do not match the
// grammar are skipped. A line shaped like a directive with an unknown name yields an
// UnrecognizedDirective error; iteration continues if the caller keeps ranging.
func (p *Parser) Directives(r io.Reader, source string) iter.Seq2[Directive, error] {
	return func(yield func(Directive, error) bool) {
		reader := bufio.NewReader(r)
		pattern := p.Syntax.Pattern()
		line := 0

		for {
			text, err := reader.ReadString('\n')
			if text == "" && err != nil {
				if !errors.Is(err, io.EOF) {
					yield(Directive{}, &FixtureError{
						Kind:    ReadFailure,
						Path:    source,
						Line:    line,
						Message: "failed to read fixture",
						Err:     err,
					})
				}
				return
			}
			line++

			m := pattern.FindStringSubmatch(strings.TrimRight(text, "\n"))
			if m == nil {
				continue
			}

			name := m[1]
			raw := strings.TrimRightFunc(m[2], unicode.IsSpace)

			kind, ok := ParseKind(name)
			if !ok {
				if !yield(Directive{Raw: raw, Line: line, Source: source}, &FixtureError{
					Kind:    UnrecognizedDirective,
					Path:    source,
					Line:    line,
					Message: strconv.Quote(name),
				}) {
					return
				}
				continue
			}

			content := raw
			if p.Substitute != nil {
				content = p.Substitute(raw)
			}

			if !yield(Directive{
				Kind:    kind,
				Raw:     raw,
				Content: content,
				Line:    line,
				Source:  source,
			}, nil) {
				return
			}
		}
	}
}

// ParseFile reads every directive of the fixture at path, stopping at the first error.
// Syntax is selected from the registry by extension.
func ParseFile(path string, registry *SyntaxRegistry) ([]Directive, error) {
	if registry == nil {
		registry = DefaultRegistry
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &FixtureError{Kind: ReadFailure, Path: path, Message: "failed to open fixture", Err: err}
	}
	defer func() { _ = f.Close() }()

	var directives []Directive
	for d, err := range NewParser(registry.ForPath(path)).Directives(f, path) {
		if err != nil {
			return directives, err
		}
		directives = append(directives, d)
	}
	return directives, nil
}
