package fixtures

import (
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/api"
)

// Kind is the closed set of directives a fixture may contain.
type Kind int

const (
	// KindRun executes its content as a shell command and appends stdout to the output buffer.
	KindRun Kind = iota
	// KindCheck consumes its content as a literal prefix of the output buffer.
	KindCheck
	// KindXFail marks the fixture as expected to fail when its condition holds.
	KindXFail
)

var kindNames = map[string]Kind{
	"RUN":   KindRun,
	"CHECK": KindCheck,
	"XFAIL": KindXFail,
}

// ParseKind maps a directive name to its Kind. Names are case-sensitive.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindNames[name]
	return k, ok
}

func (k Kind) String() string {
	switch k {
	case KindRun:
		return "RUN"
	case KindCheck:
		return "CHECK"
	case KindXFail:
		return "XFAIL"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) Pretty() api.Text {
	switch k {
	case KindRun:
		return clicky.Text(k.String(), "font-bold text-cyan-600")
	case KindCheck:
		return clicky.Text(k.String(), "font-bold text-green-600")
	default:
		return clicky.Text(k.String(), "font-bold text-yellow-600")
	}
}

// Location identifies a line in a fixture file.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Directive is one recognised annotation line of a fixture.
type Directive struct {
	Kind Kind `json:"kind" pretty:"label=Kind"`
	// Raw is the content as written in the fixture
	Raw string `json:"raw,omitempty" pretty:"label=Raw,omitempty"`
	// Content is Raw after token substitution
	Content string `json:"content" pretty:"label=Content"`
	Line    int    `json:"line" pretty:"label=Line"`
	Source  string `json:"source,omitempty" pretty:"label=Source,omitempty"`
}

func (d Directive) Location() Location {
	return Location{Path: d.Source, Line: d.Line}
}

func (d Directive) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Location(), d.Kind, d.Content)
}

func (d Directive) Pretty() api.Text {
	return clicky.Text(fmt.Sprintf("%4d ", d.Line), "text-gray-500").
		Add(d.Kind.Pretty()).
		Append(": ").
		Append(d.Content)
}
