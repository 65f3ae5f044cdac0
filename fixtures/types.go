package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/api"
	"github.com/flanksource/clicky/task"
)

// Fixture is a discovered fixture file.
type Fixture struct {
	// Name is the path relative to the working directory, used in reports and filters
	Name string `json:"name"`
	// Path is the absolute path of the fixture
	Path   string `json:"path"`
	Syntax string `json:"syntax,omitempty"`
}

func (f Fixture) String() string {
	return f.Name
}

func (f Fixture) Pretty() api.Text {
	return clicky.Text(f.Name, "italic text-orange-500")
}

func relativePath(base, path string) string {
	if base == "" {
		base, _ = os.Getwd()
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// NodeType represents the type of node in the result tree.
type NodeType int

const (
	// SectionNode groups the fixtures of one directory.
	SectionNode NodeType = iota
	// FixtureNodeType is a single fixture file.
	FixtureNodeType
)

func (nt NodeType) String() string {
	switch nt {
	case SectionNode:
		return "section"
	case FixtureNodeType:
		return "fixture"
	default:
		return "unknown"
	}
}

func (nt NodeType) Pretty() api.Text {
	return clicky.Text(nt.String(), "text-gray-500")
}

// FixtureResult is the reportable outcome of one fixture.
type FixtureResult struct {
	Name     string        `json:"name" pretty:"label=Fixture,style=text-blue-600"`
	Path     string        `json:"path,omitempty" pretty:"label=Path,omitempty"`
	Status   task.Status   `json:"status,omitempty"`
	Duration time.Duration `json:"duration,omitempty" pretty:"label=Duration,style=text-yellow-600,omitempty"`
	Fixture  Fixture       `json:"-"`

	// Kind is the FixtureError kind for failures and errors
	Kind  string    `json:"kind,omitempty" pretty:"label=Kind,omitempty"`
	Line  int       `json:"line,omitempty" pretty:"label=Line,omitempty"`
	Error string    `json:"error,omitempty" pretty:"label=Error,style=text-red-600,omitempty"`
	XFail *Location `json:"xfail,omitempty" pretty:"label=XFAIL,omitempty"`

	Expected string `json:"expected,omitempty" pretty:"label=Expected,omitempty"`
	Actual   string `json:"actual,omitempty" pretty:"label=Actual,omitempty"`
	Diff     string `json:"diff,omitempty" pretty:"label=Diff,omitempty"`

	Command  string `json:"command,omitempty" pretty:"label=Command,style=text-cyan-600,omitempty"`
	ExitCode int    `json:"exit_code,omitempty" pretty:"label=Exit Code,omitempty"`
	Stderr   string `json:"stderr,omitempty" pretty:"label=Stderr,omitempty"`

	Directives int    `json:"directives,omitempty" pretty:"label=Directives,omitempty"`
	WorkDir    string `json:"work_dir,omitempty" pretty:"label=Work Dir,style=text-purple-500,omitempty"`
}

// NewFixtureResult converts the return values of Evaluate into a report entry.
func NewFixtureResult(fixture Fixture, result Result, err error) FixtureResult {
	r := FixtureResult{
		Name:       fixture.Name,
		Path:       fixture.Path,
		Fixture:    fixture,
		Duration:   result.Duration,
		Directives: result.Directives,
		WorkDir:    result.WorkDir,
	}

	if err == nil {
		switch result.Outcome {
		case ExpectedFailure:
			r.Status = task.StatusSKIP
			r.XFail = result.XFail
			if result.Absorbed != nil {
				r.Kind = result.Absorbed.Kind.String()
				r.Line = result.Absorbed.Line
			}
		default:
			r.Status = task.StatusPASS
		}
		return r
	}

	fe, ok := AsFixtureError(err)
	if !ok {
		return r.Errorf(err, "evaluation aborted")
	}

	r.Kind = fe.Kind.String()
	r.Line = fe.Line
	r.Expected = fe.Expected
	r.Actual = fe.Actual
	r.Diff = fe.Diff()
	r.Command = fe.Command
	r.ExitCode = fe.ExitCode
	r.Stderr = fe.Stderr
	r.Error = fe.Error()
	if fe.Kind.IsConfiguration() {
		r.Status = task.StatusERR
	} else {
		r.Status = task.StatusFAIL
	}
	return r
}

func (f FixtureResult) Errorf(err error, format string, args ...interface{}) FixtureResult {
	f.Status = task.StatusERR
	f.Error = fmt.Sprintf(format, args...) + ": " + err.Error()
	return f
}

// IsXFail reports whether the fixture failed as expected.
func (f FixtureResult) IsXFail() bool {
	return f.Status == task.StatusSKIP && f.XFail != nil
}

func (f FixtureResult) Stats() Stats {
	return Stats{}.Add(&f)
}

func (f FixtureResult) String() string {
	if f.IsXFail() {
		return fmt.Sprintf("%s - XFAIL (%s)", f.Name, f.XFail)
	}
	return fmt.Sprintf("%s - %s", f.Name, f.Status.String())
}

func (f FixtureResult) Pretty() api.Text {
	t := f.Status.Pretty().Append(" ").Add(f.Fixture.Pretty())

	if f.IsXFail() {
		t = t.Space().Append(fmt.Sprintf("xfail at line %d", f.XFail.Line), "text-yellow-600")
	}
	if f.Duration > 0 {
		t = t.Space().Append(fmt.Sprintf("(%s)", f.Duration.Round(time.Millisecond)), "text-gray-500")
	}
	if f.Error != "" {
		t = t.NewLine().Append(f.Error, "text-red-600")
	}
	if f.Diff != "" {
		t = t.NewLine().Append(f.Diff)
	}
	return t
}

func (f FixtureResult) IsOK() bool {
	return f.Status.Health() == task.HealthOK || f.IsXFail()
}

// Stats provides summary statistics for a fixture run.
type Stats struct {
	Total   int `json:"total,omitempty"`
	Passed  int `json:"passed,omitempty"`
	Failed  int `json:"failed,omitempty"`
	XFailed int `json:"xfailed,omitempty"`
	Error   int `json:"error,omitempty"`
}

func (s Stats) Merge(o Stats) Stats {
	return Stats{
		Total:   s.Total + o.Total,
		Passed:  s.Passed + o.Passed,
		Failed:  s.Failed + o.Failed,
		XFailed: s.XFailed + o.XFailed,
		Error:   s.Error + o.Error,
	}
}

func (s Stats) Add(result *FixtureResult) Stats {
	if result == nil {
		return s
	}
	s.Total++
	switch result.Status {
	case task.StatusFAIL, task.StatusFailed:
		s.Failed++
	case task.StatusPASS, task.StatusSuccess:
		s.Passed++
	case task.StatusSKIP:
		s.XFailed++
	case task.StatusERR, task.StatusCancelled:
		s.Error++
	}
	return s
}

func (s Stats) IsOK() bool {
	return s.Failed == 0 && s.Error == 0
}

func (s Stats) HasFailures() bool {
	return s.Failed > 0 || s.Error > 0
}

func (s Stats) Health() task.Health {
	if s.HasFailures() {
		return task.HealthError
	}
	if s.Total == 0 {
		return task.HealthWarning
	}
	return task.HealthOK
}

// Pretty prints counts: green passed, red failed, yellow expected failures
func (s Stats) Pretty() api.Text {
	t := api.Text{}
	if s.Passed > 0 {
		t = t.Append(strconv.Itoa(s.Passed)+" passed", "text-green-500")
	}
	if s.Failed > 0 {
		if !t.IsEmpty() {
			t = t.Append(", ", "text-gray-500")
		}
		t = t.Append(strconv.Itoa(s.Failed)+" failed", "text-red-500")
	}
	if s.XFailed > 0 {
		if !t.IsEmpty() {
			t = t.Append(", ", "text-gray-500")
		}
		t = t.Append(strconv.Itoa(s.XFailed)+" xfailed", "text-yellow-500")
	}
	if s.Error > 0 {
		if !t.IsEmpty() {
			t = t.Append(", ", "text-gray-500")
		}
		t = t.Append(strconv.Itoa(s.Error)+" errors", "text-red-500")
	}
	return t
}

func (s Stats) String() string {
	if s.Total == 0 {
		return "-"
	}
	str := fmt.Sprintf("%d/%d", s.Passed, s.Total-s.XFailed)
	if s.XFailed > 0 {
		str += fmt.Sprintf(" %d xfailed", s.XFailed)
	}
	if s.Error > 0 {
		str += fmt.Sprintf(" %d error", s.Error)
	}
	return str
}

// FixtureNode is a node of the result tree: a directory section or a fixture.
type FixtureNode struct {
	Name     string         `json:"name" pretty:"label"`
	Type     NodeType       `json:"type" pretty:"type"`
	Children []*FixtureNode `json:"children,omitempty"`
	Parent   *FixtureNode   `json:"-"`
	Fixture  *Fixture       `json:"fixture,omitempty"`
	Results  *FixtureResult `json:"results,omitempty"`
	Stats    *Stats         `json:"stats,omitempty"`
}

// BuildTree groups fixtures into one section per directory, in the given order.
func BuildTree(name string, fixtures []Fixture) *FixtureNode {
	root := &FixtureNode{Name: name, Type: SectionNode}
	sections := map[string]*FixtureNode{}
	for i := range fixtures {
		dir := filepath.Dir(fixtures[i].Name)
		section, ok := sections[dir]
		if !ok {
			section = &FixtureNode{Name: dir, Type: SectionNode}
			sections[dir] = section
			root.AddChild(section)
		}
		section.AddChild(&FixtureNode{
			Name:    filepath.Base(fixtures[i].Name),
			Type:    FixtureNodeType,
			Fixture: &fixtures[i],
		})
	}
	return root
}

// AddChild adds a child node to this node
func (fn *FixtureNode) AddChild(child *FixtureNode) {
	child.Parent = fn
	fn.Children = append(fn.Children, child)
}

// Walk visits every fixture node in the subtree
func (fn *FixtureNode) Walk(visitor func(f *FixtureNode)) {
	if fn.Fixture != nil {
		visitor(fn)
	}
	for _, child := range fn.Children {
		child.Walk(visitor)
	}
}

func (fn FixtureNode) GetStats() Stats {
	s := Stats{}.Add(fn.Results)
	for _, child := range fn.Children {
		s = s.Merge(child.GetStats())
	}
	return s
}

// UpdateStats recalculates Stats for this node and all sections below it
func (fn *FixtureNode) UpdateStats() {
	for _, child := range fn.Children {
		child.UpdateStats()
	}
	if fn.Type == SectionNode {
		stats := fn.GetStats()
		fn.Stats = &stats
	}
}

// AllResults returns the results of all fixtures in the subtree, in tree order
func (fn *FixtureNode) AllResults() []FixtureResult {
	var results []FixtureResult
	fn.Walk(func(f *FixtureNode) {
		if f.Results != nil {
			results = append(results, *f.Results)
		}
	})
	return results
}

func (fn FixtureNode) Pretty() api.Text {
	if fn.Results != nil {
		return fn.Results.Pretty()
	}

	s := clicky.Text("").Add(fn.Type.Pretty()).Append(" ").Append(fn.Name)
	if fn.Stats != nil {
		s = s.Append(" (").Add(fn.Stats.Pretty()).Append(")")
	}
	return s
}

func (fn FixtureNode) GetChildren() []api.TreeNode {
	nodes := make([]api.TreeNode, len(fn.Children))
	for i, child := range fn.Children {
		nodes[i] = child
	}
	return nodes
}
