package fixtures

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Syntax describes how directives are embedded in one family of fixture files.
type Syntax struct {
	// Name identifies the syntax (e.g. "c", "script")
	Name string `yaml:"name" json:"name"`
	// Marker is the line comment token that introduces a directive
	Marker string `yaml:"marker" json:"marker"`
	// Extensions handled by this syntax, including the leading dot
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`

	pattern *regexp.Regexp
}

// Pattern returns the compiled directive grammar for this syntax:
// marker, optional space, an uppercase name, optional space, a colon and the content.
func (s *Syntax) Pattern() *regexp.Regexp {
	if s.pattern == nil {
		s.pattern = regexp.MustCompile(`^\s*` + regexp.QuoteMeta(s.Marker) + `\s*([A-Z]+)\s*:\s*(.*)$`)
	}
	return s.pattern
}

func (s Syntax) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("syntax name is required")
	}
	if strings.TrimSpace(s.Marker) == "" {
		return fmt.Errorf("syntax %q: comment marker is required", s.Name)
	}
	for _, ext := range s.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("syntax %q: extension %q must start with '.'", s.Name, ext)
		}
	}
	return nil
}

var (
	// CSyntax is used for C-family sources and any extension without a registered syntax.
	CSyntax = Syntax{Name: "c", Marker: "//"}
	// ScriptSyntax is used for sources whose line comments start with '#'.
	ScriptSyntax = Syntax{
		Name:       "script",
		Marker:     "#",
		Extensions: []string{".py", ".sh", ".bash", ".pl", ".rb", ".cmake", ".yaml", ".yml", ".toml", ".mk"},
	}
)

// SyntaxRegistry maps fixture file extensions to their comment syntax.
// It is safe for concurrent use.
type SyntaxRegistry struct {
	mu       sync.RWMutex
	byName   map[string]*Syntax
	byExt    map[string]*Syntax
	fallback *Syntax
}

// NewSyntaxRegistry creates a registry that resolves unknown extensions to fallback.
func NewSyntaxRegistry(fallback Syntax) *SyntaxRegistry {
	return &SyntaxRegistry{
		byName:   make(map[string]*Syntax),
		byExt:    make(map[string]*Syntax),
		fallback: &fallback,
	}
}

// Register adds a syntax; extensions already claimed by another syntax are taken over.
func (r *SyntaxRegistry) Register(syntax Syntax) error {
	if err := syntax.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[syntax.Name]; exists {
		return fmt.Errorf("syntax '%s' already registered", syntax.Name)
	}

	s := &syntax
	r.byName[s.Name] = s
	for _, ext := range s.Extensions {
		r.byExt[strings.ToLower(ext)] = s
	}
	return nil
}

// Upsert registers syntax, replacing any syntax of the same name. Replacing the fallback
// changes the marker used for unregistered extensions.
func (r *SyntaxRegistry) Upsert(syntax Syntax) error {
	if err := syntax.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := &syntax
	if r.fallback.Name == s.Name {
		r.fallback = s
	} else if old, ok := r.byName[s.Name]; ok {
		for ext, owner := range r.byExt {
			if owner == old {
				delete(r.byExt, ext)
			}
		}
	}
	if r.fallback != s {
		r.byName[s.Name] = s
	}
	for _, ext := range s.Extensions {
		r.byExt[strings.ToLower(ext)] = s
	}
	return nil
}

// Get retrieves a syntax by name
func (r *SyntaxRegistry) Get(name string) (Syntax, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.fallback.Name == name {
		return *r.fallback, true
	}
	s, ok := r.byName[name]
	if !ok {
		return Syntax{}, false
	}
	return *s, true
}

// ForPath selects the syntax for a fixture based on its extension.
func (r *SyntaxRegistry) ForPath(path string) Syntax {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return *s
	}
	return *r.fallback
}

// List returns all registered syntax names, fallback included
func (r *SyntaxRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName)+1)
	names = append(names, r.fallback.Name)
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}

// Clone returns an independent copy so callers can extend it without affecting the receiver.
func (r *SyntaxRegistry) Clone() *SyntaxRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := NewSyntaxRegistry(*r.fallback)
	for _, ext := range clone.fallback.Extensions {
		clone.byExt[strings.ToLower(ext)] = clone.fallback
	}
	for name, s := range r.byName {
		cp := *s
		clone.byName[name] = &cp
		for _, ext := range cp.Extensions {
			clone.byExt[strings.ToLower(ext)] = &cp
		}
	}
	return clone
}

// DefaultRegistry is the global syntax table
var DefaultRegistry = NewSyntaxRegistry(CSyntax)

// Register adds a syntax to the default registry
func Register(syntax Syntax) error {
	return DefaultRegistry.Register(syntax)
}

func init() {
	_ = Register(ScriptSyntax)
}
