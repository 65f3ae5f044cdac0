package fixtures

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/samber/lo"
)

// ConfigFile is looked up in the working directory when no explicit config is given.
const ConfigFile = ".lit.yaml"

// DefaultExtensions are the fixture extensions picked up from directories.
var DefaultExtensions = []string{".c", ".cc", ".cpp", ".def", ".py"}

// Config is the on-disk configuration of a fixture run.
type Config struct {
	// Extensions of files treated as fixtures when a directory is given
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	// Syntaxes add or override comment markers per extension
	Syntaxes []Syntax `yaml:"syntaxes,omitempty" json:"syntaxes,omitempty"`
	// Build runs once before any fixture, rendered as a gomplate template
	Build string `yaml:"build,omitempty" json:"build,omitempty"`
	// Vars overlay the environment seen by XFAIL conditions
	Vars map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`
	// KeepWork leaves fixture workspaces on disk
	KeepWork bool `yaml:"keepWork,omitempty" json:"keepWork,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Extensions: DefaultExtensions,
		Vars:       map[string]string{},
	}
}

// LoadConfig reads path, or ConfigFile in dir when path is empty. A missing implicit
// config yields the defaults; a missing explicit config is an error.
func LoadConfig(dir, path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, ConfigFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return MergeConfig(cfg, override), nil
}

func MergeConfig(base, override Config) Config {
	if len(override.Extensions) > 0 {
		base.Extensions = lo.Map(override.Extensions, func(ext string, _ int) string {
			if ext != "" && ext[0] != '.' {
				return "." + ext
			}
			return ext
		})
	}
	if override.Build != "" {
		base.Build = override.Build
	}
	base.Syntaxes = append(base.Syntaxes, override.Syntaxes...)
	if base.Vars == nil {
		base.Vars = map[string]string{}
	}
	for k, v := range override.Vars {
		base.Vars[k] = v
	}
	base.KeepWork = base.KeepWork || override.KeepWork
	return base
}

// Registry returns DefaultRegistry extended with the configured syntaxes. A configured
// syntax reusing a built-in name replaces its extensions.
func (c Config) Registry() (*SyntaxRegistry, error) {
	if len(c.Syntaxes) == 0 {
		return DefaultRegistry, nil
	}
	registry := DefaultRegistry.Clone()
	for _, s := range c.Syntaxes {
		if err := registry.Upsert(s); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
