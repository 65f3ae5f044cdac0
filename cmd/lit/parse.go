package main

import (
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/api"
	"github.com/flanksource/lit/fixtures"
)

type ParseOptions struct {
	Paths  []string `json:"paths" args:"true" help:"Fixture files to parse"`
	Config string   `json:"config,omitempty" flag:"config" help:"Path to a config file"`
}

func (opts ParseOptions) GetName() string {
	return "parse"
}

func (opts ParseOptions) Help() api.Text {
	return clicky.Text(`List the directives of a fixture without running it.

Tokens such as {%s} and {%t} are shown unsubstituted. Unknown directive names are
reported as errors.

EXAMPLES:
  lit parse test/basic.c
  lit parse test/basic.py --format json`)
}

type parsedFixture struct {
	Path       string               `json:"path"`
	Syntax     string               `json:"syntax"`
	Directives []fixtures.Directive `json:"directives"`
}

func (p parsedFixture) Pretty() api.Text {
	t := clicky.Text(p.Path, "font-bold").Append(fmt.Sprintf(" (%s)", p.Syntax), "text-gray-500")
	for _, d := range p.Directives {
		t = t.NewLine().Add(d.Pretty())
	}
	return t
}

func init() {
	clicky.AddCommand(rootCmd, ParseOptions{}, runParse)
}

func runParse(opts ParseOptions) (any, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("at least one fixture path is required")
	}
	wd, err := getWorkingDir()
	if err != nil {
		return nil, err
	}
	cfg, err := fixtures.LoadConfig(wd, opts.Config)
	if err != nil {
		return nil, err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	var parsed []parsedFixture
	for _, path := range opts.Paths {
		directives, err := fixtures.ParseFile(path, registry)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, parsedFixture{
			Path:       path,
			Syntax:     registry.ForPath(path).Name,
			Directives: directives,
		})
	}
	return parsed, nil
}
