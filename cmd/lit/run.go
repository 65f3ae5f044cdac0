package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/api"
	"github.com/flanksource/commons/logger"
	"github.com/flanksource/lit/fixtures"
	"github.com/flanksource/lit/shutdown"
)

type RunOptions struct {
	Paths      []string `json:"paths,omitempty" args:"true"`
	Config     string   `json:"config,omitempty" flag:"config" help:"Path to a config file (default: .lit.yaml in the working directory)"`
	Filter     string   `json:"filter,omitempty" flag:"filter" help:"Only run fixtures whose name or base name matches this glob"`
	Extensions []string `json:"extensions,omitempty" flag:"ext" help:"Fixture extensions collected from directories"`
	Vars       []string `json:"vars,omitempty" flag:"var" help:"KEY=VALUE visible to XFAIL conditions as env.KEY"`
	Build      string   `json:"build,omitempty" flag:"build" help:"Command run once before any fixture"`
	Timeout    string   `json:"timeout,omitempty" flag:"timeout" help:"Per-fixture timeout, e.g. 30s (default: none)"`
	TempRoot   string   `json:"temp_root,omitempty" flag:"temp-root" help:"Directory fixture workspaces are created in"`
	KeepWork   bool     `json:"keep_work,omitempty" flag:"keep-work" help:"Keep fixture workspaces after the run"`
}

func (opts RunOptions) GetName() string {
	return "run"
}

func (opts RunOptions) Help() api.Text {
	return clicky.Text(`Evaluate fixture files and report pass, fail and expected failures.

Each fixture is scanned for RUN, CHECK and XFAIL directives written in its line
comment syntax ("//" for C sources, "#" for scripts). RUN commands execute in a
private workspace; CHECK consumes the next literal prefix of their output.

EXAMPLES:
  # Run every fixture below test/
  lit run test

  # Run a single fixture and keep its workspace
  lit run test/basic.c --keep-work

  # Run fixtures matching a filter with an LLVM version for XFAIL conditions
  lit run test --filter 'loops/*' --var LLVM_VERSION=18.1.8`)
}

func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q, expected KEY=VALUE", kv)
		}
		vars[k] = v
	}
	return vars, nil
}

func init() {
	clicky.AddCommand(rootCmd, RunOptions{}, runFixtures)
}

func runFixtures(opts RunOptions) (any, error) {
	wd, err := getWorkingDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := fixtures.LoadConfig(wd, opts.Config)
	if err != nil {
		return nil, err
	}
	vars, err := parseVars(opts.Vars)
	if err != nil {
		return nil, err
	}
	cfg = fixtures.MergeConfig(cfg, fixtures.Config{
		Extensions: opts.Extensions,
		Build:      opts.Build,
		Vars:       vars,
		KeepWork:   opts.KeepWork,
	})

	registry, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("invalid syntax configuration: %w", err)
	}

	var timeout time.Duration
	if opts.Timeout != "" {
		if timeout, err = time.ParseDuration(opts.Timeout); err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
	}

	paths := opts.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}

	runner, err := fixtures.NewRunner(fixtures.RunnerOptions{
		Paths:      paths,
		Filter:     opts.Filter,
		Extensions: cfg.Extensions,
		WorkDir:    wd,
		TempRoot:   opts.TempRoot,
		KeepWork:   cfg.KeepWork,
		Build:      cfg.Build,
		Timeout:    timeout,
		Vars:       cfg.Vars,
		Registry:   registry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fixture runner: %w", err)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tree, err := runner.Run(ctx)
	if tree == nil {
		return nil, err
	}
	if err != nil {
		logger.Errorf("%v", err)
		exitCode = 1
	}
	if ctx.Err() != nil {
		exitCode = shutdown.ExitInterrupted
	}
	return tree, nil
}
