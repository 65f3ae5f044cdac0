package fixtures

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/exec"
	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/flanksource/commons/logger"
	"github.com/flanksource/gomplate/v3"
	"github.com/flanksource/lit/shutdown"
	"github.com/samber/lo"
)

// RunnerOptions configures a batch of fixture evaluations
type RunnerOptions struct {
	Paths      []string // Fixture files, directories or glob patterns
	Filter     string   // Glob matched against fixture names
	Extensions []string // Extensions collected from directories
	WorkDir    string   // Base for fixture names and the build command
	TempRoot   string   // Root for fixture workspaces; a fresh temp dir when empty
	KeepWork   bool     // Keep workspaces after the run
	Build      string   // Command run once before any fixture
	Timeout    time.Duration
	Vars       map[string]string
	Registry   *SyntaxRegistry
	Shell      Shell
}

// Runner discovers fixtures and evaluates them in parallel, one task per fixture.
type Runner struct {
	options    RunnerOptions
	fixtures   []Fixture
	conditions *ConditionEvaluator
	tree       *FixtureNode
}

// NewRunner creates a new fixture runner
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.WorkDir = wd
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry
	}
	if opts.Shell == nil {
		opts.Shell = BashShell{}
	}

	conditions, err := NewConditionEvaluator(HostFacts(opts.Vars))
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	return &Runner{
		options:    opts,
		conditions: conditions,
	}, nil
}

// Fixtures returns the fixtures found by Discover
func (r *Runner) Fixtures() []Fixture {
	return r.fixtures
}

// Discover expands the configured paths into a sorted, de-duplicated fixture list and
// applies the name filter.
func (r *Runner) Discover() ([]Fixture, error) {
	seen := map[string]bool{}
	var found []Fixture

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		found = append(found, Fixture{
			Name:   relativePath(r.options.WorkDir, abs),
			Path:   abs,
			Syntax: r.options.Registry.ForPath(abs).Name,
		})
	}

	for _, p := range r.options.Paths {
		path := p
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.options.WorkDir, path)
		}

		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			matches, err := doublestar.Glob(os.DirFS(path), extensionPattern(r.options.Extensions), doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("failed to list fixtures in %s: %w", p, err)
			}
			for _, m := range matches {
				add(filepath.Join(path, filepath.FromSlash(m)))
			}
		case err == nil:
			add(path)
		default:
			matches, err := doublestar.FilepathGlob(path, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("invalid glob pattern '%s': %w", p, err)
			}
			if len(matches) == 0 {
				logger.Warnf("No files matched pattern: %s", p)
			}
			for _, m := range matches {
				add(m)
			}
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })

	if r.options.Filter != "" {
		found = lo.Filter(found, func(f Fixture, _ int) bool {
			match, err := doublestar.Match(r.options.Filter, f.Name)
			if err != nil {
				logger.Warnf("Invalid filter pattern '%s': %v", r.options.Filter, err)
				return false
			}
			if !match {
				match, _ = doublestar.Match(r.options.Filter, filepath.Base(f.Name))
			}
			return match
		})
		logger.Infof("Filtered to %d fixtures matching '%s'", len(found), r.options.Filter)
	}

	r.fixtures = found
	return found, nil
}

func extensionPattern(exts []string) string {
	exts = lo.Uniq(exts)
	if len(exts) == 1 {
		return "**/*" + exts[0]
	}
	return "**/*{" + strings.Join(exts, ",") + "}"
}

// Run discovers and evaluates every fixture, returning the result tree. The error is
// non-nil when any fixture failed or errored.
func (r *Runner) Run(ctx context.Context) (*FixtureNode, error) {
	if _, err := r.Discover(); err != nil {
		return nil, err
	}
	if len(r.fixtures) == 0 {
		return nil, fmt.Errorf("no fixtures found")
	}
	logger.Infof("Loaded %d fixtures", len(r.fixtures))

	root, cleanup, err := r.workRoot()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	r.tree = BuildTree("Fixtures", r.fixtures)
	r.execute(ctx, root)
	r.tree.UpdateStats()

	stats := r.tree.GetStats()
	if stats.HasFailures() {
		return r.tree, fmt.Errorf("fixture tests failed: %s", stats.String())
	}
	return r.tree, nil
}

// workRoot returns the directory fixture workspaces are created in and its cleanup.
func (r *Runner) workRoot() (string, func(), error) {
	if r.options.TempRoot != "" {
		if err := os.MkdirAll(r.options.TempRoot, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create temp root: %w", err)
		}
		return r.options.TempRoot, func() {}, nil
	}

	root, err := os.MkdirTemp("", "lit-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp root: %w", err)
	}
	if r.options.KeepWork {
		logger.Infof("Fixture workspaces are kept in %s", root)
		return root, func() {}, nil
	}

	remove := func() {
		if err := os.RemoveAll(root); err != nil {
			logger.Warnf("failed to remove %s: %v", root, err)
		}
	}
	shutdown.AddHookWithPriority("remove fixture workspaces", shutdown.PriorityWorkspaces, remove)
	return root, remove, nil
}

func (r *Runner) execute(ctx context.Context, root string) {
	var (
		buildTask *clicky.Task
		buildMu   sync.Mutex
		buildErr  error
	)
	if r.options.Build != "" {
		buildTask = clicky.StartTask[bool](
			fmt.Sprintf("Build: %s", r.options.Build),
			func(ctx flanksourceContext.Context, t *task.Task) (bool, error) {
				err := r.executeBuildCommand(ctx, r.options.Build)
				buildMu.Lock()
				buildErr = err
				buildMu.Unlock()
				return err == nil, err
			},
			clicky.WithTaskTimeout(30*time.Minute),
		).Task
	}

	group := task.StartGroup[FixtureResult]("Fixtures")
	nodes := make(map[task.TypedTask[FixtureResult]]*FixtureNode)

	r.tree.Walk(func(node *FixtureNode) {
		fixture := *node.Fixture
		run := func(tctx flanksourceContext.Context, t *task.Task) (FixtureResult, error) {
			if err := ctx.Err(); err != nil {
				return FixtureResult{Name: fixture.Name, Path: fixture.Path, Fixture: fixture}.Errorf(err, "cancelled"), nil
			}
			buildMu.Lock()
			err := buildErr
			buildMu.Unlock()
			if err != nil {
				return FixtureResult{Name: fixture.Name, Path: fixture.Path, Fixture: fixture}.Errorf(err, "fixture did not run"), nil
			}
			return r.executeFixture(tctx, fixture, root), nil
		}
		var typed task.TypedTask[FixtureResult]
		if r.options.Timeout > 0 {
			typed = group.Add(fixture.Name, run, clicky.WithDependencies(buildTask), clicky.WithTaskTimeout(r.options.Timeout))
		} else {
			typed = group.Add(fixture.Name, run, clicky.WithDependencies(buildTask))
		}
		nodes[typed] = node
	})

	if res := group.WaitFor(); res.Error != nil {
		logger.Warnf("Some fixtures failed: %v", res.Error)
	}

	results, err := group.GetResults()
	if err != nil {
		logger.Warnf("failed to collect fixture results: %v", err)
	}
	for typed, result := range results {
		if node, ok := nodes[typed]; ok {
			res := result
			node.Results = &res
		} else {
			logger.Warnf("No tree node found for task: %s", typed.Name())
		}
	}

	// fixtures whose task never produced a result (cancelled, build failed, timed out)
	r.tree.Walk(func(node *FixtureNode) {
		if node.Results == nil {
			res := FixtureResult{Name: node.Fixture.Name, Path: node.Fixture.Path, Fixture: *node.Fixture}.
				Errorf(fmt.Errorf("no result"), "fixture did not run")
			node.Results = &res
		}
	})

	clicky.WaitForGlobalCompletion()
}

// executeFixture evaluates one fixture and converts the outcome into a result
func (r *Runner) executeFixture(ctx context.Context, fixture Fixture, root string) FixtureResult {
	result, err := Evaluate(ctx, fixture.Path, EvaluateOptions{
		TempRoot:   root,
		Registry:   r.options.Registry,
		Conditions: r.conditions,
		Shell:      r.options.Shell,
		KeepWork:   r.options.KeepWork,
	})
	fr := NewFixtureResult(fixture, result, err)
	if err != nil {
		logger.V(1).Infof("%v", err)
	}
	return fr
}

// executeBuildCommand renders the build command with gomplate and runs it through bash
func (r *Runner) executeBuildCommand(ctx flanksourceContext.Context, buildCmd string) error {
	templated, err := renderBuildTemplate(buildCmd, map[string]interface{}{
		"PWD":     r.options.WorkDir,
		"WorkDir": r.options.WorkDir,
		"Vars":    r.options.Vars,
	})
	if err != nil {
		ctx.Errorf("Failed to template build command: %v", err)
		return fmt.Errorf("failed to template build command: %w", err)
	}

	ctx.Logger.V(4).Infof("Build command: %s", templated)

	process := exec.NewExec("bash", "-o", "pipefail", "-c", "--", templated).WithCwd(r.options.WorkDir)
	process.SucceedOnNonZero = true
	result := process.Run().Result()
	if result.Error != nil || result.ExitCode != 0 {
		ctx.Errorf("Build failed: exit code %d\nOutput: %s", result.ExitCode, result.Output())
		return fmt.Errorf("build command failed with exit code %d: %s", result.ExitCode, result.Output())
	}
	if out := result.Output(); out != "" {
		ctx.Logger.V(5).Infof("Build output: %s", out)
	}
	return nil
}

// renderBuildTemplate renders a gomplate template for build commands
func renderBuildTemplate(template string, data map[string]interface{}) (string, error) {
	return gomplate.RunTemplate(data, gomplate.Template{
		Template: template,
	})
}
