package fixtures

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/flanksource/commons/logger"
	"github.com/flanksource/lit/utils"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"github.com/shirou/gopsutil/v3/host"
)

// Facts are the host properties XFAIL conditions may refer to.
type Facts struct {
	OS              string            `json:"os"`
	Arch            string            `json:"arch"`
	Platform        string            `json:"platform,omitempty"`
	PlatformFamily  string            `json:"platformFamily,omitempty"`
	PlatformVersion string            `json:"platformVersion,omitempty"`
	KernelVersion   string            `json:"kernelVersion,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
}

// HostFacts collects facts about the running host, overlaying vars on the process environment.
func HostFacts(vars map[string]string) Facts {
	f := Facts{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
		Env:  environMap(os.Environ()),
	}
	if info, err := host.Info(); err != nil {
		logger.Debugf("host info unavailable: %v", err)
	} else {
		f.Platform = info.Platform
		f.PlatformFamily = info.PlatformFamily
		f.PlatformVersion = info.PlatformVersion
		f.KernelVersion = info.KernelVersion
	}
	for k, v := range vars {
		f.Env[k] = v
	}
	return f
}

func environMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

func (f Facts) activation() map[string]any {
	env := f.Env
	if env == nil {
		env = map[string]string{}
	}
	return map[string]any{
		"True":            true,
		"False":           false,
		"os":              f.OS,
		"arch":            f.Arch,
		"platform":        f.Platform,
		"platformFamily":  f.PlatformFamily,
		"platformVersion": f.PlatformVersion,
		"kernelVersion":   f.KernelVersion,
		"env":             env,
	}
}

// ConditionEvaluator evaluates XFAIL conditions. The condition language is CEL over a fixed
// set of host facts and helper functions; nothing else is reachable from a fixture.
// It is safe for concurrent use.
type ConditionEvaluator struct {
	facts      Facts
	activation map[string]any
	env        *cel.Env
	programs   sync.Map // expression -> cel.Program
	asan       sync.Map // path -> bool
}

// NewConditionEvaluator creates an evaluator bound to the given facts.
func NewConditionEvaluator(facts Facts) (*ConditionEvaluator, error) {
	e := &ConditionEvaluator{facts: facts, activation: facts.activation()}

	env, err := cel.NewEnv(
		cel.Variable("True", cel.BoolType),
		cel.Variable("False", cel.BoolType),
		cel.Variable("os", cel.StringType),
		cel.Variable("arch", cel.StringType),
		cel.Variable("platform", cel.StringType),
		cel.Variable("platformFamily", cel.StringType),
		cel.Variable("platformVersion", cel.StringType),
		cel.Variable("kernelVersion", cel.StringType),
		cel.Variable("env", cel.MapType(cel.StringType, cel.StringType)),
		ext.Strings(),
		cel.Function("getenv",
			cel.Overload("getenv_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(stringFunc(func(name string) ref.Val {
					return types.String(e.facts.Env[name])
				})))),
		cel.Function("which",
			cel.Overload("which_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(stringFunc(func(name string) ref.Val {
					p, err := exec.LookPath(name)
					if err != nil {
						return types.String("")
					}
					return types.String(p)
				})))),
		cel.Function("exists",
			cel.Overload("exists_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(stringFunc(func(path string) ref.Val {
					if path == "" {
						return types.False
					}
					_, err := os.Stat(path)
					return types.Bool(err == nil)
				})))),
		cel.Function("isUsingASan",
			cel.Overload("isUsingASan_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(stringFunc(func(path string) ref.Val {
					return types.Bool(e.isUsingASan(path))
				})))),
		cel.Function("versionCompare",
			cel.Overload("versionCompare_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.IntType,
				cel.BinaryBinding(versionFunc(func(c int) ref.Val { return types.Int(c) })))),
		cel.Function("versionLess",
			cel.Overload("versionLess_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(versionFunc(func(c int) ref.Val { return types.Bool(c < 0) })))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	e.env = env
	return e, nil
}

func stringFunc(fn func(string) ref.Val) func(ref.Val) ref.Val {
	return func(arg ref.Val) ref.Val {
		s, ok := arg.(types.String)
		if !ok {
			return types.MaybeNoSuchOverloadErr(arg)
		}
		return fn(string(s))
	}
}

func versionFunc(fn func(int) ref.Val) func(ref.Val, ref.Val) ref.Val {
	return func(lhs, rhs ref.Val) ref.Val {
		a, ok := lhs.(types.String)
		if !ok {
			return types.MaybeNoSuchOverloadErr(lhs)
		}
		b, ok := rhs.(types.String)
		if !ok {
			return types.MaybeNoSuchOverloadErr(rhs)
		}
		c, err := utils.CompareVersions(string(a), string(b))
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		return fn(c)
	}
}

// isUsingASan reports whether the binary at path was built with AddressSanitizer.
func (e *ConditionEvaluator) isUsingASan(path string) bool {
	if path == "" {
		return false
	}
	if v, ok := e.asan.Load(path); ok {
		return v.(bool)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debugf("isUsingASan(%s): %v", path, err)
		return false
	}
	instrumented := bytes.Contains(data, []byte("__asan_init"))
	e.asan.Store(path, instrumented)
	return instrumented
}

func (e *ConditionEvaluator) program(expression string) (cel.Program, error) {
	if p, ok := e.programs.Load(expression); ok {
		return p.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	e.programs.Store(expression, prg)
	return prg, nil
}

// Evaluate returns the boolean value of an XFAIL condition.
func (e *ConditionEvaluator) Evaluate(expression string) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false, fmt.Errorf("empty condition")
	}

	prg, err := e.program(expression)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(e.activation)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	if b, ok := out.Value().(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("CEL expression did not return a boolean: got %T(%v)", out.Value(), out.Value())
}

// Validate compiles an expression without evaluating it.
func (e *ConditionEvaluator) Validate(expression string) error {
	_, err := e.program(strings.TrimSpace(expression))
	return err
}

// Facts returns the facts the evaluator was created with.
func (e *ConditionEvaluator) Facts() Facts {
	return e.facts
}

// GetAvailableVariables returns the variables usable in conditions
func (e *ConditionEvaluator) GetAvailableVariables() []string {
	return []string{
		"True, False - boolean constants",
		"os - operating system (" + e.facts.OS + ")",
		"arch - CPU architecture (" + e.facts.Arch + ")",
		"platform - distribution or platform name (" + e.facts.Platform + ")",
		"platformFamily - platform family (" + e.facts.PlatformFamily + ")",
		"platformVersion - platform version (" + e.facts.PlatformVersion + ")",
		"kernelVersion - kernel version (" + e.facts.KernelVersion + ")",
		"env - environment variables, e.g. env.LLVM_VERSION",
	}
}

// GetAvailableFunctions returns the functions usable in conditions
func (e *ConditionEvaluator) GetAvailableFunctions() []string {
	return []string{
		"getenv(name) - environment variable or \"\"",
		"which(name) - absolute path of an executable on PATH or \"\"",
		"exists(path) - whether a file exists",
		"isUsingASan(path) - whether a binary is built with AddressSanitizer",
		"versionCompare(a, b) - -1, 0 or 1",
		"versionLess(a, b) - a < b",
		"string.startsWith/endsWith/contains and the CEL strings extension",
	}
}

// EnvKeys returns the sorted environment keys visible to conditions.
func (f Facts) EnvKeys() []string {
	keys := make([]string, 0, len(f.Env))
	for k := range f.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
