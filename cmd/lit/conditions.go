package main

import (
	"fmt"
	"strings"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/api"
	"github.com/flanksource/lit/fixtures"
)

type ConditionsOptions struct {
	Expression []string `json:"expression,omitempty" args:"true" help:"Optional XFAIL condition to evaluate"`
	Vars       []string `json:"vars,omitempty" flag:"var" help:"KEY=VALUE visible as env.KEY"`
}

func (opts ConditionsOptions) GetName() string {
	return "conditions"
}

func (opts ConditionsOptions) Help() api.Text {
	return clicky.Text(`Show the variables and functions available to XFAIL conditions, or evaluate one.

EXAMPLES:
  lit conditions
  lit conditions 'os == "darwin" || versionLess(env.LLVM_VERSION, "15")' --var LLVM_VERSION=14.0.6`)
}

type conditionsReport struct {
	Facts      fixtures.Facts `json:"facts"`
	Variables  []string       `json:"variables"`
	Functions  []string       `json:"functions"`
	Expression string         `json:"expression,omitempty"`
	Value      *bool          `json:"value,omitempty"`
}

func (r conditionsReport) Pretty() api.Text {
	t := clicky.Text("Variables", "font-bold")
	for _, v := range r.Variables {
		t = t.NewLine().Append("  "+v, "text-blue-500")
	}
	t = t.NewLine().Append("Functions", "font-bold")
	for _, f := range r.Functions {
		t = t.NewLine().Append("  "+f, "text-purple-500")
	}
	if r.Value != nil {
		style := "text-red-500"
		if *r.Value {
			style = "text-green-500"
		}
		t = t.NewLine().Append(r.Expression, "font-mono").Append(" => ").Append(fmt.Sprintf("%t", *r.Value), style)
	}
	return t
}

func init() {
	clicky.AddCommand(rootCmd, ConditionsOptions{}, runConditions)
}

func runConditions(opts ConditionsOptions) (any, error) {
	vars, err := parseVars(opts.Vars)
	if err != nil {
		return nil, err
	}
	evaluator, err := fixtures.NewConditionEvaluator(fixtures.HostFacts(vars))
	if err != nil {
		return nil, err
	}

	report := conditionsReport{
		Facts:      evaluator.Facts(),
		Variables:  evaluator.GetAvailableVariables(),
		Functions:  evaluator.GetAvailableFunctions(),
		Expression: strings.Join(opts.Expression, " "),
	}
	if report.Expression != "" {
		value, err := evaluator.Evaluate(report.Expression)
		if err != nil {
			return nil, err
		}
		report.Value = &value
	}
	return report, nil
}
