package fixtures

import (
	"context"
	"strings"

	"github.com/flanksource/clicky/exec"
	"github.com/flanksource/commons/logger"
)

// ShellResult is the captured outcome of one RUN command.
type ShellResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err is set when the process could not be started or waited on
	Err error
}

// OK reports whether the command ran and exited zero.
func (r ShellResult) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Shell executes RUN directive content.
type Shell interface {
	Run(ctx context.Context, command, dir string) ShellResult
}

// BashShell runs commands as `bash -o pipefail -c -- <command>` with stdin closed, so a failure
// anywhere in a pipeline fails the directive.
type BashShell struct {
	// Path to bash; defaults to "bash" resolved from PATH
	Path string
}

var _ Shell = BashShell{}

func (b BashShell) Run(ctx context.Context, command, dir string) ShellResult {
	bash := b.Path
	if bash == "" {
		bash = "bash"
	}

	logger.V(3).Infof("RUN (cwd=%s): %s", dir, command)

	if err := ctx.Err(); err != nil {
		return ShellResult{ExitCode: -1, Err: err}
	}

	process := exec.NewExec(bash, "-o", "pipefail", "-c", "--", command).WithCwd(dir)
	process.SucceedOnNonZero = true
	result := process.Run().Result()

	if logger.V(4).Enabled() {
		logger.V(4).Infof("exit=%d stdout=%q stderr=%q", result.ExitCode, result.Stdout, strings.TrimSpace(result.Stderr))
	}

	return ShellResult{
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
		Err:      result.Error,
	}
}
