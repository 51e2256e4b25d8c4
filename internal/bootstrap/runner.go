package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"codeberg.org/mutker/sysmon/internal/errors"
)

// CommandResult is the captured outcome of one external command.
type CommandResult struct {
	Command    string
	ReturnCode int
	Stdout     string
	Stderr     string
}

func (r CommandResult) String() string {
	return fmt.Sprintf("command=%q returncode=%d stdout=%q stderr=%q",
		r.Command, r.ReturnCode, strings.TrimSpace(r.Stdout), strings.TrimSpace(r.Stderr))
}

// Runner executes external commands. A non-zero exit is reported through
// CommandResult.ReturnCode; the error is reserved for commands that could
// not be started at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

type execRunner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := CommandResult{Command: strings.Join(append([]string{name}, args...), " ")}

	err := cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ReturnCode = exitErr.ExitCode()
		return result, nil
	default:
		result.ReturnCode = -1
		return result, err
	}
}
