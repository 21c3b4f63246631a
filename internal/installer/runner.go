package installer

import (
	"context"
	"os"
	"os/exec"
)

// Runner runs an external command and returns its combined output.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec, inheriting the environment.
type ExecRunner struct {
	// Env is appended to the inherited environment.
	Env []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

func (r ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)
	return cmd.CombinedOutput()
}
