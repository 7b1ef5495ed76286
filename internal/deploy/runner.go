package deploy

import (
	"context"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// A Runner executes an external tool to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs tools as child processes and forwards their output to the
// debug log.
type ExecRunner struct {
	log *logrus.Entry
}

func NewExecRunner(log *logrus.Entry) *ExecRunner {
	return &ExecRunner{log: log}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out := r.log.WriterLevel(logrus.DebugLevel)
	defer out.Close()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}
