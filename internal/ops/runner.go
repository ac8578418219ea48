// Package ops holds the deployment and monitoring tasks behind ecoctl.
package ops

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecotracker/backend/pkg/logger"
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// CommandError reports a command that exited unsuccessfully.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), &CommandError{
			Command: strings.Join(append([]string{name}, args...), " "),
			Stderr:  stderr.String(),
			Err:     err,
		}
	}
	return stdout.String(), nil
}

// runStep runs one named command through r and logs its outcome.
func runStep(ctx context.Context, r Runner, step, name string, args ...string) (string, error) {
	log := logger.With(
		zap.String("step", step),
		zap.String("command", strings.Join(append([]string{name}, args...), " ")),
	)
	log.Info("Running ops step")

	start := time.Now()
	out, err := r.Run(ctx, name, args...)
	if err != nil {
		log.Warn("Ops step failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return out, err
	}

	log.Info("Ops step completed", zap.Duration("duration", time.Since(start)))
	return out, nil
}

const rule = "=================================================="

func header(out io.Writer, title string) {
	fmt.Fprintf(out, "\n%s\n  %s\n%s\n", rule, title, rule)
}
