// Package runner invokes the dependent command once orchestration has
// resolved. Captured values are handed over as an explicit environment map;
// the runner never reads process-global mutable state beyond os.Environ.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jrepp/stagehand/pkg/runner"

// Invocation describes the dependent command
type Invocation struct {
	// Command is an opaque shell command, passed to /bin/sh -c verbatim
	Command string

	// Dir is the working directory ("" = inherit)
	Dir string

	// Env holds extra environment variables layered over os.Environ,
	// including every captured value from orchestration
	Env map[string]string
}

// Run executes the invocation with stdio passed through and returns the
// command's exit code. An error is returned only when the command could not
// be started or was interrupted; a non-zero exit is not an error.
func Run(ctx context.Context, logger *slog.Logger, inv Invocation) (int, error) {
	if inv.Command == "" {
		return 0, fmt.Errorf("no command to run")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "run.command",
		trace.WithAttributes(attribute.String("command", inv.Command)))
	defer span.End()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", inv.Command)
	cmd.Dir = inv.Dir

	env := os.Environ()
	for k, v := range inv.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logger.Info("running dependent command", "command", inv.Command, "env_keys", len(inv.Env))

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		span.SetAttributes(attribute.Int("exit_code", code))
		logger.Info("dependent command exited", "exit_code", code)
		return code, nil
	}

	span.RecordError(err)
	return -1, fmt.Errorf("run command: %w", err)
}
