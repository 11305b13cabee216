package ffmpeg

import (
	"context"
	"os/exec"
)

// Executor launches external binaries. The pipeline never calls os/exec
// directly so tests can script ffmpeg and ffprobe behaviour.
type Executor interface {
	// Output runs the command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// CombinedOutput runs the command and returns stdout and stderr together.
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecExecutor is the os/exec backed Executor.
type ExecExecutor struct{}

func (ExecExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (ExecExecutor) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
