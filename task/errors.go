package task

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

var (
	ErrLaunch    = errors.New("launch failure")
	ErrExecution = errors.New("execution failure")
	ErrCleanup   = errors.New("cleanup failure")

	ErrNotFound   = errors.New("task not found")
	ErrInvalidJob = errors.New("invalid job")
	ErrQueueFull  = errors.New("queue is full")
	ErrStopped    = errors.New("task manager stopped")
)

// StageError is the terminal error of a failed job. errors.Is matches
// both the Kind sentinel and anything wrapped in Err.
type StageError struct {
	Stage  Stage
	Kind   error
	Err    error
	Output string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Classify maps a subprocess error to ErrLaunch when the process never
// started and to ErrExecution otherwise.
func Classify(err error) error {
	var execErr *exec.Error
	var pathErr *fs.PathError
	if errors.As(err, &execErr) || errors.As(err, &pathErr) {
		return ErrLaunch
	}
	return ErrExecution
}

// KindOf names the failure category of err for presentation.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLaunch):
		return "launch"
	case errors.Is(err, ErrExecution):
		return "execution"
	case errors.Is(err, ErrCleanup):
		return "cleanup"
	default:
		return "unknown"
	}
}
